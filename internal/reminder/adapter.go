package reminder

import "context"

// Request is what the Scheduler adapter gets for one registration.
type Request struct {
	Trigger Trigger `json:"trigger"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
}

// Scheduler is the notification scheduling capability the Manager depends on.
// Delivery (display, sound, badge) is entirely the implementation's business.
type Scheduler interface {
	// Register schedules a one-shot or daily wake-up and returns a stable id.
	Register(ctx context.Context, req Request) (string, error)
	// Cancel is best effort; cancelling an unknown id is not an error.
	Cancel(ctx context.Context, id string) error
}

// LiveLister is implemented by schedulers that can report which registrations
// are still pending. Only Manager.Reconcile uses it.
type LiveLister interface {
	Live(ctx context.Context) ([]string, error)
}
