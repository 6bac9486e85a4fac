// Package notify surfaces fired reminders.
//
// The scheduler hands every fired registration to Service.Deliver. Delivery
// is throttled by a token bucket, suppressed when the same firing was already
// shown within the dedup window, and then handed to a Sink. The default sink
// writes a log line; a command sink runs an external program (for example
// notify-send) with the title and body as arguments.
//
// Each delivery is kept in a small in-memory history and announced on the
// event bus as reminder.fired.
package notify
