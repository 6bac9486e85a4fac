package reminder

import "errors"

var (
	// ErrEmptyText: the reminder message is blank after trimming.
	ErrEmptyText = errors.New("reminder text is empty")
	// ErrInvalidSchedule: the chosen time is not strictly in the future.
	ErrInvalidSchedule = errors.New("reminder time must be in the future")
	// ErrAdapterRegistration: the scheduler refused or failed the registration.
	// Nothing was persisted.
	ErrAdapterRegistration = errors.New("could not set reminder")
	// ErrAdapterCancellation is only ever logged; delete proceeds regardless.
	ErrAdapterCancellation = errors.New("could not cancel scheduled reminder")
	// ErrStoreCorrupt is returned by Store.Load in strict mode when the
	// persisted blob does not parse.
	ErrStoreCorrupt = errors.New("reminder store is corrupt")
	// ErrStorePersist: the store write failed after a successful registration.
	// The registration has been rolled back.
	ErrStorePersist = errors.New("could not save reminder")
	// ErrReconcileUnsupported: the scheduler cannot list live registrations.
	ErrReconcileUnsupported = errors.New("scheduler does not support listing registrations")
)
