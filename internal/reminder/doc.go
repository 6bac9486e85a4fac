// Package reminder owns local reminder state: planning triggers, keeping the
// persisted reminder list and the Scheduler adapter consistent, and exposing
// create/list/delete to the UI layer.
//
// Flow for a new reminder:
//
//	Planner.Plan -> Scheduler.Register -> Store.Save
//
// The Scheduler registration id becomes the reminder id, so deleting is a
// cancel by id followed by a Store rewrite. Firing happens entirely inside the
// Scheduler; the Store is not told about it (see Manager.Reconcile).
package reminder
