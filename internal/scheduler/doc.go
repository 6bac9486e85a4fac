// Package scheduler is the local notification scheduler healthvault registers
// reminders with.
//
// It is responsible for:
//   - keeping a durable table of registrations (one blob in the KV store)
//   - arming daily registrations as cron entries and one-shots as timers
//   - handing fired registrations to a Deliverer
//
// Registrations made while the service is stopped are only persisted; Start
// (or Sync on a running service) arms them. This lets short-lived CLI
// processes register reminders that a long-running daemon delivers.
package scheduler
