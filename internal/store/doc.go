// Package store persists the runtime restore point in SQLite.
//
// The restore point lets a restarted server pick up where it left off: the
// loaded cue, how far into it the show was, aux timers and the message
// overlay. It is written by the engine at a fixed interval (only when the
// state changed) and once more on shutdown, then read back at boot.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Instants are stored as Unix milliseconds because monotonic clock readings
// do not survive a restart.
package store
