// Package engine runs the show.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// The playback machine, the aux timer bank and the event store are owned by
// one goroutine, Engine.Run. Every command from every transport is funnelled
// through a bounded queue into that goroutine, so each command is atomic with
// respect to every other command and to the clock tick.
//
// Loop Flow:
//  1. Transports call Engine.Dispatch (any goroutine)
//  2. The request is queued; Run dequeues it and hands it to the dispatcher
//  3. On success the engine publishes a fresh snapshot to the event store
//  4. A ticker recomputes wall-clock-derived values, releases deferred edits,
//     advances roll mode and publishes again
//
// poll never enters the queue: the store's snapshot is immutable once
// published, so Dispatch answers it directly.
//
// The restore point is written by a separate goroutine. The loop only hands
// it the latest checkpoint, so a slow disk never delays a tick.
//
// Panics raised while handling a command or a tick are recovered and logged;
// the loop keeps running. A stopped show clock is worse than a failed command.
package engine
