// Package engine runs debate sessions.
//
// An [Engine] owns every session's [EngineState] and is the only writer of
// it. A session moves through
//
//	pending -> in_progress <-> paused
//	in_progress -> completed | cancelled | error
//	paused      -> cancelled
//
// and the three final statuses are terminal.
//
// Start and Resume hand execution to a per-session goroutine that walks the
// turn plan one entry at a time. Each turn waits for provider rate capacity,
// checks the projected usage against the session's token budget, calls the
// [Generator], records usage, persists a snapshot, and publishes events.
// Command methods (Pause, Resume, EndEarly) only change status; the
// execution goroutine notices the change at the next turn boundary. A call
// already in flight is allowed to finish: after Pause its result is kept,
// after EndEarly it is discarded.
//
// A failed or timed-out generation is terminal for the session. Turns are
// never retried by the engine.
//
// Commands for a session that is not held in memory rehydrate it from the
// snapshot store, so a paused session can be resumed by another process.
package engine
