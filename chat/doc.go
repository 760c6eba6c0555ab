// Package chat keeps a consistent, ordered view of one or more chat rooms
// over a poll-only HTTP transport.
//
// A single polling goroutine walks every joined room once per heartbeat,
// fetches enough recent history to cover both new messages and edits still
// inside the service's edit window, diffs the batch against the previous one,
// and delivers each logical change to the consumer's Handler exactly once:
// OnMessage for anything newer than the room's processed boundary,
// OnMessageEdited for content changes to recent messages (including
// deletions).
//
// Joining a room performs a priming fetch that establishes the boundary
// without replaying existing history as new messages. Leaving a room takes
// effect before the next cycle; a dispatch already in flight notices and
// stops without advancing the boundary.
//
// All state is in-memory. A restart re-primes every room, so messages posted
// while the process was down are not replayed (at-most-once recovery).
package chat
