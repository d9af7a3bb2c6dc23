// Package protocol turns the claude CLI's newline-delimited JSON output into
// caller-facing notifications.
//
// Bytes flow through three stages, all owned by a single run:
//
//	LineSplitter -> Decode -> Router
//
// LineSplitter reassembles complete lines from arbitrary chunks, Decode
// classifies one line into an Event, and Router diffs token fragments,
// tracks the session id, and records the run's completion or failure.
// Terminal notifications (complete, error, aborted) are produced by the
// process layer when the child exits, using the Router's State.
package protocol
