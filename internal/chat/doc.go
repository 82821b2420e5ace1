// Package chat drives one request/response cycle per user message: it
// commits the user's message, posts it to the agent's backend, streams the
// reply through the stream package and commits the result to the session
// store.
//
// # States
//
// Each session moves through
//
//	Idle -> Sending -> Streaming -> Committing -> Idle
//
// with Failed -> Idle when the backend cannot be reached or the stream
// breaks, and Cancelled -> Idle when the request is abandoned. A failed
// request still commits a visible error message; a cancelled one commits
// nothing. At most one request is in flight per session.
//
// # Cancellation
//
// Switching sessions aborts streams on every other session of the agent, so
// late deltas never reach a session the user has left. Abort and Close do
// the same explicitly.
package chat
