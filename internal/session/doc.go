// Package session provides the durable registry of conversation threads for
// one agent, and the folders that group them.
//
// # Storage Layout
//
// All state lives in a storage.Store under keys prefixed by the agent's
// namespace:
//
//	<ns>-chats            map of session id to Session
//	<ns>-session-id       id of the current session
//	<ns>-folders          array of Folder
//	<ns>-use-memory       bool
//	<ns>-sidebar-visible  bool
//
// # Write-Through Persistence
//
// Every mutating Store operation serializes the whole session map and writes
// it before returning. When the write fails the in-memory change is rolled
// back, so callers never observe a mutation that is not durable.
//
// # Events
//
// When a Bus is attached with WithBus, each mutation publishes the matching
// session.* or folder.* event after the write has succeeded.
package session
