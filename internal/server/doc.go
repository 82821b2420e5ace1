// Package server provides the local HTTP API for agentchat.
//
// The server exposes the chat engines of the application context to a
// browser front end. It is a chi router with request ids, request logging,
// panic recovery and optional CORS.
//
// # API Endpoints
//
//   - GET  /namespace: the per-install identifier
//   - GET  /agent: configured agents
//   - GET  /event: every bus event as SSE, filtered by ?agent= and ?sessionID=
//   - /agent/{agentID}/session/*: session lifecycle, messaging and export
//   - /agent/{agentID}/folder/*: folder management
//   - /agent/{agentID}/prefs: memory and sidebar toggles
//
// # Messaging
//
// POST /agent/{agentID}/session/{sessionID}/message answers with an event
// stream. Each event is written as
//
//	event: message
//	data: {"type":"message.delta","properties":{"sessionId":"...","text":"Hel"}}
//
// and the stream ends with a "done" event holding the committed message, or
// an "error" event. Closing the connection aborts the request and nothing is
// committed for it.
//
// # Errors
//
// Errors use a single envelope:
//
//	{"error": {"code": "NOT_FOUND", "message": "session not found: 01H..."}}
//
// Codes are NOT_FOUND, INVALID_REQUEST, CONFLICT (a reply is already in
// progress), BACKEND_ERROR and INTERNAL_ERROR.
package server
