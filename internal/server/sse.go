package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opencode-ai/agentchat/internal/event"
	"github.com/opencode-ai/agentchat/internal/logging"
)

// SDKEvent is the wire form of a bus event: {"type": "...", "properties": {...}}.
type SDKEvent struct {
	Type       event.EventType `json:"type"`
	Properties any             `json:"properties"`
}

const (
	// SSEHeartbeatInterval is the interval for SSE heartbeats.
	SSEHeartbeatInterval = 30 * time.Second
)

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

// newSSEWriter creates a new SSE writer.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	rc := http.NewResponseController(w)

	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	return &sseWriter{w: w, flusher: flusher, rc: rc}, nil
}

// setSSEHeaders prepares the response for an event stream.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
}

// writeEvent writes data as one SSE event.
func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.writeRaw(eventType, jsonData)
}

// writeRaw writes an already encoded payload as one SSE event.
func (s *sseWriter) writeRaw(eventType string, payload []byte) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	s.flush()
	return nil
}

// writeHeartbeat writes an SSE heartbeat comment.
func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flush()
}

func (s *sseWriter) flush() {
	// ResponseController reaches through middleware wrappers.
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
}

// eventFilter selects events by agent and session. Empty fields match all.
type eventFilter struct {
	agentID   string
	sessionID string
}

// envelope is the subset of an event payload used for filtering.
type envelope struct {
	Type       event.EventType `json:"type"`
	Properties struct {
		AgentID   string `json:"agentId"`
		SessionID string `json:"sessionId"`
		Info      *struct {
			ID string `json:"id"`
		} `json:"info"`
	} `json:"properties"`
}

func (f eventFilter) match(payload []byte) bool {
	if f.agentID == "" && f.sessionID == "" {
		return true
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return false
	}
	if f.agentID != "" && env.Properties.AgentID != f.agentID {
		return false
	}
	if f.sessionID == "" {
		return true
	}
	if env.Properties.SessionID == f.sessionID {
		return true
	}
	switch env.Type {
	case event.SessionCreated, event.SessionUpdated, event.SessionSwitched:
		return env.Properties.Info != nil && env.Properties.Info.ID == f.sessionID
	}
	return false
}

// allEvents handles GET /event, relaying every bus event to the client.
// Optional agent and sessionID query parameters narrow the stream.
func (srv *Server) allEvents(w http.ResponseWriter, r *http.Request) {
	filter := eventFilter{
		agentID:   r.URL.Query().Get("agent"),
		sessionID: r.URL.Query().Get("sessionID"),
	}

	messages, err := srv.app.Bus.Stream(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	setSSEHeaders(w)
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	// Explicitly write status and flush headers immediately
	w.WriteHeader(http.StatusOK)
	sse.flush()

	connected := SDKEvent{
		Type:       "server.connected",
		Properties: map[string]any{"namespace": srv.app.Namespace()},
	}
	if err := sse.writeEvent("message", connected); err != nil {
		return
	}

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if !filter.match(msg.Payload) {
				continue
			}
			if err := sse.writeRaw("message", msg.Payload); err != nil {
				logging.Debug().Err(err).Msg("SSE client gone")
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
