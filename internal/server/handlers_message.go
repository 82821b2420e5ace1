package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/agentchat/internal/chat"
	"github.com/opencode-ai/agentchat/internal/event"
	"github.com/opencode-ai/agentchat/pkg/types"
)

// AttachmentInput is a file sent with a message. Data is base64 in JSON.
type AttachmentInput struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// SendMessageRequest represents the request to send a message.
type SendMessageRequest struct {
	Content     string            `json:"content"`
	Attachments []AttachmentInput `json:"attachments,omitempty"`
}

// SendMessageResponse is the final event of a message stream.
type SendMessageResponse struct {
	Session *types.Session `json:"session"`
	Message types.Message  `json:"message"`
	Failed  bool           `json:"failed"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}

// sendMessage handles POST /agent/{agentID}/session/{sessionID}/message
// The response is an SSE stream of state and delta events followed by a
// "done" event carrying the committed message, or an "error" event.
// Disconnecting aborts the request.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	engine := getEngine(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Content) == "" && len(req.Attachments) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "content is required")
		return
	}
	if _, err := engine.Sessions.Load(sessionID); err != nil {
		writeAppError(w, err)
		return
	}
	if engine.Chat.State(sessionID) != chat.StateIdle {
		writeAppError(w, chat.ErrBusy)
		return
	}

	setSSEHeaders(w)
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	sse.flush()

	// Deltas carry the whole text so far, so a dropped one loses nothing.
	events := make(chan event.Event, 64)
	unsub := s.app.Bus.SubscribeAll(func(e event.Event) {
		var sid string
		switch data := e.Data.(type) {
		case event.MessageDeltaData:
			if data.AgentID != engine.AgentID {
				return
			}
			sid = data.SessionID
		case event.StateData:
			if data.AgentID != engine.AgentID {
				return
			}
			sid = data.SessionID
		default:
			return
		}
		if sid != sessionID {
			return
		}
		select {
		case events <- e:
		default:
		}
	})
	defer unsub()

	attachments := make([]chat.Attachment, len(req.Attachments))
	for i, a := range req.Attachments {
		attachments[i] = chat.Attachment{Name: a.Name, ContentType: a.ContentType, Data: a.Data}
	}

	type outcome struct {
		res *chat.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := engine.Chat.Send(r.Context(), sessionID, req.Content, attachments)
		done <- outcome{res, err}
	}()

	writeBusEvent := func(e event.Event) {
		sse.writeEvent("message", SDKEvent{Type: e.Type, Properties: e.Data})
	}

	for {
		select {
		case e := <-events:
			writeBusEvent(e)
		case out := <-done:
			for drained := false; !drained; {
				select {
				case e := <-events:
					writeBusEvent(e)
				default:
					drained = true
				}
			}
			if out.err != nil {
				_, code := errorStatus(out.err)
				sse.writeEvent("error", ErrorDetail{Code: code, Message: out.err.Error()})
				return
			}
			resp := SendMessageResponse{
				Session: out.res.Session,
				Message: out.res.Message,
				Failed:  out.res.Failed,
			}
			if out.res.Err != nil {
				_, code := errorStatus(out.res.Err)
				resp.Error = &ErrorDetail{Code: code, Message: out.res.Err.Error()}
			}
			sse.writeEvent("done", resp)
			return
		}
	}
}
