package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/agentchat/internal/export"
	"github.com/opencode-ai/agentchat/pkg/types"
)

// SessionResponse is a session plus its live state.
type SessionResponse struct {
	*types.Session
	Current bool   `json:"current"`
	State   string `json:"state"`
}

// UpdateSessionRequest changes session fields. Absent fields are left
// alone; "folderId": null removes the session from its folder.
type UpdateSessionRequest struct {
	Title    *string         `json:"title,omitempty"`
	Archived *bool           `json:"archived,omitempty"`
	FolderID json.RawMessage `json:"folderId,omitempty"`
}

func (s *Server) sessionResponse(r *http.Request, sess *types.Session) SessionResponse {
	engine := getEngine(r.Context())
	return SessionResponse{
		Session: sess,
		Current: sess.ID == engine.Sessions.CurrentID(),
		State:   string(engine.Chat.State(sess.ID)),
	}
}

// listSessions handles GET /agent/{agentID}/session
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	engine := getEngine(r.Context())
	includeArchived, _ := strconv.ParseBool(r.URL.Query().Get("archived"))
	folder := r.URL.Query().Get("folder")

	sessions := engine.Sessions.ListByRecency(includeArchived)
	out := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		if folder != "" && !sess.InFolder(folder) {
			continue
		}
		out = append(out, s.sessionResponse(r, sess))
	}
	writeJSON(w, http.StatusOK, out)
}

// createSession handles POST /agent/{agentID}/session
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	engine := getEngine(r.Context())
	sess, err := engine.Chat.NewSession(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse(r, sess))
}

// getCurrentSession handles GET /agent/{agentID}/session/current
func (s *Server) getCurrentSession(w http.ResponseWriter, r *http.Request) {
	engine := getEngine(r.Context())
	sess := engine.Sessions.Current()
	if sess == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "No current session")
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse(r, sess))
}

// getSession handles GET /agent/{agentID}/session/{sessionID}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	engine := getEngine(r.Context())
	sess, err := engine.Sessions.Load(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse(r, sess))
}

// updateSession handles PATCH /agent/{agentID}/session/{sessionID}
func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	engine := getEngine(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	var req UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if req.Title != nil && *req.Title == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "title must not be empty")
		return
	}

	sess, err := engine.Sessions.Load(sessionID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if req.Title != nil {
		if sess, err = engine.Sessions.Rename(r.Context(), sessionID, *req.Title); err != nil {
			writeAppError(w, err)
			return
		}
	}
	if req.Archived != nil {
		if sess, err = engine.Sessions.SetArchived(r.Context(), sessionID, *req.Archived); err != nil {
			writeAppError(w, err)
			return
		}
	}
	if len(req.FolderID) > 0 {
		var folderID *string
		if !bytes.Equal(bytes.TrimSpace(req.FolderID), []byte("null")) {
			var id string
			if err := json.Unmarshal(req.FolderID, &id); err != nil {
				writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "folderId must be a string or null")
				return
			}
			folderID = &id
		}
		if sess, err = engine.Sessions.MoveToFolder(r.Context(), sessionID, folderID); err != nil {
			writeAppError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, s.sessionResponse(r, sess))
}

// deleteSession handles DELETE /agent/{agentID}/session/{sessionID}
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	engine := getEngine(r.Context())
	if err := engine.Chat.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w)
}

// selectSession handles POST /agent/{agentID}/session/{sessionID}/select
func (s *Server) selectSession(w http.ResponseWriter, r *http.Request) {
	engine := getEngine(r.Context())
	sess, err := engine.Chat.Switch(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse(r, sess))
}

// abortSession handles POST /agent/{agentID}/session/{sessionID}/abort
func (s *Server) abortSession(w http.ResponseWriter, r *http.Request) {
	engine := getEngine(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := engine.Sessions.Load(sessionID); err != nil {
		writeAppError(w, err)
		return
	}
	aborted := engine.Chat.Abort(sessionID)
	writeJSON(w, http.StatusOK, map[string]bool{"aborted": aborted})
}

// SessionStatus reports the request cycle state of a session.
type SessionStatus struct {
	State    string  `json:"state"`
	Inflight *string `json:"inflight"`
}

// getSessionStatus handles GET /agent/{agentID}/session/{sessionID}/status
func (s *Server) getSessionStatus(w http.ResponseWriter, r *http.Request) {
	engine := getEngine(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := engine.Sessions.Load(sessionID); err != nil {
		writeAppError(w, err)
		return
	}

	status := SessionStatus{State: string(engine.Chat.State(sessionID))}
	if text, ok := engine.Chat.Inflight(sessionID); ok {
		status.Inflight = &text
	}
	writeJSON(w, http.StatusOK, status)
}

// exportSession handles GET /agent/{agentID}/session/{sessionID}/export
func (s *Server) exportSession(w http.ResponseWriter, r *http.Request) {
	engine := getEngine(r.Context())

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	sess, err := engine.Sessions.Load(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeAppError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, sess, format); err != nil {
		writeAppError(w, err)
		return
	}

	contentType := map[export.Format]string{
		export.FormatMarkdown: "text/markdown; charset=utf-8",
		export.FormatJSON:     "application/json",
		export.FormatYAML:     "application/yaml",
	}[format]
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, sess.ID, format.Extension()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
