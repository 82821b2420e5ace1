package server

import (
	"encoding/json"
	"net/http"
)

// AgentInfo describes a configured agent.
type AgentInfo struct {
	ID        string `json:"id"`
	Endpoint  string `json:"endpoint"`
	Namespace string `json:"namespace"`
	Default   bool   `json:"default"`
}

// getNamespace handles GET /namespace
func (s *Server) getNamespace(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"namespace": s.app.Namespace()})
}

// listAgents handles GET /agent
func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents := make([]AgentInfo, 0, len(s.app.Agents()))
	for _, id := range s.app.Agents() {
		e, err := s.app.Engine(id)
		if err != nil {
			continue
		}
		agents = append(agents, AgentInfo{
			ID:        e.AgentID,
			Endpoint:  e.Endpoint,
			Namespace: e.Namespace,
			Default:   id == s.app.Config.DefaultAgent,
		})
	}
	writeJSON(w, http.StatusOK, agents)
}

// UpdatePrefsRequest toggles preferences. Absent fields are left alone.
type UpdatePrefsRequest struct {
	UseMemory      *bool `json:"useMemory,omitempty"`
	SidebarVisible *bool `json:"sidebarVisible,omitempty"`
}

// getPrefs handles GET /agent/{agentID}/prefs
func (s *Server) getPrefs(w http.ResponseWriter, r *http.Request) {
	engine := getEngine(r.Context())
	prefs, err := engine.Sessions.Prefs(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// updatePrefs handles PATCH /agent/{agentID}/prefs
func (s *Server) updatePrefs(w http.ResponseWriter, r *http.Request) {
	engine := getEngine(r.Context())

	var req UpdatePrefsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if req.UseMemory != nil {
		if err := engine.Sessions.SetUseMemory(r.Context(), *req.UseMemory); err != nil {
			writeAppError(w, err)
			return
		}
	}
	if req.SidebarVisible != nil {
		if err := engine.Sessions.SetSidebarVisible(r.Context(), *req.SidebarVisible); err != nil {
			writeAppError(w, err)
			return
		}
	}

	s.getPrefs(w, r)
}
