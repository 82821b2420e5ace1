package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// FolderRequest names a folder.
type FolderRequest struct {
	Name string `json:"name"`
}

func decodeFolderRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return "", false
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "name is required")
		return "", false
	}
	return req.Name, true
}

// listFolders handles GET /agent/{agentID}/folder
func (s *Server) listFolders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, getEngine(r.Context()).Folders.List())
}

// createFolder handles POST /agent/{agentID}/folder
func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeFolderRequest(w, r)
	if !ok {
		return
	}
	f, err := getEngine(r.Context()).Folders.Create(r.Context(), name)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// getFolder handles GET /agent/{agentID}/folder/{folderID}
func (s *Server) getFolder(w http.ResponseWriter, r *http.Request) {
	f, err := getEngine(r.Context()).Folders.Get(chi.URLParam(r, "folderID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// renameFolder handles PATCH /agent/{agentID}/folder/{folderID}
func (s *Server) renameFolder(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeFolderRequest(w, r)
	if !ok {
		return
	}
	f, err := getEngine(r.Context()).Folders.Rename(r.Context(), chi.URLParam(r, "folderID"), name)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// deleteFolder handles DELETE /agent/{agentID}/folder/{folderID}
// Sessions in the folder are kept and moved out of it.
func (s *Server) deleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := getEngine(r.Context()).Folders.Delete(r.Context(), chi.URLParam(r, "folderID")); err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w)
}
