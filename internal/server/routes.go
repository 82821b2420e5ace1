package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/namespace", s.getNamespace)
	r.Get("/agent", s.listAgents)

	// Event streaming (SSE)
	r.Get("/event", s.allEvents)

	r.Route("/agent/{agentID}", func(r chi.Router) {
		r.Use(s.agentContext)

		r.Get("/prefs", s.getPrefs)
		r.Patch("/prefs", s.updatePrefs)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Post("/", s.createSession)
			r.Get("/current", s.getCurrentSession)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Patch("/", s.updateSession)
				r.Delete("/", s.deleteSession)

				r.Post("/select", s.selectSession)
				r.Post("/message", s.sendMessage) // Streaming response
				r.Post("/abort", s.abortSession)
				r.Get("/status", s.getSessionStatus)
				r.Get("/export", s.exportSession)
			})
		})

		r.Route("/folder", func(r chi.Router) {
			r.Get("/", s.listFolders)
			r.Post("/", s.createFolder)
			r.Get("/{folderID}", s.getFolder)
			r.Patch("/{folderID}", s.renameFolder)
			r.Delete("/{folderID}", s.deleteFolder)
		})
	})
}
