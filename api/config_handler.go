package api

import (
	"net/http"

	"github.com/seenimoa/finpress/internal/config"
)

// handleGetConfigKeys returns the status of all API keys, masked.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}
