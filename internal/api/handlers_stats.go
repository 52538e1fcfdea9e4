package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleInterpStats(w http.ResponseWriter, r *http.Request) {
	if s.interp == nil || s.interp.Stats == nil {
		jsonError(w, "interpreter stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model": s.interp.Model(),
		"stats": s.interp.Stats.Snapshot(),
	})
}
