package httpapi

import "net/http"

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.leader.Templates.List())
}

func (s *Server) reloadTemplates(w http.ResponseWriter, r *http.Request) {
	if err := s.leader.Templates.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.leader.Templates.List())
}
