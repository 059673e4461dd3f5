package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ushadow-io/ushadow/pkg/instances"
)

func (s *Server) listWiring(w http.ResponseWriter, r *http.Request) {
	if target := r.URL.Query().Get("target"); target != "" {
		writeJSON(w, http.StatusOK, s.leader.Instances.ListWiringFor(target))
		return
	}
	writeJSON(w, http.StatusOK, s.leader.Instances.ListWiring())
}

func (s *Server) createWiring(w http.ResponseWriter, r *http.Request) {
	var body instances.Wiring
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := s.leader.Instances.CreateWiring(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) deleteWiring(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.leader.Instances.DeleteWiring(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
