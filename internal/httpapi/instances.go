package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ushadow-io/ushadow/pkg/instances"
)

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.leader.Instances.List())
}

func (s *Server) getInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	inst, ok := s.leader.Instances.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("instance", id))
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) createInstance(w http.ResponseWriter, r *http.Request) {
	var body instances.Instance
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := s.leader.Instances.Create(body)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body instances.Instance
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updated, err := s.leader.Instances.Update(id, func(inst *instances.Instance) {
		inst.DisplayName = body.DisplayName
		inst.Config = body.Config
		inst.DeploymentTarget = body.DeploymentTarget
		inst.Integration = body.Integration
	})
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.leader.Instances.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deployInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	dep, err := s.leader.Deploy.Deploy(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, dep)
}

func (s *Server) undeployInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.leader.Deploy.Undeploy(r.Context(), id); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
