package workerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ushadow-io/ushadow/pkg/deploy"
)

type deployRequest struct {
	DeploymentID string                            `json:"deployment_id"`
	Resolved     deploy.ResolvedServiceDefinition `json:"resolved"`
}

func (s *Server) deploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := s.worker.Docker.Deploy(r.Context(), "", req.Resolved, req.DeploymentID, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// byName builds the minimal Deployment the local backend needs to act on
// a container: the Docker engine's container endpoints accept either an
// id or a name, so the URL path segment works unchanged as ContainerID.
func byName(name string) deploy.Deployment {
	return deploy.Deployment{ContainerID: name, ContainerName: name}
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ok, err := s.worker.Docker.Stop(r.Context(), "", byName(name))
	respondBool(w, ok, err)
}

func (s *Server) restart(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ok, err := s.worker.Docker.Restart(r.Context(), "", byName(name))
	respondBool(w, ok, err)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ok, err := s.worker.Docker.Remove(r.Context(), "", byName(name))
	respondBool(w, ok, err)
}

func respondBool(w http.ResponseWriter, ok bool, err error) {
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("container not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	status, err := s.worker.Docker.GetStatus(r.Context(), "", byName(name))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (s *Server) logs(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	tail := 200
	if v := r.URL.Query().Get("tail"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			tail = n
		}
	}
	lines, err := s.worker.Docker.GetLogs(r.Context(), "", byName(name), tail)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"lines": lines})
}

type upgradeRequest struct {
	Image string `json:"image"`
}

// upgrade pulls the new manager image and signals the calling supervisor
// to recreate this worker's own container. It does not restart itself in
// place: a worker process has no way to hand its listening socket to a
// replacement, so it relies on the node's own restart policy (docker
// --restart=always, or the equivalent unit) to pick up the freshly
// pulled image once this process exits.
func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) {
	var req upgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.worker.Docker.PullImage(r.Context(), req.Image); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	go triggerSelfRestart(context.Background())
}
