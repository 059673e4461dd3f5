// Package httpapi implements the leader's HTTP surface (spec.md §6):
// instance CRUD and lifecycle, wiring CRUD, template discovery, u-node
// fleet administration, and Kubernetes cluster registration.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ushadow-io/ushadow/internal/appctx"
)

// Server routes the leader's JSON API.
type Server struct {
	leader *appctx.Leader
	router *mux.Router
}

// New builds the router for the given leader context.
func New(leader *appctx.Leader) *Server {
	s := &Server{leader: leader, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.HandleFunc("/api/instances", s.listInstances).Methods(http.MethodGet)
	r.HandleFunc("/api/instances", s.createInstance).Methods(http.MethodPost)
	r.HandleFunc("/api/instances/{id}", s.getInstance).Methods(http.MethodGet)
	r.HandleFunc("/api/instances/{id}", s.updateInstance).Methods(http.MethodPut)
	r.HandleFunc("/api/instances/{id}", s.deleteInstance).Methods(http.MethodDelete)
	r.HandleFunc("/api/instances/{id}/deploy", s.deployInstance).Methods(http.MethodPost)
	r.HandleFunc("/api/instances/{id}/undeploy", s.undeployInstance).Methods(http.MethodPost)

	r.HandleFunc("/api/wiring", s.listWiring).Methods(http.MethodGet)
	r.HandleFunc("/api/wiring", s.createWiring).Methods(http.MethodPost)
	r.HandleFunc("/api/wiring/{id}", s.deleteWiring).Methods(http.MethodDelete)

	r.HandleFunc("/api/templates", s.listTemplates).Methods(http.MethodGet)
	r.HandleFunc("/api/templates/reload", s.reloadTemplates).Methods(http.MethodPost)

	r.HandleFunc("/api/unodes/tokens", s.createToken).Methods(http.MethodPost)
	r.HandleFunc("/api/unodes/join/{token}", s.joinScriptBash).Methods(http.MethodGet)
	r.HandleFunc("/api/unodes/join/{token}/ps1", s.joinScriptPowershell).Methods(http.MethodGet)
	r.HandleFunc("/api/unodes/bootstrap/{token}", s.bootstrapScriptBash).Methods(http.MethodGet)
	r.HandleFunc("/api/unodes/bootstrap/{token}/ps1", s.bootstrapScriptPowershell).Methods(http.MethodGet)
	r.HandleFunc("/api/unodes/register", s.registerNode).Methods(http.MethodPost)
	r.HandleFunc("/api/unodes/heartbeat", s.heartbeatNode).Methods(http.MethodPost)
	r.HandleFunc("/api/unodes", s.listNodes).Methods(http.MethodGet)
	r.HandleFunc("/api/unodes/{hostname}", s.getNode).Methods(http.MethodGet)
	r.HandleFunc("/api/unodes/{hostname}", s.deleteNode).Methods(http.MethodDelete)
	r.HandleFunc("/api/unodes/{hostname}/release", s.releaseNode).Methods(http.MethodPost)
	r.HandleFunc("/api/unodes/{hostname}/upgrade", s.upgradeNode).Methods(http.MethodPost)
	r.HandleFunc("/api/unodes/{hostname}/labels", s.patchNodeLabels).Methods(http.MethodPatch)
	r.HandleFunc("/api/unodes/discover/peers", s.discoverPeers).Methods(http.MethodGet)
	r.HandleFunc("/api/unodes/claim", s.claimNode).Methods(http.MethodPost)
	r.HandleFunc("/api/unodes/leader/info", s.leaderInfo).Methods(http.MethodGet)

	r.HandleFunc("/api/kubernetes", s.listClusters).Methods(http.MethodGet)
	r.HandleFunc("/api/kubernetes", s.registerCluster).Methods(http.MethodPost)
	r.HandleFunc("/api/kubernetes/{id}", s.getCluster).Methods(http.MethodGet)
	r.HandleFunc("/api/kubernetes/{id}", s.deleteCluster).Methods(http.MethodDelete)
	r.HandleFunc("/api/kubernetes/{id}/scan-infra", s.scanClusterInfra).Methods(http.MethodPost)
	r.HandleFunc("/api/kubernetes/{id}/nodes", s.clusterNodes).Methods(http.MethodGet)
	r.HandleFunc("/api/kubernetes/{id}/pods", s.clusterPods).Methods(http.MethodGet)
	r.HandleFunc("/api/kubernetes/{id}/pods/{name}/logs", s.clusterPodLogs).Methods(http.MethodGet)
	r.HandleFunc("/api/kubernetes/{id}/pods/{name}/events", s.clusterPodEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/kubernetes/{id}/envmap", s.ensureClusterEnvmap).Methods(http.MethodPost)
	r.HandleFunc("/api/kubernetes/{id}/deploy", s.deployToCluster).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
