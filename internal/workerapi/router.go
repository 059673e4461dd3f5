// Package workerapi implements the worker agent's HTTP surface (spec.md
// §6), reachable only over the mesh VPN on port 8444 and guarded by the
// per-node shared secret issued at registration.
package workerapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ushadow-io/ushadow/internal/appctx"
)

const nodeSecretHeader = "X-Node-Secret"

// Server routes the worker agent's JSON API.
type Server struct {
	worker *appctx.Worker
	router *mux.Router
}

// New builds the worker router, gating every route behind the node
// secret.
func New(worker *appctx.Worker) *Server {
	s := &Server{worker: worker, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.requireNodeSecret)

	r.HandleFunc("/api/deploy", s.deploy).Methods(http.MethodPost)
	r.HandleFunc("/api/stop/{name}", s.stop).Methods(http.MethodPost)
	r.HandleFunc("/api/restart/{name}", s.restart).Methods(http.MethodPost)
	r.HandleFunc("/api/remove/{name}", s.remove).Methods(http.MethodDelete)
	r.HandleFunc("/api/status/{name}", s.status).Methods(http.MethodGet)
	r.HandleFunc("/api/logs/{name}", s.logs).Methods(http.MethodGet)
	r.HandleFunc("/api/upgrade", s.upgrade).Methods(http.MethodPost)
}

// requireNodeSecret rejects any request whose X-Node-Secret header does
// not match the secret this worker was issued at registration.
func (s *Server) requireNodeSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(nodeSecretHeader) != s.worker.NodeSecret {
			writeError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
