package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"k8s.io/client-go/kubernetes"

	"github.com/ushadow-io/ushadow/pkg/deploy/kube"
)

func (s *Server) listClusters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.leader.Clusters.List())
}

func (s *Server) getCluster(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cluster, ok := s.leader.Clusters.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("cluster", id))
		return
	}
	writeJSON(w, http.StatusOK, cluster)
}

type registerClusterRequest struct {
	Name             string `json:"name"`
	Kubeconfig       string `json:"kubeconfig"` // base64-encoded
	ServerURL        string `json:"server_url,omitempty"`
	DefaultNamespace string `json:"default_namespace,omitempty"`
}

func (s *Server) registerCluster(w http.ResponseWriter, r *http.Request) {
	var body registerClusterRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	raw, err := base64.StdEncoding.DecodeString(body.Kubeconfig)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid base64 encoding in kubeconfig: %w", err))
		return
	}
	if body.DefaultNamespace == "" {
		body.DefaultNamespace = "default"
	}

	clientset, err := kube.NewClientset(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid kubeconfig: %w", err))
		return
	}
	if _, err := clientset.Discovery().ServerVersion(); err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("cluster unreachable: %w", err))
		return
	}

	cluster, err := s.leader.Clusters.Register(body.Name, raw, body.ServerURL, body.DefaultNamespace)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.leader.AttachKubeBackend(&kube.Backend{Clientset: clientset, Namespace: body.DefaultNamespace})
	writeJSON(w, http.StatusCreated, cluster)
}

func (s *Server) deleteCluster(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	removed, err := s.leader.Clusters.Delete(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, errNotFound("cluster", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clientsetFor(id string) (kubernetes.Interface, error) {
	raw, err := s.leader.Clusters.Kubeconfig(id)
	if err != nil {
		return nil, err
	}
	return kube.NewClientset(raw)
}

func (s *Server) scanClusterInfra(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cluster, ok := s.leader.Clusters.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("cluster", id))
		return
	}
	clientset, err := s.clientsetFor(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	results, err := kube.ScanClusterForInfra(r.Context(), clientset, cluster.DefaultNamespace)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	cache := make(map[string]string, len(results))
	for ns, endpoints := range results {
		joined := ""
		for i, ep := range endpoints {
			if i > 0 {
				joined += ","
			}
			joined += ep.Endpoint
		}
		cache[ns] = joined
	}
	if err := s.leader.Clusters.UpdateInfraScanCache(id, cache); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) clusterNodes(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	clientset, err := s.clientsetFor(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	nodes, err := kube.ListNodes(r.Context(), clientset)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) clusterPods(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cluster, ok := s.leader.Clusters.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("cluster", id))
		return
	}
	clientset, err := s.clientsetFor(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	pods, err := kube.ListPods(r.Context(), clientset, cluster.DefaultNamespace, r.URL.Query().Get("service"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, pods)
}

func (s *Server) clusterPodLogs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, name := vars["id"], vars["name"]
	cluster, ok := s.leader.Clusters.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("cluster", id))
		return
	}
	clientset, err := s.clientsetFor(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	tail := int64(200)
	if raw := r.URL.Query().Get("tail"); raw != "" {
		if n, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && n > 0 {
			tail = n
		}
	}
	logs, err := kube.PodLogs(r.Context(), clientset, cluster.DefaultNamespace, name, tail)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"logs": logs})
}

func (s *Server) clusterPodEvents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, name := vars["id"], vars["name"]
	cluster, ok := s.leader.Clusters.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("cluster", id))
		return
	}
	clientset, err := s.clientsetFor(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	events, err := kube.PodEvents(r.Context(), clientset, cluster.DefaultNamespace, name)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ensureClusterEnvmap (re)builds the shared config-files/compose-files
// ConfigMaps for this cluster's namespace (spec.md §4.4.4 volume
// handling, §8 ensure_envmap idempotence law).
func (s *Server) ensureClusterEnvmap(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cluster, ok := s.leader.Clusters.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("cluster", id))
		return
	}
	clientset, err := s.clientsetFor(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err := kube.EnsureEnvmap(r.Context(), clientset, cluster.DefaultNamespace, s.leader.FS, s.leader.ComposeDir, s.leader.ConfigDir); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// deployToCluster is the cluster-scoped alias of POST
// /api/instances/{id}/deploy (spec.md §6): it deploys an already-created
// instance whose deployment_target names this cluster, surfacing a 409
// if the instance actually targets somewhere else.
func (s *Server) deployToCluster(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		InstanceID string `json:"instance_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	inst, ok := s.leader.Instances.Get(body.InstanceID)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("instance", body.InstanceID))
		return
	}
	if inst.DeploymentTarget != id {
		writeError(w, http.StatusConflict, fmt.Errorf("instance %q targets %q, not cluster %q", inst.ID, inst.DeploymentTarget, id))
		return
	}
	d, err := s.leader.Deploy.Deploy(r.Context(), inst.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
