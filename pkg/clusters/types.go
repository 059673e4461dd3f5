// Package clusters stores registered Kubernetes cluster records, with the
// kubeconfig payload kept only on disk, encrypted (spec.md §3 "Kubernetes
// cluster"), grounded on services/kubernetes_manager.py's add_cluster in
// original_source.
package clusters

import "time"

// Cluster is a registered Kubernetes cluster (spec.md §3).
type Cluster struct {
	ID                string            `json:"id" yaml:"id"`
	Name              string            `json:"name" yaml:"name"`
	Context           string            `json:"context,omitempty" yaml:"context,omitempty"`
	ServerURL         string            `json:"server_url,omitempty" yaml:"server_url,omitempty"`
	Status            string            `json:"status" yaml:"status"`
	ServerVersion     string            `json:"server_version,omitempty" yaml:"server_version,omitempty"`
	NodeCount         int               `json:"node_count" yaml:"node_count"`
	DefaultNamespace  string            `json:"default_namespace" yaml:"default_namespace"`
	Labels            map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	InfraScanCache    map[string]string `json:"infra_scan_cache,omitempty" yaml:"infra_scan_cache,omitempty"`
	CreatedAt         time.Time         `json:"created_at" yaml:"created_at"`
}
