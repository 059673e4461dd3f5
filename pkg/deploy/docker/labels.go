// Package docker implements the Docker deployment backend, local and
// remote-over-mesh (spec.md §4.4.3). Container labels are the authoritative
// state source: a restarted control plane reconstructs every deployment
// record from them instead of trusting its own persisted state.
package docker

import "time"

const (
	LabelDeploymentID   = "ushadow.deployment_id"
	LabelServiceID      = "ushadow.service_id"
	LabelUNodeHostname  = "ushadow.unode_hostname"
	LabelDeployedAt     = "ushadow.deployed_at"
	LabelBackendType    = "ushadow.backend_type"
	LabelHealthCheckPath = "ushadow.health_check_path"
	LabelHealthCheckPort = "ushadow.health_check_port"
)

// buildLabels renders the full ushadow.* label set for a new container.
func buildLabels(deploymentID, serviceID, hostname, healthPath, healthPort string) map[string]string {
	labels := map[string]string{
		LabelDeploymentID:  deploymentID,
		LabelServiceID:     serviceID,
		LabelUNodeHostname: hostname,
		LabelDeployedAt:    time.Now().UTC().Format(time.RFC3339),
		LabelBackendType:   "docker",
	}
	if healthPath != "" {
		labels[LabelHealthCheckPath] = healthPath
	}
	if healthPort != "" {
		labels[LabelHealthCheckPort] = healthPort
	}
	return labels
}
