package kube

import (
	appsv1 "k8s.io/api/apps/v1"

	"github.com/ushadow-io/ushadow/pkg/lifecycle"
)

// statusFromDeployment reads a Deployment's status.ready_replicas
// (spec.md §4.4.4 status).
func statusFromDeployment(dep *appsv1.Deployment) lifecycle.Status {
	if dep.Status.ReadyReplicas > 0 {
		return lifecycle.StatusRunning
	}
	if dep.Spec.Replicas != nil && *dep.Spec.Replicas == 0 {
		return lifecycle.StatusStopped
	}
	return lifecycle.StatusDeploying
}
