package deploy

import (
	"testing"

	"github.com/ushadow-io/ushadow/pkg/instances"
	"github.com/ushadow-io/ushadow/pkg/lifecycle"
)

// TestAlreadyDeployedShortCircuitsRunning reproduces the idempotence law in
// spec.md §8: a second Deploy call for an instance already running returns
// the existing Deployment unchanged instead of re-entering the backend.
func TestAlreadyDeployedShortCircuitsRunning(t *testing.T) {
	inst := instances.Instance{
		ID:            "chron-1",
		TemplateID:    "chronicle",
		DeploymentID:  "abc12345",
		ContainerID:   "cid-1",
		ContainerName: "ushadow-chronicle-abc12345",
		Status:        lifecycle.StatusRunning,
		Outputs:       instances.Outputs{AccessURL: "https://leader/chronicle"},
	}
	d, ok := alreadyDeployed(inst)
	if !ok {
		t.Fatalf("expected a running instance with a deployment id to short-circuit")
	}
	if d.ID != inst.DeploymentID || d.ContainerID != inst.ContainerID || d.AccessURL != inst.Outputs.AccessURL {
		t.Fatalf("short-circuited deployment did not reflect the instance's recorded state: %+v", d)
	}
}

func TestAlreadyDeployedIgnoresFailedOrEmpty(t *testing.T) {
	cases := []instances.Instance{
		{DeploymentID: "abc", Status: lifecycle.StatusFailed},
		{DeploymentID: "", Status: lifecycle.StatusRunning},
		{DeploymentID: "abc", Status: lifecycle.StatusStopped},
	}
	for _, inst := range cases {
		if _, ok := alreadyDeployed(inst); ok {
			t.Fatalf("expected no short-circuit for %+v", inst)
		}
	}
}

func TestIsLocalTarget(t *testing.T) {
	m := &Manager{Hostname: "leader-1"}
	for _, target := range []string{"", "localhost", "leader-1"} {
		if !m.isLocalTarget(target) {
			t.Errorf("expected %q to be local", target)
		}
	}
	for _, target := range []string{"worker-2", "my-cluster"} {
		if m.isLocalTarget(target) {
			t.Errorf("expected %q to not be local", target)
		}
	}
}
