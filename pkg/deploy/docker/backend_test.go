package docker

import (
	"context"
	"testing"

	"github.com/ushadow-io/ushadow/pkg/lifecycle"
)

// fakePortSettings is an in-memory stand-in for pkg/settings.Store, scoped
// to the three methods PortSettings needs.
type fakePortSettings struct {
	values map[string]int
}

func newFakePortSettings() *fakePortSettings {
	return &fakePortSettings{values: map[string]int{}}
}

func (f *fakePortSettings) GetInt(path string, def int) int {
	if v, ok := f.values[path]; ok {
		return v
	}
	return def
}

func (f *fakePortSettings) Set(path string, value any) error {
	v, ok := value.(int)
	if !ok {
		return nil
	}
	f.values[path] = v
	return nil
}

func (f *fakePortSettings) Delete(path string) error {
	delete(f.values, path)
	return nil
}

func TestBuildLabelsIncludesUshadowPrefix(t *testing.T) {
	labels := buildLabels("dep-1", "mem0-ui", "leader", "/healthz", "3000")
	want := map[string]string{
		LabelDeploymentID:   "dep-1",
		LabelServiceID:      "mem0-ui",
		LabelUNodeHostname:  "leader",
		LabelBackendType:    "docker",
		LabelHealthCheckPath: "/healthz",
		LabelHealthCheckPort: "3000",
	}
	for k, v := range want {
		if labels[k] != v {
			t.Fatalf("label %s: got %q want %q", k, labels[k], v)
		}
	}
	if _, ok := labels[LabelDeployedAt]; !ok {
		t.Fatalf("expected %s to be set", LabelDeployedAt)
	}
}

func TestBuildLabelsOmitsAbsentHealthCheck(t *testing.T) {
	labels := buildLabels("dep-1", "svc", "leader", "", "")
	if _, ok := labels[LabelHealthCheckPath]; ok {
		t.Fatalf("expected no health check path label")
	}
	if _, ok := labels[LabelHealthCheckPort]; ok {
		t.Fatalf("expected no health check port label")
	}
}

func TestParsePortSpecBothForms(t *testing.T) {
	host, container := parsePortSpec("3000")
	if host != "3000" || container != "3000" {
		t.Fatalf("container-only form: got %s/%s", host, container)
	}
	host, container = parsePortSpec("3002:3000")
	if host != "3002" || container != "3000" {
		t.Fatalf("host:container form: got %s/%s", host, container)
	}
}

// TestResolveHostPortReusesPersistedOverride reproduces spec.md §8
// scenario 5: once a remap is persisted, a later call for the same
// (serviceID, containerPort) tries the persisted host port first instead
// of the compose-declared one, and leaves it persisted at
// "services.<name>.ports.<var>".
func TestResolveHostPortReusesPersistedOverride(t *testing.T) {
	settings := newFakePortSettings()
	path := portSettingsPath("mem0-ui", "3000")
	settings.values[path] = 3010

	got, err := resolveHostPort(context.Background(), nil, settings, "mem0-ui", "3000", "3000", defaultRange)
	if err != nil {
		t.Fatalf("resolveHostPort: %v", err)
	}
	if got != "3010" {
		t.Fatalf("expected persisted override 3010 to be reused, got %s", got)
	}
	if settings.values[path] != 3010 {
		t.Fatalf("expected override to remain persisted at %s, got %d", path, settings.values[path])
	}
}

// TestReleasePortOverridesClearsSettings reproduces the port-range GC step
// (spec.md §9 Open Question): removing a deployment reclaims every
// persisted override for its ports.
func TestReleasePortOverridesClearsSettings(t *testing.T) {
	settings := newFakePortSettings()
	settings.values[portSettingsPath("mem0-ui", "3000")] = 3010
	settings.values[portSettingsPath("mem0-ui", "8080")] = 8090

	releasePortOverrides(settings, "mem0-ui", []string{"3010:3000", "8090:8080"})

	if len(settings.values) != 0 {
		t.Fatalf("expected all overrides to be reclaimed, got %v", settings.values)
	}
}

func TestReleasePortOverridesNilSettingsIsNoop(t *testing.T) {
	releasePortOverrides(nil, "mem0-ui", []string{"3010:3000"})
}

func TestMapContainerState(t *testing.T) {
	cases := map[string]lifecycle.Status{
		"running": lifecycle.StatusRunning,
		"exited":  lifecycle.StatusStopped,
		"created": lifecycle.StatusPending,
		"dead":    lifecycle.StatusFailed,
		"paused":  lifecycle.StatusStopped,
	}
	for state, want := range cases {
		if got := mapContainerState(state); got != want {
			t.Errorf("state %s: got %s want %s", state, got, want)
		}
	}
}
