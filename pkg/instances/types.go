// Package instances implements the Instance/Wiring store (spec.md §4.2): CRUD
// on instances and their capability wiring, persisted as two interpolation-
// preserving YAML files.
package instances

import (
	"time"

	"github.com/ushadow-io/ushadow/pkg/lifecycle"
	"github.com/ushadow-io/ushadow/pkg/settings"
)

// CloudTarget marks an instance with no backend deployment action (spec.md §3).
const CloudTarget = "cloud"

// Outputs holds an instance's last-resolved runtime outputs.
type Outputs struct {
	AccessURL        string                           `yaml:"access_url,omitempty"`
	EnvVars          map[string]lifecycle.ResolvedVar `yaml:"env_vars,omitempty"`
	CapabilityValues map[string]string                `yaml:"capability_values,omitempty"`
}

// Integration holds the optional integration-specific fields an instance may
// carry (spec.md §3). Execution of the sync itself is out of scope
// (SPEC_FULL.md §4.2); only the bookkeeping fields are modeled here.
type Integration struct {
	Type             string     `yaml:"type,omitempty"`
	SyncEnabled      bool       `yaml:"sync_enabled,omitempty"`
	SyncIntervalSecs int        `yaml:"sync_interval_seconds,omitempty"`
	LastSyncAt       *time.Time `yaml:"last_sync_at,omitempty"`
	LastSyncStatus   string     `yaml:"last_sync_status,omitempty"`
	LastSyncCount    int        `yaml:"last_sync_count,omitempty"`
	LastSyncError    string     `yaml:"last_sync_error,omitempty"`
	NextSyncAt       *time.Time `yaml:"next_sync_at,omitempty"`
}

// Instance is a persistent, user-created configuration layered over a
// template (spec.md §3, also known as ServiceConfig).
type Instance struct {
	ID               string                   `yaml:"id"`
	TemplateID       string                   `yaml:"template_id"`
	DisplayName      string                   `yaml:"display_name"`
	Config           map[string]settings.Value `yaml:"config,omitempty"`
	DeploymentTarget string                   `yaml:"deployment_target,omitempty"` // "" = local docker
	Status           lifecycle.Status         `yaml:"status"`

	Outputs Outputs `yaml:"outputs,omitempty"`

	DeploymentID  string `yaml:"deployment_id,omitempty"`
	ContainerID   string `yaml:"container_id,omitempty"`
	ContainerName string `yaml:"container_name,omitempty"`

	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`

	LastError string `yaml:"last_error,omitempty"`

	Integration *Integration `yaml:"integration,omitempty"`
}

// ResolvedConfig resolves every config value against store, producing the
// map runtime consumers need. The unresolved Config map (with "${...}"
// tokens intact) remains the source of truth for Save.
func (i Instance) ResolvedConfig(store settings.Getter) map[string]string {
	out := make(map[string]string, len(i.Config))
	for k, v := range i.Config {
		out[k] = v.ResolveString(store)
	}
	return out
}

// Overrides returns only the direct-value (non-interpolation) entries of
// Config, the view UIs use to show what the user actually set (spec.md
// §4.2, get_overrides).
func (i Instance) Overrides() map[string]any {
	out := map[string]any{}
	for k, v := range i.Config {
		if !v.IsInterp() {
			out[k] = v.Literal
		}
	}
	return out
}

// InitialStatus derives an instance's starting status from its deployment
// target (spec.md §4.2, create()).
func InitialStatus(deploymentTarget string) lifecycle.Status {
	if deploymentTarget == CloudTarget {
		return lifecycle.StatusNotApplicable
	}
	return lifecycle.StatusPending
}

// Wiring binds one instance's provided capability to another's required
// capability (spec.md §3).
type Wiring struct {
	ID               string    `yaml:"id"`
	SourceInstanceID string    `yaml:"source_instance_id"`
	SourceCapability string    `yaml:"source_capability"`
	TargetInstanceID string    `yaml:"target_instance_id"`
	TargetCapability string    `yaml:"target_capability"`
	CreatedAt        time.Time `yaml:"created_at"`
}

// key identifies the (target, target_capability) pair wiring upserts on
// (spec.md §3 invariant (iii)).
func (w Wiring) key() wiringKey {
	return wiringKey{target: w.TargetInstanceID, capability: w.TargetCapability}
}

type wiringKey struct {
	target     string
	capability string
}
