package deploy

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"

	"github.com/ushadow-io/ushadow/pkg/capability"
	"github.com/ushadow-io/ushadow/pkg/instances"
	"github.com/ushadow-io/ushadow/pkg/lifecycle"
	"github.com/ushadow-io/ushadow/pkg/templates"
)

// clusterLookup reports whether target names a registered Kubernetes
// cluster id, so the manager can dispatch to the Kubernetes backend instead
// of Docker.
type clusterLookup interface {
	IsClusterID(target string) bool
}

// RouteTable publishes and withdraws the local mesh-VPN reverse proxy's
// path-based routes for locally-deployed services (spec.md §4.4.3 "Local
// routing", §4.6).
type RouteTable interface {
	Add(ctx context.Context, serviceID, containerName string, port int) error
	Remove(ctx context.Context, serviceID string) error
}

// Manager orchestrates resolution (capability.Resolver + compose) and
// backend dispatch, recording deployment status back onto the instance
// (spec.md §4.4).
type Manager struct {
	Templates capability.TemplateLookup
	Instances *instances.Store
	Resolver  *capability.Resolver
	Settings  capability.SettingsLookup
	Compose   ComposeRunner

	Docker   Backend
	Kube     Backend
	Clusters clusterLookup

	// Routes publishes the mesh-VPN route for a locally-deployed service and
	// withdraws it on undeploy; nil disables routing (spec.md §4.4.3, §4.6).
	Routes RouteTable
	// Hostname is this node's own hostname, used to tell a "local" target
	// apart from a remote worker or Kubernetes cluster id.
	Hostname string

	sf singleflight.Group
}

// isLocalTarget reports whether target names the local Docker daemon
// rather than a remote worker or Kubernetes cluster (spec.md §4.4.3: "a
// target is local when its hostname equals the project's environment name
// or localhost").
func (m *Manager) isLocalTarget(target string) bool {
	return target == "" || target == "localhost" || (m.Hostname != "" && target == m.Hostname)
}

// Deploy resolves instance's service and dispatches to the selected
// backend, recording the resulting status and outputs on the instance.
// Concurrent deploys for the same instance are serialized: a second caller
// while one is in flight shares the first's result instead of racing the
// backend (spec.md §5 ordering guarantee (i)).
func (m *Manager) Deploy(ctx context.Context, instanceID string) (Deployment, error) {
	inst, ok := m.Instances.Get(instanceID)
	if !ok {
		return Deployment{}, fmt.Errorf("instance %q not found", instanceID)
	}

	if inst.DeploymentTarget == instances.CloudTarget {
		if _, err := m.Instances.UpdateStatus(instanceID, lifecycle.StatusNotApplicable, ""); err != nil {
			return Deployment{}, err
		}
		return Deployment{ID: inst.DeploymentID, ServiceID: inst.TemplateID, InstanceID: instanceID, Status: lifecycle.StatusNotApplicable}, nil
	}

	key := fmt.Sprintf("%s:%s:%s", inst.TemplateID, inst.DeploymentTarget, inst.ID)
	v, err, _ := m.sf.Do(key, func() (any, error) {
		return m.deployLocked(ctx, inst)
	})
	if err != nil {
		return Deployment{}, err
	}
	return v.(Deployment), nil
}

// alreadyDeployed short-circuits the idempotence law in spec.md §8 ("deploy
// is idempotent for a given (service_id, target, instance_id) tuple: the
// second call returns the existing Deployment unchanged unless the first
// failed"). Without it, a second Deploy call after the first has already
// returned re-enters the backend with the same deploymentID and the Docker
// backend's deterministic container name collides on creation.
func alreadyDeployed(inst instances.Instance) (Deployment, bool) {
	if inst.DeploymentID == "" {
		return Deployment{}, false
	}
	switch inst.Status {
	case lifecycle.StatusRunning, lifecycle.StatusDeploying:
	default:
		return Deployment{}, false
	}
	return Deployment{
		ID:            inst.DeploymentID,
		ServiceID:     inst.TemplateID,
		Target:        inst.DeploymentTarget,
		InstanceID:    inst.ID,
		Status:        inst.Status,
		ContainerID:   inst.ContainerID,
		ContainerName: inst.ContainerName,
		AccessURL:     inst.Outputs.AccessURL,
	}, true
}

func (m *Manager) deployLocked(ctx context.Context, inst instances.Instance) (Deployment, error) {
	if d, ok := alreadyDeployed(inst); ok {
		return d, nil
	}

	tpl, ok := m.Templates.Get(inst.TemplateID)
	if !ok {
		return Deployment{}, fmt.Errorf("template %q not found", inst.TemplateID)
	}
	if tpl.Source != templates.SourceCompose {
		return Deployment{}, fmt.Errorf("template %q is not deployable (source=%s)", tpl.ID, tpl.Source)
	}

	if _, err := m.Instances.UpdateStatus(inst.ID, lifecycle.StatusDeploying, ""); err != nil {
		return Deployment{}, err
	}

	env, resolveErr := m.Resolver.ResolveForInstance(inst.ID)
	if resolveErr != nil {
		if _, ok := resolveErr.(*capability.ResolutionError); !ok {
			m.fail(inst.ID, resolveErr)
			return Deployment{}, resolveErr
		}
		// Capability resolution errors for optional/already-partial env are
		// tolerated here; the compose render step will surface any
		// genuinely missing required variable as an empty substitution.
		klog.Warningf("deploy: %s: %v", inst.ID, resolveErr)
	}
	flatEnv := make(map[string]string, len(env))
	for k, v := range env {
		flatEnv[k] = v.Value
	}
	for k, v := range inst.ResolvedConfig(m.Settings) {
		flatEnv[k] = v
	}

	resolved, err := Resolve(ctx, m.Compose, tpl.Location.ComposeFile, tpl.Location.ComposeService, flatEnv, tpl.Requires)
	if err != nil {
		m.fail(inst.ID, err)
		return Deployment{}, err
	}
	resolved.ServiceID = tpl.ID

	backend := m.selectBackend(inst.DeploymentTarget)
	deploymentID := inst.DeploymentID
	if deploymentID == "" {
		deploymentID = newDeploymentID()
	}

	namespace := ""
	d, err := backend.Deploy(ctx, inst.DeploymentTarget, resolved, deploymentID, namespace)
	if err != nil {
		m.fail(inst.ID, err)
		return Deployment{}, err
	}
	d.InstanceID = inst.ID
	d.DeployedAt = time.Now()

	if m.Routes != nil && d.BackendType == "docker" && m.isLocalTarget(inst.DeploymentTarget) && d.HostPort != "" {
		if port, err := strconv.Atoi(d.HostPort); err == nil {
			if err := m.Routes.Add(ctx, tpl.ID, d.ContainerName, port); err != nil {
				klog.Warningf("deploy: %s: failed to publish mesh route: %v", inst.ID, err)
			}
		}
	}

	if _, err := m.Instances.Update(inst.ID, func(i *instances.Instance) {
		i.Status = d.Status
		i.DeploymentID = d.ID
		i.ContainerID = d.ContainerID
		i.ContainerName = d.ContainerName
		i.Outputs.AccessURL = d.AccessURL
		i.LastError = ""
	}); err != nil {
		return Deployment{}, err
	}
	return d, nil
}

func (m *Manager) fail(instanceID string, cause error) {
	if _, err := m.Instances.UpdateStatus(instanceID, lifecycle.StatusFailed, cause.Error()); err != nil {
		klog.Errorf("deploy: failed to record failure for %s: %v", instanceID, err)
	}
}

func (m *Manager) selectBackend(target string) Backend {
	if m.Clusters != nil && m.Clusters.IsClusterID(target) {
		return m.Kube
	}
	return m.Docker
}

// Undeploy removes the instance's deployment via its backend and sets
// status to stopped; an instance with no deployment (or a cloud target)
// gets its initial status back instead. Removing a non-existent deployment
// is a no-op (spec.md §8 idempotence law).
func (m *Manager) Undeploy(ctx context.Context, instanceID string) error {
	inst, ok := m.Instances.Get(instanceID)
	if !ok {
		return fmt.Errorf("instance %q not found", instanceID)
	}
	if inst.DeploymentTarget == instances.CloudTarget || inst.DeploymentID == "" {
		_, err := m.Instances.UpdateStatus(instanceID, instances.InitialStatus(inst.DeploymentTarget), "")
		return err
	}

	backend := m.selectBackend(inst.DeploymentTarget)
	d := Deployment{ID: inst.DeploymentID, ServiceID: inst.TemplateID, ContainerID: inst.ContainerID, ContainerName: inst.ContainerName}
	if _, err := backend.Remove(ctx, inst.DeploymentTarget, d); err != nil {
		return err
	}

	if m.Routes != nil && m.isLocalTarget(inst.DeploymentTarget) {
		if err := m.Routes.Remove(ctx, inst.TemplateID); err != nil {
			klog.Warningf("undeploy: %s: failed to withdraw mesh route: %v", instanceID, err)
		}
	}

	_, err := m.Instances.Update(instanceID, func(i *instances.Instance) {
		i.Status = lifecycle.StatusStopped
		i.DeploymentID = ""
		i.ContainerID = ""
		i.ContainerName = ""
	})
	return err
}
