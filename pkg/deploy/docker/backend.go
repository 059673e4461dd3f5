package docker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"k8s.io/klog/v2"

	"github.com/ushadow-io/ushadow/pkg/deploy"
	"github.com/ushadow-io/ushadow/pkg/lifecycle"
)

// NodeSecretLookup resolves the per-node shared secret used to authenticate
// leader-to-worker calls over the mesh VPN (spec.md §4.4.3 remote deploy).
type NodeSecretLookup interface {
	SecretFor(hostname string) (string, error)
	MeshIPFor(hostname string) (string, error)
}

// Backend implements deploy.Backend for the local Docker daemon and for
// remote workers reached over the mesh VPN (spec.md §4.4.3).
type Backend struct {
	// LocalHostname is this node's own hostname (or "localhost"); a target
	// equal to it is handled by Client directly instead of over HTTP.
	LocalHostname string
	Client        *client.Client
	Nodes         NodeSecretLookup
	PortRange     PortRange
	HTTPClient    *http.Client
	// Settings persists and reclaims port remaps across deploys (spec.md
	// §4.4.3). May be nil, in which case remaps are computed fresh on every
	// deploy and never reused.
	Settings PortSettings
}

func New(localHostname string, cli *client.Client, nodes NodeSecretLookup, settings PortSettings) *Backend {
	rng := defaultRange
	return &Backend{
		LocalHostname: localHostname,
		Client:        cli,
		Nodes:         nodes,
		PortRange:     rng,
		HTTPClient:    &http.Client{Timeout: 2 * time.Minute},
		Settings:      settings,
	}
}

func (b *Backend) isLocal(target string) bool {
	return target == "" || target == "localhost" || target == b.LocalHostname
}

func (b *Backend) Deploy(ctx context.Context, target string, resolved deploy.ResolvedServiceDefinition, deploymentID, namespace string) (deploy.Deployment, error) {
	if b.isLocal(target) {
		return b.deployLocal(ctx, target, resolved, deploymentID)
	}
	return b.deployRemote(ctx, target, resolved, deploymentID)
}

func (b *Backend) deployLocal(ctx context.Context, target string, resolved deploy.ResolvedServiceDefinition, deploymentID string) (deploy.Deployment, error) {
	portBindings := nat.PortMap{}
	exposed := nat.PortSet{}
	var boundHostPort string
	for _, spec := range resolved.Ports {
		hostPort, containerPort := parsePortSpec(spec)
		resolvedHostPort, err := resolveHostPort(ctx, b.Client, b.Settings, resolved.ServiceID, containerPort, hostPort, b.PortRange)
		if err != nil {
			return deploy.Deployment{}, fmt.Errorf("resolve host port for %s: %w", spec, err)
		}
		if resolvedHostPort != hostPort {
			klog.Infof("docker: remapped %s host port %s -> %s to avoid conflict", resolved.ServiceID, hostPort, resolvedHostPort)
		}
		if boundHostPort == "" {
			boundHostPort = resolvedHostPort
		}
		natPort, err := nat.NewPort("tcp", containerPort)
		if err != nil {
			return deploy.Deployment{}, fmt.Errorf("invalid container port %s: %w", containerPort, err)
		}
		exposed[natPort] = struct{}{}
		portBindings[natPort] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: resolvedHostPort}}
	}

	env := make([]string, 0, len(resolved.Env))
	for k, v := range resolved.Env {
		env = append(env, k+"="+v)
	}

	labels := buildLabels(deploymentID, resolved.ServiceID, b.LocalHostname, resolved.HealthCheckPath, resolved.HealthCheckPort)

	containerName := "ushadow-" + sanitizeName(resolved.ServiceID) + "-" + deploymentID

	containerConfig := &dockercontainer.Config{
		Image:        resolved.Image,
		Env:          env,
		Labels:       labels,
		ExposedPorts: exposed,
	}
	if resolved.Command != "" {
		containerConfig.Cmd = strings.Fields(resolved.Command)
	}

	restartPolicy := dockercontainer.RestartPolicy{Name: dockercontainer.RestartPolicyUnlessStopped}
	if resolved.Restart != "" {
		restartPolicy = dockercontainer.RestartPolicy{Name: dockercontainer.RestartPolicyMode(resolved.Restart)}
	}
	hostConfig := &dockercontainer.HostConfig{
		PortBindings:  portBindings,
		Binds:         resolved.Volumes,
		RestartPolicy: restartPolicy,
	}
	if resolved.Network != "" {
		hostConfig.NetworkMode = dockercontainer.NetworkMode(resolved.Network)
	}

	created, err := b.Client.ContainerCreate(ctx, containerConfig, hostConfig, &network.NetworkingConfig{}, nil, containerName)
	if err != nil {
		return deploy.Deployment{}, fmt.Errorf("create container: %w", err)
	}
	if err := b.Client.ContainerStart(ctx, created.ID, dockercontainer.StartOptions{}); err != nil {
		return deploy.Deployment{}, fmt.Errorf("start container: %w", err)
	}

	return deploy.Deployment{
		ID:            deploymentID,
		ServiceID:     resolved.ServiceID,
		Target:        target,
		Status:        lifecycle.StatusRunning,
		ContainerID:   created.ID,
		ContainerName: containerName,
		HostPort:      boundHostPort,
		AccessURL:     fmt.Sprintf("https://%s/%s", orLocalhost(b.LocalHostname), resolved.ServiceID),
		Config:        resolved,
		BackendType:   "docker",
		CreatedAt:     time.Now(),
	}, nil
}

func orLocalhost(hostname string) string {
	if hostname == "" {
		return "localhost"
	}
	return hostname
}

func sanitizeName(s string) string {
	s = strings.ReplaceAll(s, ":", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

// deployRemote serializes the same payload and POSTs it to the target
// worker's agent (spec.md §4.4.3 remote deploy).
func (b *Backend) deployRemote(ctx context.Context, target string, resolved deploy.ResolvedServiceDefinition, deploymentID string) (deploy.Deployment, error) {
	meshIP, err := b.Nodes.MeshIPFor(target)
	if err != nil {
		return deploy.Deployment{}, fmt.Errorf("resolve mesh ip for %s: %w", target, err)
	}
	secret, err := b.Nodes.SecretFor(target)
	if err != nil {
		return deploy.Deployment{}, fmt.Errorf("resolve node secret for %s: %w", target, err)
	}

	payload, err := json.Marshal(struct {
		DeploymentID string                         `json:"deployment_id"`
		Resolved     deploy.ResolvedServiceDefinition `json:"resolved"`
	}{DeploymentID: deploymentID, Resolved: resolved})
	if err != nil {
		return deploy.Deployment{}, fmt.Errorf("encode deploy payload: %w", err)
	}

	url := fmt.Sprintf("http://%s:8444/api/deploy", meshIP)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return deploy.Deployment{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Node-Secret", secret)

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return deploy.Deployment{}, fmt.Errorf("deploy request to %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return deploy.Deployment{}, fmt.Errorf("worker %s rejected deploy: %s: %s", target, resp.Status, string(body))
	}

	var d deploy.Deployment
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return deploy.Deployment{}, fmt.Errorf("decode worker deploy response: %w", err)
	}
	d.Target = target
	d.BackendType = "docker"
	return d, nil
}

func (b *Backend) Stop(ctx context.Context, target string, d deploy.Deployment) (bool, error) {
	if !b.isLocal(target) {
		return b.remoteAction(ctx, target, "stop", d.ContainerName)
	}
	if d.ContainerID == "" {
		return false, nil
	}
	timeout := 10
	if err := b.Client.ContainerStop(ctx, d.ContainerID, dockercontainer.StopOptions{Timeout: &timeout}); err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("stop container: %w", err)
	}
	return true, nil
}

func (b *Backend) Remove(ctx context.Context, target string, d deploy.Deployment) (bool, error) {
	if !b.isLocal(target) {
		return b.remoteAction(ctx, target, "remove", d.ContainerName)
	}
	if d.ContainerID == "" {
		return false, nil
	}
	// Container labels, not the caller-supplied Deployment, are the source
	// of truth for which port-settings overrides to reclaim: a caller (the
	// deploy manager's Undeploy, which only tracks container id/name on the
	// instance) may not have the resolved port list to hand.
	serviceID, containerPorts := b.inspectForPortGC(ctx, d.ContainerID)

	if err := b.Client.ContainerRemove(ctx, d.ContainerID, dockercontainer.RemoveOptions{Force: true}); err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("remove container: %w", err)
	}
	if serviceID != "" {
		releasePortOverrides(b.Settings, serviceID, containerPorts)
	}
	return true, nil
}

// inspectForPortGC reads the container's ushadow.service_id label and
// bound container ports before removal, so the port-range GC step
// (spec.md §9 Open Question) has something to reclaim even when the
// caller didn't carry the resolved service definition forward.
func (b *Backend) inspectForPortGC(ctx context.Context, containerID string) (serviceID string, containerPorts []string) {
	info, err := b.Client.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", nil
	}
	serviceID = info.Config.Labels[LabelServiceID]
	for p := range info.NetworkSettings.Ports {
		containerPorts = append(containerPorts, p.Port())
	}
	return serviceID, containerPorts
}

func (b *Backend) Restart(ctx context.Context, target string, d deploy.Deployment) (bool, error) {
	if !b.isLocal(target) {
		return b.remoteAction(ctx, target, "restart", d.ContainerName)
	}
	if d.ContainerID == "" {
		return false, nil
	}
	timeout := 10
	if err := b.Client.ContainerRestart(ctx, d.ContainerID, dockercontainer.StopOptions{Timeout: &timeout}); err != nil {
		return false, fmt.Errorf("restart container: %w", err)
	}
	return true, nil
}

func (b *Backend) remoteAction(ctx context.Context, target, verb, containerName string) (bool, error) {
	meshIP, err := b.Nodes.MeshIPFor(target)
	if err != nil {
		return false, err
	}
	secret, err := b.Nodes.SecretFor(target)
	if err != nil {
		return false, err
	}
	method := http.MethodPost
	if verb == "remove" {
		method = http.MethodDelete
	}
	url := fmt.Sprintf("http://%s:8444/api/%s/%s", meshIP, verb, containerName)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("X-Node-Secret", secret)
	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s request to %s: %w", verb, target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return resp.StatusCode < 300, nil
}

func (b *Backend) GetStatus(ctx context.Context, target string, d deploy.Deployment) (lifecycle.Status, error) {
	if !b.isLocal(target) {
		return b.remoteStatus(ctx, target, d.ContainerName)
	}

	info, err := b.Client.ContainerInspect(ctx, d.ContainerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return lifecycle.StatusStopped, nil
		}
		return "", fmt.Errorf("inspect container: %w", err)
	}
	state := mapContainerState(info.State.Status)
	healthPath := info.Config.Labels[LabelHealthCheckPath]
	hostPort := d.HostPort
	refined, _ := statusWithHealth(ctx, state, hostPort, healthPath)
	return refined, nil
}

func (b *Backend) remoteStatus(ctx context.Context, target, containerName string) (lifecycle.Status, error) {
	meshIP, err := b.Nodes.MeshIPFor(target)
	if err != nil {
		return "", err
	}
	secret, err := b.Nodes.SecretFor(target)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("http://%s:8444/api/status/%s", meshIP, containerName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Node-Secret", secret)
	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("status request to %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return lifecycle.StatusStopped, nil
	}
	var body struct {
		Status lifecycle.Status `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode status response: %w", err)
	}
	return body.Status, nil
}

func (b *Backend) GetLogs(ctx context.Context, target string, d deploy.Deployment, tail int) ([]string, error) {
	if !b.isLocal(target) {
		return b.remoteLogs(ctx, target, d.ContainerName, tail)
	}
	reader, err := b.Client.ContainerLogs(ctx, d.ContainerID, dockercontainer.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       fmt.Sprintf("%d", tail),
	})
	if err != nil {
		return nil, fmt.Errorf("container logs: %w", err)
	}
	defer reader.Close()

	var lines []string
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		lines = append(lines, stripDockerLogHeader(scanner.Bytes()))
	}
	return lines, nil
}

func (b *Backend) remoteLogs(ctx context.Context, target, containerName string, tail int) ([]string, error) {
	meshIP, err := b.Nodes.MeshIPFor(target)
	if err != nil {
		return nil, err
	}
	secret, err := b.Nodes.SecretFor(target)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("http://%s:8444/api/logs/%s?tail=%d", meshIP, containerName, tail)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Node-Secret", secret)
	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("logs request to %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	var body struct {
		Lines []string `json:"lines"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode logs response: %w", err)
	}
	return body.Lines, nil
}

// stripDockerLogHeader drops the 8-byte multiplexed stream header the
// Docker API prefixes onto every log line when TTY is disabled.
func stripDockerLogHeader(line []byte) string {
	if len(line) > 8 {
		return string(line[8:])
	}
	return string(line)
}

func (b *Backend) ListDeployments(ctx context.Context, target, serviceID string) ([]deploy.Deployment, error) {
	if !b.isLocal(target) {
		// The worker agent's HTTP surface (spec.md §6) exposes per-container
		// status and logs but no bulk listing endpoint; remote fleet-wide
		// listing is out of scope for this backend and goes through the
		// node manager's own service-name bookkeeping instead.
		return nil, fmt.Errorf("bulk deployment listing is not supported for remote target %s", target)
	}

	filterArgs := labelFilter(serviceID)
	containers, err := b.Client.ContainerList(ctx, dockercontainer.ListOptions{All: true, Filters: filterArgs})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]deploy.Deployment, 0, len(containers))
	for _, c := range containers {
		state := mapContainerState(c.State)
		hostPort := ""
		for _, p := range c.Ports {
			if p.PublicPort != 0 {
				hostPort = fmt.Sprintf("%d", p.PublicPort)
				break
			}
		}
		healthPath := c.Labels[LabelHealthCheckPath]
		refined, msg := statusWithHealth(ctx, state, hostPort, healthPath)
		name := strings.TrimPrefix(firstOrEmpty(c.Names), "/")
		out = append(out, deploy.Deployment{
			ID:            c.Labels[LabelDeploymentID],
			ServiceID:     c.Labels[LabelServiceID],
			Target:        target,
			Status:        refined,
			ContainerID:   c.ID,
			ContainerName: name,
			HostPort:      hostPort,
			BackendType:   "docker",
			HealthMessage: msg,
		})
	}
	return out, nil
}

func firstOrEmpty(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func labelFilter(serviceID string) filters.Args {
	args := filters.NewArgs(filters.Arg("label", LabelDeploymentID))
	if serviceID != "" {
		args.Add("label", LabelServiceID+"="+serviceID)
	}
	return args
}
