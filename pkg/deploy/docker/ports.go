package docker

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"k8s.io/klog/v2"
)

// PortRange bounds where remapping may search for a free host port
// (spec.md §4.4.3, "a per-variable allowed range").
type PortRange struct {
	Min int
	Max int
}

var defaultRange = PortRange{Min: 20000, Max: 29999}

// PortSettings is the slice of the settings facade the Docker backend needs
// to persist and reclaim port remaps (spec.md §4.4.3, §8 scenario 5).
type PortSettings interface {
	GetInt(path string, def int) int
	Set(path string, value any) error
	Delete(path string) error
}

// portSettingsPath is the dotted settings path a remap for serviceID's
// containerPort is persisted under: "services.<name>.ports.<var>"
// (spec.md §8 scenario 5), using the stable container port as the var.
func portSettingsPath(serviceID, containerPort string) string {
	return fmt.Sprintf("services.%s.ports.%s", serviceID, containerPort)
}

// parsePortSpec accepts both "3000" (container only) and "3002:3000"
// (host:container) compose port forms (spec.md §8 boundary behavior).
func parsePortSpec(spec string) (hostPort, containerPort string) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) == 1 {
		return parts[0], parts[0]
	}
	return parts[0], parts[1]
}

// resolveHostPort returns the host port to bind for a service's
// containerPort, remapping to the next free port in rng if the requested
// host port is already taken. When cli is nil (a remote target reached only
// over HTTP), falls back to a local TCP dial probe.
//
// When settings is non-nil, a previously persisted remap for
// (serviceID, containerPort) is tried first so repeat deploys keep the same
// assignment; any remap this call performs is persisted back, and GC on
// removal is releasePortOverrides's job (spec.md §4.4.3, §8 scenario 5).
func resolveHostPort(ctx context.Context, cli *client.Client, settings PortSettings, serviceID, containerPort, hostPort string, rng PortRange) (string, error) {
	isFree := func(port string) (bool, error) {
		if cli == nil {
			return !probeListener(port), nil
		}
		taken, err := portsInUse(ctx, cli)
		if err != nil {
			return false, err
		}
		return !taken[port], nil
	}

	path := portSettingsPath(serviceID, containerPort)
	candidate := hostPort
	if settings != nil {
		if override := settings.GetInt(path, 0); override != 0 {
			candidate = strconv.Itoa(override)
		}
	}

	resolved, err := func() (string, error) {
		free, err := isFree(candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}
		for p := rng.Min; p <= rng.Max; p++ {
			next := strconv.Itoa(p)
			free, err := isFree(next)
			if err != nil {
				return "", err
			}
			if free {
				return next, nil
			}
		}
		return "", fmt.Errorf("no free host port available in range %d-%d", rng.Min, rng.Max)
	}()
	if err != nil {
		return "", err
	}

	if settings != nil && resolved != hostPort {
		resolvedInt, err := strconv.Atoi(resolved)
		if err == nil {
			if err := settings.Set(path, resolvedInt); err != nil {
				klog.Warningf("docker: failed to persist port override at %s: %v", path, err)
			}
		}
	}
	return resolved, nil
}

// releasePortOverrides reclaims the settings overrides resolveHostPort
// persisted for serviceID's ports, once the deployment holding them is
// removed (spec.md §9 Open Question: port-range GC on removal).
func releasePortOverrides(settings PortSettings, serviceID string, ports []string) {
	if settings == nil {
		return
	}
	for _, spec := range ports {
		_, containerPort := parsePortSpec(spec)
		path := portSettingsPath(serviceID, containerPort)
		if err := settings.Delete(path); err != nil {
			klog.Warningf("docker: failed to reclaim port override at %s: %v", path, err)
		}
	}
}

func portsInUse(ctx context.Context, cli *client.Client) (map[string]bool, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers for port scan: %w", err)
	}
	taken := map[string]bool{}
	for _, c := range containers {
		for _, p := range c.Ports {
			if p.PublicPort != 0 {
				taken[strconv.Itoa(int(p.PublicPort))] = true
			}
		}
	}
	return taken, nil
}

// probeListener is a lightweight fallback check used when the Docker API
// listing above is unavailable (e.g. a remote worker reached only over
// HTTP): dial the port locally to see if anything answers.
func probeListener(port string) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("localhost", port), 0)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
