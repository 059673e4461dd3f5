// Package mesh talks to the local mesh-VPN agent (a Tailscale-compatible
// CLI) that carries leader<->worker traffic and terminates external
// ingress. The agent itself is an external collaborator: this package only
// shells out to its CLI and parses its JSON status output, the same way
// the original control plane treated "tailscale serve" as something it
// configured rather than reimplemented (services/deployment_manager.py's
// add_service_route/remove_service_route).
package mesh

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Client is the set of mesh operations the control plane depends on:
// peer enumeration, per-peer IP lookup, and path-based reverse-proxy
// routing (spec.md §4.6).
type Client interface {
	// Status returns the local agent's view of the mesh, including peers.
	Status(ctx context.Context) (Status, error)
	// AddRoute publishes a path -> backend route on the local agent's
	// reverse proxy.
	AddRoute(ctx context.Context, path, backend string) error
	// RemoveRoute withdraws a previously published route.
	RemoveRoute(ctx context.Context, path string) error
	// Hostname is the mesh hostname of the local node.
	Hostname(ctx context.Context) (string, error)
}

// Status mirrors the subset of `tailscale status --json` this package
// actually reads.
type Status struct {
	Self  Peer            `json:"Self"`
	Peers map[string]Peer `json:"Peer"`
}

// Peer is one mesh participant as reported by the agent.
type Peer struct {
	HostName     string   `json:"HostName"`
	DNSName      string   `json:"DNSName"`
	TailscaleIPs []string `json:"TailscaleIPs"`
	Online       bool     `json:"Online"`
}

// PrimaryIP returns the peer's first advertised mesh IP, if any.
func (p Peer) PrimaryIP() string {
	if len(p.TailscaleIPs) == 0 {
		return ""
	}
	return p.TailscaleIPs[0]
}

// CLIClient shells out to the mesh agent's CLI binary, the idiom the
// teacher repo itself uses for subprocess-backed collaborators
// (pkg/kubernetes wraps kubectl/helm the same way).
type CLIClient struct {
	Binary  string // defaults to "tailscale"
	Timeout time.Duration
}

// NewCLIClient returns a client using the given CLI binary, defaulting to
// "tailscale" and a 5 second timeout (spec.md §5: "mesh-peer probes use 5
// seconds").
func NewCLIClient(binary string) *CLIClient {
	if binary == "" {
		binary = "tailscale"
	}
	return &CLIClient{Binary: binary, Timeout: 5 * time.Second}
}

func (c *CLIClient) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%s %s: %w: %s", c.Binary, strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s %s: %w", c.Binary, strings.Join(args, " "), err)
	}
	return out, nil
}

func (c *CLIClient) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 5 * time.Second
	}
	return c.Timeout
}

// Status runs `tailscale status --json` and decodes it.
func (c *CLIClient) Status(ctx context.Context) (Status, error) {
	out, err := c.run(ctx, "status", "--json")
	if err != nil {
		return Status{}, err
	}
	var st Status
	if err := json.Unmarshal(out, &st); err != nil {
		return Status{}, fmt.Errorf("decode mesh status: %w", err)
	}
	return st, nil
}

// Hostname returns the local node's mesh hostname.
func (c *CLIClient) Hostname(ctx context.Context) (string, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return "", err
	}
	if st.Self.DNSName != "" {
		return strings.TrimSuffix(st.Self.DNSName, "."), nil
	}
	return st.Self.HostName, nil
}

// AddRoute publishes a path-based route using `tailscale serve`, mapping
// an externally visible path to a local "host:port" backend
// (spec.md §4.6: "a <path> -> <container_name>:<port> route").
func (c *CLIClient) AddRoute(ctx context.Context, path, backend string) error {
	target := backend
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}
	_, err := c.run(ctx, "serve", "--bg", "--set-path", path, target)
	return err
}

// RemoveRoute withdraws a previously published path route.
func (c *CLIClient) RemoveRoute(ctx context.Context, path string) error {
	_, err := c.run(ctx, "serve", "--set-path", path, "off")
	return err
}
