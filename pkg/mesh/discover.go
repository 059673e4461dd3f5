package mesh

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"
)

// PeerCategory is one of the three buckets peer discovery sorts mesh
// participants into (spec.md §4.5 peer discovery).
type PeerCategory string

const (
	PeerRegistered PeerCategory = "registered"
	PeerAvailable  PeerCategory = "available"
	PeerUnknown    PeerCategory = "unknown"
)

// DiscoveredPeer is one mesh peer after categorization.
type DiscoveredPeer struct {
	Hostname string
	MeshIP   string
	Online   bool
	Category PeerCategory
}

// ManagerPortProbe checks whether a peer advertises a manager port and
// responds to a liveness probe, independent of registration state
// (spec.md §4.5: "peer advertises a manager port and responds to a
// liveness probe").
type ManagerPortProbe struct {
	Port    int // defaults to 8444, the worker agent port
	Timeout time.Duration
}

// probe dials the peer's manager port with a short timeout.
func (p ManagerPortProbe) probe(ip string) bool {
	port := p.Port
	if port == 0 {
		port = 8444
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// RegisteredHostnames reports which hostnames are already registered in
// the node store, used to classify peers as "registered" vs. the rest.
type RegisteredHostnames interface {
	IsRegistered(hostname string) bool
}

// DiscoverPeers enumerates the mesh agent's current peer list and
// categorizes each one as registered, available, or unknown
// (spec.md §4.5).
func DiscoverPeers(ctx context.Context, client Client, registered RegisteredHostnames, probe ManagerPortProbe) ([]DiscoveredPeer, error) {
	status, err := client.Status(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]DiscoveredPeer, 0, len(status.Peers))
	for _, peer := range status.Peers {
		ip := peer.PrimaryIP()
		dp := DiscoveredPeer{Hostname: peer.HostName, MeshIP: ip, Online: peer.Online}
		switch {
		case registered != nil && registered.IsRegistered(peer.HostName):
			dp.Category = PeerRegistered
		case ip != "" && probe.probe(ip):
			dp.Category = PeerAvailable
		default:
			dp.Category = PeerUnknown
		}
		out = append(out, dp)
	}
	return out, nil
}

// httpProbe is an HTTP liveness check (e.g. against a worker's /healthz)
// as an alternative to a bare TCP dial. Nothing calls it: DiscoverPeers
// uses ManagerPortProbe's TCP dial.
func httpProbe(ctx context.Context, url string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
