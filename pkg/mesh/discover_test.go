package mesh

import (
	"context"
	"net"
	"testing"
)

type fakeClient struct {
	status Status
}

func (f *fakeClient) Status(ctx context.Context) (Status, error) { return f.status, nil }
func (f *fakeClient) AddRoute(ctx context.Context, path, backend string) error { return nil }
func (f *fakeClient) RemoveRoute(ctx context.Context, path string) error       { return nil }
func (f *fakeClient) Hostname(ctx context.Context) (string, error)             { return "leader", nil }

type fakeRegistry struct{ names map[string]bool }

func (r fakeRegistry) IsRegistered(hostname string) bool { return r.names[hostname] }

func TestDiscoverPeersCategorizesRegistered(t *testing.T) {
	client := &fakeClient{status: Status{Peers: map[string]Peer{
		"a": {HostName: "node-a", TailscaleIPs: []string{"100.0.0.1"}, Online: true},
	}}}
	registry := fakeRegistry{names: map[string]bool{"node-a": true}}

	peers, err := DiscoverPeers(context.Background(), client, registry, ManagerPortProbe{})
	if err != nil {
		t.Fatalf("DiscoverPeers: %v", err)
	}
	if len(peers) != 1 || peers[0].Category != PeerRegistered {
		t.Fatalf("expected registered peer, got %+v", peers)
	}
}

func TestDiscoverPeersCategorizesUnknownWhenUnreachable(t *testing.T) {
	client := &fakeClient{status: Status{Peers: map[string]Peer{
		"b": {HostName: "node-b", TailscaleIPs: []string{"192.0.2.1"}, Online: false},
	}}}
	registry := fakeRegistry{names: map[string]bool{}}

	peers, err := DiscoverPeers(context.Background(), client, registry, ManagerPortProbe{Port: 1, Timeout: 1})
	if err != nil {
		t.Fatalf("DiscoverPeers: %v", err)
	}
	if len(peers) != 1 || peers[0].Category != PeerUnknown {
		t.Fatalf("expected unknown peer for unreachable probe, got %+v", peers)
	}
}

func TestDiscoverPeersCategorizesAvailableWhenProbeSucceeds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	var port int
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}

	client := &fakeClient{status: Status{Peers: map[string]Peer{
		"c": {HostName: "node-c", TailscaleIPs: []string{"127.0.0.1"}, Online: true},
	}}}
	registry := fakeRegistry{names: map[string]bool{}}

	peers, err := DiscoverPeers(context.Background(), client, registry, ManagerPortProbe{Port: port})
	if err != nil {
		t.Fatalf("DiscoverPeers: %v", err)
	}
	if len(peers) != 1 || peers[0].Category != PeerAvailable {
		t.Fatalf("expected available peer, got %+v", peers)
	}
}
