package mesh

import (
	"context"
	"fmt"
	"sync"
)

// RouteTable maintains the set of path -> backend routes currently
// published on the local mesh agent, keyed by service id so Add is
// idempotent; Remove of a route not in the table still asks the agent to
// withdraw "/<serviceID>" (spec.md §4.6: "on add and remove, the proxy's running route set is
// updated in place").
type route struct {
	path    string
	backend string
}

type RouteTable struct {
	client       Client
	mu           sync.Mutex
	routes       map[string]route // serviceID -> route
	meshHostname string
}

// NewRouteTable wraps a mesh Client with in-memory bookkeeping of what is
// currently published, so Remove can be called even after a process
// restart lost the original Add call's context (best-effort: the mesh
// agent itself is the source of truth).
func NewRouteTable(client Client) *RouteTable {
	return &RouteTable{client: client, routes: map[string]route{}}
}

// Add publishes "/<serviceID>" -> "<containerName>:<port>".
func (t *RouteTable) Add(ctx context.Context, serviceID, containerName string, port int) error {
	path := "/" + serviceID
	backend := fmt.Sprintf("%s:%d", containerName, port)
	if err := t.client.AddRoute(ctx, path, backend); err != nil {
		return fmt.Errorf("add mesh route for %s: %w", serviceID, err)
	}
	t.mu.Lock()
	t.routes[serviceID] = route{path: path, backend: backend}
	t.mu.Unlock()
	return nil
}

// Remove withdraws the route for serviceID, if one was published.
func (t *RouteTable) Remove(ctx context.Context, serviceID string) error {
	t.mu.Lock()
	r, ok := t.routes[serviceID]
	path := r.path
	if !ok {
		path = "/" + serviceID
	}
	delete(t.routes, serviceID)
	t.mu.Unlock()

	if err := t.client.RemoveRoute(ctx, path); err != nil {
		return fmt.Errorf("remove mesh route for %s: %w", serviceID, err)
	}
	return nil
}

// ResolveServiceURL implements fleet.ServiceURLResolver: it maps a running
// service name to its internal container address and its externally
// routed mesh URL, satisfying the leader-info bootstrap payload
// (spec.md §4.5 "internal and external URLs derived from the mesh-VPN's
// path-routing map").
func (t *RouteTable) ResolveServiceURL(serviceName string) (internalURL, externalURL string, ok bool) {
	t.mu.Lock()
	r, found := t.routes[serviceName]
	hostname := t.meshHostname
	t.mu.Unlock()
	if !found {
		return "", "", false
	}
	internalURL = "http://" + r.backend
	if hostname != "" {
		externalURL = AccessURL(hostname, serviceName)
	}
	return internalURL, externalURL, true
}

// SetMeshHostname records the mesh hostname used to build external URLs
// in ResolveServiceURL; it's populated once the leader can reach the
// mesh agent (it may be empty at startup if the agent isn't up yet).
func (t *RouteTable) SetMeshHostname(hostname string) {
	t.mu.Lock()
	t.meshHostname = hostname
	t.mu.Unlock()
}

// AccessURL returns the externally visible URL for a service, given the
// mesh hostname (spec.md §4.6: "https://<mesh_hostname>/<service_id>").
func AccessURL(meshHostname, serviceID string) string {
	return fmt.Sprintf("https://%s/%s", meshHostname, serviceID)
}
