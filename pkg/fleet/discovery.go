package fleet

import (
	"context"

	"github.com/ushadow-io/ushadow/pkg/mesh"
)

// DiscoverPeers enumerates mesh peers and categorizes each against this
// store's registered hostnames (spec.md §4.5 "Peer discovery").
func (s *Store) DiscoverPeers(ctx context.Context, client mesh.Client) ([]mesh.DiscoveredPeer, error) {
	return mesh.DiscoverPeers(ctx, client, s, mesh.ManagerPortProbe{})
}

// CategorizedPeers groups discovered peers by category for the
// GET /api/unodes/discover/peers response shape.
type CategorizedPeers struct {
	Registered []mesh.DiscoveredPeer `json:"registered"`
	Available  []mesh.DiscoveredPeer `json:"available"`
	Unknown    []mesh.DiscoveredPeer `json:"unknown"`
}

// Categorize buckets a flat peer list the way the HTTP handler reports it.
func Categorize(peers []mesh.DiscoveredPeer) CategorizedPeers {
	var c CategorizedPeers
	for _, p := range peers {
		switch p.Category {
		case mesh.PeerRegistered:
			c.Registered = append(c.Registered, p)
		case mesh.PeerAvailable:
			c.Available = append(c.Available, p)
		default:
			c.Unknown = append(c.Unknown, p)
		}
	}
	return c
}
