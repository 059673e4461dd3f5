package fleet

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ushadow-io/ushadow/pkg/cryptutil"
)

// OfflineThreshold is how long since last_seen before a listing reports a
// node as offline regardless of its persisted status
// (spec.md §4.5 heartbeat: "treated as offline by listings").
const OfflineThreshold = 2 * time.Minute

// Store is the fleet's node registry and join-token ledger, persisted as a
// single afero-backed YAML document (same idiom as pkg/instances.Store).
type Store struct {
	fs  afero.Fs
	dir string
	box *cryptutil.Box

	mu     sync.Mutex
	nodes  map[string]Node // keyed by hostname
	tokens map[string]JoinToken
}

// Open loads (or initializes) the fleet registry rooted at dir.
func Open(fs afero.Fs, dir string, box *cryptutil.Box) (*Store, error) {
	doc, err := loadNodes(fs, dir)
	if err != nil {
		return nil, err
	}
	s := &Store{
		fs:     fs,
		dir:    dir,
		box:    box,
		nodes:  map[string]Node{},
		tokens: map[string]JoinToken{},
	}
	for _, n := range doc.Nodes {
		s.nodes[n.Hostname] = n
	}
	for _, t := range doc.Tokens {
		s.tokens[t.Token] = t
	}
	return s, nil
}

func (s *Store) persistLocked() error {
	doc := nodesDocument{}
	for _, n := range s.nodes {
		doc.Nodes = append(doc.Nodes, n)
	}
	for _, t := range s.tokens {
		doc.Tokens = append(doc.Tokens, t)
	}
	return saveNodes(s.fs, s.dir, doc)
}

// List returns every node, with status demoted to offline when last_seen
// is stale (spec.md §4.5 heartbeat).
func (s *Store) List() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Node, 0, len(s.nodes))
	now := time.Now()
	for _, n := range s.nodes {
		out = append(out, withEffectiveStatus(n, now))
	}
	return out
}

// Get returns a single node by hostname.
func (s *Store) Get(hostname string) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[hostname]
	if !ok {
		return Node{}, false
	}
	return withEffectiveStatus(n, time.Now()), true
}

// IsRegistered implements mesh.RegisteredHostnames.
func (s *Store) IsRegistered(hostname string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[hostname]
	return ok
}

func withEffectiveStatus(n Node, now time.Time) Node {
	if n.Role == RoleLeader {
		return n
	}
	if !n.LastSeen.IsZero() && now.Sub(n.LastSeen) > OfflineThreshold {
		n.Status = StatusOffline
	}
	return n
}

// Register validates a join token and creates a new node record, issuing
// a fresh encrypted secret (spec.md §4.5 registration protocol steps 2-4).
// It returns the plaintext secret, to be sent to the worker exactly once.
func (s *Store) Register(req RegistrationRequest) (Node, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.redeemToken(req.Token)
	if err != nil {
		return Node{}, "", err
	}

	plaintext, encrypted, err := issueSecret(s.box)
	if err != nil {
		return Node{}, "", err
	}

	now := time.Now()
	node := Node{
		Hostname:        req.Hostname,
		ID:              uuid.NewString(),
		Envname:         req.Envname,
		Role:            token.Role,
		Platform:        req.Platform,
		Type:            NodeTypeDocker,
		MeshIP:          req.MeshIP,
		Capabilities:    req.Capabilities,
		Status:          StatusOnline,
		LastSeen:        now,
		ManagerVersion:  req.ManagerVersion,
		EncryptedSecret: encrypted,
		RegisteredAt:    now,
	}

	prevToken, hadToken := s.tokens[req.Token]
	prevNode, hadNode := s.nodes[node.Hostname]
	s.tokens[req.Token] = token
	s.nodes[node.Hostname] = node
	if err := s.persistLocked(); err != nil {
		if hadToken {
			s.tokens[req.Token] = prevToken
		} else {
			delete(s.tokens, req.Token)
		}
		if hadNode {
			s.nodes[node.Hostname] = prevNode
		} else {
			delete(s.nodes, node.Hostname)
		}
		return Node{}, "", err
	}
	return node, plaintext, nil
}

// Heartbeat updates a node's liveness, current services, and capabilities
// (spec.md §4.5 heartbeat).
func (s *Store) Heartbeat(hb Heartbeat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[hb.Hostname]
	if !ok {
		return fmt.Errorf("unode %q not found", hb.Hostname)
	}
	prev := node
	node.LastSeen = time.Now()
	if hb.Status != "" {
		node.Status = hb.Status
	}
	if hb.ManagerVersion != "" {
		node.ManagerVersion = hb.ManagerVersion
	}
	if hb.ServicesRunning != nil {
		node.Services = hb.ServicesRunning
	}
	if hb.Capabilities != nil {
		node.Capabilities = *hb.Capabilities
	}
	s.nodes[hb.Hostname] = node
	if err := s.persistLocked(); err != nil {
		s.nodes[hb.Hostname] = prev
		return err
	}
	return nil
}

// Release removes a node's local record without stopping its agent,
// leaving it available for another leader to claim (spec.md §3 node
// lifecycle, §4.5 "Release").
func (s *Store) Release(hostname string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[hostname]
	if !ok {
		return false, nil
	}
	delete(s.nodes, hostname)
	if err := s.persistLocked(); err != nil {
		s.nodes[hostname] = node
		return false, err
	}
	return true, nil
}

// Remove deletes a node's record entirely (distinct from Release only in
// caller intent; both drop the local record).
func (s *Store) Remove(hostname string) (bool, error) {
	return s.Release(hostname)
}

// Claim registers an "available" peer without a token, by minting an
// internal single-use token and recording it directly
// (spec.md §4.5 "Claim").
func (s *Store) Claim(hostname, meshIP string) (Node, error) {
	s.mu.Lock()
	if _, exists := s.nodes[hostname]; exists {
		s.mu.Unlock()
		return Node{}, fmt.Errorf("unode %q already registered", hostname)
	}
	s.mu.Unlock()

	token, err := s.CreateToken(RoleWorker, 1, 1, "claim")
	if err != nil {
		return Node{}, err
	}
	node, _, err := s.Register(RegistrationRequest{
		Token:    token.Token,
		Hostname: hostname,
		MeshIP:   meshIP,
		Platform: PlatformUnknown,
	})
	return node, err
}

// SetLabels patches a node's label map (PATCH /api/unodes/{hostname}/labels).
func (s *Store) SetLabels(hostname string, labels map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[hostname]
	if !ok {
		return fmt.Errorf("unode %q not found", hostname)
	}
	prev := node
	if node.Labels == nil {
		node.Labels = map[string]string{}
	}
	for k, v := range labels {
		node.Labels[k] = v
	}
	s.nodes[hostname] = node
	if err := s.persistLocked(); err != nil {
		s.nodes[hostname] = prev
		return err
	}
	return nil
}

// LeaderNode returns the current leader, if one is registered (spec.md §3:
// "A leader is at-most-one per cluster").
func (s *Store) LeaderNode() (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.nodes {
		if n.Role == RoleLeader {
			return n, true
		}
	}
	return Node{}, false
}
