package fleet

import (
	"fmt"

	"github.com/ushadow-io/ushadow/pkg/cryptutil"
	"github.com/ushadow-io/ushadow/pkg/settings"
)

// issueSecret generates a fresh per-node shared secret and returns both
// the plaintext (returned to the worker exactly once, spec.md §4.5 step 4)
// and its encrypted-at-rest form.
func issueSecret(box *cryptutil.Box) (plaintext, encrypted string, err error) {
	plaintext, err = settings.RandomURLSafe()
	if err != nil {
		return "", "", fmt.Errorf("generate node secret: %w", err)
	}
	encrypted, err = box.Encrypt([]byte(plaintext))
	if err != nil {
		return "", "", fmt.Errorf("encrypt node secret: %w", err)
	}
	return plaintext, encrypted, nil
}

// SecretFor decrypts and returns the current shared secret for a node, for
// use in the X-Node-Secret header on calls to that worker
// (pkg/deploy/docker.NodeSecretLookup).
func (s *Store) SecretFor(hostname string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[hostname]
	if !ok {
		return "", fmt.Errorf("unode %q not found", hostname)
	}
	if node.EncryptedSecret == "" {
		return "", fmt.Errorf("unode %q has no secret issued", hostname)
	}
	plain, err := s.box.Decrypt(node.EncryptedSecret)
	if err != nil {
		return "", fmt.Errorf("decrypt secret for %q: %w", hostname, err)
	}
	return string(plain), nil
}

// MeshIPFor returns a node's mesh-VPN IP, for dispatching remote deploy
// calls (pkg/deploy/docker.NodeSecretLookup).
func (s *Store) MeshIPFor(hostname string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[hostname]
	if !ok {
		return "", fmt.Errorf("unode %q not found", hostname)
	}
	if node.MeshIP == "" {
		return "", fmt.Errorf("unode %q has no mesh IP recorded", hostname)
	}
	return node.MeshIP, nil
}
