package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// upgradeRequest is the payload sent to a worker's manager-upgrade
// endpoint (spec.md §4.5 "Upgrade": "the leader POSTs an upgrade command
// with a target image reference to a worker").
type upgradeRequest struct {
	Image string `json:"image"`
}

// Upgrade instructs a worker to pull a new manager image, stop its own
// container, and restart with it. The leader itself is never a valid
// target for this call.
func (s *Store) Upgrade(ctx context.Context, hostname, image string) error {
	node, ok := s.Get(hostname)
	if !ok {
		return fmt.Errorf("unode %q not found", hostname)
	}
	if node.Role == RoleLeader {
		return fmt.Errorf("the leader is not upgradeable through this path")
	}
	secret, err := s.SecretFor(hostname)
	if err != nil {
		return err
	}

	body, err := json.Marshal(upgradeRequest{Image: image})
	if err != nil {
		return fmt.Errorf("encode upgrade request: %w", err)
	}

	url := fmt.Sprintf("http://%s:8444/api/upgrade", node.MeshIP)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build upgrade request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Node-Secret", secret)

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("upgrade %s: %w", hostname, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("upgrade %s: worker returned status %d", hostname, resp.StatusCode)
	}
	return nil
}
