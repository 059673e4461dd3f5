package docker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ushadow-io/ushadow/pkg/lifecycle"
)

// mapContainerState maps a Docker container state string to a lifecycle
// status (spec.md §4.4.3 status derivation).
func mapContainerState(state string) lifecycle.Status {
	switch state {
	case "running":
		return lifecycle.StatusRunning
	case "exited":
		return lifecycle.StatusStopped
	case "created":
		return lifecycle.StatusPending
	case "dead":
		return lifecycle.StatusFailed
	case "paused":
		return lifecycle.StatusStopped
	default:
		return lifecycle.StatusFailed
	}
}

// checkHealth performs the 2-second HTTP health probe for a running
// container carrying a health-check label; a non-2xx (or error) response
// demotes status to "deploying" (not yet ready) with a diagnostic message.
func checkHealth(hostPort, path string) (healthy bool, message string) {
	url := fmt.Sprintf("http://localhost:%s%s", hostPort, path)
	httpClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := httpClient.Get(url)
	if err != nil {
		return false, fmt.Sprintf("health check %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, ""
	}
	return false, fmt.Sprintf("health check %s returned %d", url, resp.StatusCode)
}

// statusWithHealth applies the health-check refinement: a running
// container without a passing health check reports "deploying" rather than
// "running" (spec.md §4.4.3).
func statusWithHealth(ctx context.Context, state lifecycle.Status, hostPort, healthPath string) (lifecycle.Status, string) {
	if state != lifecycle.StatusRunning || healthPath == "" || hostPort == "" {
		return state, ""
	}
	healthy, msg := checkHealth(hostPort, healthPath)
	if healthy {
		return lifecycle.StatusRunning, ""
	}
	return lifecycle.StatusDeploying, msg
}
