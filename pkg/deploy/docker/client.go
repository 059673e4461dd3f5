package docker

import (
	"fmt"

	"github.com/docker/docker/client"
)

// NewClient connects to the local Docker daemon using the standard
// environment-derived configuration (DOCKER_HOST, TLS material, API version
// negotiation).
func NewClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return cli, nil
}
