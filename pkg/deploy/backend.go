package deploy

import (
	"context"
	"time"

	"github.com/ushadow-io/ushadow/pkg/lifecycle"
)

// Deployment is the runtime shadow of one deploy action (spec.md §3).
type Deployment struct {
	ID         string
	ServiceID  string
	Target     string // hostname or cluster id
	InstanceID string

	Status lifecycle.Status

	ContainerID   string
	ContainerName string

	HostPort  string
	AccessURL string

	Config ResolvedServiceDefinition

	Healthy            bool
	LastHealthCheckedAt time.Time
	HealthMessage       string

	BackendType string // "docker" | "kubernetes"
	BackendMeta map[string]string

	CreatedAt  time.Time
	DeployedAt time.Time
	StoppedAt  time.Time
	LastError  string
}

// Backend is the uniform contract every deployment target implements
// (spec.md §4.4.2). Backends are stateless: ListDeployments and GetStatus
// always read from the target runtime, never from a control-plane record.
type Backend interface {
	Deploy(ctx context.Context, target string, resolved ResolvedServiceDefinition, deploymentID, namespace string) (Deployment, error)
	Stop(ctx context.Context, target string, d Deployment) (bool, error)
	Remove(ctx context.Context, target string, d Deployment) (bool, error)
	Restart(ctx context.Context, target string, d Deployment) (bool, error)
	GetStatus(ctx context.Context, target string, d Deployment) (lifecycle.Status, error)
	GetLogs(ctx context.Context, target string, d Deployment, tail int) ([]string, error)
	ListDeployments(ctx context.Context, target, serviceID string) ([]Deployment, error)
}
