// Package fleet implements join-token issuance, worker registration,
// heartbeat tracking, peer discovery, and encrypted per-node secret
// management for the worker fleet (spec.md §4.5), grounded on
// routers/unodes.py and models/u_node*.py in original_source.
package fleet

import "time"

// Role is the role a node plays in the cluster.
type Role string

const (
	RoleLeader  Role = "leader"
	RoleWorker  Role = "worker"
	RoleStandby Role = "standby"
)

// Platform is the operating system family a node reports at registration.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformMacOS   Platform = "macos"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

// NodeType distinguishes Docker hosts from Kubernetes-managed nodes.
type NodeType string

const (
	NodeTypeDocker     NodeType = "docker"
	NodeTypeKubernetes NodeType = "kubernetes"
)

// Status is the connection status a node listing reports.
type Status string

const (
	StatusOnline     Status = "online"
	StatusConnecting Status = "connecting"
	StatusOffline    Status = "offline"
	StatusError      Status = "error"
)

// Capabilities describes what a node can run and how much of it is left.
type Capabilities struct {
	CanRunDocker       bool    `json:"can_run_docker" yaml:"can_run_docker"`
	CanRunGPU          bool    `json:"can_run_gpu" yaml:"can_run_gpu"`
	CanBecomeLeader    bool    `json:"can_become_leader" yaml:"can_become_leader"`
	AvailableMemoryMB  int     `json:"available_memory_mb" yaml:"available_memory_mb"`
	AvailableCPUCores  float64 `json:"available_cpu_cores" yaml:"available_cpu_cores"`
	AvailableDiskGB    float64 `json:"available_disk_gb" yaml:"available_disk_gb"`
}

// Node is a participant in the worker fleet (spec.md §3 "Node (UNode)").
type Node struct {
	Hostname        string            `json:"hostname" yaml:"hostname"`
	ID              string            `json:"id" yaml:"id"`
	DisplayName     string            `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Envname         string            `json:"envname,omitempty" yaml:"envname,omitempty"`
	Role            Role              `json:"role" yaml:"role"`
	Platform        Platform          `json:"platform" yaml:"platform"`
	Type            NodeType          `json:"type" yaml:"type"`
	MeshIP          string            `json:"mesh_ip,omitempty" yaml:"mesh_ip,omitempty"`
	Capabilities    Capabilities      `json:"capabilities" yaml:"capabilities"`
	Labels          map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Status          Status            `json:"status" yaml:"status"`
	LastSeen        time.Time         `json:"last_seen,omitempty" yaml:"last_seen,omitempty"`
	ManagerVersion  string            `json:"manager_version" yaml:"manager_version"`
	Services        []string          `json:"services,omitempty" yaml:"services,omitempty"`
	EncryptedSecret string            `json:"-" yaml:"encrypted_secret,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	RegisteredAt    time.Time         `json:"registered_at" yaml:"registered_at"`
}

// JoinToken is a single- or multi-use credential authorizing registration
// (spec.md §3 "Join token").
type JoinToken struct {
	Token         string    `json:"token" yaml:"token"`
	Role          Role      `json:"role" yaml:"role"`
	RemainingUses int       `json:"remaining_uses" yaml:"remaining_uses"`
	ExpiresAt     time.Time `json:"expires_at" yaml:"expires_at"`
	IssuedBy      string    `json:"issued_by,omitempty" yaml:"issued_by,omitempty"`
}

// Expired reports whether the token can no longer be redeemed.
func (t JoinToken) Expired(now time.Time) bool {
	return t.RemainingUses <= 0 || now.After(t.ExpiresAt)
}

// RegistrationRequest is the payload a candidate worker POSTs to
// /api/unodes/register after running its join script.
type RegistrationRequest struct {
	Token          string       `json:"token"`
	Hostname       string       `json:"hostname"`
	Envname        string       `json:"envname,omitempty"`
	MeshIP         string       `json:"mesh_ip"`
	Platform       Platform     `json:"platform"`
	ManagerVersion string       `json:"manager_version"`
	Capabilities   Capabilities `json:"capabilities"`
}

// Heartbeat is the periodic payload a worker POSTs to
// /api/unodes/heartbeat (spec.md §4.5 heartbeat).
type Heartbeat struct {
	Hostname        string            `json:"hostname"`
	Status          Status            `json:"status,omitempty"`
	ManagerVersion  string            `json:"manager_version,omitempty"`
	ServicesRunning []string          `json:"services_running,omitempty"`
	Capabilities    *Capabilities     `json:"capabilities,omitempty"`
	Metrics         map[string]string `json:"metrics,omitempty"`
}
