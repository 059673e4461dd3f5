// Package appctx wires together every store and manager the leader and
// worker binaries need, as one explicit struct passed down through
// constructors rather than resolved through global singletons
// (Design Notes §9 "Global singletons -> explicit context").
package appctx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/afero"

	"github.com/ushadow-io/ushadow/pkg/capability"
	"github.com/ushadow-io/ushadow/pkg/clusters"
	"github.com/ushadow-io/ushadow/pkg/cryptutil"
	"github.com/ushadow-io/ushadow/pkg/deploy"
	"github.com/ushadow-io/ushadow/pkg/deploy/docker"
	"github.com/ushadow-io/ushadow/pkg/deploy/kube"
	"github.com/ushadow-io/ushadow/pkg/fleet"
	"github.com/ushadow-io/ushadow/pkg/instances"
	"github.com/ushadow-io/ushadow/pkg/mesh"
	"github.com/ushadow-io/ushadow/pkg/settings"
	"github.com/ushadow-io/ushadow/pkg/templates"
)

// Config gathers the leader's filesystem roots and application secret.
// The settings database and the config/ and kubernetes/ stores live under
// DataDir; ComposeDir and ProvidersDir are used as given.
type Config struct {
	DataDir      string
	ComposeDir   string
	ProvidersDir string
	AppSecret    string
	Mode         templates.Mode
	Hostname     string
}

// Leader bundles every dependency the leader HTTP surface touches.
type Leader struct {
	Settings   *settings.Store
	Templates  *templates.Registry
	Instances  *instances.Store
	Resolver   *capability.Resolver
	Fleet      *fleet.Store
	Clusters   *clusters.Store
	Mesh       mesh.Client
	Routes     *mesh.RouteTable
	Deploy     *deploy.Manager
	HTTPClient *http.Client

	FS         afero.Fs
	ComposeDir string
	ConfigDir  string
}

// NewLeader opens every store rooted at cfg.DataDir and assembles the
// deploy manager and its backends.
func NewLeader(cfg Config) (*Leader, error) {
	fs := afero.NewOsFs()

	settingsStore, err := settings.Open(cfg.DataDir + "/settings.db")
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}

	registry := templates.New(fs, cfg.ComposeDir, cfg.ProvidersDir)
	if err := registry.Reload(); err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	if err := registry.WatchForChanges(nil); err != nil {
		return nil, fmt.Errorf("watch templates: %w", err)
	}

	instanceStore, err := instances.Open(fs, cfg.DataDir+"/config")
	if err != nil {
		return nil, fmt.Errorf("open instance store: %w", err)
	}

	box, err := cryptutil.NewBox(cfg.AppSecret)
	if err != nil {
		return nil, fmt.Errorf("build crypto box: %w", err)
	}
	fleetStore, err := fleet.Open(fs, cfg.DataDir+"/config", box)
	if err != nil {
		return nil, fmt.Errorf("open fleet store: %w", err)
	}

	clusterStore, err := clusters.Open(fs, cfg.DataDir+"/kubernetes", box)
	if err != nil {
		return nil, fmt.Errorf("open cluster store: %w", err)
	}

	resolver := capability.New(registry, instanceStore, settingsStore, cfg.Mode)

	meshClient := mesh.NewCLIClient("")
	routes := mesh.NewRouteTable(meshClient)

	dockerClient, err := docker.NewClient()
	if err != nil {
		return nil, fmt.Errorf("build docker client: %w", err)
	}
	dockerBackend := docker.New(cfg.Hostname, dockerClient, fleetStore, settingsStore)

	manager := &deploy.Manager{
		Templates: registry,
		Instances: instanceStore,
		Resolver:  resolver,
		Settings:  settingsStore,
		Compose:   &deploy.SubprocessComposeRunner{Binary: "docker"},
		Docker:    dockerBackend,
		Clusters:  clusterStore,
		Routes:    routes,
		Hostname:  cfg.Hostname,
	}

	return &Leader{
		Settings:   settingsStore,
		Templates:  registry,
		Instances:  instanceStore,
		Resolver:   resolver,
		Fleet:      fleetStore,
		Clusters:   clusterStore,
		Mesh:       meshClient,
		Routes:     routes,
		Deploy:     manager,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		FS:         fs,
		ComposeDir: cfg.ComposeDir,
		ConfigDir:  cfg.DataDir + "/config",
	}, nil
}

// AttachKubeBackend wires the Kubernetes backend into the deploy manager
// on each cluster registration (POST /api/kubernetes), replacing any
// backend attached earlier.
func (l *Leader) AttachKubeBackend(backend *kube.Backend) {
	l.Deploy.Kube = backend
}

// Worker bundles the dependencies the worker agent's HTTP surface needs.
type Worker struct {
	Docker     *docker.Backend
	NodeSecret string
	Hostname   string
}

// NewWorker builds the worker-side dependencies: a local Docker backend
// with no remote dispatch (a worker never forwards deploys further).
func NewWorker(hostname, nodeSecret string) (*Worker, error) {
	dockerClient, err := docker.NewClient()
	if err != nil {
		return nil, fmt.Errorf("build docker client: %w", err)
	}
	// A worker has no settings store of its own (spec.md §4.5 workers are
	// thin Docker-API proxies); port remaps it performs for a remote deploy
	// are recomputed on every call instead of persisted across restarts.
	backend := docker.New(hostname, dockerClient, nil, nil)
	return &Worker{Docker: backend, NodeSecret: nodeSecret, Hostname: hostname}, nil
}
