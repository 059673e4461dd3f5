package clusters

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ushadow-io/ushadow/pkg/cryptutil"
	"github.com/ushadow-io/ushadow/pkg/settings"
)

const metadataFileName = "kubernetes_clusters.yaml"

type metadataDocument struct {
	Clusters []Cluster `yaml:"clusters"`
}

// Store persists cluster metadata as YAML and kubeconfig payloads as
// individually encrypted files under <dir>/kubeconfigs/<id>.enc, mode 0600
// (spec.md §3, §5 "O_CREAT|O_EXCL|mode 0600 for new files").
type Store struct {
	fs  afero.Fs
	dir string
	box *cryptutil.Box

	mu       sync.Mutex
	clusters map[string]Cluster
}

// Open loads cluster metadata rooted at dir; kubeconfig files live in a
// kubeconfigs/ subdirectory of dir.
func Open(fs afero.Fs, dir string, box *cryptutil.Box) (*Store, error) {
	if err := fs.MkdirAll(filepath.Join(dir, "kubeconfigs"), 0o700); err != nil {
		return nil, fmt.Errorf("create kubeconfig dir: %w", err)
	}
	path := filepath.Join(dir, metadataFileName)
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, err
	}
	doc := metadataDocument{}
	if exists {
		raw, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	s := &Store{fs: fs, dir: dir, box: box, clusters: map[string]Cluster{}}
	for _, c := range doc.Clusters {
		s.clusters[c.ID] = c
	}
	return s, nil
}

func (s *Store) persistLocked() error {
	doc := metadataDocument{}
	for _, c := range s.clusters {
		doc.Clusters = append(doc.Clusters, c)
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode cluster metadata: %w", err)
	}
	path := filepath.Join(s.dir, metadataFileName)
	return afero.WriteFile(s.fs, path, raw, 0o644)
}

func (s *Store) kubeconfigPath(id string) string {
	return filepath.Join(s.dir, "kubeconfigs", id+".enc")
}

// Register encrypts and stores kubeconfigYAML, then records the cluster's
// metadata (spec.md §3, original_source add_cluster).
func (s *Store) Register(name string, kubeconfigYAML []byte, serverURL, defaultNamespace string) (Cluster, error) {
	id, err := settings.RandomHex16()
	if err != nil {
		return Cluster{}, fmt.Errorf("generate cluster id: %w", err)
	}

	encrypted, err := s.box.Encrypt(kubeconfigYAML)
	if err != nil {
		return Cluster{}, fmt.Errorf("encrypt kubeconfig: %w", err)
	}

	path := s.kubeconfigPath(id)
	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return Cluster{}, fmt.Errorf("create kubeconfig file: %w", err)
	}
	if _, err := f.Write([]byte(encrypted)); err != nil {
		f.Close()
		return Cluster{}, fmt.Errorf("write kubeconfig file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Cluster{}, fmt.Errorf("close kubeconfig file: %w", err)
	}

	cluster := Cluster{
		ID:               id,
		Name:             name,
		ServerURL:        serverURL,
		Status:           "unknown",
		DefaultNamespace: defaultNamespace,
		CreatedAt:        time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters[id] = cluster
	if err := s.persistLocked(); err != nil {
		delete(s.clusters, id)
		_ = s.fs.Remove(path)
		return Cluster{}, err
	}
	return cluster, nil
}

// Kubeconfig decrypts and returns the raw kubeconfig bytes for a cluster.
func (s *Store) Kubeconfig(id string) ([]byte, error) {
	path := s.kubeconfigPath(id)
	raw, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read kubeconfig for %s: %w", id, err)
	}
	return s.box.Decrypt(string(raw))
}

// List returns every registered cluster.
func (s *Store) List() []Cluster {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Cluster, 0, len(s.clusters))
	for _, c := range s.clusters {
		out = append(out, c)
	}
	return out
}

// Get returns a single cluster by id.
func (s *Store) Get(id string) (Cluster, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clusters[id]
	return c, ok
}

// IsClusterID implements the deploy manager's clusterLookup contract.
func (s *Store) IsClusterID(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Delete removes a cluster's metadata and its kubeconfig file.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cluster, ok := s.clusters[id]
	if !ok {
		return false, nil
	}
	delete(s.clusters, id)
	if err := s.persistLocked(); err != nil {
		s.clusters[id] = cluster
		return false, err
	}
	_ = s.fs.Remove(s.kubeconfigPath(id))
	return true, nil
}

// UpdateInfraScanCache stores the per-namespace infrastructure scan
// results cache (spec.md §3 "cached per-namespace infrastructure scan
// results").
func (s *Store) UpdateInfraScanCache(id string, cache map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cluster, ok := s.clusters[id]
	if !ok {
		return fmt.Errorf("cluster %q not found", id)
	}
	prev := cluster
	cluster.InfraScanCache = cache
	s.clusters[id] = cluster
	if err := s.persistLocked(); err != nil {
		s.clusters[id] = prev
		return err
	}
	return nil
}
