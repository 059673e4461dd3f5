// Package settings implements the typed, dotted-path configuration facade
// described in the design notes: a single persisted tree of values, read and
// written through typed accessors instead of an untyped get(path, default).
package settings

import (
	"fmt"
	"strconv"
	"sync"

	"go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

var bucketName = []byte("settings")
var treeKey = []byte("tree")

// Store is the typed settings facade. All methods are safe for concurrent use;
// the store's own mutex is the serialization point for writes (spec.md §5).
type Store struct {
	db *bbolt.DB

	mu   sync.Mutex
	tree map[string]any
}

// Open opens (creating if necessary) the bbolt-backed settings store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open settings store %s: %w", path, err)
	}
	s := &Store{db: db, tree: map[string]any{}}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		raw := b.Get(treeKey)
		if raw == nil {
			return nil
		}
		tree := map[string]any{}
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return fmt.Errorf("decode settings tree: %w", err)
		}
		s.tree = normalizeTree(tree)
		return nil
	})
}

// normalizeTree recursively walks the nested map[string]any and []any values
// produced by yaml.v3; maps with non-string keys are left as decoded.
func normalizeTree(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeTree(t)
	case []any:
		for i, e := range t {
			t[i] = normalizeValue(e)
		}
		return t
	default:
		return v
	}
}

func (s *Store) persistLocked() error {
	raw, err := yaml.Marshal(s.tree)
	if err != nil {
		return fmt.Errorf("encode settings tree: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put(treeKey, raw)
	})
}

// Close releases the underlying database file.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the raw value at path, or nil, false if absent.
func (s *Store) Get(path string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getPath(s.tree, splitPath(path))
}

// Set writes value at path and persists the tree immediately.
func (s *Store) Set(path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	setPath(s.tree, splitPath(path), value)
	if err := s.persistLocked(); err != nil {
		return err
	}
	klog.V(4).Infof("settings: set %s", path)
	return nil
}

// Delete removes the value at path, if present, and persists the tree
// immediately. Used to reclaim settings overrides (e.g. port remaps) once
// the resource they pinned no longer exists.
func (s *Store) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deletePath(s.tree, splitPath(path))
	if err := s.persistLocked(); err != nil {
		return err
	}
	klog.V(4).Infof("settings: deleted %s", path)
	return nil
}

// GetString returns the value at path as a string, or def if absent or not scalar.
func (s *Store) GetString(path, def string) string {
	v, ok := s.Get(path)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return def
	default:
		return fmt.Sprintf("%v", t)
	}
}

// GetInt returns the value at path as an int, or def if absent or unparseable.
func (s *Store) GetInt(path string, def int) int {
	v, ok := s.Get(path)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// GetBool returns the value at path as a bool, or def if absent or unparseable.
func (s *Store) GetBool(path string, def bool) bool {
	v, ok := s.Get(path)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Select returns the subtree rooted at path as a map, if path names a map.
func (s *Store) Select(path string) (map[string]any, bool) {
	v, ok := s.Get(path)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// GetOrGenerate returns the value at path, generating and persisting a fresh
// one via gen if absent. created is true only on the call that generated it.
func (s *Store) GetOrGenerate(path string, gen Generator) (value string, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := getPath(s.tree, splitPath(path)); ok {
		if str, ok := v.(string); ok && str != "" {
			return str, false, nil
		}
	}

	generated, err := gen()
	if err != nil {
		return "", false, fmt.Errorf("generate value for %s: %w", path, err)
	}
	setPath(s.tree, splitPath(path), generated)
	if err := s.persistLocked(); err != nil {
		return "", false, err
	}
	klog.V(2).Infof("settings: generated missing value at %s", path)
	return generated, true, nil
}
