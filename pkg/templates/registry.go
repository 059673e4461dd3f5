package templates

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"k8s.io/klog/v2"
)

// Registry discovers and caches templates from a compose directory and a
// providers directory (spec.md §4.1). Identifiers are stable across reloads:
// they are derived deterministically from file name + service name (compose)
// or manifest id (provider), never from scan order.
type Registry struct {
	fs          afero.Fs
	composeDir  string
	providerDir string

	mu        sync.RWMutex
	byID      map[string]Template
	watcher   *fsnotify.Watcher
	onChanged func()
}

// New creates a registry rooted at composeDir/providerDir on fs. Pass
// afero.NewOsFs() in production, afero.NewMemMapFs() in tests.
func New(fs afero.Fs, composeDir, providerDir string) *Registry {
	return &Registry{
		fs:          fs,
		composeDir:  composeDir,
		providerDir: providerDir,
		byID:        map[string]Template{},
	}
}

// Reload rescans both directories and replaces the cache atomically.
func (r *Registry) Reload() error {
	composeTemplates, err := scanCompose(r.fs, r.composeDir)
	if err != nil {
		return fmt.Errorf("scan compose templates: %w", err)
	}
	providerTemplates, err := scanProviders(r.fs, r.providerDir)
	if err != nil {
		return fmt.Errorf("scan provider templates: %w", err)
	}

	byID := make(map[string]Template, len(composeTemplates)+len(providerTemplates))
	for _, t := range composeTemplates {
		byID[t.ID] = t
	}
	for _, t := range providerTemplates {
		byID[t.ID] = t
	}

	r.mu.Lock()
	r.byID = byID
	r.mu.Unlock()

	klog.V(2).Infof("templates: reloaded %d templates (%d compose, %d provider)",
		len(byID), len(composeTemplates), len(providerTemplates))
	return nil
}

// List returns all cached templates.
func (r *Registry) List() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Template, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, t)
	}
	return out
}

// Get returns one template by id, or false if unknown.
func (r *Registry) Get(id string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

// WatchForChanges starts an fsnotify watch on the compose and providers
// directories (when fs is the real OS filesystem) and calls Reload whenever
// a file changes, additionally invoking onChanged (e.g. to bump a metric or
// notify subscribers) after each successful reload. The watch is best-effort:
// an in-memory filesystem (used in tests) is silently skipped.
func (r *Registry) WatchForChanges(onChanged func()) error {
	if _, ok := r.fs.(*afero.OsFs); !ok {
		klog.V(3).Infof("templates: skipping fsnotify watch on non-OS filesystem")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}
	for _, dir := range []string{r.composeDir, r.providerDir} {
		if err := watcher.Add(dir); err != nil {
			klog.Warningf("templates: could not watch %s: %v", dir, err)
		}
	}
	r.watcher = watcher
	r.onChanged = onChanged

	go r.watchLoop()
	return nil
}

func (r *Registry) watchLoop() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			klog.V(3).Infof("templates: detected change at %s, reloading", event.Name)
			if err := r.Reload(); err != nil {
				klog.Errorf("templates: reload after fs change failed: %v", err)
				continue
			}
			if r.onChanged != nil {
				r.onChanged()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			klog.Errorf("templates: watcher error: %v", err)
		}
	}
}

// Close stops the filesystem watch, if any.
func (r *Registry) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}
