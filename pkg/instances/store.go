package instances

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ushadow-io/ushadow/pkg/lifecycle"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}[a-z0-9]$|^[a-z0-9]$`)

// Store is the combined Instance/Wiring CRUD store (spec.md §4.2), persisted
// as two YAML documents under dir. All operations take the same lock: the
// store is the natural single-writer serialization point the rest of the
// system relies on (SPEC_FULL.md §5).
type Store struct {
	fs  afero.Fs
	dir string

	mu        sync.Mutex
	instances map[string]Instance
	wiring    map[string]Wiring
	defaults  map[string]string
}

// Open loads (or initializes) the store rooted at dir.
func Open(fs afero.Fs, dir string) (*Store, error) {
	list, err := loadInstances(fs, dir)
	if err != nil {
		return nil, err
	}
	wdoc, err := loadWiring(fs, dir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		fs:        fs,
		dir:       dir,
		instances: make(map[string]Instance, len(list)),
		wiring:    make(map[string]Wiring, len(wdoc.Wiring)),
		defaults:  wdoc.Defaults,
	}
	for _, inst := range list {
		s.instances[inst.ID] = inst
	}
	for _, w := range wdoc.Wiring {
		s.wiring[w.ID] = w
	}
	return s, nil
}

func (s *Store) persistInstancesLocked() error {
	list := make([]Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		list = append(list, inst)
	}
	return saveInstances(s.fs, s.dir, list)
}

func (s *Store) persistWiringLocked() error {
	list := make([]Wiring, 0, len(s.wiring))
	for _, w := range s.wiring {
		list = append(list, w)
	}
	return saveWiring(s.fs, s.dir, wiringDocument{Defaults: s.defaults, Wiring: list})
}

// List returns all instances.
func (s *Store) List() []Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst)
	}
	return out
}

// Get returns one instance by id.
func (s *Store) Get(id string) (Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	return inst, ok
}

// Create inserts a new instance. If data.ID is empty a UUID is generated; an
// explicit id must be a DNS-label-safe slug and must not already exist
// (spec.md §4.2 invariant (i)).
func (s *Store) Create(data Instance) (Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data.ID == "" {
		data.ID = uuid.NewString()
	} else if !idPattern.MatchString(data.ID) {
		return Instance{}, fmt.Errorf("instance id %q is not a valid slug", data.ID)
	}
	if _, exists := s.instances[data.ID]; exists {
		return Instance{}, fmt.Errorf("instance %q already exists", data.ID)
	}

	now := time.Now()
	data.CreatedAt = now
	data.UpdatedAt = now
	if data.Status == "" {
		data.Status = InitialStatus(data.DeploymentTarget)
	}

	s.instances[data.ID] = data
	if err := s.persistInstancesLocked(); err != nil {
		delete(s.instances, data.ID)
		return Instance{}, err
	}
	return data, nil
}

// Update applies patch to the named instance, preserving CreatedAt and
// bumping UpdatedAt. patch's ID field is ignored.
func (s *Store) Update(id string, patch func(*Instance)) (Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[id]
	if !ok {
		return Instance{}, fmt.Errorf("instance %q not found", id)
	}
	before := inst
	patch(&inst)
	inst.ID = id
	inst.CreatedAt = before.CreatedAt
	inst.UpdatedAt = time.Now()

	s.instances[id] = inst
	if err := s.persistInstancesLocked(); err != nil {
		s.instances[id] = before
		return Instance{}, err
	}
	return inst, nil
}

// UpdateStatus is a narrow convenience over Update for the deploy manager.
func (s *Store) UpdateStatus(id string, status lifecycle.Status, lastError string) (Instance, error) {
	return s.Update(id, func(inst *Instance) {
		inst.Status = status
		inst.LastError = lastError
	})
}

// Delete removes an instance and cascades: every wiring row with this
// instance as source or target is removed too (spec.md §8 invariant).
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[id]; !ok {
		return fmt.Errorf("instance %q not found", id)
	}

	beforeInstances := s.instances[id]
	removedWiring := map[string]Wiring{}
	for wid, w := range s.wiring {
		if w.SourceInstanceID == id || w.TargetInstanceID == id {
			removedWiring[wid] = w
			delete(s.wiring, wid)
		}
	}
	delete(s.instances, id)

	if err := s.persistInstancesLocked(); err != nil {
		s.instances[id] = beforeInstances
		for wid, w := range removedWiring {
			s.wiring[wid] = w
		}
		return err
	}
	if len(removedWiring) > 0 {
		if err := s.persistWiringLocked(); err != nil {
			return err
		}
	}
	return nil
}

// GetOverrides returns the direct-value config entries a user explicitly set
// on the named instance (spec.md §4.2, get_overrides).
func (s *Store) GetOverrides(id string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return nil, fmt.Errorf("instance %q not found", id)
	}
	return inst.Overrides(), nil
}

// ListWiring returns all wiring rows.
func (s *Store) ListWiring() []Wiring {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Wiring, 0, len(s.wiring))
	for _, w := range s.wiring {
		out = append(out, w)
	}
	return out
}

// ListWiringFor returns all wiring rows targeting targetID.
func (s *Store) ListWiringFor(targetID string) []Wiring {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Wiring
	for _, w := range s.wiring {
		if w.TargetInstanceID == targetID {
			out = append(out, w)
		}
	}
	return out
}

// GetProvider returns the wiring row (if any) that supplies capability to
// consumerID, i.e. the explicit-wiring step of capability resolution
// (spec.md §4.3 step (a)).
func (s *Store) GetProvider(consumerID, capability string) (Wiring, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wiring {
		if w.TargetInstanceID == consumerID && w.TargetCapability == capability {
			return w, true
		}
	}
	return Wiring{}, false
}

// CreateWiring inserts or replaces the wiring row for (target, target
// capability) — wiring upserts on that pair (spec.md §3 invariant (iii)).
func (s *Store) CreateWiring(w Wiring) (Wiring, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[w.SourceInstanceID]; !ok {
		return Wiring{}, fmt.Errorf("source instance %q not found", w.SourceInstanceID)
	}
	if _, ok := s.instances[w.TargetInstanceID]; !ok {
		return Wiring{}, fmt.Errorf("target instance %q not found", w.TargetInstanceID)
	}

	key := w.key()
	for wid, existing := range s.wiring {
		if existing.key() == key {
			w.ID = wid
			break
		}
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = time.Now()

	before := s.wiring[w.ID]
	hadBefore := false
	if _, ok := s.wiring[w.ID]; ok {
		hadBefore = true
	}
	s.wiring[w.ID] = w

	if err := s.persistWiringLocked(); err != nil {
		if hadBefore {
			s.wiring[w.ID] = before
		} else {
			delete(s.wiring, w.ID)
		}
		return Wiring{}, err
	}
	return w, nil
}

// DeleteWiring removes one wiring row by id.
func (s *Store) DeleteWiring(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before, ok := s.wiring[id]
	if !ok {
		return fmt.Errorf("wiring %q not found", id)
	}
	delete(s.wiring, id)
	if err := s.persistWiringLocked(); err != nil {
		s.wiring[id] = before
		return err
	}
	return nil
}

// GetDefaults returns the capability -> default-provider-instance-id map
// (spec.md §4.3 step (c)).
func (s *Store) GetDefaults() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.defaults))
	for k, v := range s.defaults {
		out[k] = v
	}
	return out
}

// SetDefault sets the default provider instance id for a capability.
func (s *Store) SetDefault(capability, sourceInstanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before, had := s.defaults[capability]
	s.defaults[capability] = sourceInstanceID
	if err := s.persistWiringLocked(); err != nil {
		if had {
			s.defaults[capability] = before
		} else {
			delete(s.defaults, capability)
		}
		return err
	}
	return nil
}
