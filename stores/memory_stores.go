package stores

import (
	"context"
	"sort"
	"sync"

	"github.com/unionhall/policy"
	"github.com/unionhall/policy/utils"
)

// MemoryPermissionStore holds permission grants in-memory for testing/demo.
// Granted keys may carry wildcards: "workers.*" covers "workers.edit".
type MemoryPermissionStore struct {
	mu     sync.RWMutex
	grants map[string][]string
}

func NewMemoryPermissionStore() *MemoryPermissionStore {
	return &MemoryPermissionStore{grants: make(map[string][]string)}
}

func (s *MemoryPermissionStore) Grant(userID, permission string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.grants[userID] {
		if p == permission {
			return
		}
	}
	s.grants[userID] = append(s.grants[userID], permission)
}

func (s *MemoryPermissionStore) Revoke(userID, permission string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.grants[userID][:0]
	for _, p := range s.grants[userID] {
		if p != permission {
			kept = append(kept, p)
		}
	}
	s.grants[userID] = kept
}

func (s *MemoryPermissionStore) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pattern := range s.grants[userID] {
		if utils.MatchPermission(permission, pattern) {
			return true, nil
		}
	}
	return false, nil
}

// MemoryComponentStore tracks enabled feature components in-memory.
type MemoryComponentStore struct {
	mu      sync.RWMutex
	enabled map[string]bool
}

func NewMemoryComponentStore() *MemoryComponentStore {
	return &MemoryComponentStore{enabled: make(map[string]bool)}
}

func (s *MemoryComponentStore) Set(componentID string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[componentID] = on
}

func (s *MemoryComponentStore) Enabled(ctx context.Context, componentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled[componentID], nil
}

// MemoryDirectory links user accounts to their contact and worker records.
type MemoryDirectory struct {
	mu       sync.RWMutex
	contacts map[string]*policy.Contact
	workers  map[string]*policy.Worker
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		contacts: make(map[string]*policy.Contact),
		workers:  make(map[string]*policy.Worker),
	}
}

func (d *MemoryDirectory) LinkContact(userID string, c *policy.Contact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts[userID] = c
}

func (d *MemoryDirectory) LinkWorker(userID string, w *policy.Worker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.workers[userID] = w
}

func (d *MemoryDirectory) ContactByUser(ctx context.Context, userID string) (*policy.Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.contacts[userID], nil
}

func (d *MemoryDirectory) WorkerByUser(ctx context.Context, userID string) (*policy.Worker, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.workers[userID], nil
}

type pair struct{ a, b string }

// MemoryStorage implements the cross-entity join surface in-memory.
type MemoryStorage struct {
	mu               sync.RWMutex
	employerContacts map[pair]bool
	providerContacts map[pair]bool
	workerHours      map[pair]bool
	benefitProviders map[string][]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		employerContacts: make(map[pair]bool),
		providerContacts: make(map[pair]bool),
		workerHours:      make(map[pair]bool),
		benefitProviders: make(map[string][]string),
	}
}

func (s *MemoryStorage) AddEmployerContact(employerID, contactID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employerContacts[pair{employerID, contactID}] = true
}

func (s *MemoryStorage) AddProviderContact(providerID, contactID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providerContacts[pair{providerID, contactID}] = true
}

func (s *MemoryStorage) AddWorkerHours(workerID, employerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workerHours[pair{workerID, employerID}] = true
}

func (s *MemoryStorage) AddBenefitProvider(workerID, providerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.benefitProviders[workerID] = append(s.benefitProviders[workerID], providerID)
}

func (s *MemoryStorage) EmployerHasContact(ctx context.Context, employerID, contactID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.employerContacts[pair{employerID, contactID}], nil
}

func (s *MemoryStorage) ProviderHasContact(ctx context.Context, providerID, contactID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.providerContacts[pair{providerID, contactID}], nil
}

func (s *MemoryStorage) WorkerHasHoursAt(ctx context.Context, workerID, employerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workerHours[pair{workerID, employerID}], nil
}

func (s *MemoryStorage) BenefitProvidersFor(ctx context.Context, workerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.benefitProviders[workerID]))
	copy(out, s.benefitProviders[workerID])
	return out, nil
}

// MemoryEntityStore keeps domain records keyed by type and ID, and hands out
// loaders for the engine's loader registry.
type MemoryEntityStore struct {
	mu      sync.RWMutex
	records map[policy.EntityType]map[string]policy.Entity
}

func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{records: make(map[policy.EntityType]map[string]policy.Entity)}
}

func (s *MemoryEntityStore) Put(e policy.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.records[e.Type()]
	if !ok {
		byID = make(map[string]policy.Entity)
		s.records[e.Type()] = byID
	}
	byID[e.EntityID()] = e
}

func (s *MemoryEntityStore) Delete(t policy.EntityType, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records[t], id)
}

// Loader returns a LoaderFunc bound to one entity type. Absent records load
// as (nil, nil).
func (s *MemoryEntityStore) Loader(t policy.EntityType) policy.LoaderFunc {
	return func(ctx context.Context, id string) (policy.Entity, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		e, ok := s.records[t][id]
		if !ok {
			return nil, nil
		}
		return e, nil
	}
}

// MemoryAuditStore keeps decision records in-memory, newest last.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []*policy.AuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Record(ctx context.Context, entry *policy.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *entry
	s.entries = append(s.entries, &dup)
	return nil
}

func (s *MemoryAuditStore) List(ctx context.Context, filter policy.AuditFilter) ([]*policy.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*policy.AuditEntry, 0)
	for _, e := range s.entries {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.PolicyID != "" && e.PolicyID != filter.PolicyID {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		if !filter.StartTime.IsZero() && e.Timestamp.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && e.Timestamp.After(filter.EndTime) {
			continue
		}
		dup := *e
		out = append(out, &dup)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Len reports how many entries have been recorded.
func (s *MemoryAuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// FromConfig builds memory-backed permission, component and directory stores
// from a deployment config.
func FromConfig(cfg *policy.Config) (*MemoryPermissionStore, *MemoryComponentStore, *MemoryDirectory) {
	perms := NewMemoryPermissionStore()
	for _, g := range cfg.Grants {
		perms.Grant(g.UserID, g.Permission)
	}
	comps := NewMemoryComponentStore()
	ids := make([]string, 0, len(cfg.Components))
	for id := range cfg.Components {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		comps.Set(id, cfg.Components[id])
	}
	dir := NewMemoryDirectory()
	for _, l := range cfg.Links {
		if l.ContactID != "" {
			dir.LinkContact(l.UserID, &policy.Contact{ID: l.ContactID})
		}
		if l.WorkerID != "" {
			dir.LinkWorker(l.UserID, &policy.Worker{ID: l.WorkerID, ContactID: l.ContactID})
		}
	}
	return perms, comps, dir
}
