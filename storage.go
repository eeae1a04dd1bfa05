package policy

import (
	"context"
	"sync"
)

// ============================================================================
// COLLABORATOR INTERFACES
// ============================================================================
// The engine consumes these capabilities; the surrounding system implements
// them. Memory, SQL and Redis implementations live in the stores package.

// PermissionStore answers whether a user holds a named permission, directly
// or through a role.
type PermissionStore interface {
	HasPermission(ctx context.Context, userID, permission string) (bool, error)
}

// ComponentStore answers whether a feature component is enabled system-wide.
type ComponentStore interface {
	Enabled(ctx context.Context, componentID string) (bool, error)
}

// Directory resolves the authenticated user's linked domain records. A user
// may be "the same person" as a contact or worker row; ownership checks hang
// off these links. Absent links return nil without error.
type Directory interface {
	ContactByUser(ctx context.Context, userID string) (*Contact, error)
	WorkerByUser(ctx context.Context, userID string) (*Worker, error)
}

// Storage is the narrow cross-entity join surface linkage predicates need.
// Each method is one enumerated call site; there is deliberately no generic
// query escape hatch.
type Storage interface {
	// EmployerHasContact reports whether the contact is listed among the
	// employer's contact records.
	EmployerHasContact(ctx context.Context, employerID, contactID string) (bool, error)

	// ProviderHasContact reports whether the contact is listed among the
	// trust provider's contact records.
	ProviderHasContact(ctx context.Context, providerID, contactID string) (bool, error)

	// WorkerHasHoursAt reports whether the worker has an hours/employment
	// record at the employer.
	WorkerHasHoursAt(ctx context.Context, workerID, employerID string) (bool, error)

	// BenefitProvidersFor returns the IDs of providers administering a
	// benefit the worker receives.
	BenefitProvidersFor(ctx context.Context, workerID string) ([]string, error)
}

// ============================================================================
// ENTITY LOADERS
// ============================================================================

// LoaderFunc loads a record by ID. An absent record returns (nil, nil);
// errors are reserved for store faults.
type LoaderFunc func(ctx context.Context, id string) (Entity, error)

// LoaderRegistry maps entity-type tags to loader functions. Loaders are
// registered once at startup, one per type.
type LoaderRegistry struct {
	mu      sync.RWMutex
	loaders map[EntityType]LoaderFunc
}

func NewLoaderRegistry() *LoaderRegistry {
	return &LoaderRegistry{loaders: make(map[EntityType]LoaderFunc)}
}

// Register installs the loader for an entity type. Re-registering a type is
// a startup-time programming error.
func (r *LoaderRegistry) Register(t EntityType, fn LoaderFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.loaders[t]; ok {
		return &DuplicateRegistrationError{ID: string(t)}
	}
	r.loaders[t] = fn
	return nil
}

// Load fetches a record by type and ID. A missing loader is a configuration
// error; a missing record is a normal (nil, nil) outcome.
func (r *LoaderRegistry) Load(ctx context.Context, t EntityType, id string) (Entity, error) {
	r.mu.RLock()
	fn, ok := r.loaders[t]
	r.mu.RUnlock()
	if !ok {
		return nil, &LoaderMissingError{Type: t}
	}
	return fn(ctx, id)
}

// Has reports whether a loader is registered for the type.
func (r *LoaderRegistry) Has(t EntityType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaders[t]
	return ok
}
