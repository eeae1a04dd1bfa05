package policy

import (
	"context"
	"fmt"
)

// Context is the per-evaluation façade handed to policy logic. It exposes
// permission checks, entity loading, policy delegation, component checks and
// user resolution for the bound user, memoizing lookups so one evaluation
// never hits a backing store twice for the same question.
type Context struct {
	engine *Engine
	state  *evalState

	// User is the bound principal. Nil or empty-ID means unauthenticated.
	User *User

	// EntityID identifies the persisted subject record, when there is one.
	EntityID string

	// EntityData is an unsaved record for create/precheck flows; it takes
	// precedence over loading by EntityID.
	EntityData Entity

	policyID   string
	entityType EntityType

	entity       Entity
	entityLoaded bool
}

// Authenticated reports whether a real user is bound.
func (pc *Context) Authenticated() bool {
	return pc.User != nil && pc.User.ID != ""
}

// HasPermission checks one permission for the bound user.
func (pc *Context) HasPermission(ctx context.Context, permission string) (bool, error) {
	return pc.state.hasPermission(ctx, pc.User, permission)
}

// HasAnyPermission is an OR across the given permissions.
func (pc *Context) HasAnyPermission(ctx context.Context, permissions ...string) (bool, error) {
	for _, p := range permissions {
		ok, err := pc.state.hasPermission(ctx, pc.User, p)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions is an AND across the given permissions.
func (pc *Context) HasAllPermissions(ctx context.Context, permissions ...string) (bool, error) {
	for _, p := range permissions {
		ok, err := pc.state.hasPermission(ctx, pc.User, p)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Entity returns the bound subject record: the ephemeral EntityData when
// present, otherwise the persisted record loaded once by EntityID. Absent
// records return nil without error.
func (pc *Context) Entity(ctx context.Context) (Entity, error) {
	if pc.EntityData != nil {
		return pc.EntityData, nil
	}
	if pc.entityLoaded {
		return pc.entity, nil
	}
	if pc.EntityID == "" || pc.entityType == "" {
		pc.entityLoaded = true
		return nil, nil
	}
	ent, err := pc.engine.loaders.Load(ctx, pc.entityType, pc.EntityID)
	if err != nil {
		return nil, err
	}
	pc.entity = ent
	pc.entityLoaded = true
	return ent, nil
}

// LoadEntity fetches an arbitrary record through the loader registry.
// Absence is a normal outcome, not an error.
func (pc *Context) LoadEntity(ctx context.Context, t EntityType, id string) (Entity, error) {
	return pc.engine.loaders.Load(ctx, t, id)
}

// CheckPolicy delegates to another policy with the same bound user and
// returns only the boolean; delegation callers synthesize their own reason.
func (pc *Context) CheckPolicy(ctx context.Context, policyID, entityID string) (bool, error) {
	res, err := pc.engine.evaluate(ctx, pc.state, policyID, pc.User, entityID, nil)
	if err != nil {
		return false, err
	}
	return res.Granted, nil
}

// CheckPolicyData delegates against an unsaved record.
func (pc *Context) CheckPolicyData(ctx context.Context, policyID string, entityData Entity) (bool, error) {
	res, err := pc.engine.evaluate(ctx, pc.state, policyID, pc.User, "", entityData)
	if err != nil {
		return false, err
	}
	return res.Granted, nil
}

// ComponentEnabled checks a feature component.
func (pc *Context) ComponentEnabled(ctx context.Context, componentID string) (bool, error) {
	return pc.engine.componentEnabled(ctx, componentID)
}

// UserContact resolves the bound user's linked contact record, memoized for
// the whole evaluation. Nil means no link.
func (pc *Context) UserContact(ctx context.Context) (*Contact, error) {
	st := pc.state
	if st.contactLoaded {
		return st.contact, nil
	}
	if !pc.Authenticated() || pc.engine.directory == nil {
		st.contactLoaded = true
		return nil, nil
	}
	c, err := pc.engine.directory.ContactByUser(ctx, pc.User.ID)
	if err != nil {
		return nil, err
	}
	st.contact = c
	st.contactLoaded = true
	return c, nil
}

// UserWorker resolves the bound user's linked worker record, memoized for
// the whole evaluation. Nil means no link.
func (pc *Context) UserWorker(ctx context.Context) (*Worker, error) {
	st := pc.state
	if st.workerLoaded {
		return st.worker, nil
	}
	if !pc.Authenticated() || pc.engine.directory == nil {
		st.workerLoaded = true
		return nil, nil
	}
	w, err := pc.engine.directory.WorkerByUser(ctx, pc.User.ID)
	if err != nil {
		return nil, err
	}
	st.worker = w
	st.workerLoaded = true
	return w, nil
}

// Storage exposes the narrow cross-entity join surface. It errors rather
// than returning nil so a policy reaching for an unwired capability fails
// loudly instead of quietly denying.
func (pc *Context) Storage() (Storage, error) {
	if pc.engine.storage == nil {
		return nil, fmt.Errorf("policy %s: storage capability not configured", pc.policyID)
	}
	return pc.engine.storage, nil
}
