package policy

import (
	"fmt"
	"sync"
)

// Catalog is the process-wide collection of policy definitions. It is built
// once at startup (register every definition, then Seal) and read-only
// afterwards; the engine takes it by reference rather than through any
// ambient singleton.
type Catalog struct {
	mu     sync.RWMutex
	defs   map[string]*Definition
	order  []string
	sealed bool
}

func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]*Definition)}
}

// Register inserts a definition by ID. It fails on duplicate IDs and on
// malformed definitions; both are startup-time programming errors, not
// runtime conditions to recover from.
func (c *Catalog) Register(def *Definition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("policy definition requires an id")
	}
	if def.Scope != ScopeRoute && def.Scope != ScopeEntity {
		return fmt.Errorf("policy %s: unknown scope %q", def.ID, def.Scope)
	}
	if def.Scope == ScopeEntity && def.EntityType == "" {
		return fmt.Errorf("policy %s: entity scope requires an entity type", def.ID)
	}
	if def.Evaluate == nil && len(def.Rules) == 0 {
		return fmt.Errorf("policy %s: needs rules or an evaluate function", def.ID)
	}
	for i, rule := range def.Rules {
		if err := validateRule(rule); err != nil {
			return fmt.Errorf("policy %s: rule %d: %w", def.ID, i, err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return fmt.Errorf("policy %s: catalog is sealed", def.ID)
	}
	if _, ok := c.defs[def.ID]; ok {
		return &DuplicateRegistrationError{ID: def.ID}
	}
	c.defs[def.ID] = def
	c.order = append(c.order, def.ID)
	return nil
}

// validateRule rejects condition-free leaves. A leaf with no fields set
// would satisfy every request (each absent field passes vacuously), so it
// is a registration error, not a grant-everyone rule.
func validateRule(rule AccessRule) error {
	if len(rule.Any) > 0 {
		for _, member := range rule.Any {
			if err := validateRule(member); err != nil {
				return err
			}
		}
		return nil
	}
	if len(rule.All) > 0 {
		for _, member := range rule.All {
			if err := validateRule(member); err != nil {
				return err
			}
		}
		return nil
	}
	if !rule.Authenticated && rule.Permission == "" && len(rule.AnyPermission) == 0 &&
		len(rule.AllPermissions) == 0 && rule.Component == "" && rule.Linkage == "" &&
		rule.Policy == "" && len(rule.Attributes) == 0 {
		return fmt.Errorf("rule has no conditions")
	}
	return nil
}

// MustRegister is Register for static registration blocks; it panics on
// error since a bad definition means the process cannot start correctly.
func (c *Catalog) MustRegister(def *Definition) {
	if err := c.Register(def); err != nil {
		panic(err)
	}
}

// Seal marks the catalog complete. Further Register calls fail.
func (c *Catalog) Seal() {
	c.mu.Lock()
	c.sealed = true
	c.mu.Unlock()
}

// Sealed reports whether registration has completed.
func (c *Catalog) Sealed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sealed
}

// Get returns the definition for an ID.
func (c *Catalog) Get(id string) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[id]
	return def, ok
}

// All returns every definition in registration order.
func (c *Catalog) All() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Definition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.defs[id])
	}
	return out
}

// The catalog stays small (tens of entries), so the filters below are plain
// linear scans.

func (c *Catalog) ByScope(s Scope) []*Definition {
	return c.filter(func(d *Definition) bool { return d.Scope == s })
}

func (c *Catalog) ByEntityType(t EntityType) []*Definition {
	return c.filter(func(d *Definition) bool { return d.EntityType == t })
}

func (c *Catalog) ByComponent(componentID string) []*Definition {
	return c.filter(func(d *Definition) bool { return d.RequiredComponent == componentID })
}

func (c *Catalog) filter(keep func(*Definition) bool) []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Definition, 0)
	for _, id := range c.order {
		if d := c.defs[id]; keep(d) {
			out = append(out, d)
		}
	}
	return out
}
