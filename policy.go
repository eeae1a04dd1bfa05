// Package policy implements the access policy evaluation engine for the
// union administration backend. A Catalog holds named policy definitions;
// an Engine answers "can user U perform action A on entity E?" by running
// either a definition's declarative rules or its computed evaluate function
// against a per-request Context. Policies may delegate to one another, gate
// on feature components, and inspect entity state.
package policy

import (
	"context"
	"time"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// User is the authenticated principal a policy evaluates for.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Scope says whether a policy guards a route (no subject record) or a
// specific entity instance.
type Scope string

const (
	ScopeRoute  Scope = "route"
	ScopeEntity Scope = "entity"
)

// EntityType tags the kind of record an entity-scoped policy binds to.
// The set is closed: adding a type means adding a record struct and a loader.
type EntityType string

const (
	EntityWorker    EntityType = "worker"
	EntityEmployer  EntityType = "employer"
	EntityProvider  EntityType = "provider"
	EntityFile      EntityType = "file"
	EntityContact   EntityType = "contact"
	EntityCardcheck EntityType = "cardcheck"
	EntityEsig      EntityType = "esig"
	EntityDNC       EntityType = "worker.dispatch.dnc"
	EntityEDLSSheet EntityType = "edls_sheet"
)

// Result is the outcome of a policy evaluation. Reason is mandatory: it is
// surfaced in audit logs and in API error bodies for denials.
type Result struct {
	Granted bool   `json:"granted"`
	Reason  string `json:"reason"`
}

// Grant builds a granted Result with the given reason.
func Grant(reason string) *Result { return &Result{Granted: true, Reason: reason} }

// Deny builds a denied Result with the given reason.
func Deny(reason string) *Result { return &Result{Granted: false, Reason: reason} }

// EvaluateFunc is the imperative evaluation strategy for policies that need
// delegation, entity-state inspection, or multi-step reasoning.
type EvaluateFunc func(ctx context.Context, pc *Context) (*Result, error)

// Definition is a named, scoped unit of authorization logic. Definitions are
// registered once at startup and never mutated afterwards. Exactly one
// evaluation strategy applies: Evaluate wins when both it and Rules are set.
type Definition struct {
	// ID is the globally unique dotted-path identifier, e.g. "worker.view".
	ID string

	Scope Scope

	// EntityType is required when Scope is ScopeEntity.
	EntityType EntityType

	// RequiredComponent names a feature component; when disabled system-wide
	// the policy denies unconditionally, before any other check.
	RequiredComponent string

	// Rules is the declarative strategy: OR across rules, AND across the
	// condition fields inside each rule.
	Rules []AccessRule

	// Evaluate is the computed strategy. Takes precedence over Rules.
	Evaluate EvaluateFunc

	// DescribeRequirements yields a human-readable requirement list for UI
	// display, independent of the actual evaluation logic. Only needed by
	// policies with a computed Evaluate; declarative policies describe
	// themselves through Rules.
	DescribeRequirements func() []AccessRule

	// CacheKeyFields lists entity fields whose values are folded into the
	// result cache key because the outcome depends on mutable entity state.
	CacheKeyFields []string

	// NoAdminBypass suppresses the implicit "admin always passes" shortcut.
	// Set it on policies whose denial must apply even to admins, such as
	// record-lock checks.
	NoAdminBypass bool

	// SkipCache disables result caching, for policies whose answer depends
	// on ephemeral entity data not reflected in the cache key.
	SkipCache bool
}

// ============================================================================
// DECLARATIVE RULES
// ============================================================================

// AttributeOp compares an entity field against an expected value.
type AttributeOp string

const (
	AttrEq  AttributeOp = "eq"
	AttrNeq AttributeOp = "neq"
)

// AttributeMatch is a single field-value comparison against the loaded entity.
type AttributeMatch struct {
	Field string      `json:"field"`
	Op    AttributeOp `json:"op"`
	Value any         `json:"value"`
}

// Linkage names a predicate establishing that the user is associated with
// the bound entity. The set is closed; see linkage.go for the semantics.
type Linkage string

const (
	LinkageOwnsWorker              Linkage = "owns_worker"
	LinkageEmployerAssociation     Linkage = "employer_association"
	LinkageProviderAssociation     Linkage = "provider_association"
	LinkageWorkerEmploymentHistory Linkage = "worker_employment_history"
	LinkageWorkerBenefitProvider   Linkage = "worker_benefit_provider"
	LinkageFileUploader            Linkage = "file_uploader"
)

// AccessRule is the recursive declarative condition form. A rule is either a
// composite (exactly one of Any or All set) or a leaf whose present fields
// must all hold. The top-level rules list of a Definition is itself OR'd.
type AccessRule struct {
	// Leaf conditions. Every field that is set must be satisfied.
	Authenticated  bool             `json:"authenticated,omitempty"`
	Permission     string           `json:"permission,omitempty"`
	AnyPermission  []string         `json:"any_permission,omitempty"`
	AllPermissions []string         `json:"all_permissions,omitempty"`
	Component      string           `json:"component,omitempty"`
	Linkage        Linkage          `json:"linkage,omitempty"`
	Policy         string           `json:"policy,omitempty"`
	Attributes     []AttributeMatch `json:"attributes,omitempty"`

	// Composites. Any is satisfied when at least one member is; All when
	// every member is.
	Any []AccessRule `json:"any,omitempty"`
	All []AccessRule `json:"all,omitempty"`
}

// ============================================================================
// AUDIT
// ============================================================================

// AuditEntry records one top-level policy decision.
type AuditEntry struct {
	ID         string     `json:"id"`
	Timestamp  time.Time  `json:"timestamp"`
	TraceID    string     `json:"trace_id,omitempty"`
	UserID     string     `json:"user_id"`
	PolicyID   string     `json:"policy_id"`
	EntityType EntityType `json:"entity_type,omitempty"`
	EntityID   string     `json:"entity_id,omitempty"`
	Granted    bool       `json:"granted"`
	Reason     string     `json:"reason"`
}

// AuditFilter selects audit entries for review.
type AuditFilter struct {
	UserID    string
	PolicyID  string
	EntityID  string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// AuditStore persists policy decisions.
type AuditStore interface {
	Record(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}
