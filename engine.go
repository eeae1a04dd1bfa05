package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/unionhall/policy/logger"
)

// EngineOption configures an Engine at construction time.
type EngineOption func(e *Engine) error

// WithAdminPermission overrides the universal admin permission key checked
// by the implicit bypass (default "admin").
func WithAdminPermission(key string) EngineOption {
	return func(e *Engine) error {
		if key == "" {
			return fmt.Errorf("admin permission key must not be empty")
		}
		e.adminPermission = key
		return nil
	}
}

// WithCacheTTL sets the lifetime of cached results. A zero or negative TTL
// disables the engine-level cache entirely; delegated evaluations inside one
// top-level call are still memoized per request.
func WithCacheTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) error {
		e.cacheTTL = ttl
		return nil
	}
}

// WithRistrettoCache replaces the default mutex-map result cache with a
// shared ristretto cache, for deployments where policy evaluation is hot
// enough that a bounded concurrent cache pays off.
func WithRistrettoCache(numCounters, maxCost, bufferItems int64) EngineOption {
	return func(e *Engine) error {
		rc, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: numCounters,
			MaxCost:     maxCost,
			BufferItems: bufferItems,
		})
		if err != nil {
			return fmt.Errorf("configure ristretto cache: %w", err)
		}
		e.shared = rc
		return nil
	}
}

// WithAuditStore installs an audit trail; decisions are recorded through an
// async channel so persistence stays off the evaluation path.
func WithAuditStore(s AuditStore) EngineOption {
	return func(e *Engine) error {
		e.auditStore = s
		return nil
	}
}

// Engine resolves a policy definition, builds a Context bound to the user
// and entity, runs the definition's logic, and returns a Result. Safe for
// concurrent use.
type Engine struct {
	catalog    *Catalog
	perms      PermissionStore
	components ComponentStore
	directory  Directory
	storage    Storage
	loaders    *LoaderRegistry

	adminPermission string

	cacheTTL time.Duration
	cacheMu  sync.RWMutex
	cache    map[resultKey]*cacheEntry
	shared   *ristretto.Cache

	logger      logger.Logger
	traceIDFunc logger.TraceIDFunc

	auditStore AuditStore
	auditCh    chan AuditEntry
	auditDone  chan struct{}
}

type resultKey struct {
	UserID      string
	PolicyID    string
	EntityID    string
	FieldValues string
}

type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// NewEngine wires the engine to its collaborators. Catalog, permission store
// and loader registry are required; directory and storage may be nil when no
// registered policy uses linkage predicates.
func NewEngine(
	catalog *Catalog,
	perms PermissionStore,
	components ComponentStore,
	directory Directory,
	storage Storage,
	loaders *LoaderRegistry,
	opts ...EngineOption,
) (*Engine, error) {
	if catalog == nil {
		return nil, fmt.Errorf("engine requires a policy catalog")
	}
	if perms == nil {
		return nil, fmt.Errorf("engine requires a permission store")
	}
	if loaders == nil {
		loaders = NewLoaderRegistry()
	}
	e := &Engine{
		catalog:         catalog,
		perms:           perms,
		components:      components,
		directory:       directory,
		storage:         storage,
		loaders:         loaders,
		adminPermission: "admin",
		cacheTTL:        time.Second,
		cache:           make(map[resultKey]*cacheEntry),
		logger:          logger.NewNullLogger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.auditStore != nil {
		e.auditCh = make(chan AuditEntry, 1024)
		e.auditDone = make(chan struct{})
		go e.auditWorker()
	}
	return e, nil
}

// Close stops the audit worker after draining queued entries.
func (e *Engine) Close() {
	if e.auditCh != nil {
		close(e.auditCh)
		<-e.auditDone
	}
}

// Evaluate answers whether the user may act under the named policy against
// the entity with the given ID (empty for route-scoped policies). Denials
// come back as a Result; only configuration faults and store errors return
// a non-nil error.
func (e *Engine) Evaluate(ctx context.Context, policyID string, user *User, entityID string) (*Result, error) {
	st := newEvalState(e, false)
	res, err := e.evaluate(ctx, st, policyID, user, entityID, nil)
	e.finish(ctx, st, policyID, user, entityID, res, err)
	return res, err
}

// EvaluateData evaluates against an unsaved record, for create/precheck
// flows where no persisted entity exists yet. Results are never cached.
func (e *Engine) EvaluateData(ctx context.Context, policyID string, user *User, entityData Entity) (*Result, error) {
	st := newEvalState(e, false)
	res, err := e.evaluate(ctx, st, policyID, user, "", entityData)
	e.finish(ctx, st, policyID, user, "", res, err)
	return res, err
}

// Explain is Evaluate with a step-by-step trace of the decision attached.
func (e *Engine) Explain(ctx context.Context, policyID string, user *User, entityID string) (*Result, []string, error) {
	st := newEvalState(e, true)
	res, err := e.evaluate(ctx, st, policyID, user, entityID, nil)
	e.finish(ctx, st, policyID, user, entityID, res, err)
	return res, st.trace, err
}

// Describe returns the human-readable requirement list for a policy: the
// DescribeRequirements output for computed policies, or the declarative
// rules themselves.
func (e *Engine) Describe(policyID string) ([]AccessRule, error) {
	def, ok := e.catalog.Get(policyID)
	if !ok {
		return nil, &PolicyNotFoundError{ID: policyID}
	}
	if def.DescribeRequirements != nil {
		return def.DescribeRequirements(), nil
	}
	out := make([]AccessRule, len(def.Rules))
	copy(out, def.Rules)
	return out, nil
}

// evalState is threaded through one top-level evaluation, including all
// delegated sub-evaluations. The visited list doubles as the cycle check and
// the diagnostic chain.
type evalState struct {
	engine  *Engine
	visited []string
	// requestCache memoizes delegated results within this evaluation even
	// when the engine-level cache is disabled or skipped.
	requestCache map[resultKey]*Result
	// permMemo avoids duplicate permission-store round trips; the user is
	// fixed for the whole evaluation, so keys are permission names.
	permMemo map[string]bool
	// contact/worker resolution is memoized the same way.
	contact       *Contact
	contactLoaded bool
	worker        *Worker
	workerLoaded  bool
	trace         []string
}

func newEvalState(e *Engine, traced bool) *evalState {
	st := &evalState{
		engine:       e,
		requestCache: make(map[resultKey]*Result),
		permMemo:     make(map[string]bool),
	}
	if traced {
		st.trace = make([]string, 0, 8)
	}
	return st
}

func (st *evalState) tracef(format string, args ...any) {
	if st.trace != nil {
		st.trace = append(st.trace, fmt.Sprintf(format, args...))
	}
}

func (st *evalState) hasPermission(ctx context.Context, user *User, permission string) (bool, error) {
	if user == nil || user.ID == "" {
		return false, nil
	}
	if ok, hit := st.permMemo[permission]; hit {
		return ok, nil
	}
	ok, err := st.engine.perms.HasPermission(ctx, user.ID, permission)
	if err != nil {
		return false, err
	}
	st.permMemo[permission] = ok
	return ok, nil
}

// evaluate runs the canonical decision sequence. The ordering is a hard
// invariant: lookup, component gate, admin bypass, cache, policy logic.
// Status gates inside policy logic therefore always run after the component
// gate and never after caching of a stale shape.
func (e *Engine) evaluate(ctx context.Context, st *evalState, policyID string, user *User, entityID string, entityData Entity) (*Result, error) {
	def, ok := e.catalog.Get(policyID)
	if !ok {
		return nil, &PolicyNotFoundError{ID: policyID}
	}

	for _, seen := range st.visited {
		if seen == policyID {
			chain := append(append([]string{}, st.visited...), policyID)
			return nil, &CyclicDelegationError{Chain: chain}
		}
	}
	st.visited = append(st.visited, policyID)
	defer func() { st.visited = st.visited[:len(st.visited)-1] }()

	// Component gate precedes everything, including admin bypass: a
	// disabled feature is inaccessible unconditionally.
	if def.RequiredComponent != "" {
		enabled, err := e.componentEnabled(ctx, def.RequiredComponent)
		if err != nil {
			return nil, err
		}
		if !enabled {
			st.tracef("%s: component %s disabled", policyID, def.RequiredComponent)
			return Deny(fmt.Sprintf("%s is not enabled", def.RequiredComponent)), nil
		}
	}

	if !def.NoAdminBypass {
		isAdmin, err := st.hasPermission(ctx, user, e.adminPermission)
		if err != nil {
			return nil, err
		}
		if isAdmin {
			st.tracef("%s: admin bypass", policyID)
			return Grant("Admin access"), nil
		}
	}

	cacheable := !def.SkipCache && entityData == nil && user != nil
	var key resultKey
	if cacheable {
		fieldValues, err := e.cacheKeyFieldValues(ctx, def, entityID)
		if err != nil {
			return nil, err
		}
		key = resultKey{UserID: user.ID, PolicyID: policyID, EntityID: entityID, FieldValues: fieldValues}
		if res, ok := st.requestCache[key]; ok {
			st.tracef("%s: request cache hit", policyID)
			return res, nil
		}
		if res, ok := e.cacheGet(key); ok {
			st.tracef("%s: result cache hit", policyID)
			st.requestCache[key] = res
			return res, nil
		}
	}

	pc := &Context{
		engine:     e,
		state:      st,
		User:       user,
		EntityID:   entityID,
		EntityData: entityData,
		policyID:   policyID,
		entityType: def.EntityType,
	}

	var res *Result
	var err error
	if def.Evaluate != nil {
		res, err = def.Evaluate(ctx, pc)
	} else {
		res, err = e.evalRules(ctx, pc, def.Rules)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("policy %s returned no result", policyID)
	}
	if res.Reason == "" {
		// Non-empty reasons are a contract; an empty one is a policy defect.
		e.logger.Error("policy returned empty reason", "policy", policyID)
		if res.Granted {
			res.Reason = "Access granted"
		} else {
			res.Reason = "Access denied"
		}
	}
	st.tracef("%s: granted=%v reason=%s", policyID, res.Granted, res.Reason)

	if cacheable {
		st.requestCache[key] = res
		e.cacheSet(key, res)
	}
	return res, nil
}

func (e *Engine) componentEnabled(ctx context.Context, componentID string) (bool, error) {
	if e.components == nil {
		// No component store configured means no component is switched off.
		return true, nil
	}
	return e.components.Enabled(ctx, componentID)
}

// cacheKeyFieldValues resolves the declared cache-key fields from the
// persisted entity so that state-dependent results invalidate when the
// state changes.
func (e *Engine) cacheKeyFieldValues(ctx context.Context, def *Definition, entityID string) (string, error) {
	if len(def.CacheKeyFields) == 0 || entityID == "" {
		return "", nil
	}
	ent, err := e.loaders.Load(ctx, def.EntityType, entityID)
	if err != nil {
		return "", err
	}
	if ent == nil {
		return "\x00absent", nil
	}
	vals := make([]string, 0, len(def.CacheKeyFields))
	for _, f := range def.CacheKeyFields {
		v, _ := ent.Attr(f)
		vals = append(vals, fmt.Sprint(v))
	}
	return strings.Join(vals, "\x1f"), nil
}

func (e *Engine) cacheGet(key resultKey) (*Result, bool) {
	if e.cacheTTL <= 0 {
		return nil, false
	}
	if e.shared != nil {
		v, ok := e.shared.Get(sharedKey(key))
		if !ok {
			return nil, false
		}
		res, ok := v.(Result)
		if !ok {
			return nil, false
		}
		cp := res
		return &cp, true
	}
	e.cacheMu.RLock()
	entry, ok := e.cache[key]
	e.cacheMu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		e.cacheMu.Lock()
		delete(e.cache, key)
		e.cacheMu.Unlock()
		return nil, false
	}
	cp := entry.result
	return &cp, true
}

func (e *Engine) cacheSet(key resultKey, res *Result) {
	if e.cacheTTL <= 0 {
		return
	}
	if e.shared != nil {
		e.shared.SetWithTTL(sharedKey(key), *res, 1, e.cacheTTL)
		return
	}
	e.cacheMu.Lock()
	e.cache[key] = &cacheEntry{result: *res, expiresAt: time.Now().Add(e.cacheTTL)}
	e.cacheMu.Unlock()
}

// InvalidateCache drops every cached result. Callers that mutate entities
// with declared cache-key fields outside this process can force freshness.
func (e *Engine) InvalidateCache() {
	if e.shared != nil {
		e.shared.Clear()
		return
	}
	e.cacheMu.Lock()
	e.cache = make(map[resultKey]*cacheEntry)
	e.cacheMu.Unlock()
}

func sharedKey(key resultKey) string {
	return key.UserID + "\x1f" + key.PolicyID + "\x1f" + key.EntityID + "\x1f" + key.FieldValues
}

// finish logs and audits the top-level decision. Delegated sub-evaluations
// are deliberately not audited; the top-level reason carries the outcome.
func (e *Engine) finish(ctx context.Context, st *evalState, policyID string, user *User, entityID string, res *Result, err error) {
	if err != nil {
		e.logger.Error("policy evaluation failed", "policy", policyID, "error", err.Error())
		return
	}
	userID := ""
	if user != nil {
		userID = user.ID
	}
	traceID := ""
	if e.traceIDFunc != nil {
		traceID = e.traceIDFunc()
	}
	e.logger.Info("policy decision",
		"policy", policyID,
		"user", userID,
		"entity", entityID,
		"granted", res.Granted,
		"reason", res.Reason,
		"trace_id", traceID,
	)
	if e.auditCh == nil {
		return
	}
	entry := AuditEntry{
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Timestamp: time.Now(),
		TraceID:   traceID,
		UserID:    userID,
		PolicyID:  policyID,
		EntityID:  entityID,
		Granted:   res.Granted,
		Reason:    res.Reason,
	}
	if def, ok := e.catalog.Get(policyID); ok {
		entry.EntityType = def.EntityType
	}
	select {
	case e.auditCh <- entry:
	default:
		// Drop rather than block the evaluation path.
	}
}

func (e *Engine) auditWorker() {
	defer close(e.auditDone)
	bg := context.Background()
	for entry := range e.auditCh {
		if err := e.auditStore.Record(bg, &entry); err != nil {
			e.logger.Error("audit record failed", "policy", entry.PolicyID, "error", err.Error())
		}
	}
}
