package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// countingPerms is a call-counting permission store stub; tests use the
// per-key counts to verify caching behavior.
type countingPerms struct {
	mu     sync.Mutex
	grants map[string]map[string]bool
	calls  map[string]int
	err    error
}

func newCountingPerms() *countingPerms {
	return &countingPerms{grants: make(map[string]map[string]bool), calls: make(map[string]int)}
}

func (s *countingPerms) grant(userID string, perms ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grants[userID] == nil {
		s.grants[userID] = make(map[string]bool)
	}
	for _, p := range perms {
		s.grants[userID][p] = true
	}
}

func (s *countingPerms) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	s.calls[permission]++
	return s.grants[userID][permission], nil
}

func (s *countingPerms) count(permission string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[permission]
}

type stubComponents map[string]bool

func (s stubComponents) Enabled(ctx context.Context, componentID string) (bool, error) {
	return s[componentID], nil
}

type stubDirectory struct {
	contacts map[string]*Contact
	workers  map[string]*Worker
}

func (d *stubDirectory) ContactByUser(ctx context.Context, userID string) (*Contact, error) {
	return d.contacts[userID], nil
}

func (d *stubDirectory) WorkerByUser(ctx context.Context, userID string) (*Worker, error) {
	return d.workers[userID], nil
}

type stubStorage struct {
	employerContacts map[[2]string]bool
	providerContacts map[[2]string]bool
	workerHours      map[[2]string]bool
	benefits         map[string][]string
}

func newStubStorage() *stubStorage {
	return &stubStorage{
		employerContacts: make(map[[2]string]bool),
		providerContacts: make(map[[2]string]bool),
		workerHours:      make(map[[2]string]bool),
		benefits:         make(map[string][]string),
	}
}

func (s *stubStorage) EmployerHasContact(ctx context.Context, employerID, contactID string) (bool, error) {
	return s.employerContacts[[2]string{employerID, contactID}], nil
}

func (s *stubStorage) ProviderHasContact(ctx context.Context, providerID, contactID string) (bool, error) {
	return s.providerContacts[[2]string{providerID, contactID}], nil
}

func (s *stubStorage) WorkerHasHoursAt(ctx context.Context, workerID, employerID string) (bool, error) {
	return s.workerHours[[2]string{workerID, employerID}], nil
}

func (s *stubStorage) BenefitProvidersFor(ctx context.Context, workerID string) ([]string, error) {
	return s.benefits[workerID], nil
}

// testLoaders registers a counting loader per entity type over a shared
// mutable record map keyed by (type, id).
type testLoaders struct {
	mu      sync.Mutex
	records map[EntityType]map[string]Entity
	loads   int
}

func newTestLoaders(types ...EntityType) (*LoaderRegistry, *testLoaders) {
	tl := &testLoaders{records: make(map[EntityType]map[string]Entity)}
	reg := NewLoaderRegistry()
	for _, t := range types {
		t := t
		_ = reg.Register(t, func(ctx context.Context, id string) (Entity, error) {
			tl.mu.Lock()
			defer tl.mu.Unlock()
			tl.loads++
			return tl.records[t][id], nil
		})
	}
	return reg, tl
}

func (tl *testLoaders) put(e Entity) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.records[e.Type()] == nil {
		tl.records[e.Type()] = make(map[string]Entity)
	}
	tl.records[e.Type()][e.EntityID()] = e
}

func (tl *testLoaders) loadCount() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.loads
}

func mustEngine(t *testing.T, cat *Catalog, perms PermissionStore, components ComponentStore, directory Directory, storage Storage, loaders *LoaderRegistry, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := NewEngine(cat, perms, components, directory, storage, loaders, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestAdminBypass(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{
		ID:    "doc.view",
		Scope: ScopeRoute,
		Rules: []AccessRule{{Permission: "staff"}},
	})
	cat.MustRegister(&Definition{
		ID:            "doc.lock",
		Scope:         ScopeRoute,
		NoAdminBypass: true,
		Rules:         []AccessRule{{Permission: "staff"}},
	})
	perms := newCountingPerms()
	perms.grant("u1", "admin")
	e := mustEngine(t, cat, perms, nil, nil, nil, nil)

	res, err := e.Evaluate(context.Background(), "doc.view", &User{ID: "u1"}, "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.Granted || res.Reason != "Admin access" {
		t.Fatalf("expected admin bypass, got %+v", res)
	}

	res, err = e.Evaluate(context.Background(), "doc.lock", &User{ID: "u1"}, "")
	if err != nil {
		t.Fatalf("evaluate no-bypass: %v", err)
	}
	if res.Granted {
		t.Fatalf("expected denial when bypass suppressed, got %+v", res)
	}
}

func TestComponentGatePrecedesAdmin(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{
		ID:                "widget.view",
		Scope:             ScopeRoute,
		RequiredComponent: "widgets",
		Rules:             []AccessRule{{Authenticated: true}},
	})
	perms := newCountingPerms()
	perms.grant("u1", "admin")
	e := mustEngine(t, cat, perms, stubComponents{"widgets": false}, nil, nil, nil)

	res, err := e.Evaluate(context.Background(), "widget.view", &User{ID: "u1"}, "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Granted {
		t.Fatal("expected disabled component to deny an admin")
	}
	if res.Reason != "widgets is not enabled" {
		t.Fatalf("unexpected reason: %q", res.Reason)
	}
	if perms.count("admin") != 0 {
		t.Fatal("admin bypass must not be consulted before the component gate")
	}
}

func TestUnknownPolicy(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{ID: "known", Scope: ScopeRoute, Rules: []AccessRule{{Authenticated: true}}})
	e := mustEngine(t, cat, newCountingPerms(), nil, nil, nil, nil)

	res, err := e.Evaluate(context.Background(), "missing.policy", &User{ID: "u1"}, "")
	if res != nil {
		t.Fatalf("expected no result for unknown policy, got %+v", res)
	}
	var notFound *PolicyNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected PolicyNotFoundError, got %v", err)
	}
	if notFound.ID != "missing.policy" {
		t.Fatalf("error names wrong policy: %s", notFound.ID)
	}
}

func TestReasonNeverEmpty(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{
		ID:    "bare.grant",
		Scope: ScopeRoute,
		Evaluate: func(ctx context.Context, pc *Context) (*Result, error) {
			return &Result{Granted: true}, nil
		},
	})
	cat.MustRegister(&Definition{
		ID:    "bare.deny",
		Scope: ScopeRoute,
		Evaluate: func(ctx context.Context, pc *Context) (*Result, error) {
			return &Result{Granted: false}, nil
		},
	})
	e := mustEngine(t, cat, newCountingPerms(), nil, nil, nil, nil)

	for _, id := range []string{"bare.grant", "bare.deny"} {
		res, err := e.Evaluate(context.Background(), id, &User{ID: "u1"}, "")
		if err != nil {
			t.Fatalf("%s: %v", id, err)
		}
		if res.Reason == "" {
			t.Fatalf("%s: reason must never be empty", id)
		}
	}
}

func TestCacheIdempotence(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{
		ID:    "doc.view",
		Scope: ScopeRoute,
		Rules: []AccessRule{{Permission: "staff"}},
	})
	perms := newCountingPerms()
	perms.grant("u1", "staff")
	e := mustEngine(t, cat, perms, nil, nil, nil, nil)
	ctx := context.Background()

	first, err := e.Evaluate(ctx, "doc.view", &User{ID: "u1"}, "")
	if err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	if perms.count("staff") != 1 {
		t.Fatalf("expected one staff lookup, got %d", perms.count("staff"))
	}

	second, err := e.Evaluate(ctx, "doc.view", &User{ID: "u1"}, "")
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if perms.count("staff") != 1 {
		t.Fatalf("cache hit must not re-check permissions, got %d lookups", perms.count("staff"))
	}
	if first.Granted != second.Granted || first.Reason != second.Reason {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
}

func TestCacheDisabledByTTL(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{
		ID:    "doc.view",
		Scope: ScopeRoute,
		Rules: []AccessRule{{Permission: "staff"}},
	})
	perms := newCountingPerms()
	perms.grant("u1", "staff")
	e := mustEngine(t, cat, perms, nil, nil, nil, nil, WithCacheTTL(0))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := e.Evaluate(ctx, "doc.view", &User{ID: "u1"}, ""); err != nil {
			t.Fatalf("evaluate %d: %v", i, err)
		}
	}
	if perms.count("staff") != 2 {
		t.Fatalf("expected uncached evaluations, got %d lookups", perms.count("staff"))
	}
}

func TestCacheKeyFieldsTrackEntityState(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{
		ID:             "sheet.edit",
		Scope:          ScopeEntity,
		EntityType:     EntityEDLSSheet,
		CacheKeyFields: []string{"status"},
		Rules: []AccessRule{
			{Permission: "staff", Attributes: []AttributeMatch{{Field: "status", Value: string(SheetDraft)}}},
		},
	})
	loaders, tl := newTestLoaders(EntityEDLSSheet)
	tl.put(&Sheet{ID: "s-1", Status: SheetDraft})
	perms := newCountingPerms()
	perms.grant("u1", "staff")
	e := mustEngine(t, cat, perms, nil, nil, nil, loaders)
	ctx := context.Background()

	res, err := e.Evaluate(ctx, "sheet.edit", &User{ID: "u1"}, "s-1")
	if err != nil {
		t.Fatalf("evaluate draft: %v", err)
	}
	if !res.Granted {
		t.Fatalf("expected grant on draft sheet, got %+v", res)
	}

	// Status change yields a different cache key, so the stale grant must
	// not be served.
	tl.put(&Sheet{ID: "s-1", Status: SheetLock})
	res, err = e.Evaluate(ctx, "sheet.edit", &User{ID: "u1"}, "s-1")
	if err != nil {
		t.Fatalf("evaluate locked: %v", err)
	}
	if res.Granted {
		t.Fatalf("expected denial after status change, got %+v", res)
	}
}

func TestSkipCacheAndEntityData(t *testing.T) {
	evals := 0
	cat := NewCatalog()
	cat.MustRegister(&Definition{
		ID:         "sheet.transition",
		Scope:      ScopeEntity,
		EntityType: EntityEDLSSheet,
		SkipCache:  true,
		Evaluate: func(ctx context.Context, pc *Context) (*Result, error) {
			evals++
			return Grant("ok"), nil
		},
	})
	e := mustEngine(t, cat, newCountingPerms(), nil, nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := e.EvaluateData(ctx, "sheet.transition", &User{ID: "u1"}, &SheetTransition{SheetID: "s-1", To: SheetLock}); err != nil {
			t.Fatalf("evaluate data %d: %v", i, err)
		}
	}
	if evals != 2 {
		t.Fatalf("skip-cache policy must evaluate every call, got %d", evals)
	}
}

func TestCycleDetection(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{ID: "a", Scope: ScopeRoute, Rules: []AccessRule{{Policy: "b"}}})
	cat.MustRegister(&Definition{ID: "b", Scope: ScopeRoute, Rules: []AccessRule{{Policy: "a"}}})
	e := mustEngine(t, cat, newCountingPerms(), nil, nil, nil, nil)

	_, err := e.Evaluate(context.Background(), "a", &User{ID: "u1"}, "")
	var cyc *CyclicDelegationError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CyclicDelegationError, got %v", err)
	}
	if got := strings.Join(cyc.Chain, " -> "); got != "a -> b -> a" {
		t.Fatalf("unexpected cycle chain: %s", got)
	}
}

func TestStoreErrorPropagates(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{ID: "doc.view", Scope: ScopeRoute, Rules: []AccessRule{{Permission: "staff"}}})
	perms := newCountingPerms()
	perms.err = fmt.Errorf("store down")
	e := mustEngine(t, cat, perms, nil, nil, nil, nil)

	res, err := e.Evaluate(context.Background(), "doc.view", &User{ID: "u1"}, "")
	if err == nil {
		t.Fatalf("expected store error to propagate, got %+v", res)
	}
}

func TestDelegationSharesRequestState(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{ID: "inner", Scope: ScopeRoute, Rules: []AccessRule{{Permission: "staff"}}})
	cat.MustRegister(&Definition{
		ID:    "outer",
		Scope: ScopeRoute,
		Evaluate: func(ctx context.Context, pc *Context) (*Result, error) {
			// Both checks resolve through the same evaluation state; the
			// permission store must only be consulted once.
			for i := 0; i < 2; i++ {
				ok, err := pc.CheckPolicy(ctx, "inner", "")
				if err != nil {
					return nil, err
				}
				if !ok {
					return Deny("inner denied"), nil
				}
			}
			return Grant("inner granted twice"), nil
		},
	})
	perms := newCountingPerms()
	perms.grant("u1", "staff")
	e := mustEngine(t, cat, perms, nil, nil, nil, nil, WithCacheTTL(0))

	res, err := e.Evaluate(context.Background(), "outer", &User{ID: "u1"}, "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.Granted {
		t.Fatalf("expected grant, got %+v", res)
	}
	if perms.count("staff") != 1 {
		t.Fatalf("request-scoped memoization broken: %d staff lookups", perms.count("staff"))
	}
}

func TestExplainTrace(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{ID: "doc.view", Scope: ScopeRoute, Rules: []AccessRule{{Permission: "staff"}}})
	perms := newCountingPerms()
	perms.grant("u1", "staff")
	e := mustEngine(t, cat, perms, nil, nil, nil, nil)

	res, trace, err := e.Explain(context.Background(), "doc.view", &User{ID: "u1"}, "")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if !res.Granted {
		t.Fatalf("expected grant, got %+v", res)
	}
	if len(trace) == 0 {
		t.Fatal("expected a non-empty trace")
	}
}

func TestDescribe(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{
		ID:    "declarative",
		Scope: ScopeRoute,
		Rules: []AccessRule{{Permission: "staff"}},
	})
	cat.MustRegister(&Definition{
		ID:    "computed",
		Scope: ScopeRoute,
		Evaluate: func(ctx context.Context, pc *Context) (*Result, error) {
			return Grant("ok"), nil
		},
		DescribeRequirements: func() []AccessRule {
			return []AccessRule{{Authenticated: true}}
		},
	})
	e := mustEngine(t, cat, newCountingPerms(), nil, nil, nil, nil)

	rules, err := e.Describe("declarative")
	if err != nil || len(rules) != 1 || rules[0].Permission != "staff" {
		t.Fatalf("describe declarative: rules=%v err=%v", rules, err)
	}
	rules, err = e.Describe("computed")
	if err != nil || len(rules) != 1 || !rules[0].Authenticated {
		t.Fatalf("describe computed: rules=%v err=%v", rules, err)
	}
	if _, err := e.Describe("nope"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

// recordingAudit collects audit entries synchronously for assertions.
type recordingAudit struct {
	mu      sync.Mutex
	entries []*AuditEntry
}

func (r *recordingAudit) Record(ctx context.Context, entry *AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dup := *entry
	r.entries = append(r.entries, &dup)
	return nil
}

func (r *recordingAudit) List(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out, nil
}

func TestAuditTrail(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{ID: "doc.view", Scope: ScopeRoute, Rules: []AccessRule{{Permission: "staff"}}})
	perms := newCountingPerms()
	audit := &recordingAudit{}
	e := mustEngine(t, cat, perms, nil, nil, nil, nil, WithAuditStore(audit))

	if _, err := e.Evaluate(context.Background(), "doc.view", &User{ID: "u1"}, ""); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	// Close drains the async channel before we assert.
	e.Close()

	entries, _ := audit.List(context.Background(), AuditFilter{})
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	got := entries[0]
	if got.UserID != "u1" || got.PolicyID != "doc.view" || got.Granted || got.Reason == "" {
		t.Fatalf("unexpected audit entry: %+v", got)
	}
}

func TestRistrettoCacheOption(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{ID: "doc.view", Scope: ScopeRoute, Rules: []AccessRule{{Permission: "staff"}}})
	perms := newCountingPerms()
	perms.grant("u1", "staff")
	e := mustEngine(t, cat, perms, nil, nil, nil, nil, WithRistrettoCache(1e4, 1<<20, 64))

	res, err := e.Evaluate(context.Background(), "doc.view", &User{ID: "u1"}, "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.Granted {
		t.Fatalf("expected grant, got %+v", res)
	}
	e.InvalidateCache()
}

func TestCacheTTLZeroDisablesSharedCache(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{ID: "doc.view", Scope: ScopeRoute, Rules: []AccessRule{{Permission: "staff"}}})
	perms := newCountingPerms()
	perms.grant("u1", "staff")
	e := mustEngine(t, cat, perms, nil, nil, nil, nil,
		WithRistrettoCache(1e4, 1<<20, 64), WithCacheTTL(0))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := e.Evaluate(ctx, "doc.view", &User{ID: "u1"}, ""); err != nil {
			t.Fatalf("evaluate %d: %v", i, err)
		}
	}
	if perms.count("staff") != 2 {
		t.Fatalf("expected uncached evaluations, got %d lookups", perms.count("staff"))
	}
}
