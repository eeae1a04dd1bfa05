package policy

import (
	"context"
	"strings"
	"testing"
)

func TestEvaluateTabs(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(&Definition{
		ID:         "worker.view",
		Scope:      ScopeEntity,
		EntityType: EntityWorker,
		Rules:      []AccessRule{{Authenticated: true}},
	})
	set := NewTabSet()
	for _, d := range []TabDescriptor{
		{ID: "details", EntityType: EntityWorker, Policy: "worker.view"},
		{ID: "logs", EntityType: EntityWorker, Permission: "staff"},
		{ID: "delete", EntityType: EntityWorker, Permission: "workers.delete"},
		{ID: "dispatch", EntityType: EntityWorker, Component: "dispatch"},
		{ID: "notes", EntityType: EntityWorker},
	} {
		if err := set.Register(d); err != nil {
			t.Fatalf("register tab: %v", err)
		}
	}

	perms := newCountingPerms()
	perms.grant("u1", "staff")
	loaders, tl := newTestLoaders(EntityWorker)
	tl.put(&Worker{ID: "w-1"})
	e := mustEngine(t, cat, perms, stubComponents{"dispatch": false}, nil, nil, loaders)

	results, err := e.EvaluateTabs(context.Background(), set, &User{ID: "u1"}, "w-1",
		[]string{"details", "logs", "delete", "dispatch", "notes"})
	if err != nil {
		t.Fatalf("evaluate tabs: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}

	byID := map[string]TabResult{}
	for i, r := range results {
		byID[r.ID] = r
		// Results come back in request order.
		if want := []string{"details", "logs", "delete", "dispatch", "notes"}[i]; r.ID != want {
			t.Fatalf("result %d out of order: got %s want %s", i, r.ID, want)
		}
	}

	if !byID["details"].Granted {
		t.Errorf("details: expected grant, got %+v", byID["details"])
	}
	if !byID["logs"].Granted {
		t.Errorf("logs: expected staff grant, got %+v", byID["logs"])
	}
	if byID["delete"].Granted {
		t.Errorf("delete: expected denial without workers.delete")
	}
	if !strings.Contains(byID["delete"].Reason, "workers.delete") {
		t.Errorf("delete: reason should name the missing permission, got %q", byID["delete"].Reason)
	}
	if byID["dispatch"].Granted {
		t.Errorf("dispatch: expected denial for disabled component")
	}
	if !byID["notes"].Granted {
		t.Errorf("notes: tab with no requirements should be visible, got %+v", byID["notes"])
	}
}

func TestEvaluateTabsUnknownTab(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(routeDef("any"))
	set := NewTabSet()
	e := mustEngine(t, cat, newCountingPerms(), nil, nil, nil, nil)

	results, err := e.EvaluateTabs(context.Background(), set, &User{ID: "u1"}, "", []string{"ghost"})
	if err != nil {
		t.Fatalf("evaluate tabs: %v", err)
	}
	if len(results) != 1 || results[0].Granted {
		t.Fatalf("expected unknown tab denial, got %+v", results)
	}
}

func TestTabSetDuplicate(t *testing.T) {
	set := NewTabSet()
	if err := set.Register(TabDescriptor{ID: "details"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := set.Register(TabDescriptor{ID: "details"}); err == nil {
		t.Fatal("expected duplicate tab registration to fail")
	}
}
