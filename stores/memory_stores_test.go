package stores

import (
	"context"
	"testing"

	"github.com/unionhall/policy"
)

func TestMemoryPermissionStoreWildcard(t *testing.T) {
	s := NewMemoryPermissionStore()
	s.Grant("u1", "workers.*")
	ctx := context.Background()

	ok, err := s.HasPermission(ctx, "u1", "workers.edit")
	if err != nil {
		t.Fatalf("has permission: %v", err)
	}
	if !ok {
		t.Fatal("expected wildcard grant to cover workers.edit")
	}
	ok, _ = s.HasPermission(ctx, "u1", "employers.edit")
	if ok {
		t.Fatal("expected employers.edit to be denied")
	}

	s.Revoke("u1", "workers.*")
	ok, _ = s.HasPermission(ctx, "u1", "workers.edit")
	if ok {
		t.Fatal("expected denial after revoke")
	}
}

func TestMemoryEntityStoreLoader(t *testing.T) {
	s := NewMemoryEntityStore()
	s.Put(&policy.Worker{ID: "w-1", ContactID: "c-1"})
	load := s.Loader(policy.EntityWorker)

	e, err := load(context.Background(), "w-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if e == nil || e.EntityID() != "w-1" {
		t.Fatalf("expected worker w-1, got %v", e)
	}

	e, err = load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if e != nil {
		t.Fatal("expected nil for absent record")
	}

	s.Delete(policy.EntityWorker, "w-1")
	e, _ = load(context.Background(), "w-1")
	if e != nil {
		t.Fatal("expected nil after delete")
	}
}

func TestMemoryAuditStoreFilter(t *testing.T) {
	s := NewMemoryAuditStore()
	ctx := context.Background()
	_ = s.Record(ctx, &policy.AuditEntry{ID: "1", UserID: "u1", PolicyID: "workers.view", Granted: true, Reason: "ok"})
	_ = s.Record(ctx, &policy.AuditEntry{ID: "2", UserID: "u2", PolicyID: "workers.view", Granted: false, Reason: "no"})

	out, err := s.List(ctx, policy.AuditFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].ID != "1" {
		t.Fatalf("expected entry 1, got %d entries", len(out))
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 recorded entries, got %d", s.Len())
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &policy.Config{
		Components: map[string]bool{"edls": true, "cardcheck": false},
		Grants:     []policy.PermissionGrant{{UserID: "u1", Permission: "workers.*"}},
		Links:      []policy.UserLink{{UserID: "u1", ContactID: "c-1", WorkerID: "w-1"}},
	}
	perms, comps, dir := FromConfig(cfg)
	ctx := context.Background()

	ok, _ := perms.HasPermission(ctx, "u1", "workers.view")
	if !ok {
		t.Fatal("expected configured grant to hold")
	}
	on, _ := comps.Enabled(ctx, "edls")
	if !on {
		t.Fatal("expected edls enabled")
	}
	on, _ = comps.Enabled(ctx, "cardcheck")
	if on {
		t.Fatal("expected cardcheck disabled")
	}
	c, _ := dir.ContactByUser(ctx, "u1")
	if c == nil || c.ID != "c-1" {
		t.Fatalf("expected contact c-1, got %v", c)
	}
	w, _ := dir.WorkerByUser(ctx, "u1")
	if w == nil || w.ID != "w-1" {
		t.Fatalf("expected worker w-1, got %v", w)
	}
}
