package policy

import (
	"testing"
	"time"
)

const sampleYAML = `
admin_permission: superuser
cache_ttl_ms: 250
components:
  edls: true
  cardcheck: false
grants:
  - user_id: u1
    permission: staff
  - user_id: u2
    permission: workers.*
links:
  - user_id: u2
    contact_id: c-2
    worker_id: w-2
ristretto:
  num_counters: 10000
  max_cost: 1048576
  buffer_items: 64
`

func TestConfigLoadYAML(t *testing.T) {
	cfg, err := NewConfigLoader().LoadYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.AdminPermission != "superuser" {
		t.Fatalf("admin permission: %q", cfg.AdminPermission)
	}
	if cfg.CacheTTLMillis != 250 {
		t.Fatalf("cache ttl: %d", cfg.CacheTTLMillis)
	}
	if !cfg.Components["edls"] || cfg.Components["cardcheck"] {
		t.Fatalf("components: %v", cfg.Components)
	}
	if len(cfg.Grants) != 2 || cfg.Grants[1].Permission != "workers.*" {
		t.Fatalf("grants: %v", cfg.Grants)
	}
	if len(cfg.Links) != 1 || cfg.Links[0].WorkerID != "w-2" {
		t.Fatalf("links: %v", cfg.Links)
	}
	if cfg.Ristretto.NumCounters != 10000 {
		t.Fatalf("ristretto: %+v", cfg.Ristretto)
	}
}

func TestConfigJSONRoundtrip(t *testing.T) {
	cfg, err := NewConfigLoader().LoadYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	back, err := NewConfigLoader().LoadJSON(data)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if back.AdminPermission != cfg.AdminPermission || back.CacheTTLMillis != cfg.CacheTTLMillis {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", back, cfg)
	}
	if len(back.Grants) != len(cfg.Grants) {
		t.Fatalf("grants lost in roundtrip: %v", back.Grants)
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := &Config{AdminPermission: "superuser", CacheTTLMillis: 250}
	cat := NewCatalog()
	cat.MustRegister(&Definition{ID: "doc.view", Scope: ScopeRoute, Rules: []AccessRule{{Permission: "staff"}}})
	e, err := NewEngine(cat, newCountingPerms(), nil, nil, nil, nil, cfg.Options()...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if e.adminPermission != "superuser" {
		t.Fatalf("admin permission not applied: %q", e.adminPermission)
	}
	if e.cacheTTL != 250*time.Millisecond {
		t.Fatalf("cache ttl not applied: %v", e.cacheTTL)
	}
}

func TestConfigOptionsEmpty(t *testing.T) {
	cfg := &Config{}
	if opts := cfg.Options(); len(opts) != 0 {
		t.Fatalf("empty config should yield no options, got %d", len(opts))
	}
}
