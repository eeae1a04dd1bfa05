package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oarkflow/squealx"
	"github.com/unionhall/policy"
	"github.com/unionhall/policy/catalog"
	"github.com/unionhall/policy/stores"
	_ "modernc.org/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "explain":
		handleExplain()
	case "describe":
		handleDescribe()
	case "audit":
		handleAudit()
	case "convert":
		handleConvert()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("policyctl - Inspection tool for the access policy catalog")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  policyctl validate <config>                      - Lint catalog and configuration")
	fmt.Println("  policyctl stats <config>                         - Show catalog statistics")
	fmt.Println("  policyctl explain <config> <policy> <user> [id]  - Dry-run a policy with trace")
	fmt.Println("  policyctl describe <policy>                      - Show a policy's requirements")
	fmt.Println("  policyctl audit <db> [user]                      - List recorded decisions from sqlite")
	fmt.Println("  policyctl convert <input> <output>               - Convert config between formats")
	fmt.Println()
	fmt.Println("Supported config formats: .yaml, .yml, .json")
}

func loadConfig(filename string) *policy.Config {
	cfg, err := policy.NewConfigLoader().LoadFile(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: policyctl validate <config>")
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	cat := catalog.NewCatalog()

	failed := false
	// Every delegation target named in declarative rules must resolve.
	refs := map[string][]string{}
	for _, def := range cat.All() {
		for _, target := range ruleTargets(def.Rules) {
			refs[def.ID] = append(refs[def.ID], target)
			if _, ok := cat.Get(target); !ok {
				fmt.Printf("Policy %s delegates to unknown policy %s\n", def.ID, target)
				failed = true
			}
		}
	}
	// Static cycle scan over the declarative delegation graph.
	if cycle := findCycle(refs); cycle != nil {
		fmt.Printf("Delegation cycle: %s\n", strings.Join(cycle, " -> "))
		failed = true
	}
	// Grants must reference known permission keys only loosely; components in
	// the config should match a gate somewhere in the catalog.
	known := map[string]bool{}
	for _, def := range cat.All() {
		if def.RequiredComponent != "" {
			known[def.RequiredComponent] = true
		}
	}
	for comp := range cfg.Components {
		if !known[comp] {
			fmt.Printf("Config enables component %s which no policy gates on\n", comp)
		}
	}
	if failed {
		os.Exit(1)
	}
	fmt.Println("Catalog and configuration are valid")
	fmt.Printf("  Policies:   %d\n", len(cat.All()))
	fmt.Printf("  Components: %d\n", len(known))
	fmt.Printf("  Grants:     %d\n", len(cfg.Grants))
	fmt.Printf("  Links:      %d\n", len(cfg.Links))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: policyctl stats <config>")
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	cat := catalog.NewCatalog()

	defs := cat.All()
	declarative, computed, gated, noBypass := 0, 0, 0, 0
	byType := map[policy.EntityType]int{}
	for _, def := range defs {
		if def.Evaluate != nil {
			computed++
		} else {
			declarative++
		}
		if def.RequiredComponent != "" {
			gated++
		}
		if def.NoAdminBypass {
			noBypass++
		}
		if def.EntityType != "" {
			byType[def.EntityType]++
		}
	}

	fmt.Println("Catalog Statistics")
	fmt.Println("==================")
	fmt.Printf("Policies:        %d\n", len(defs))
	fmt.Printf("  Route scoped:  %d\n", len(cat.ByScope(policy.ScopeRoute)))
	fmt.Printf("  Entity scoped: %d\n", len(cat.ByScope(policy.ScopeEntity)))
	fmt.Printf("  Declarative:   %d\n", declarative)
	fmt.Printf("  Computed:      %d\n", computed)
	fmt.Printf("  Component gated: %d\n", gated)
	fmt.Printf("  No admin bypass: %d\n", noBypass)
	fmt.Println()

	fmt.Println("By entity type:")
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-20s %d\n", t, byType[policy.EntityType(t)])
	}
	fmt.Println()

	fmt.Println("Configuration:")
	fmt.Printf("  Cache TTL:  %dms\n", cfg.CacheTTLMillis)
	fmt.Printf("  Components: %d\n", len(cfg.Components))
	fmt.Printf("  Grants:     %d\n", len(cfg.Grants))
}

func handleExplain() {
	if len(os.Args) < 5 {
		fmt.Println("Usage: policyctl explain <config> <policy> <user> [entity-id]")
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	policyID, userID := os.Args[3], os.Args[4]
	entityID := ""
	if len(os.Args) > 5 {
		entityID = os.Args[5]
	}

	perms, comps, dir := stores.FromConfig(cfg)
	engine, err := policy.NewEngine(
		catalog.NewCatalog(), perms, comps, dir, nil, dryRunLoaders(),
		cfg.Options()...,
	)
	if err != nil {
		fmt.Printf("Error building engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	res, trace, err := engine.Explain(context.Background(), policyID, &policy.User{ID: userID}, entityID)
	if err != nil {
		fmt.Printf("Evaluation error: %v\n", err)
		os.Exit(1)
	}
	verdict := "DENIED"
	if res.Granted {
		verdict = "GRANTED"
	}
	fmt.Printf("%s: %s\n", verdict, res.Reason)
	fmt.Println()
	fmt.Println("Trace:")
	for _, line := range trace {
		fmt.Printf("  %s\n", line)
	}
}

func handleDescribe() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: policyctl describe <policy>")
		os.Exit(1)
	}
	cat := catalog.NewCatalog()
	def, ok := cat.Get(os.Args[2])
	if !ok {
		fmt.Printf("No such policy: %s\n", os.Args[2])
		os.Exit(1)
	}
	fmt.Printf("Policy %s (scope %s", def.ID, def.Scope)
	if def.EntityType != "" {
		fmt.Printf(", entity %s", def.EntityType)
	}
	if def.RequiredComponent != "" {
		fmt.Printf(", requires component %s", def.RequiredComponent)
	}
	fmt.Println(")")
	rules := def.Rules
	if def.DescribeRequirements != nil {
		rules = def.DescribeRequirements()
	}
	if len(rules) == 0 {
		fmt.Println("  (computed policy with no published requirements)")
		return
	}
	fmt.Println("Grants when any of:")
	for _, r := range rules {
		fmt.Printf("  - %s\n", policy.DescribeRule(r))
	}
}

func handleAudit() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: policyctl audit <db> [user]")
		os.Exit(1)
	}
	sqlDB, err := sql.Open("sqlite", os.Args[2])
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer sqlDB.Close()
	db := squealx.NewDb(sqlDB, "sqlite", "policyctl")
	if err := stores.Migrate(db); err != nil {
		fmt.Printf("Error running migrations: %v\n", err)
		os.Exit(1)
	}
	store, _ := stores.NewSQLAuditStore(db)

	filter := policy.AuditFilter{Limit: 50}
	if len(os.Args) > 3 {
		filter.UserID = os.Args[3]
	}
	entries, err := store.List(context.Background(), filter)
	if err != nil {
		fmt.Printf("Error reading audit log: %v\n", err)
		os.Exit(1)
	}
	for _, e := range entries {
		verdict := "DENY "
		if e.Granted {
			verdict = "GRANT"
		}
		fmt.Printf("%s %s user=%s policy=%s entity=%s reason=%q\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), verdict, e.UserID, e.PolicyID, e.EntityID, e.Reason)
	}
	fmt.Printf("%d entries\n", len(entries))
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: policyctl convert <input> <output>")
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(os.Args[3])) {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		fmt.Printf("Unsupported output format: %s\n", os.Args[3])
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error encoding config: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(os.Args[3], data, 0644); err != nil {
		fmt.Printf("Error writing output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %s -> %s\n", os.Args[2], os.Args[3])
}

// dryRunLoaders registers an absent-record loader for every entity type so
// entity policies can be traced without a backing store.
func dryRunLoaders() *policy.LoaderRegistry {
	reg := policy.NewLoaderRegistry()
	for _, t := range []policy.EntityType{
		policy.EntityWorker, policy.EntityEmployer, policy.EntityProvider,
		policy.EntityFile, policy.EntityContact, policy.EntityCardcheck,
		policy.EntityEsig, policy.EntityDNC, policy.EntityEDLSSheet,
	} {
		_ = reg.Register(t, func(ctx context.Context, id string) (policy.Entity, error) {
			return nil, nil
		})
	}
	return reg
}

// ruleTargets collects delegated policy IDs referenced by a rule tree.
func ruleTargets(rules []policy.AccessRule) []string {
	var out []string
	var walk func(r policy.AccessRule)
	walk = func(r policy.AccessRule) {
		if r.Policy != "" {
			out = append(out, r.Policy)
		}
		for _, m := range r.Any {
			walk(m)
		}
		for _, m := range r.All {
			walk(m)
		}
	}
	for _, r := range rules {
		walk(r)
	}
	return out
}

// findCycle runs a depth-first scan over the declarative delegation graph
// and returns the first cycle found, or nil.
func findCycle(refs map[string][]string) []string {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := map[string]int{}
	var stack []string
	var dfs func(id string) []string
	dfs = func(id string) []string {
		color[id] = grey
		stack = append(stack, id)
		for _, next := range refs[id] {
			switch color[next] {
			case grey:
				return append(stack, next)
			case white:
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}
	ids := make([]string, 0, len(refs))
	for id := range refs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
