package catalog

import "github.com/unionhall/policy"

// Route-scoped policies guard endpoints with no subject record.
func registerRoutes(c *policy.Catalog) error {
	return registerAll(c,
		&policy.Definition{
			ID:                "dispatch.view",
			Scope:             policy.ScopeRoute,
			RequiredComponent: ComponentDispatch,
			Rules: []policy.AccessRule{
				{AnyPermission: []string{PermStaff, PermDispatchView}},
			},
		},
		&policy.Definition{
			ID:                "dispatch.manage",
			Scope:             policy.ScopeRoute,
			RequiredComponent: ComponentDispatch,
			Rules: []policy.AccessRule{
				{Permission: PermDispatchManage},
			},
		},
		&policy.Definition{
			ID:    "ledger.view",
			Scope: policy.ScopeRoute,
			Rules: []policy.AccessRule{
				{AnyPermission: []string{PermStaff, PermLedgerView}},
			},
		},
		&policy.Definition{
			ID:    "comms.send",
			Scope: policy.ScopeRoute,
			Rules: []policy.AccessRule{
				{Permission: PermCommsSend},
			},
		},
		&policy.Definition{
			ID:    "reports.view",
			Scope: policy.ScopeRoute,
			Rules: []policy.AccessRule{
				{AnyPermission: []string{PermStaff, PermReportsView}},
			},
		},
		&policy.Definition{
			ID:    "admin.settings",
			Scope: policy.ScopeRoute,
			Rules: []policy.AccessRule{
				{Permission: PermAdminSettings},
			},
		},
	)
}

// WorkerTabs is the default tab set for the worker detail screen, consumed
// by the batch visibility endpoint.
func WorkerTabs() *policy.TabSet {
	set := policy.NewTabSet()
	for _, d := range []policy.TabDescriptor{
		{ID: "details", EntityType: policy.EntityWorker, Policy: "worker.view"},
		{ID: "hours", EntityType: policy.EntityWorker, Policy: "worker.hours.view"},
		{ID: "logs", EntityType: policy.EntityWorker, Permission: PermStaff},
		{ID: "delete", EntityType: policy.EntityWorker, Permission: PermWorkersDelete},
		{ID: "dispatch", EntityType: policy.EntityWorker, Component: ComponentDispatch},
	} {
		if err := set.Register(d); err != nil {
			panic(err)
		}
	}
	return set
}
