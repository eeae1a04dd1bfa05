package catalog

import (
	"context"

	"github.com/unionhall/policy"
)

func registerWorker(c *policy.Catalog) error {
	return registerAll(c,
		&policy.Definition{
			ID:         "worker.view",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityWorker,
			Evaluate:   workerView,
			DescribeRequirements: func() []policy.AccessRule {
				return []policy.AccessRule{
					{AnyPermission: []string{PermStaff, PermWorkersView}},
					{Authenticated: true, Linkage: policy.LinkageOwnsWorker},
				}
			},
		},
		&policy.Definition{
			ID:         "worker.mine",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityWorker,
			Rules: []policy.AccessRule{
				{Authenticated: true, Linkage: policy.LinkageOwnsWorker},
			},
		},
		&policy.Definition{
			ID:         "worker.edit",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityWorker,
			Rules: []policy.AccessRule{
				{AnyPermission: []string{PermStaff, PermWorkersEdit}},
				{Authenticated: true, Linkage: policy.LinkageOwnsWorker},
			},
		},
		&policy.Definition{
			ID:    "worker.create",
			Scope: policy.ScopeRoute,
			Rules: []policy.AccessRule{
				{AnyPermission: []string{PermStaff, PermWorkersCreate}},
			},
		},
		&policy.Definition{
			ID:         "worker.delete",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityWorker,
			Rules: []policy.AccessRule{
				{Permission: PermWorkersDelete},
			},
		},
		&policy.Definition{
			ID:    "worker.merge",
			Scope: policy.ScopeRoute,
			Rules: []policy.AccessRule{
				{Permission: PermWorkersMerge},
			},
		},
		&policy.Definition{
			ID:         "worker.hours.view",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityWorker,
			Rules: []policy.AccessRule{
				{AnyPermission: []string{PermStaff, PermWorkersHours}},
				{Authenticated: true, Linkage: policy.LinkageOwnsWorker},
				{Authenticated: true, Linkage: policy.LinkageWorkerBenefitProvider},
			},
		},
	)
}

// workerView grants staff broadly, then falls back to record ownership.
func workerView(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
	ok, err := pc.HasAnyPermission(ctx, PermStaff, PermWorkersView)
	if err != nil {
		return nil, err
	}
	if ok {
		return policy.Grant("Staff access"), nil
	}
	mine, err := pc.CheckPolicy(ctx, "worker.mine", pc.EntityID)
	if err != nil {
		return nil, err
	}
	if mine {
		return policy.Grant("Owns this worker record"), nil
	}
	return policy.Deny("No access to this worker"), nil
}
