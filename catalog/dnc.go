package catalog

import (
	"context"
	"fmt"

	"github.com/unionhall/policy"
)

// Do-not-call records carry a type tag that restricts which linkage may
// grant access: a worker-linked user can only reach worker-typed records,
// an employer-linked user only employer-typed ones, regardless of matching
// foreign keys on the other side.
func registerDNC(c *policy.Catalog) error {
	return registerAll(c,
		&policy.Definition{
			ID:                "dnc.view",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityDNC,
			RequiredComponent: ComponentDispatch,
			Evaluate:          dncAccess("view"),
			DescribeRequirements: func() []policy.AccessRule {
				return []policy.AccessRule{
					{AnyPermission: []string{PermStaff, PermDispatchView}},
					{Policy: "worker.view"},
					{Policy: "employer.view"},
				}
			},
		},
		&policy.Definition{
			ID:                "dnc.edit",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityDNC,
			RequiredComponent: ComponentDispatch,
			Evaluate:          dncAccess("edit"),
		},
		&policy.Definition{
			ID:                "dnc.delete",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityDNC,
			RequiredComponent: ComponentDispatch,
			Rules: []policy.AccessRule{
				{AnyPermission: []string{PermStaff, PermDispatchManage}},
			},
		},
	)
}

func dncAccess(verb string) policy.EvaluateFunc {
	// Viewing needs the dispatch view tier; any mutation needs manage.
	dispatchPerm := PermDispatchView
	if verb != "view" {
		dispatchPerm = PermDispatchManage
	}
	return func(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
		ok, err := pc.HasPermission(ctx, PermStaff)
		if err != nil {
			return nil, err
		}
		if ok {
			return policy.Grant("Staff access"), nil
		}
		ok, err = pc.HasPermission(ctx, dispatchPerm)
		if err != nil {
			return nil, err
		}
		if ok {
			return policy.Grant("Has " + dispatchPerm + " permission"), nil
		}
		ent, err := pc.Entity(ctx)
		if err != nil {
			return nil, err
		}
		d, okd := ent.(*policy.DNCRecord)
		if !okd {
			return policy.Deny("Do-not-call record not found"), nil
		}
		// Only the linkage matching the record's type tag may grant.
		switch d.DNCType {
		case policy.DNCWorker:
			res, err := policy.DelegateToWorker(ctx, pc, d.WorkerID, "worker."+verb, "Access to the record's worker")
			if err != nil {
				return nil, err
			}
			if res != nil {
				return res, nil
			}
		case policy.DNCEmployer:
			if d.EmployerID == "" {
				return policy.Deny("Record has no associated employer"), nil
			}
			granted, err := pc.CheckPolicy(ctx, "employer."+verb, d.EmployerID)
			if err != nil {
				return nil, err
			}
			if granted {
				return policy.Grant("Access to the record's employer"), nil
			}
		default:
			return nil, fmt.Errorf("dnc record %s has unknown type %q", d.ID, d.DNCType)
		}
		return policy.Deny("No access to this do-not-call record"), nil
	}
}
