package catalog

import (
	"context"

	"github.com/unionhall/policy"
)

func registerEsig(c *policy.Catalog) error {
	return registerAll(c,
		&policy.Definition{
			ID:                "esig.view",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityEsig,
			RequiredComponent: ComponentEsig,
			Evaluate:          esigView,
			DescribeRequirements: func() []policy.AccessRule {
				return []policy.AccessRule{
					{Permission: PermStaff},
					{Policy: "worker.view"},
				}
			},
		},
		&policy.Definition{
			ID:                "esig.edit",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityEsig,
			RequiredComponent: ComponentEsig,
			Evaluate:          esigEdit,
			CacheKeyFields:    []string{"status"},
		},
	)
}

func loadEsig(ctx context.Context, pc *policy.Context) (*policy.Esig, *policy.Result, error) {
	ent, err := pc.Entity(ctx)
	if err != nil {
		return nil, nil, err
	}
	e, ok := ent.(*policy.Esig)
	if !ok {
		return nil, policy.Deny("E-signature request not found"), nil
	}
	return e, nil, nil
}

// esigView delegates through the request's owning entity, dispatching on its
// type tag.
func esigView(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
	ok, err := pc.HasPermission(ctx, PermStaff)
	if err != nil {
		return nil, err
	}
	if ok {
		return policy.Grant("Staff access"), nil
	}
	e, denied, err := loadEsig(ctx, pc)
	if err != nil || denied != nil {
		return denied, err
	}
	res, err := policy.DelegateToOwner(ctx, pc, e.OwnerType, e.OwnerID, "view")
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	return policy.Deny("No access to this e-signature request"), nil
}

func esigEdit(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
	e, denied, err := loadEsig(ctx, pc)
	if err != nil || denied != nil {
		return denied, err
	}
	switch e.Status {
	case policy.EsigCompleted:
		return policy.Deny("Completed e-signature requests cannot be changed"), nil
	case policy.EsigCancelled:
		return policy.Deny("Cancelled e-signature requests cannot be changed"), nil
	}
	ok, err := pc.HasPermission(ctx, PermStaff)
	if err != nil {
		return nil, err
	}
	if ok {
		return policy.Grant("Staff access"), nil
	}
	res, err := policy.DelegateToOwner(ctx, pc, e.OwnerType, e.OwnerID, "edit")
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	return policy.Deny("No access to this e-signature request"), nil
}
