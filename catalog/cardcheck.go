package catalog

import (
	"context"

	"github.com/unionhall/policy"
)

// Cardcheck access encodes the document lifecycle: a revoked card is
// permanently locked for everyone, a signed card can only be changed by
// staff, and a pending card follows normal worker delegation. The mutating
// policies opt out of admin bypass so the lock holds universally, and fold
// status into the cache key because the answer changes when the card does.
func registerCardcheck(c *policy.Catalog) error {
	return registerAll(c,
		&policy.Definition{
			ID:                "cardcheck.view",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityCardcheck,
			RequiredComponent: ComponentCardcheck,
			Evaluate:          cardcheckView,
			DescribeRequirements: func() []policy.AccessRule {
				return []policy.AccessRule{
					{Permission: PermStaff},
					{Policy: "worker.view"},
					{Policy: "employer.view"},
				}
			},
		},
		&policy.Definition{
			ID:                "cardcheck.edit",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityCardcheck,
			RequiredComponent: ComponentCardcheck,
			Evaluate:          cardcheckEdit,
			NoAdminBypass:     true,
			CacheKeyFields:    []string{"status"},
			DescribeRequirements: func() []policy.AccessRule {
				return []policy.AccessRule{
					{Permission: PermStaff},
					{Policy: "worker.edit", Attributes: []policy.AttributeMatch{
						{Field: "status", Op: policy.AttrEq, Value: string(policy.CardcheckPending)},
					}},
				}
			},
		},
		&policy.Definition{
			ID:                "cardcheck.sign",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityCardcheck,
			RequiredComponent: ComponentCardcheck,
			Evaluate:          cardcheckSign,
			CacheKeyFields:    []string{"status"},
		},
		&policy.Definition{
			ID:                "cardcheck.revoke",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityCardcheck,
			RequiredComponent: ComponentCardcheck,
			Evaluate:          cardcheckRevoke,
			CacheKeyFields:    []string{"status"},
		},
		&policy.Definition{
			ID:                "cardcheck.delete",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityCardcheck,
			RequiredComponent: ComponentCardcheck,
			Evaluate:          cardcheckDelete,
			NoAdminBypass:     true,
			CacheKeyFields:    []string{"status"},
		},
	)
}

func loadCardcheck(ctx context.Context, pc *policy.Context) (*policy.Cardcheck, *policy.Result, error) {
	ent, err := pc.Entity(ctx)
	if err != nil {
		return nil, nil, err
	}
	cc, ok := ent.(*policy.Cardcheck)
	if !ok {
		return nil, policy.Deny("Cardcheck not found"), nil
	}
	return cc, nil, nil
}

func cardcheckView(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
	ok, err := pc.HasPermission(ctx, PermStaff)
	if err != nil {
		return nil, err
	}
	if ok {
		return policy.Grant("Staff access"), nil
	}
	cc, denied, err := loadCardcheck(ctx, pc)
	if err != nil || denied != nil {
		return denied, err
	}
	res, err := policy.DelegateToWorker(ctx, pc, cc.WorkerID, "worker.view", "Access to the cardcheck's worker")
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	if cc.EmployerID != "" {
		granted, err := pc.CheckPolicy(ctx, "employer.view", cc.EmployerID)
		if err != nil {
			return nil, err
		}
		if granted {
			return policy.Grant("Access to the cardcheck's employer"), nil
		}
	}
	return policy.Deny("No access to this cardcheck"), nil
}

func cardcheckEdit(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
	cc, denied, err := loadCardcheck(ctx, pc)
	if err != nil || denied != nil {
		return denied, err
	}
	// Status locks apply before any permission, admins included.
	if cc.Status == policy.CardcheckRevoked {
		return policy.Deny("Revoked cardchecks are permanently locked"), nil
	}
	staff, err := pc.HasPermission(ctx, PermStaff)
	if err != nil {
		return nil, err
	}
	if cc.Status == policy.CardcheckSigned {
		if staff {
			return policy.Grant("Staff access"), nil
		}
		return policy.Deny("Signed cardchecks can only be changed by staff"), nil
	}
	if staff {
		return policy.Grant("Staff access"), nil
	}
	res, err := policy.DelegateToWorker(ctx, pc, cc.WorkerID, "worker.edit", "Access to the cardcheck's worker")
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	return policy.Deny("No access to this cardcheck"), nil
}

func cardcheckSign(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
	cc, denied, err := loadCardcheck(ctx, pc)
	if err != nil || denied != nil {
		return denied, err
	}
	switch cc.Status {
	case policy.CardcheckRevoked:
		return policy.Deny("Revoked cardchecks are permanently locked"), nil
	case policy.CardcheckSigned:
		return policy.Deny("Cardcheck is already signed"), nil
	}
	staff, err := pc.HasPermission(ctx, PermStaff)
	if err != nil {
		return nil, err
	}
	if staff {
		return policy.Grant("Staff access"), nil
	}
	res, err := policy.DelegateToWorker(ctx, pc, cc.WorkerID, "worker.mine", "Signing your own cardcheck")
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	return policy.Deny("Only the card's worker or staff may sign"), nil
}

func cardcheckRevoke(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
	cc, denied, err := loadCardcheck(ctx, pc)
	if err != nil || denied != nil {
		return denied, err
	}
	if cc.Status == policy.CardcheckRevoked {
		return policy.Deny("Cardcheck is already revoked"), nil
	}
	staff, err := pc.HasPermission(ctx, PermStaff)
	if err != nil {
		return nil, err
	}
	if staff {
		return policy.Grant("Staff access"), nil
	}
	res, err := policy.DelegateToWorker(ctx, pc, cc.WorkerID, "worker.mine", "Revoking your own cardcheck")
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	return policy.Deny("Only the card's worker or staff may revoke"), nil
}

func cardcheckDelete(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
	cc, denied, err := loadCardcheck(ctx, pc)
	if err != nil || denied != nil {
		return denied, err
	}
	if cc.Status == policy.CardcheckRevoked {
		return policy.Deny("Revoked cardchecks are permanently locked"), nil
	}
	staff, err := pc.HasPermission(ctx, PermStaff)
	if err != nil {
		return nil, err
	}
	if cc.Status == policy.CardcheckSigned && !staff {
		return policy.Deny("Signed cardchecks can only be changed by staff"), nil
	}
	ok, err := pc.HasPermission(ctx, PermCardchecksDrop)
	if err != nil {
		return nil, err
	}
	if ok || staff {
		return policy.Grant("Has cardcheck delete access"), nil
	}
	return policy.Deny("Missing permission " + PermCardchecksDrop), nil
}
