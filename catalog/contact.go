package catalog

import (
	"context"

	"github.com/unionhall/policy"
)

func registerContact(c *policy.Catalog) error {
	return registerAll(c,
		&policy.Definition{
			ID:         "contact.view",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityContact,
			Evaluate:   contactAccess(PermContactsView),
			DescribeRequirements: func() []policy.AccessRule {
				return []policy.AccessRule{
					{AnyPermission: []string{PermStaff, PermContactsView}},
					{Authenticated: true},
				}
			},
		},
		&policy.Definition{
			ID:         "contact.edit",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityContact,
			Evaluate:   contactAccess(PermContactsEdit),
			DescribeRequirements: func() []policy.AccessRule {
				return []policy.AccessRule{
					{AnyPermission: []string{PermStaff, PermContactsEdit}},
					{Authenticated: true},
				}
			},
		},
	)
}

// contactAccess grants staff, holders of the tier permission, and the
// contact's own user. Both view and edit share the shape; only the
// permission tier differs.
func contactAccess(perm string) policy.EvaluateFunc {
	return func(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
		ok, err := pc.HasPermission(ctx, PermStaff)
		if err != nil {
			return nil, err
		}
		if ok {
			return policy.Grant("Staff access"), nil
		}
		ok, err = pc.HasPermission(ctx, perm)
		if err != nil {
			return nil, err
		}
		if ok {
			return policy.Grant("Has " + perm + " permission"), nil
		}
		uc, err := pc.UserContact(ctx)
		if err != nil {
			return nil, err
		}
		if uc != nil && uc.ID == pc.EntityID {
			return policy.Grant("Your own contact record"), nil
		}
		return policy.Deny("No access to this contact"), nil
	}
}
