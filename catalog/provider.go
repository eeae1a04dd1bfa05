package catalog

import "github.com/unionhall/policy"

// Trust provider policies are only live when the trusts component is on;
// the gate applies before anything else, admins included.
func registerProvider(c *policy.Catalog) error {
	return registerAll(c,
		&policy.Definition{
			ID:                "provider.view",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityProvider,
			RequiredComponent: ComponentTrusts,
			Rules: []policy.AccessRule{
				{AnyPermission: []string{PermStaff, PermProvidersView}},
				{Authenticated: true, Linkage: policy.LinkageProviderAssociation},
			},
		},
		&policy.Definition{
			ID:                "provider.edit",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityProvider,
			RequiredComponent: ComponentTrusts,
			Rules: []policy.AccessRule{
				{AnyPermission: []string{PermStaff, PermProvidersEdit}},
				{Authenticated: true, Linkage: policy.LinkageProviderAssociation},
			},
		},
		&policy.Definition{
			ID:                "provider.create",
			Scope:             policy.ScopeRoute,
			RequiredComponent: ComponentTrusts,
			Rules: []policy.AccessRule{
				{Permission: PermProvidersNew},
			},
		},
	)
}
