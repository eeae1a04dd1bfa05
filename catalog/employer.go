package catalog

import "github.com/unionhall/policy"

func registerEmployer(c *policy.Catalog) error {
	return registerAll(c,
		&policy.Definition{
			ID:         "employer.view",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityEmployer,
			Rules: []policy.AccessRule{
				{AnyPermission: []string{PermStaff, PermEmployersView}},
				{Authenticated: true, Linkage: policy.LinkageEmployerAssociation},
				{Authenticated: true, Linkage: policy.LinkageWorkerEmploymentHistory},
			},
		},
		&policy.Definition{
			ID:         "employer.edit",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityEmployer,
			Rules: []policy.AccessRule{
				{AnyPermission: []string{PermStaff, PermEmployersEdit}},
				{Authenticated: true, Linkage: policy.LinkageEmployerAssociation},
			},
		},
		&policy.Definition{
			ID:    "employer.create",
			Scope: policy.ScopeRoute,
			Rules: []policy.AccessRule{
				{AnyPermission: []string{PermStaff, PermEmployersNew}},
			},
		},
		&policy.Definition{
			ID:         "employer.delete",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityEmployer,
			Rules: []policy.AccessRule{
				{Permission: PermEmployersDrop},
			},
		},
	)
}
