package catalog

import (
	"context"

	"github.com/unionhall/policy"
)

func registerFile(c *policy.Catalog) error {
	return registerAll(c,
		&policy.Definition{
			ID:         "file.view",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityFile,
			Evaluate:   fileAccess("view"),
			DescribeRequirements: func() []policy.AccessRule {
				return []policy.AccessRule{
					{Permission: PermStaff},
					{Authenticated: true, Linkage: policy.LinkageFileUploader},
					{Policy: "worker.view"},
				}
			},
		},
		&policy.Definition{
			ID:         "file.download",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityFile,
			Rules: []policy.AccessRule{
				{Policy: "file.view"},
			},
		},
		&policy.Definition{
			ID:         "file.edit",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityFile,
			Evaluate:   fileAccess("edit"),
			DescribeRequirements: func() []policy.AccessRule {
				return []policy.AccessRule{
					{Permission: PermStaff},
					{Authenticated: true, Linkage: policy.LinkageFileUploader},
					{Policy: "worker.edit"},
				}
			},
		},
		&policy.Definition{
			ID:         "file.delete",
			Scope:      policy.ScopeEntity,
			EntityType: policy.EntityFile,
			Rules: []policy.AccessRule{
				{Permission: PermFilesDelete},
				{Authenticated: true, Linkage: policy.LinkageFileUploader},
			},
		},
		&policy.Definition{
			ID:    "file.upload",
			Scope: policy.ScopeRoute,
			Rules: []policy.AccessRule{
				{Authenticated: true},
			},
		},
	)
}

// fileAccess grants staff, then the uploader, then whoever can reach the
// file's owning record under the same verb.
func fileAccess(verb string) policy.EvaluateFunc {
	return func(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
		ok, err := pc.HasPermission(ctx, PermStaff)
		if err != nil {
			return nil, err
		}
		if ok {
			return policy.Grant("Staff access"), nil
		}
		ent, err := pc.Entity(ctx)
		if err != nil {
			return nil, err
		}
		f, okf := ent.(*policy.FileRecord)
		if !okf {
			return policy.Deny("File not found"), nil
		}
		if pc.Authenticated() && f.UploaderID == pc.User.ID {
			return policy.Grant("Uploaded this file"), nil
		}
		res, err := policy.DelegateToOwner(ctx, pc, f.OwnerType, f.OwnerID, verb)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
		return policy.Deny("No access to this file"), nil
	}
}
