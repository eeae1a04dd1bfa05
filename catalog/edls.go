package catalog

import (
	"context"

	"github.com/unionhall/policy"
)

// EDLS scheduling sheets move draft -> lock -> trash. The status gate is the
// canonical order: a locked or trashed sheet denies edit/manage before any
// permission is consulted, and those policies opt out of admin bypass so the
// gate holds for everyone. set_status evaluates against an ephemeral
// transition record, so its result is never cached.
func registerEDLS(c *policy.Catalog) error {
	return registerAll(c,
		&policy.Definition{
			ID:                "edls.sheet.view",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityEDLSSheet,
			RequiredComponent: ComponentEDLS,
			Rules: []policy.AccessRule{
				{AnyPermission: []string{PermStaff, PermEDLSView, PermEDLSEdit, PermEDLSManager}},
			},
		},
		&policy.Definition{
			ID:                "edls.sheet.edit",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityEDLSSheet,
			RequiredComponent: ComponentEDLS,
			Evaluate:          sheetEdit,
			NoAdminBypass:     true,
			CacheKeyFields:    []string{"status"},
			DescribeRequirements: func() []policy.AccessRule {
				return []policy.AccessRule{
					{
						AnyPermission: []string{PermStaff, PermEDLSEdit, PermEDLSManager},
						Attributes: []policy.AttributeMatch{
							{Field: "status", Op: policy.AttrEq, Value: string(policy.SheetDraft)},
						},
					},
				}
			},
		},
		&policy.Definition{
			ID:                "edls.sheet.manage",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityEDLSSheet,
			RequiredComponent: ComponentEDLS,
			Evaluate:          sheetManage,
			NoAdminBypass:     true,
			CacheKeyFields:    []string{"status"},
		},
		&policy.Definition{
			ID:                "edls.sheet.set_status",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityEDLSSheet,
			RequiredComponent: ComponentEDLS,
			Evaluate:          sheetSetStatus,
			NoAdminBypass:     true,
			SkipCache:         true,
		},
		&policy.Definition{
			ID:                "edls.sheet.delete",
			Scope:             policy.ScopeEntity,
			EntityType:        policy.EntityEDLSSheet,
			RequiredComponent: ComponentEDLS,
			Evaluate:          sheetDelete,
			NoAdminBypass:     true,
			CacheKeyFields:    []string{"status"},
		},
	)
}

func loadSheet(ctx context.Context, pc *policy.Context) (*policy.Sheet, *policy.Result, error) {
	ent, err := pc.Entity(ctx)
	if err != nil {
		return nil, nil, err
	}
	s, ok := ent.(*policy.Sheet)
	if !ok {
		return nil, policy.Deny("Sheet not found"), nil
	}
	return s, nil, nil
}

// statusGate is the unconditional lock/trash denial shared by the mutating
// sheet policies. Nil means the sheet is open for changes.
func statusGate(s *policy.Sheet) *policy.Result {
	switch s.Status {
	case policy.SheetLock:
		return policy.Deny("Scheduled sheets cannot be edited")
	case policy.SheetTrash:
		return policy.Deny("Removed sheets cannot be edited")
	}
	return nil
}

func sheetEdit(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
	s, denied, err := loadSheet(ctx, pc)
	if err != nil || denied != nil {
		return denied, err
	}
	if res := statusGate(s); res != nil {
		return res, nil
	}
	ok, err := pc.HasAnyPermission(ctx, PermStaff, PermEDLSEdit, PermEDLSManager)
	if err != nil {
		return nil, err
	}
	if ok {
		return policy.Grant("Has scheduling edit access"), nil
	}
	return policy.Deny("Missing scheduling edit permission"), nil
}

func sheetManage(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
	s, denied, err := loadSheet(ctx, pc)
	if err != nil || denied != nil {
		return denied, err
	}
	if res := statusGate(s); res != nil {
		return res, nil
	}
	ok, err := pc.HasAnyPermission(ctx, PermStaff, PermEDLSManager)
	if err != nil {
		return nil, err
	}
	if ok {
		return policy.Grant("Has scheduling manager access"), nil
	}
	return policy.Deny("Missing scheduling manager permission"), nil
}

// sheetSetStatus authorizes a status transition. The requested target comes
// in as ephemeral entity data (a SheetTransition); the persisted sheet is
// loaded separately by its ID.
func sheetSetStatus(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
	ent, err := pc.Entity(ctx)
	if err != nil {
		return nil, err
	}
	trans, ok := ent.(*policy.SheetTransition)
	if !ok {
		return policy.Deny("No status transition requested"), nil
	}
	loaded, err := pc.LoadEntity(ctx, policy.EntityEDLSSheet, trans.SheetID)
	if err != nil {
		return nil, err
	}
	sheet, ok := loaded.(*policy.Sheet)
	if !ok {
		return policy.Deny("Sheet not found"), nil
	}

	if trans.To == policy.SheetTrash {
		if sheet.TrashLock {
			return policy.Deny("Sheet is protected from removal"), nil
		}
		if sheet.Status == policy.SheetLock {
			return policy.Deny("Scheduled sheets cannot be moved to trash"), nil
		}
	}

	// Moving into or out of lock is a manager-tier transition.
	if trans.To == policy.SheetLock || sheet.Status == policy.SheetLock {
		ok, err := pc.HasAnyPermission(ctx, PermStaff, PermEDLSManager)
		if err != nil {
			return nil, err
		}
		if !ok {
			return policy.Deny("Only scheduling managers can change lock status"), nil
		}
		return policy.Grant("Has scheduling manager access"), nil
	}

	ok, err = pc.HasAnyPermission(ctx, PermStaff, PermEDLSEdit, PermEDLSManager)
	if err != nil {
		return nil, err
	}
	if ok {
		return policy.Grant("Has scheduling edit access"), nil
	}
	return policy.Deny("Missing scheduling edit permission"), nil
}

func sheetDelete(ctx context.Context, pc *policy.Context) (*policy.Result, error) {
	s, denied, err := loadSheet(ctx, pc)
	if err != nil || denied != nil {
		return denied, err
	}
	if s.TrashLock {
		return policy.Deny("Sheet is protected from removal"), nil
	}
	if s.Status == policy.SheetLock {
		return policy.Deny("Scheduled sheets cannot be deleted"), nil
	}
	ok, err := pc.HasAnyPermission(ctx, PermStaff, PermEDLSManager)
	if err != nil {
		return nil, err
	}
	if ok {
		return policy.Grant("Has scheduling manager access"), nil
	}
	return policy.Deny("Missing scheduling manager permission"), nil
}
