package stores

import (
	"context"

	"github.com/oarkflow/squealx"
	"github.com/unionhall/policy/utils"
)

// SQLPermissionStore answers permission checks from SQL. A user holds a
// permission either through a direct grant (user_permissions) or through a
// role (user_roles joined to role_permissions). Stored keys may carry
// wildcards, so rows are matched in Go rather than with an equality WHERE.
type SQLPermissionStore struct {
	db *squealx.DB
}

func NewSQLPermissionStore(db *squealx.DB) *SQLPermissionStore {
	return &SQLPermissionStore{db: db}
}

func (s *SQLPermissionStore) Grant(ctx context.Context, userID, permission string) error {
	q := `INSERT OR IGNORE INTO user_permissions(user_id, permission) VALUES(:user_id, :permission)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "permission": permission})
	return err
}

func (s *SQLPermissionStore) Revoke(ctx context.Context, userID, permission string) error {
	q := `DELETE FROM user_permissions WHERE user_id = :user_id AND permission = :permission`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "permission": permission})
	return err
}

func (s *SQLPermissionStore) AssignRole(ctx context.Context, userID, roleID string) error {
	q := `INSERT OR IGNORE INTO user_roles(user_id, role_id) VALUES(:user_id, :role_id)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "role_id": roleID})
	return err
}

func (s *SQLPermissionStore) RevokeRole(ctx context.Context, userID, roleID string) error {
	q := `DELETE FROM user_roles WHERE user_id = :user_id AND role_id = :role_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "role_id": roleID})
	return err
}

func (s *SQLPermissionStore) GrantRole(ctx context.Context, roleID, permission string) error {
	q := `INSERT OR IGNORE INTO role_permissions(role_id, permission) VALUES(:role_id, :permission)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"role_id": roleID, "permission": permission})
	return err
}

func (s *SQLPermissionStore) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	q := `SELECT permission FROM user_permissions WHERE user_id = :user_id
UNION
SELECT rp.permission FROM role_permissions rp
JOIN user_roles ur ON ur.role_id = rp.role_id
WHERE ur.user_id = :user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID})
	if err != nil {
		return false, err
	}
	defer r.Close()
	for r.Next() {
		var pattern string
		if err := r.Scan(&pattern); err != nil {
			return false, err
		}
		if utils.MatchPermission(permission, pattern) {
			return true, nil
		}
	}
	return false, nil
}

// Permissions lists the user's stored grant patterns (direct and via roles).
func (s *SQLPermissionStore) Permissions(ctx context.Context, userID string) ([]string, error) {
	q := `SELECT permission FROM user_permissions WHERE user_id = :user_id
UNION
SELECT rp.permission FROM role_permissions rp
JOIN user_roles ur ON ur.role_id = rp.role_id
WHERE ur.user_id = :user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]string, 0)
	for r.Next() {
		var p string
		if err := r.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
