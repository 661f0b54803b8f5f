package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
)

// sqliteRoleRepo, RoleRepository interface'inin SQLite implementasyonu.
//
// permissions kolonu JSON saklar: {"join":"allow","kick":"deny", ...}.
// Kısmi set'tir — yazılmayan key inherit demektir. Marshal/unmarshal
// bu katmanda yapılır, service katmanı hep models.PermissionSet görür.
type sqliteRoleRepo struct {
	db *sql.DB
}

// NewSQLiteRoleRepo, constructor.
func NewSQLiteRoleRepo(db *sql.DB) RoleRepository {
	return &sqliteRoleRepo{db: db}
}

func marshalPermissions(set models.PermissionSet) (string, error) {
	if set == nil {
		set = models.PermissionSet{}
	}
	raw, err := json.Marshal(set)
	if err != nil {
		return "", fmt.Errorf("failed to marshal permissions: %w", err)
	}
	return string(raw), nil
}

func unmarshalPermissions(raw string) (models.PermissionSet, error) {
	set := models.PermissionSet{}
	if raw == "" {
		return set, nil
	}
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}
	return set, nil
}

func (r *sqliteRoleRepo) Create(ctx context.Context, role *models.Role) error {
	perms, err := marshalPermissions(role.Permissions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO roles (id, server_id, name, priority, color, permissions, is_default)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	err = r.db.QueryRowContext(ctx, query,
		role.ID, role.ServerID, role.Name, role.Priority,
		role.Color, perms, role.IsDefault,
	).Scan(&role.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	return nil
}

func (r *sqliteRoleRepo) scanRole(row interface{ Scan(...any) error }) (*models.Role, error) {
	role := &models.Role{}
	var perms string
	err := row.Scan(
		&role.ID, &role.ServerID, &role.Name, &role.Priority,
		&role.Color, &perms, &role.IsDefault, &role.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	role.Permissions, err = unmarshalPermissions(perms)
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (r *sqliteRoleRepo) GetByID(ctx context.Context, id string) (*models.Role, error) {
	query := `
		SELECT id, server_id, name, priority, color, permissions, is_default, created_at
		FROM roles WHERE id = ?`

	role, err := r.scanRole(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role by id: %w", err)
	}

	return role, nil
}

func (r *sqliteRoleRepo) GetByServer(ctx context.Context, serverID string) ([]models.Role, error) {
	query := `
		SELECT id, server_id, name, priority, color, permissions, is_default, created_at
		FROM roles WHERE server_id = ?
		ORDER BY priority DESC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles by server: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		role, err := r.scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role row: %w", err)
		}
		roles = append(roles, *role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role rows: %w", err)
	}

	return roles, nil
}

func (r *sqliteRoleRepo) GetDefault(ctx context.Context, serverID string) (*models.Role, error) {
	query := `
		SELECT id, server_id, name, priority, color, permissions, is_default, created_at
		FROM roles WHERE server_id = ? AND is_default = 1 LIMIT 1`

	role, err := r.scanRole(r.db.QueryRowContext(ctx, query, serverID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default role: %w", err)
	}

	return role, nil
}

func (r *sqliteRoleRepo) Update(ctx context.Context, role *models.Role) error {
	perms, err := marshalPermissions(role.Permissions)
	if err != nil {
		return err
	}

	query := `
		UPDATE roles SET name = ?, priority = ?, color = ?, permissions = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		role.Name, role.Priority, role.Color, perms, role.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}

	return nil
}

func (r *sqliteRoleRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}

	return nil
}

func (r *sqliteRoleRepo) Assign(ctx context.Context, userID, serverID, roleID string) error {
	query := `
		INSERT OR IGNORE INTO member_roles (user_id, server_id, role_id)
		VALUES (?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query, userID, serverID, roleID); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	return nil
}

func (r *sqliteRoleRepo) Unassign(ctx context.Context, userID, serverID, roleID string) error {
	query := `DELETE FROM member_roles WHERE user_id = ? AND server_id = ? AND role_id = ?`

	if _, err := r.db.ExecContext(ctx, query, userID, serverID, roleID); err != nil {
		return fmt.Errorf("failed to unassign role: %w", err)
	}

	return nil
}

func (r *sqliteRoleRepo) GetUserRoles(ctx context.Context, userID, serverID string) ([]models.Role, error) {
	query := `
		SELECT r.id, r.server_id, r.name, r.priority, r.color, r.permissions, r.is_default, r.created_at
		FROM roles r
		INNER JOIN member_roles mr ON r.id = mr.role_id
		WHERE mr.user_id = ? AND mr.server_id = ?
		ORDER BY r.priority DESC, r.id ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		role, err := r.scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user role row: %w", err)
		}
		roles = append(roles, *role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user role rows: %w", err)
	}

	return roles, nil
}

func (r *sqliteRoleRepo) GetRoleIDsByMember(ctx context.Context, serverID string) (map[string][]string, error) {
	query := `
		SELECT mr.user_id, mr.role_id
		FROM member_roles mr
		INNER JOIN roles r ON r.id = mr.role_id
		WHERE mr.server_id = ?
		ORDER BY r.priority DESC, r.id ASC`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member role ids: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var userID, roleID string
		if err := rows.Scan(&userID, &roleID); err != nil {
			return nil, fmt.Errorf("failed to scan member role row: %w", err)
		}
		result[userID] = append(result[userID], roleID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member role rows: %w", err)
	}

	return result, nil
}
