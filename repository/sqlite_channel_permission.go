package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/akinalp/koza/models"
)

// sqliteChannelPermissionRepo, ChannelPermissionRepository'nin SQLite implementasyonu.
type sqliteChannelPermissionRepo struct {
	db *sql.DB
}

// NewSQLiteChannelPermissionRepo, constructor.
func NewSQLiteChannelPermissionRepo(db *sql.DB) ChannelPermissionRepository {
	return &sqliteChannelPermissionRepo{db: db}
}

func (r *sqliteChannelPermissionRepo) Set(ctx context.Context, override *models.ChannelPermission) error {
	// Boş set = override'ı kaldır. DB'de "tamamı inherit" satırı tutmak
	// çözümlemeyi değiştirmez, sadece çöp bırakır.
	if len(override.Permissions) == 0 {
		return r.Delete(ctx, override.ChannelID, override.RoleID)
	}

	perms, err := marshalPermissions(override.Permissions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO channel_permission_overrides (channel_id, role_id, permissions, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (channel_id, role_id)
		DO UPDATE SET permissions = excluded.permissions, updated_at = CURRENT_TIMESTAMP`

	if _, err := r.db.ExecContext(ctx, query, override.ChannelID, override.RoleID, perms); err != nil {
		return fmt.Errorf("failed to set channel permission override: %w", err)
	}

	return nil
}

func (r *sqliteChannelPermissionRepo) Delete(ctx context.Context, channelID, roleID string) error {
	query := `DELETE FROM channel_permission_overrides WHERE channel_id = ? AND role_id = ?`

	// Silinen override yoksa da başarı sayılır — PUT boş set idempotent olmalı.
	if _, err := r.db.ExecContext(ctx, query, channelID, roleID); err != nil {
		return fmt.Errorf("failed to delete channel permission override: %w", err)
	}

	return nil
}

func (r *sqliteChannelPermissionRepo) GetByChannel(ctx context.Context, channelID string) ([]models.ChannelPermission, error) {
	query := `
		SELECT channel_id, role_id, permissions, updated_at
		FROM channel_permission_overrides WHERE channel_id = ?`

	rows, err := r.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel permission overrides: %w", err)
	}
	defer rows.Close()

	return scanOverrides(rows)
}

func (r *sqliteChannelPermissionRepo) GetByChannels(ctx context.Context, channelIDs []string) (map[string][]models.ChannelPermission, error) {
	result := make(map[string][]models.ChannelPermission, len(channelIDs))
	if len(channelIDs) == 0 {
		return result, nil
	}

	// IN (?,?,...) placeholder'ları dinamik kurulur — SQLite'ta array
	// bind yoktur. Kanal zinciri kısadır (ağaç derinliği), sorun olmaz.
	placeholders := strings.Repeat("?,", len(channelIDs))
	placeholders = placeholders[:len(placeholders)-1]

	query := `
		SELECT channel_id, role_id, permissions, updated_at
		FROM channel_permission_overrides WHERE channel_id IN (` + placeholders + `)`

	args := make([]any, len(channelIDs))
	for i, id := range channelIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get overrides for channels: %w", err)
	}
	defer rows.Close()

	overrides, err := scanOverrides(rows)
	if err != nil {
		return nil, err
	}

	for _, o := range overrides {
		result[o.ChannelID] = append(result[o.ChannelID], o)
	}

	return result, nil
}

func scanOverrides(rows *sql.Rows) ([]models.ChannelPermission, error) {
	var overrides []models.ChannelPermission
	for rows.Next() {
		var o models.ChannelPermission
		var perms string
		if err := rows.Scan(&o.ChannelID, &o.RoleID, &perms, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override row: %w", err)
		}

		set, err := unmarshalPermissions(perms)
		if err != nil {
			return nil, err
		}
		o.Permissions = set
		overrides = append(overrides, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating override rows: %w", err)
	}

	return overrides, nil
}
