package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
)

// sqliteBanRepo, BanRepository interface'inin SQLite implementasyonu.
type sqliteBanRepo struct {
	db *sql.DB
}

// NewSQLiteBanRepo, constructor.
func NewSQLiteBanRepo(db *sql.DB) BanRepository {
	return &sqliteBanRepo{db: db}
}

func (r *sqliteBanRepo) Create(ctx context.Context, ban *models.Ban) error {
	query := `
		INSERT INTO bans (id, server_id, user_id, banned_by, reason, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		ban.ID, ban.ServerID, ban.UserID, ban.BannedBy, ban.Reason, ban.ExpiresAt,
	).Scan(&ban.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create ban: %w", err)
	}

	return nil
}

// IsBanned, önce süresi dolmuş satırları siler (lazy purge), sonra bakar.
// İki statement transaction gerektirmez: purge kaybolursa bir sonraki
// kontrol yine dener, yanlış pozitif üretmez.
func (r *sqliteBanRepo) IsBanned(ctx context.Context, serverID, userID string) (bool, error) {
	purge := `
		DELETE FROM bans
		WHERE server_id = ? AND user_id = ?
		  AND expires_at IS NOT NULL AND expires_at <= CURRENT_TIMESTAMP`

	if _, err := r.db.ExecContext(ctx, purge, serverID, userID); err != nil {
		return false, fmt.Errorf("failed to purge expired bans: %w", err)
	}

	var dummy int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM bans WHERE server_id = ? AND user_id = ? LIMIT 1`,
		serverID, userID,
	).Scan(&dummy)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ban: %w", err)
	}

	return true, nil
}

func (r *sqliteBanRepo) List(ctx context.Context, serverID string) ([]models.Ban, error) {
	query := `
		SELECT id, server_id, user_id, banned_by, reason, expires_at, created_at
		FROM bans WHERE server_id = ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bans: %w", err)
	}
	defer rows.Close()

	var bans []models.Ban
	for rows.Next() {
		var b models.Ban
		if err := rows.Scan(
			&b.ID, &b.ServerID, &b.UserID, &b.BannedBy,
			&b.Reason, &b.ExpiresAt, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ban row: %w", err)
		}
		bans = append(bans, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ban rows: %w", err)
	}

	return bans, nil
}

func (r *sqliteBanRepo) Delete(ctx context.Context, serverID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM bans WHERE server_id = ? AND user_id = ?`, serverID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete ban: %w", err)
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
