package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/koza/database"
	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
)

// sqliteInviteRepo, InviteRepository interface'inin SQLite implementasyonu.
type sqliteInviteRepo struct {
	db *sql.DB
}

// NewSQLiteInviteRepo, constructor.
func NewSQLiteInviteRepo(db *sql.DB) InviteRepository {
	return &sqliteInviteRepo{db: db}
}

const inviteColumns = `id, server_id, token, max_uses, uses, expires_at, server_address, created_at`

func scanInvite(row interface{ Scan(...any) error }) (*models.InviteToken, error) {
	inv := &models.InviteToken{}
	err := row.Scan(
		&inv.ID, &inv.ServerID, &inv.Token, &inv.MaxUses,
		&inv.Uses, &inv.ExpiresAt, &inv.ServerAddress, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *sqliteInviteRepo) Create(ctx context.Context, invite *models.InviteToken) error {
	query := `
		INSERT INTO invite_tokens (id, server_id, token, max_uses, expires_at, server_address)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		invite.ID, invite.ServerID, invite.Token,
		invite.MaxUses, invite.ExpiresAt, invite.ServerAddress,
	).Scan(&invite.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}

	return nil
}

func (r *sqliteInviteRepo) GetByToken(ctx context.Context, token string) (*models.InviteToken, error) {
	query := `SELECT ` + inviteColumns + ` FROM invite_tokens WHERE token = ?`

	inv, err := scanInvite(r.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite by token: %w", err)
	}

	return inv, nil
}

func (r *sqliteInviteRepo) List(ctx context.Context, serverID string) ([]models.InviteToken, error) {
	query := `SELECT ` + inviteColumns + ` FROM invite_tokens WHERE server_id = ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []models.InviteToken
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite row: %w", err)
		}
		invites = append(invites, *inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invite rows: %w", err)
	}

	return invites, nil
}

func (r *sqliteInviteRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM invite_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
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

// Redeem, koşullu UPDATE ile kullanım hakkını düşer ve güncel satırı döner.
//
// 0 satır değiştiyse sebep ayrıştırılır: token hiç yoksa ErrNotFound,
// varsa (dolmuş/süresi geçmiş) ErrBadRequest. Ayrıştırma sadece hata
// mesajı içindir — yetki UPDATE'in kendisindedir.
func (r *sqliteInviteRepo) Redeem(ctx context.Context, q database.TxQuerier, token string) (*models.InviteToken, error) {
	query := `
		UPDATE invite_tokens
		SET uses = uses + 1
		WHERE token = ?
		  AND (max_uses IS NULL OR uses < max_uses)
		  AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)`

	result, err := q.ExecContext(ctx, query, token)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem invite: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}

	if affected == 0 {
		var dummy int
		err := q.QueryRowContext(ctx,
			`SELECT 1 FROM invite_tokens WHERE token = ? LIMIT 1`, token).Scan(&dummy)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to re-read invite: %w", err)
		}
		return nil, fmt.Errorf("%w: invite expired or exhausted", pkg.ErrBadRequest)
	}

	inv, err := scanInvite(q.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invite_tokens WHERE token = ?`, token))
	if err != nil {
		return nil, fmt.Errorf("failed to read redeemed invite: %w", err)
	}

	return inv, nil
}
