package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
)

// sqliteMemberRepo, MemberRepository interface'inin SQLite implementasyonu.
type sqliteMemberRepo struct {
	db *sql.DB
}

// NewSQLiteMemberRepo, constructor.
func NewSQLiteMemberRepo(db *sql.DB) MemberRepository {
	return &sqliteMemberRepo{db: db}
}

func (r *sqliteMemberRepo) Add(ctx context.Context, member *models.ServerMember) error {
	// INSERT OR IGNORE: PRIMARY KEY (server_id, user_id) çakışırsa
	// satır zaten var demektir — hata değil.
	query := `
		INSERT OR IGNORE INTO server_members (server_id, user_id, joined_nickname)
		VALUES (?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, member.ServerID, member.UserID, member.JoinedNickname)
	if err != nil {
		return fmt.Errorf("failed to add server member: %w", err)
	}

	return nil
}

func (r *sqliteMemberRepo) Remove(ctx context.Context, serverID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM server_members WHERE server_id = ? AND user_id = ?`, serverID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove server member: %w", err)
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

func (r *sqliteMemberRepo) IsMember(ctx context.Context, serverID, userID string) (bool, error) {
	var dummy int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM server_members WHERE server_id = ? AND user_id = ? LIMIT 1`,
		serverID, userID,
	).Scan(&dummy)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check server membership: %w", err)
	}

	return true, nil
}

func (r *sqliteMemberRepo) Count(ctx context.Context, serverID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM server_members WHERE server_id = ?`, serverID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count server members: %w", err)
	}
	return count, nil
}

func (r *sqliteMemberRepo) GetUsers(ctx context.Context, serverID string) ([]models.User, error) {
	query := `
		SELECT u.id, u.nickname, u.public_key, u.avatar_url, u.created_at
		FROM users u
		INNER JOIN server_members sm ON u.id = sm.user_id
		WHERE sm.server_id = ?
		ORDER BY sm.joined_at ASC`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get server member users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Nickname, &u.PublicKey, &u.AvatarURL, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member user row: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member user rows: %w", err)
	}

	return users, nil
}
