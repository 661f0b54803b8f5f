package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
)

// sqliteChannelRepo, ChannelRepository interface'inin SQLite implementasyonu.
type sqliteChannelRepo struct {
	db *sql.DB
}

// NewSQLiteChannelRepo, constructor — interface döner (Dependency Inversion).
func NewSQLiteChannelRepo(db *sql.DB) ChannelRepository {
	return &sqliteChannelRepo{db: db}
}

const channelColumns = `id, server_id, parent_id, name, description, position, max_users, join_power, talk_power, is_default, created_at`

func scanChannel(row interface{ Scan(...any) error }, ch *models.Channel) error {
	return row.Scan(
		&ch.ID, &ch.ServerID, &ch.ParentID, &ch.Name, &ch.Description,
		&ch.Position, &ch.MaxUsers, &ch.JoinPower, &ch.TalkPower,
		&ch.IsDefault, &ch.CreatedAt,
	)
}

func (r *sqliteChannelRepo) Create(ctx context.Context, channel *models.Channel) error {
	query := `
		INSERT INTO channels (id, server_id, parent_id, name, description, position, max_users, join_power, talk_power, is_default)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		channel.ID, channel.ServerID, channel.ParentID, channel.Name,
		channel.Description, channel.Position, channel.MaxUsers,
		channel.JoinPower, channel.TalkPower, channel.IsDefault,
	).Scan(&channel.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}

	return nil
}

func (r *sqliteChannelRepo) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = ?`

	ch := &models.Channel{}
	err := scanChannel(r.db.QueryRowContext(ctx, query, id), ch)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel by id: %w", err)
	}

	return ch, nil
}

func (r *sqliteChannelRepo) GetByServer(ctx context.Context, serverID string) ([]models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE server_id = ? ORDER BY position ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channels by server: %w", err)
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		var ch models.Channel
		if err := scanChannel(rows, &ch); err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, ch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel rows: %w", err)
	}

	return channels, nil
}

func (r *sqliteChannelRepo) GetDefault(ctx context.Context, serverID string) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE server_id = ? AND is_default = 1 LIMIT 1`

	ch := &models.Channel{}
	err := scanChannel(r.db.QueryRowContext(ctx, query, serverID), ch)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default channel: %w", err)
	}

	return ch, nil
}

func (r *sqliteChannelRepo) Update(ctx context.Context, channel *models.Channel) error {
	query := `
		UPDATE channels
		SET parent_id = ?, name = ?, description = ?, position = ?, max_users = ?, join_power = ?, talk_power = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		channel.ParentID, channel.Name, channel.Description, channel.Position,
		channel.MaxUsers, channel.JoinPower, channel.TalkPower, channel.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
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

func (r *sqliteChannelRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
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

// GetPath, recursive CTE ile kanal zincirini yükler ve kök-önce sıralar.
// depth kolonu hedeften köke doğru artar; ORDER BY depth DESC zinciri
// kök → hedef sırasına çevirir. LIMIT 64 döngü (cycle) guard'ıdır:
// parent_id halkası oluşmuşsa sorgu sonsuz büyümeden kesilir, kalan
// doğrulamayı Go tarafındaki visited kontrolü yapar.
func (r *sqliteChannelRepo) GetPath(ctx context.Context, channelID string) ([]models.Channel, error) {
	query := `
		WITH RECURSIVE chain(id, server_id, parent_id, name, description, position, max_users, join_power, talk_power, is_default, created_at, depth) AS (
			SELECT ` + channelColumns + `, 0 FROM channels WHERE id = ?
			UNION ALL
			SELECT c.id, c.server_id, c.parent_id, c.name, c.description, c.position, c.max_users, c.join_power, c.talk_power, c.is_default, c.created_at, chain.depth + 1
			FROM channels c
			INNER JOIN chain ON c.id = chain.parent_id
			WHERE chain.depth < 64
		)
		SELECT ` + channelColumns + ` FROM chain ORDER BY depth DESC`

	rows, err := r.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel path: %w", err)
	}
	defer rows.Close()

	var path []models.Channel
	seen := make(map[string]bool)
	for rows.Next() {
		var ch models.Channel
		if err := scanChannel(rows, &ch); err != nil {
			return nil, fmt.Errorf("failed to scan channel path row: %w", err)
		}
		if seen[ch.ID] {
			return nil, fmt.Errorf("channel tree contains a cycle at %s", ch.ID)
		}
		seen[ch.ID] = true
		path = append(path, ch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel path rows: %w", err)
	}

	if len(path) == 0 {
		return nil, pkg.ErrNotFound
	}

	return path, nil
}

func (r *sqliteChannelRepo) CountByServer(ctx context.Context, serverID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channels WHERE server_id = ?`, serverID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count channels: %w", err)
	}
	return count, nil
}
