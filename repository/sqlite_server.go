package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
)

// sqliteServerRepo, ServerRepository interface'inin SQLite implementasyonu.
type sqliteServerRepo struct {
	db *sql.DB
}

// NewSQLiteServerRepo, constructor — interface döner (Dependency Inversion).
func NewSQLiteServerRepo(db *sql.DB) ServerRepository {
	return &sqliteServerRepo{db: db}
}

func (r *sqliteServerRepo) Create(ctx context.Context, server *models.Server) error {
	query := `
		INSERT INTO servers (id, name, description, icon_url, max_users, max_webcam_producers, max_screen_producers)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		server.ID, server.Name, server.Description, server.IconURL,
		server.MaxUsers, server.MaxWebcamProducers, server.MaxScreenProducers,
	).Scan(&server.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return nil
}

// GetDefault, tek sunucu mimarisinde instance'ın sunucusunu döner.
// En eski satır kazanır — bootstrap dışında ikinci satır oluşmaz zaten.
func (r *sqliteServerRepo) GetDefault(ctx context.Context) (*models.Server, error) {
	query := `
		SELECT id, name, description, icon_url, max_users, max_webcam_producers, max_screen_producers, created_at
		FROM servers ORDER BY created_at ASC, id ASC LIMIT 1`

	s := &models.Server{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&s.ID, &s.Name, &s.Description, &s.IconURL,
		&s.MaxUsers, &s.MaxWebcamProducers, &s.MaxScreenProducers, &s.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default server: %w", err)
	}

	return s, nil
}

func (r *sqliteServerRepo) GetByID(ctx context.Context, id string) (*models.Server, error) {
	query := `
		SELECT id, name, description, icon_url, max_users, max_webcam_producers, max_screen_producers, created_at
		FROM servers WHERE id = ?`

	s := &models.Server{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.Description, &s.IconURL,
		&s.MaxUsers, &s.MaxWebcamProducers, &s.MaxScreenProducers, &s.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}

	return s, nil
}

func (r *sqliteServerRepo) Update(ctx context.Context, server *models.Server) error {
	query := `
		UPDATE servers
		SET name = ?, description = ?, max_users = ?, max_webcam_producers = ?, max_screen_producers = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		server.Name, server.Description, server.MaxUsers,
		server.MaxWebcamProducers, server.MaxScreenProducers, server.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update server: %w", err)
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

func (r *sqliteServerRepo) UpdateIcon(ctx context.Context, id string, iconURL *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE servers SET icon_url = ? WHERE id = ?`, iconURL, id)
	if err != nil {
		return fmt.Errorf("failed to update server icon: %w", err)
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

func (r *sqliteServerRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM servers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count servers: %w", err)
	}
	return count, nil
}
