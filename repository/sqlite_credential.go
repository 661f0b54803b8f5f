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

// sqliteCredentialRepo, CredentialRepository interface'inin SQLite implementasyonu.
type sqliteCredentialRepo struct {
	db *sql.DB
}

// NewSQLiteCredentialRepo, constructor.
func NewSQLiteCredentialRepo(db *sql.DB) CredentialRepository {
	return &sqliteCredentialRepo{db: db}
}

const credentialColumns = `id, server_id, user_public_key, credential_hash, invite_token_id, created_at, bound_at, revoked_at`

func scanCredential(row interface{ Scan(...any) error }) (*models.SessionCredential, error) {
	c := &models.SessionCredential{}
	err := row.Scan(
		&c.ID, &c.ServerID, &c.UserPublicKey, &c.CredentialHash,
		&c.InviteTokenID, &c.CreatedAt, &c.BoundAt, &c.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *sqliteCredentialRepo) Create(ctx context.Context, q database.TxQuerier, cred *models.SessionCredential) error {
	query := `
		INSERT INTO session_credentials (id, server_id, user_public_key, credential_hash, invite_token_id)
		VALUES (?, ?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, query,
		cred.ID, cred.ServerID, cred.UserPublicKey,
		cred.CredentialHash, cred.InviteTokenID,
	)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

func (r *sqliteCredentialRepo) GetByID(ctx context.Context, id string) (*models.SessionCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM session_credentials WHERE id = ?`

	c, err := scanCredential(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential by id: %w", err)
	}

	return c, nil
}

func (r *sqliteCredentialRepo) GetActiveByHash(ctx context.Context, serverID, credentialHash string) (*models.SessionCredential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM session_credentials
		WHERE server_id = ? AND credential_hash = ? AND revoked_at IS NULL`

	c, err := scanCredential(r.db.QueryRowContext(ctx, query, serverID, credentialHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential by hash: %w", err)
	}

	return c, nil
}

// Bind, tek UPDATE ile bağlar. İki bağlantı aynı anda bind denerse
// yalnızca biri satır değiştirir; kaybeden false alır ve çağıran
// satırı yeniden okuyup key'in kendisininki olup olmadığına bakar.
func (r *sqliteCredentialRepo) Bind(ctx context.Context, id, publicKey string) (bool, error) {
	query := `
		UPDATE session_credentials
		SET user_public_key = ?, bound_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_public_key IS NULL`

	result, err := r.db.ExecContext(ctx, query, publicKey, id)
	if err != nil {
		return false, fmt.Errorf("failed to bind credential: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *sqliteCredentialRepo) Revoke(ctx context.Context, id string) error {
	query := `
		UPDATE session_credentials
		SET revoked_at = CURRENT_TIMESTAMP
		WHERE id = ? AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revoke credential: %w", err)
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

func (r *sqliteCredentialRepo) List(ctx context.Context, serverID string) ([]models.SessionCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM session_credentials WHERE server_id = ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []models.SessionCredential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential row: %w", err)
		}
		creds = append(creds, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credential rows: %w", err)
	}

	return creds, nil
}
