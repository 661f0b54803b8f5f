package repository

import (
	"context"

	"github.com/akinalp/koza/database"
	"github.com/akinalp/koza/models"
)

// CredentialRepository, session credential veritabanı işlemleri için interface.
//
// Credential plaintext'i hiçbir zaman bu katmana girmez — service SHA-256
// hash'ler, repository sadece hash görür.
type CredentialRepository interface {
	// Create, redeem transaction'ının içinden çağrılır (TxQuerier).
	Create(ctx context.Context, q database.TxQuerier, cred *models.SessionCredential) error
	GetByID(ctx context.Context, id string) (*models.SessionCredential, error)
	// GetActiveByHash, revoke edilmemiş credential'ı hash'iyle arar.
	GetActiveByHash(ctx context.Context, serverID, credentialHash string) (*models.SessionCredential, error)
	// Bind, credential'ı public key'e atomik bağlar:
	// UPDATE ... WHERE id = ? AND user_public_key IS NULL.
	// true = bu çağrı bağladı; false = satır zaten bağlıydı (yarış kaybı
	// veya ikinci auth) — çağıran yeniden okuyup key eşitliğine bakar.
	Bind(ctx context.Context, id, publicKey string) (bool, error)
	Revoke(ctx context.Context, id string) error
	List(ctx context.Context, serverID string) ([]models.SessionCredential, error)
}
