package repository

import (
	"context"

	"github.com/akinalp/koza/models"
)

// UserRepository, kullanıcı veritabanı işlemleri için interface.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByPublicKey, public key'e göre kullanıcı arar — auth'un kimlik
	// çözümleme yolu. Key unique index'lidir, en fazla bir satır döner.
	GetByPublicKey(ctx context.Context, publicKey string) (*models.User, error)
	UpdateNickname(ctx context.Context, id, nickname string) error
	UpdateAvatar(ctx context.Context, id string, avatarURL *string) error
}
