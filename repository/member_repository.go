package repository

import (
	"context"

	"github.com/akinalp/koza/models"
)

// MemberRepository, sunucu üyeliği veritabanı işlemleri için interface.
type MemberRepository interface {
	// Add, üyelik satırı ekler. Zaten üyeyse sessizce geçer (idempotent) —
	// auth her bağlantıda enroll çağırır, ikinci bağlantı hata üretmemeli.
	Add(ctx context.Context, member *models.ServerMember) error
	Remove(ctx context.Context, serverID, userID string) error
	IsMember(ctx context.Context, serverID, userID string) (bool, error)
	Count(ctx context.Context, serverID string) (int, error)
	// GetUsers, sunucunun tüm üyelerini users tablosuyla join'leyerek döner.
	// joined-server frame'inin üye listesi buradan beslenir.
	GetUsers(ctx context.Context, serverID string) ([]models.User, error)
}
