package repository

import (
	"context"

	"github.com/akinalp/koza/models"
)

// BanRepository, yasaklama veritabanı işlemleri için interface.
type BanRepository interface {
	Create(ctx context.Context, ban *models.Ban) error
	// IsBanned, aktif ban olup olmadığını döner. Süresi dolmuş ban
	// satırları kontrol sırasında lazy silinir — ayrı bir temizlik
	// job'ı yoktur.
	IsBanned(ctx context.Context, serverID, userID string) (bool, error)
	List(ctx context.Context, serverID string) ([]models.Ban, error)
	// Delete (unban), kullanıcının sunucudaki TÜM ban satırlarını kaldırır.
	Delete(ctx context.Context, serverID, userID string) error
}
