package repository

import (
	"context"

	"github.com/akinalp/koza/database"
	"github.com/akinalp/koza/models"
)

// InviteRepository, davet kodu veritabanı işlemleri için interface.
type InviteRepository interface {
	Create(ctx context.Context, invite *models.InviteToken) error
	GetByToken(ctx context.Context, token string) (*models.InviteToken, error)
	List(ctx context.Context, serverID string) ([]models.InviteToken, error)
	Delete(ctx context.Context, id string) error

	// Redeem, kullanım hakkını TEK koşullu UPDATE ile düşer:
	// max_uses dolmuşsa veya süre geçmişse 0 satır değişir ve redeem
	// başarısız olur. İki eşzamanlı istek aynı son hakkı alamaz —
	// yarış SQL seviyesinde çözülür, Go tarafında kilit gerekmez.
	// q parametresi TxQuerier'dır: credential yazımıyla aynı
	// transaction'da çalışabilsin diye.
	Redeem(ctx context.Context, q database.TxQuerier, token string) (*models.InviteToken, error)
}
