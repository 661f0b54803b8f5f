package repository

import (
	"context"

	"github.com/akinalp/koza/models"
)

// ChannelRepository, kanal veritabanı işlemleri için interface.
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id string) (*models.Channel, error)
	GetByServer(ctx context.Context, serverID string) ([]models.Channel, error)
	// GetDefault, sunucunun is_default işaretli kanalını döner.
	GetDefault(ctx context.Context, serverID string) (*models.Channel, error)
	Update(ctx context.Context, channel *models.Channel) error
	Delete(ctx context.Context, id string) error
	// GetPath, kök atadan hedef kanala inen zinciri döner (kök önce).
	// Yetki çözümlemesi override'ları bu sırayla uygular.
	GetPath(ctx context.Context, channelID string) ([]models.Channel, error)
	CountByServer(ctx context.Context, serverID string) (int, error)
}
