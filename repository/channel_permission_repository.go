package repository

import (
	"context"

	"github.com/akinalp/koza/models"
)

// ChannelPermissionRepository, kanal yetki override'ları için interface.
type ChannelPermissionRepository interface {
	// Set, (channelId, roleId) override'ını yazar (upsert).
	// Boş permission set'i override'ı siler — "override yok" ile
	// "her key inherit" aynı anlama gelir.
	Set(ctx context.Context, override *models.ChannelPermission) error
	Delete(ctx context.Context, channelID, roleID string) error
	GetByChannel(ctx context.Context, channelID string) ([]models.ChannelPermission, error)
	// GetByChannels, zincirdeki tüm kanalların override'larını tek sorguda
	// yükler — yetki çözümlemesi kanal başına ayrı sorgu atmasın diye.
	GetByChannels(ctx context.Context, channelIDs []string) (map[string][]models.ChannelPermission, error)
}
