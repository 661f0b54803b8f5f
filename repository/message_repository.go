package repository

import (
	"context"

	"github.com/akinalp/koza/models"
)

// MessageRepository, şifreli kanal mesajı arşivi için interface.
//
// Hub her chat frame'ini buraya best-effort düşürür; yazma hatası
// fan-out'u durdurmaz. Okuma sadece admin export endpoint'indedir.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
	// GetByChannel, en yeniden eskiye doğru sayfalar. before boş ise
	// baştan başlar; doluysa o mesaj id'sinden eskiler döner.
	GetByChannel(ctx context.Context, channelID string, limit int, before string) ([]models.ChatMessage, error)
	CountByChannel(ctx context.Context, channelID string) (int, error)
}
