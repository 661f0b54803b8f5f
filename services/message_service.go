package services

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/repository"
)

// MessageService, şifreli mesaj arşivi iş mantığı.
//
// Sunucu mesaj içeriğini hiçbir zaman çözemez — ciphertext ve IV opak
// string'lerdir (client tarafında base64). Arşiv yalnızca geç katılan
// client'ların geçmişi çekebilmesi ve admin export'u içindir.
type MessageService interface {
	// Record, chat frame'ini arşive düşürür. Best-effort: hata loglanır,
	// dönmez — yazma hatası canlı fan-out'u asla durdurmamalı.
	Record(ctx context.Context, channelID, senderID, ciphertext, iv string, keyEpoch int, encoding string)

	// Export, kanal geçmişini en yeniden eskiye sayfalayarak döner.
	Export(ctx context.Context, channelID string, limit int, before string) ([]models.ChatMessage, error)
	Count(ctx context.Context, channelID string) (int, error)
}

type messageService struct {
	messageRepo repository.MessageRepository
}

// NewMessageService, constructor.
func NewMessageService(messageRepo repository.MessageRepository) MessageService {
	return &messageService{messageRepo: messageRepo}
}

func (s *messageService) Record(ctx context.Context, channelID, senderID, ciphertext, iv string, keyEpoch int, encoding string) {
	if encoding == "" {
		encoding = models.ChatEncodingText
	}
	msg := &models.ChatMessage{
		ID:         uuid.New().String(),
		ChannelID:  channelID,
		SenderID:   senderID,
		Ciphertext: ciphertext,
		IV:         iv,
		KeyEpoch:   keyEpoch,
		Encoding:   encoding,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		log.Printf("[message] archive write failed for channel %s: %v", channelID, err)
	}
}

func (s *messageService) Export(ctx context.Context, channelID string, limit int, before string) ([]models.ChatMessage, error) {
	msgs, err := s.messageRepo.GetByChannel(ctx, channelID, limit, before)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return msgs, nil
}

func (s *messageService) Count(ctx context.Context, channelID string) (int, error) {
	return s.messageRepo.CountByChannel(ctx, channelID)
}
