package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/repository"
)

// BanService, yasaklama iş mantığı interface'i.
type BanService interface {
	// Ban, kullanıcıyı sunucudan yasaklar. durationMinutes 0 ise kalıcı.
	Ban(ctx context.Context, serverID, userID, bannedBy string, reason string, durationMinutes int) (*models.Ban, error)
	IsBanned(ctx context.Context, serverID, userID string) (bool, error)
	List(ctx context.Context, serverID string) ([]models.Ban, error)
	Unban(ctx context.Context, serverID, userID string) error
}

type banService struct {
	banRepo repository.BanRepository
}

// NewBanService, constructor.
func NewBanService(banRepo repository.BanRepository) BanService {
	return &banService{banRepo: banRepo}
}

func (s *banService) Ban(ctx context.Context, serverID, userID, bannedBy string, reason string, durationMinutes int) (*models.Ban, error) {
	trimmedReason, err := models.ValidateBanReason(reason)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}
	if durationMinutes < 0 {
		return nil, fmt.Errorf("%w: ban duration cannot be negative", pkg.ErrBadRequest)
	}

	ban := &models.Ban{
		ID:       uuid.New().String(),
		ServerID: serverID,
		UserID:   userID,
		BannedBy: bannedBy,
	}
	if trimmedReason != "" {
		ban.Reason = &trimmedReason
	}
	if durationMinutes > 0 {
		expiresAt := time.Now().UTC().Add(time.Duration(durationMinutes) * time.Minute)
		ban.ExpiresAt = &expiresAt
	}

	if err := s.banRepo.Create(ctx, ban); err != nil {
		return nil, fmt.Errorf("failed to create ban: %w", err)
	}
	return ban, nil
}

func (s *banService) IsBanned(ctx context.Context, serverID, userID string) (bool, error) {
	return s.banRepo.IsBanned(ctx, serverID, userID)
}

func (s *banService) List(ctx context.Context, serverID string) ([]models.Ban, error) {
	bans, err := s.banRepo.List(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if bans == nil {
		bans = []models.Ban{}
	}
	return bans, nil
}

func (s *banService) Unban(ctx context.Context, serverID, userID string) error {
	return s.banRepo.Delete(ctx, serverID, userID)
}
