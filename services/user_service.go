package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/repository"
)

// UserService, kullanıcı iş mantığı interface'i.
type UserService interface {
	// ResolveOnAuth, auth frame'inden kullanıcı satırı çözer:
	// public key verilmişse key'e göre bulunur (nickname tazelenir),
	// bulunamazsa yeni satır açılır. Key'siz bağlantı her seferinde
	// taze bir anonim kullanıcı alır.
	ResolveOnAuth(ctx context.Context, nickname string, publicKey *string) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateAvatar(ctx context.Context, id string, avatarURL *string) error
}

type userService struct {
	userRepo repository.UserRepository
}

// NewUserService, constructor.
func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) ResolveOnAuth(ctx context.Context, nickname string, publicKey *string) (*models.User, error) {
	nickname, err := models.ValidateNickname(nickname)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if publicKey != nil {
		key, err := models.ValidatePublicKey(*publicKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
		}

		user, err := s.userRepo.GetByPublicKey(ctx, key)
		if err == nil {
			// Mevcut kimlik — görünen ad değiştiyse tazele.
			if user.Nickname != nickname {
				if err := s.userRepo.UpdateNickname(ctx, user.ID, nickname); err != nil {
					return nil, fmt.Errorf("failed to refresh nickname: %w", err)
				}
				user.Nickname = nickname
			}
			return user, nil
		}
		if !errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("failed to resolve user by key: %w", err)
		}

		user = &models.User{
			ID:        uuid.New().String(),
			Nickname:  nickname,
			PublicKey: &key,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return user, nil
	}

	user := &models.User{
		ID:       uuid.New().String(),
		Nickname: nickname,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create anonymous user: %w", err)
	}
	return user, nil
}

func (s *userService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *userService) UpdateAvatar(ctx context.Context, id string, avatarURL *string) error {
	return s.userRepo.UpdateAvatar(ctx, id, avatarURL)
}
