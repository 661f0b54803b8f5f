package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/repository"
)

// MemberService, sunucu üyeliği iş mantığı interface'i.
type MemberService interface {
	// Enroll, kullanıcıyı sunucuya kaydeder ve varsayılan rolü atar.
	// Her auth'ta çağrılır — ikisi de idempotent'tir.
	Enroll(ctx context.Context, serverID, userID, nickname string) error
	// ListMembers, joined-server frame'i için üye listesini hazırlar.
	// Canlı alanlar (channelId, mute/deafen, online) sıfır değerde döner;
	// hub kendi registry'sinden üstüne yazar.
	ListMembers(ctx context.Context, serverID string) ([]models.MemberInfo, error)
	IsMember(ctx context.Context, serverID, userID string) (bool, error)
	Remove(ctx context.Context, serverID, userID string) error
	Count(ctx context.Context, serverID string) (int, error)
}

type memberService struct {
	memberRepo repository.MemberRepository
	roleRepo   repository.RoleRepository
	perms      PermissionInvalidator
}

// NewMemberService, constructor. perms nil olabilir (testler).
func NewMemberService(
	memberRepo repository.MemberRepository,
	roleRepo repository.RoleRepository,
	perms PermissionInvalidator,
) MemberService {
	return &memberService{
		memberRepo: memberRepo,
		roleRepo:   roleRepo,
		perms:      perms,
	}
}

func (s *memberService) Enroll(ctx context.Context, serverID, userID, nickname string) error {
	member := &models.ServerMember{
		ServerID:       serverID,
		UserID:         userID,
		JoinedNickname: nickname,
	}
	if err := s.memberRepo.Add(ctx, member); err != nil {
		return fmt.Errorf("failed to enroll member: %w", err)
	}

	// Varsayılan rol atanır. Sunucuda default rol yoksa (admin silmiş
	// olabilir) enroll yine başarılıdır — kullanıcı rolsüz kalır.
	defaultRole, err := s.roleRepo.GetDefault(ctx, serverID)
	if errors.Is(err, pkg.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get default role: %w", err)
	}

	if err := s.roleRepo.Assign(ctx, userID, serverID, defaultRole.ID); err != nil {
		return fmt.Errorf("failed to assign default role: %w", err)
	}

	// Kick sonrası yeniden katılım: eski üyeliğin cache kalıntısı düşer
	if s.perms != nil {
		s.perms.Invalidate(userID)
	}
	return nil
}

func (s *memberService) ListMembers(ctx context.Context, serverID string) ([]models.MemberInfo, error) {
	users, err := s.memberRepo.GetUsers(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member users: %w", err)
	}

	roleIDs, err := s.roleRepo.GetRoleIDsByMember(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member roles: %w", err)
	}

	members := make([]models.MemberInfo, 0, len(users))
	for _, u := range users {
		ids := roleIDs[u.ID]
		if ids == nil {
			ids = []string{}
		}
		members = append(members, models.MemberInfo{
			UserID:    u.ID,
			Nickname:  u.Nickname,
			PublicKey: u.PublicKey,
			RoleIDs:   ids,
			AvatarURL: u.AvatarURL,
		})
	}

	return members, nil
}

func (s *memberService) IsMember(ctx context.Context, serverID, userID string) (bool, error) {
	return s.memberRepo.IsMember(ctx, serverID, userID)
}

func (s *memberService) Remove(ctx context.Context, serverID, userID string) error {
	if err := s.memberRepo.Remove(ctx, serverID, userID); err != nil {
		return err
	}

	if s.perms != nil {
		s.perms.Invalidate(userID)
	}
	return nil
}

func (s *memberService) Count(ctx context.Context, serverID string) (int, error) {
	return s.memberRepo.Count(ctx, serverID)
}
