package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/repository"
)

// RoleService, rol iş mantığı interface'i.
type RoleService interface {
	List(ctx context.Context, serverID string) ([]models.Role, error)
	Get(ctx context.Context, id string) (*models.Role, error)
	Create(ctx context.Context, serverID string, req *models.CreateRoleRequest) (*models.Role, error)
	Update(ctx context.Context, id string, req *models.UpdateRoleRequest) (*models.Role, error)
	Delete(ctx context.Context, id string) error

	// Assign/Unassign, üye-rol atamasını değiştirir. Rol hedef sunucuya
	// ait olmalı ve hedef kullanıcı üye olmalı.
	Assign(ctx context.Context, serverID, userID, roleID string) error
	Unassign(ctx context.Context, serverID, userID, roleID string) error

	// SetChannelOverride, (channel, role) yetki override'ını yazar.
	SetChannelOverride(ctx context.Context, channelID, roleID string, req *models.SetChannelPermissionRequest) error
	GetChannelOverrides(ctx context.Context, channelID string) ([]models.ChannelPermission, error)
}

type roleService struct {
	roleRepo     repository.RoleRepository
	memberRepo   repository.MemberRepository
	channelRepo  repository.ChannelRepository
	overrideRepo repository.ChannelPermissionRepository
	perms        PermissionInvalidator
}

// NewRoleService, constructor. perms nil olabilir (testler).
func NewRoleService(
	roleRepo repository.RoleRepository,
	memberRepo repository.MemberRepository,
	channelRepo repository.ChannelRepository,
	overrideRepo repository.ChannelPermissionRepository,
	perms PermissionInvalidator,
) RoleService {
	return &roleService{
		roleRepo:     roleRepo,
		memberRepo:   memberRepo,
		channelRepo:  channelRepo,
		overrideRepo: overrideRepo,
		perms:        perms,
	}
}

func (s *roleService) List(ctx context.Context, serverID string) ([]models.Role, error) {
	roles, err := s.roleRepo.GetByServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	if roles == nil {
		roles = []models.Role{}
	}
	return roles, nil
}

func (s *roleService) Get(ctx context.Context, id string) (*models.Role, error) {
	return s.roleRepo.GetByID(ctx, id)
}

func (s *roleService) Create(ctx context.Context, serverID string, req *models.CreateRoleRequest) (*models.Role, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	role := &models.Role{
		ID:          uuid.New().String(),
		ServerID:    serverID,
		Name:        req.Name,
		Priority:    req.Priority,
		Color:       req.Color,
		Permissions: req.Permissions,
	}

	if err := s.roleRepo.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	return role, nil
}

func (s *roleService) Update(ctx context.Context, id string, req *models.UpdateRoleRequest) (*models.Role, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	role, err := s.roleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.Priority != nil {
		role.Priority = *req.Priority
	}
	if req.Color != nil {
		role.Color = req.Color
	}
	if req.Permissions != nil {
		// Permission set verilmişse komple değiştirilir (merge yok) —
		// istemci her zaman tam kısmi-set gönderir.
		role.Permissions = req.Permissions
	}

	if err := s.roleRepo.Update(ctx, role); err != nil {
		return nil, err
	}

	// Rol tanımı değişti — kimlerin bu rolü taşıdığı cache'ten bilinemez
	if s.perms != nil {
		s.perms.InvalidateAll()
	}

	return role, nil
}

// Delete, rolü siler. Varsayılan rol silinemez — enroll akışı ona muhtaç.
func (s *roleService) Delete(ctx context.Context, id string) error {
	role, err := s.roleRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if role.IsDefault {
		return fmt.Errorf("%w: default role cannot be deleted", pkg.ErrBadRequest)
	}

	if err := s.roleRepo.Delete(ctx, id); err != nil {
		return err
	}

	if s.perms != nil {
		s.perms.InvalidateAll()
	}
	return nil
}

func (s *roleService) Assign(ctx context.Context, serverID, userID, roleID string) error {
	role, err := s.roleRepo.GetByID(ctx, roleID)
	if err != nil {
		return fmt.Errorf("%w: role not found", pkg.ErrBadRequest)
	}
	if role.ServerID != serverID {
		return fmt.Errorf("%w: role belongs to another server", pkg.ErrBadRequest)
	}

	isMember, err := s.memberRepo.IsMember(ctx, serverID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !isMember {
		return fmt.Errorf("%w: target user is not a member", pkg.ErrBadRequest)
	}

	if err := s.roleRepo.Assign(ctx, userID, serverID, roleID); err != nil {
		return err
	}

	if s.perms != nil {
		s.perms.Invalidate(userID)
	}
	return nil
}

func (s *roleService) Unassign(ctx context.Context, serverID, userID, roleID string) error {
	role, err := s.roleRepo.GetByID(ctx, roleID)
	if err != nil {
		return fmt.Errorf("%w: role not found", pkg.ErrBadRequest)
	}
	if role.ServerID != serverID {
		return fmt.Errorf("%w: role belongs to another server", pkg.ErrBadRequest)
	}

	if err := s.roleRepo.Unassign(ctx, userID, serverID, roleID); err != nil {
		return err
	}

	if s.perms != nil {
		s.perms.Invalidate(userID)
	}
	return nil
}

func (s *roleService) SetChannelOverride(ctx context.Context, channelID, roleID string, req *models.SetChannelPermissionRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return err
	}

	role, err := s.roleRepo.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role.ServerID != channel.ServerID {
		return fmt.Errorf("%w: role and channel belong to different servers", pkg.ErrBadRequest)
	}

	if err := s.overrideRepo.Set(ctx, &models.ChannelPermission{
		ChannelID:   channelID,
		RoleID:      roleID,
		Permissions: req.Permissions,
	}); err != nil {
		return err
	}

	// Override alt kanallara da sirayet eder (zincir yürüyüşü) —
	// hangi cache girdilerinin etkilendiği bilinemez, hepsi düşer
	if s.perms != nil {
		s.perms.InvalidateAll()
	}
	return nil
}

func (s *roleService) GetChannelOverrides(ctx context.Context, channelID string) ([]models.ChannelPermission, error) {
	overrides, err := s.overrideRepo.GetByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if overrides == nil {
		overrides = []models.ChannelPermission{}
	}
	return overrides, nil
}
