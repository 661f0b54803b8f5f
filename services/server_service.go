// Package services, iş mantığı (business logic) katmanıdır.
//
// Service katmanı repository'lerden okur/yazar, validation ve domain
// kurallarını uygular. WebSocket hub'ı ve HTTP handler'ları service'leri
// çağırır — tersi asla olmaz (services ws'i import etmez).
package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/repository"
)

// ServerService, sunucu iş mantığı interface'i.
type ServerService interface {
	// EnsureDefaults, instance'ın varsayılanlarını garanti eder:
	// sunucu satırı, varsayılan kanallar ve varsayılan roller.
	// İdempotent'tir — her başlatmada çağrılır, ikinci çağrı dokunmaz.
	EnsureDefaults(ctx context.Context) (*models.Server, error)

	// Get, instance'ın sunucusunu döner.
	Get(ctx context.Context) (*models.Server, error)
	GetByID(ctx context.Context, id string) (*models.Server, error)
	Update(ctx context.Context, id string, req *models.UpdateServerRequest) (*models.Server, error)
	UpdateIcon(ctx context.Context, id string, iconURL *string) error
}

type serverService struct {
	serverRepo  repository.ServerRepository
	channelRepo repository.ChannelRepository
	roleRepo    repository.RoleRepository
}

// NewServerService, constructor — interface döner.
func NewServerService(
	serverRepo repository.ServerRepository,
	channelRepo repository.ChannelRepository,
	roleRepo repository.RoleRepository,
) ServerService {
	return &serverService{
		serverRepo:  serverRepo,
		channelRepo: channelRepo,
		roleRepo:    roleRepo,
	}
}

// EnsureDefaults, bootstrap akışı:
//  1. Sunucu yoksa "Koza" adıyla oluştur
//  2. Sunucunun hiç kanalı yoksa Lobby (varsayılan) / General / AFK aç
//  3. Sunucunun hiç rolü yoksa Admin / Member (varsayılan) / Guest aç
//
// Kanal ve rol kontrolleri ayrı ayrıdır: admin tüm kanalları silmişse
// yeniden üretmeyiz, sadece taze kurulumda üretiriz ("hiç yok" durumu).
func (s *serverService) EnsureDefaults(ctx context.Context) (*models.Server, error) {
	server, err := s.serverRepo.GetDefault(ctx)
	if errors.Is(err, pkg.ErrNotFound) {
		server = &models.Server{
			ID:                 uuid.New().String(),
			Name:               "Koza",
			MaxUsers:           100,
			MaxWebcamProducers: 4,
			MaxScreenProducers: 2,
		}
		if err := s.serverRepo.Create(ctx, server); err != nil {
			return nil, fmt.Errorf("failed to create default server: %w", err)
		}
		log.Printf("[server] created default server %s", server.ID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to resolve default server: %w", err)
	}

	if err := s.ensureDefaultChannels(ctx, server.ID); err != nil {
		return nil, err
	}
	if err := s.ensureDefaultRoles(ctx, server.ID); err != nil {
		return nil, err
	}

	return server, nil
}

func (s *serverService) ensureDefaultChannels(ctx context.Context, serverID string) error {
	count, err := s.channelRepo.CountByServer(ctx, serverID)
	if err != nil {
		return fmt.Errorf("failed to count channels: %w", err)
	}
	if count > 0 {
		return nil
	}

	defaults := []models.Channel{
		{Name: "Lobby", Position: 0, IsDefault: true},
		{Name: "General", Position: 1},
		{Name: "AFK", Position: 2},
	}

	for i := range defaults {
		ch := &defaults[i]
		ch.ID = uuid.New().String()
		ch.ServerID = serverID
		if err := s.channelRepo.Create(ctx, ch); err != nil {
			return fmt.Errorf("failed to create default channel %s: %w", ch.Name, err)
		}
	}

	log.Printf("[server] created %d default channels", len(defaults))
	return nil
}

func (s *serverService) ensureDefaultRoles(ctx context.Context, serverID string) error {
	roles, err := s.roleRepo.GetByServer(ctx, serverID)
	if err != nil {
		return fmt.Errorf("failed to list roles: %w", err)
	}
	if len(roles) > 0 {
		return nil
	}

	adminColor, memberColor := "#e8a33d", "#6366f1"
	defaults := []models.Role{
		{
			Name:     "Admin",
			Priority: 100,
			Color:    &adminColor,
			Permissions: models.PermissionSet{
				models.PermAdmin: models.PermAllow,
			},
		},
		{
			Name:      "Member",
			Priority:  10,
			Color:     &memberColor,
			IsDefault: true,
			Permissions: models.PermissionSet{
				models.PermJoin:        models.PermAllow,
				models.PermSpeak:       models.PermAllow,
				models.PermVideo:       models.PermAllow,
				models.PermScreenShare: models.PermAllow,
				models.PermChat:        models.PermAllow,
			},
		},
		{
			Name:     "Guest",
			Priority: 1,
			Permissions: models.PermissionSet{
				models.PermJoin: models.PermAllow,
			},
		},
	}

	for i := range defaults {
		role := &defaults[i]
		role.ID = uuid.New().String()
		role.ServerID = serverID
		if err := s.roleRepo.Create(ctx, role); err != nil {
			return fmt.Errorf("failed to create default role %s: %w", role.Name, err)
		}
	}

	log.Printf("[server] created %d default roles", len(defaults))
	return nil
}

func (s *serverService) Get(ctx context.Context) (*models.Server, error) {
	server, err := s.serverRepo.GetDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	return server, nil
}

func (s *serverService) GetByID(ctx context.Context, id string) (*models.Server, error) {
	return s.serverRepo.GetByID(ctx, id)
}

func (s *serverService) Update(ctx context.Context, id string, req *models.UpdateServerRequest) (*models.Server, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	server, err := s.serverRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Sadece gelen alanları güncelle (partial update pattern)
	if req.Name != nil {
		server.Name = *req.Name
	}
	if req.Description != nil {
		server.Description = req.Description
	}
	if req.MaxUsers != nil {
		server.MaxUsers = *req.MaxUsers
	}
	if req.MaxWebcamProducers != nil {
		server.MaxWebcamProducers = *req.MaxWebcamProducers
	}
	if req.MaxScreenProducers != nil {
		server.MaxScreenProducers = *req.MaxScreenProducers
	}

	if err := s.serverRepo.Update(ctx, server); err != nil {
		return nil, err
	}

	return server, nil
}

func (s *serverService) UpdateIcon(ctx context.Context, id string, iconURL *string) error {
	return s.serverRepo.UpdateIcon(ctx, id, iconURL)
}
