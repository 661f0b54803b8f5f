package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/repository"
)

// ChannelService, kanal iş mantığı interface'i.
//
// Kanal ağacı kuralları burada uygulanır: parent aynı sunucuda olmalı,
// döngü (cycle) oluşamaz, varsayılan kanal silinemez. Broadcast'ler bu
// katmanda DEĞİL çağıranın katmanındadır — REST handler channel-created
// yayınını kendisi yapar.
type ChannelService interface {
	List(ctx context.Context, serverID string) ([]models.Channel, error)
	Get(ctx context.Context, id string) (*models.Channel, error)
	// GetDefault, sunucunun varsayılan kanalını döner.
	GetDefault(ctx context.Context, serverID string) (*models.Channel, error)
	Create(ctx context.Context, serverID string, req *models.CreateChannelRequest) (*models.Channel, error)
	Update(ctx context.Context, id string, req *models.UpdateChannelRequest) (*models.Channel, error)
	Delete(ctx context.Context, id string) error
}

type channelService struct {
	channelRepo repository.ChannelRepository
	perms       PermissionInvalidator
}

// NewChannelService, constructor — interface döner. perms nil olabilir.
func NewChannelService(channelRepo repository.ChannelRepository, perms PermissionInvalidator) ChannelService {
	return &channelService{channelRepo: channelRepo, perms: perms}
}

func (s *channelService) List(ctx context.Context, serverID string) ([]models.Channel, error) {
	channels, err := s.channelRepo.GetByServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	// nil slice yerine boş slice döndür (JSON'da [] olması için, null değil)
	if channels == nil {
		channels = []models.Channel{}
	}

	return channels, nil
}

func (s *channelService) Get(ctx context.Context, id string) (*models.Channel, error) {
	return s.channelRepo.GetByID(ctx, id)
}

func (s *channelService) GetDefault(ctx context.Context, serverID string) (*models.Channel, error) {
	return s.channelRepo.GetDefault(ctx, serverID)
}

// Create, yeni bir kanal oluşturur.
//
// Parent kuralı: parentId verilmişse o kanal var olmalı ve AYNI sunucuda
// olmalı. Yeni kanal kimsenin atası olamayacağı için cycle kontrolü
// burada gerekmez — o risk sadece Update'teki parent değişiminde var.
func (s *channelService) Create(ctx context.Context, serverID string, req *models.CreateChannelRequest) (*models.Channel, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if req.ParentID != nil {
		parent, err := s.channelRepo.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, fmt.Errorf("%w: parent channel not found", pkg.ErrBadRequest)
		}
		if parent.ServerID != serverID {
			return nil, fmt.Errorf("%w: parent channel belongs to another server", pkg.ErrBadRequest)
		}
	}

	channel := &models.Channel{
		ID:        uuid.New().String(),
		ServerID:  serverID,
		ParentID:  req.ParentID,
		Name:      req.Name,
		Position:  req.Position,
		MaxUsers:  req.MaxUsers,
		JoinPower: req.JoinPower,
		TalkPower: req.TalkPower,
	}
	if req.Description != "" {
		channel.Description = &req.Description
	}

	if err := s.channelRepo.Create(ctx, channel); err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	return channel, nil
}

// Update, mevcut bir kanalı günceller.
//
// Parent değişiminde cycle kontrolü: yeni parent'ın kök zinciri bu
// kanalı içeriyorsa işlem reddedilir (kanal kendi altına taşınamaz).
func (s *channelService) Update(ctx context.Context, id string, req *models.UpdateChannelRequest) (*models.Channel, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	channel, err := s.channelRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	parentChanged := false
	switch {
	case req.ClearParent:
		channel.ParentID = nil
		parentChanged = true
	case req.ParentID != nil:
		if *req.ParentID == id {
			return nil, fmt.Errorf("%w: channel cannot be its own parent", pkg.ErrBadRequest)
		}

		parent, err := s.channelRepo.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, fmt.Errorf("%w: parent channel not found", pkg.ErrBadRequest)
		}
		if parent.ServerID != channel.ServerID {
			return nil, fmt.Errorf("%w: parent channel belongs to another server", pkg.ErrBadRequest)
		}

		// Cycle kontrolü: yeni parent'ın zincirinde bu kanal varsa,
		// taşıma kanalı kendi alt ağacının altına sokar.
		path, err := s.channelRepo.GetPath(ctx, parent.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check parent chain: %w", err)
		}
		for _, ancestor := range path {
			if ancestor.ID == id {
				return nil, fmt.Errorf("%w: move would create a cycle", pkg.ErrBadRequest)
			}
		}

		channel.ParentID = req.ParentID
		parentChanged = true
	}

	// Sadece gelen alanları güncelle (partial update pattern)
	if req.Name != nil {
		channel.Name = *req.Name
	}
	if req.Description != nil {
		channel.Description = req.Description
	}
	if req.Position != nil {
		channel.Position = *req.Position
	}
	if req.MaxUsers != nil {
		channel.MaxUsers = *req.MaxUsers
	}
	if req.JoinPower != nil {
		channel.JoinPower = *req.JoinPower
	}
	if req.TalkPower != nil {
		channel.TalkPower = *req.TalkPower
	}

	if err := s.channelRepo.Update(ctx, channel); err != nil {
		return nil, err
	}

	// Taşınan kanalın (ve alt ağacının) override zinciri değişti
	if parentChanged && s.perms != nil {
		s.perms.InvalidateAll()
	}

	return channel, nil
}

// Delete, bir kanalı siler. Varsayılan kanal silinemez.
// Alt kanalların parent_id'si DB tarafında NULL'a düşer (köke çıkarlar).
func (s *channelService) Delete(ctx context.Context, id string) error {
	channel, err := s.channelRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if channel.IsDefault {
		return fmt.Errorf("%w: default channel cannot be deleted", pkg.ErrBadRequest)
	}

	if err := s.channelRepo.Delete(ctx, id); err != nil {
		return err
	}

	// Alt kanallar köke çıktı, bu kanalın override'ları da gitti
	if s.perms != nil {
		s.perms.InvalidateAll()
	}
	return nil
}
