package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/services"
)

// ChannelHandler, kanal CRUD endpoint'lerini yönetir. Mutasyonlar admin
// gate arkasındadır; her başarılı yazma canlı istemcilere duyurulur.
type ChannelHandler struct {
	channelService services.ChannelService
	serverService  services.ServerService
	notifier       Notifier
}

// NewChannelHandler, constructor.
func NewChannelHandler(
	channelService services.ChannelService,
	serverService services.ServerService,
	notifier Notifier,
) *ChannelHandler {
	return &ChannelHandler{
		channelService: channelService,
		serverService:  serverService,
		notifier:       notifier,
	}
}

// List godoc
// GET /api/channels
// Sunucunun kanal ağacını düz liste olarak döner; hiyerarşi parentId
// üzerinden istemcide kurulur.
func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverService.Get(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	channels, err := h.channelService.List(r.Context(), server.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, channels)
}

// Create godoc
// POST /api/channels
// Yeni kanal oluşturur ve channel-created yayınlatır.
func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	server, err := h.serverService.Get(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}

	channel, err := h.channelService.Create(r.Context(), server.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	h.notifier.NotifyChannelCreated(channel)
	pkg.JSON(w, http.StatusCreated, channel)
}

// Update godoc
// PATCH /api/channels/{id}
// Kanalı günceller; değişiklik upsert anlamında channel-created ile
// yayınlanır.
func (h *ChannelHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req models.UpdateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	channel, err := h.channelService.Update(r.Context(), id, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	h.notifier.NotifyChannelUpdated(channel)
	pkg.JSON(w, http.StatusOK, channel)
}

// Delete godoc
// DELETE /api/channels/{id}
// Kanalı siler. Varsayılan kanal silinemez (servis reddeder). Silme
// sonrası hub kanaldakileri varsayılan kanala taşır ve router'ı kapatır.
func (h *ChannelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	channel, err := h.channelService.Get(r.Context(), id)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if err := h.channelService.Delete(r.Context(), id); err != nil {
		pkg.Error(w, err)
		return
	}

	h.notifier.NotifyChannelDeleted(channel.ServerID, channel.ID)
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "channel deleted"})
}
