package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/services"
)

// ServerHandler, sunucu ayar endpoint'lerini yönetir.
type ServerHandler struct {
	serverService services.ServerService
	notifier      Notifier
}

// NewServerHandler, constructor.
func NewServerHandler(serverService services.ServerService, notifier Notifier) *ServerHandler {
	return &ServerHandler{serverService: serverService, notifier: notifier}
}

// Get godoc
// GET /api/server
// Instance'ın sunucu satırını döner.
func (h *ServerHandler) Get(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverService.Get(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, server)
}

// Update godoc
// PATCH /api/server
// Sunucu ayarlarını günceller ve server-updated yayınlatır.
// Admin gate arkasındadır.
func (h *ServerHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	current, err := h.serverService.Get(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}

	server, err := h.serverService.Update(r.Context(), current.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	h.notifier.NotifyServerUpdated(server)
	pkg.JSON(w, http.StatusOK, server)
}
