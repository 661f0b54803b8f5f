package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/services"
)

// RoleHandler, rol ve kanal-override endpoint'lerini yönetir. Her yetki
// mutasyonu sonrası çevrimiçi kullanıcıların etkin setleri yeniden
// hesaplanıp kendilerine itilir.
type RoleHandler struct {
	roleService   services.RoleService
	serverService services.ServerService
	notifier      Notifier
}

// NewRoleHandler, constructor.
func NewRoleHandler(
	roleService services.RoleService,
	serverService services.ServerService,
	notifier Notifier,
) *RoleHandler {
	return &RoleHandler{
		roleService:   roleService,
		serverService: serverService,
		notifier:      notifier,
	}
}

// List godoc
// GET /api/roles
// Rol kataloğunu öncelik sırasıyla döner.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverService.Get(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	roles, err := h.roleService.List(r.Context(), server.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, roles)
}

// Create godoc
// POST /api/roles
// Yeni rol oluşturur.
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	server, err := h.serverService.Get(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}

	role, err := h.roleService.Create(r.Context(), server.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	h.notifier.NotifyPermissionsChanged(server.ID)
	pkg.JSON(w, http.StatusCreated, role)
}

// Update godoc
// PATCH /api/roles/{id}
// Rol tanımını günceller; yetki seti değişmiş olabileceği için herkese
// taze etkin yetkiler itilir.
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.roleService.Update(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	h.notifier.NotifyPermissionsChanged(role.ServerID)
	pkg.JSON(w, http.StatusOK, role)
}

// Delete godoc
// DELETE /api/roles/{id}
// Rolü siler. Varsayılan rol silinemez (servis reddeder).
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	role, err := h.roleService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if err := h.roleService.Delete(r.Context(), role.ID); err != nil {
		pkg.Error(w, err)
		return
	}

	h.notifier.NotifyPermissionsChanged(role.ServerID)
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "role deleted"})
}

// SetOverride godoc
// PUT /api/channels/{channelId}/permissions/{roleId}
// (kanal, rol) çifti için yetki override'ını yazar. Gönderilmeyen
// key'ler inherit sayılır; inherit değerli key override satırından düşer.
func (h *RoleHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var req models.SetChannelPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.roleService.Get(r.Context(), r.PathValue("roleId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if err := h.roleService.SetChannelOverride(r.Context(), r.PathValue("channelId"), role.ID, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	h.notifier.NotifyPermissionsChanged(role.ServerID)
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "override updated"})
}

// GetOverrides godoc
// GET /api/channels/{channelId}/permissions
// Kanalın tüm rol override'larını döner.
func (h *RoleHandler) GetOverrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.roleService.GetChannelOverrides(r.Context(), r.PathValue("channelId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, overrides)
}
