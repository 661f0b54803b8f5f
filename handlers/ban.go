package handlers

import (
	"net/http"

	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/services"
)

// BanHandler, ban listesinin admin endpoint'leri. Ban koyma WS
// üzerindendir (moderatör bağlamı gerekir); REST tarafı liste ve aftır.
type BanHandler struct {
	banService    services.BanService
	serverService services.ServerService
}

// NewBanHandler, constructor.
func NewBanHandler(banService services.BanService, serverService services.ServerService) *BanHandler {
	return &BanHandler{banService: banService, serverService: serverService}
}

// List godoc
// GET /api/bans
// Aktif ban kayıtlarını döner. Süresi dolanlar kontrol anında lazily
// temizlendiği için listede görünmez. Admin gate arkasındadır.
func (h *BanHandler) List(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverService.Get(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	bans, err := h.banService.List(r.Context(), server.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, bans)
}

// Unban godoc
// DELETE /api/bans/{userId}
// Kullanıcının yasağını kaldırır. Admin gate arkasındadır.
func (h *BanHandler) Unban(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverService.Get(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.banService.Unban(r.Context(), server.ID, r.PathValue("userId")); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "ban lifted"})
}
