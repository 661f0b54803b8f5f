package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/pkg/i18n"
	"github.com/akinalp/koza/pkg/ratelimit"
	"github.com/akinalp/koza/services"
)

// redeemLimit / redeemWindow: redeem endpoint'i auth'suzdur ve davet
// token'ı brute-force edilebilir; IP başına pencere bunu anlamsız kılar.
const (
	redeemLimit  = 20
	redeemWindow = time.Minute
)

// InviteHandler, davet kodu endpoint'lerini yönetir.
type InviteHandler struct {
	inviteService services.InviteService
	// serverAddress, mint edilen davetlere gömülen kanonik adres.
	// Lookup her zaman DB'de saklanan değeri döner — config sonradan
	// değişse bile eski davetler bastıkları adresi korur.
	serverAddress string
	redeemLimiter *ratelimit.SlidingWindow
	trustProxy    bool
}

// NewInviteHandler, constructor.
func NewInviteHandler(inviteService services.InviteService, serverAddress string, trustProxy bool) *InviteHandler {
	return &InviteHandler{
		inviteService: inviteService,
		serverAddress: serverAddress,
		redeemLimiter: ratelimit.NewSlidingWindow(redeemLimit, redeemWindow),
		trustProxy:    trustProxy,
	}
}

// Mint godoc
// POST /api/servers/{serverId}/invites
// Yeni davet basar. Admin gate arkasındadır.
func (h *InviteHandler) Mint(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("serverId")

	var req models.CreateInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// E-posta dili: istek belirtmediyse mint edenin tarayıcı dili
	if req.Language == "" {
		req.Language = i18n.DetectLanguage(r.Header.Get("Accept-Language"))
	}

	invite, err := h.inviteService.Mint(r.Context(), serverID, h.serverAddress, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, invite)
}

// List godoc
// GET /api/servers/{serverId}/invites
// Sunucunun aktif davetlerini listeler. Admin gate arkasındadır.
func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	invites, err := h.inviteService.List(r.Context(), r.PathValue("serverId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, invites)
}

// Delete godoc
// DELETE /api/invites/{id}
// Daveti iptal eder. Admin gate arkasındadır.
func (h *InviteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.inviteService.Delete(r.Context(), r.PathValue("id")); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "invite deleted"})
}

// Lookup godoc
// GET /api/invites/{token}
// Davetin auth'suz ön izlemesi: sunucu adı, ikon, üye sayısı ve DB'deki
// kanonik adres. İstemci "katıl" ekranını bununla çizer.
func (h *InviteHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	preview, err := h.inviteService.Lookup(r.Context(), r.PathValue("token"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, preview)
}

// Redeem godoc
// POST /api/invites/redeem
// Daveti tek kullanımlık credential'a çevirir. Auth'suz ama IP başına
// 20/60sn pencereyle sınırlı; aşan istekler Retry-After başlığı alır.
func (h *InviteHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ExtractIP(r, h.trustProxy)
	if !h.redeemLimiter.Allow(ip) {
		retry := h.redeemLimiter.RetryAfterSeconds(ip)
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		pkg.ErrorWithMessage(w, http.StatusTooManyRequests, ratelimit.FormatRetryMessage(retry))
		return
	}

	var req models.RedeemInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.inviteService.Redeem(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, result)
}
