// Package main — HTTP route registration.
//
// initRoutes, tüm API endpoint'lerini mux'a bağlar.
//
// REST tarafında kullanıcı oturumu yoktur; kimlik WS auth'ta kurulur.
// Bu yüzden route'lar iki sınıftır: public (davet lookup/redeem, blob
// serve, healthz) ve admin (bearer token ile korunan yönetim yüzeyi).
package main

import (
	"net/http"

	"github.com/akinalp/koza/middleware"
	"github.com/akinalp/koza/pkg/metrics"
)

// initRoutes, middleware chain'i kurar ve tüm endpoint'leri mux'a bağlar.
//
// Route sıralama kuralı: Go 1.22 router'ında en spesifik pattern kazanır;
// metot + segment sayısı farklı olduğu sürece çakışma olmaz.
func initRoutes(mux *http.ServeMux, h *Handlers, adminMw *middleware.AdminMiddleware) {
	// ─── Middleware Chain Helper ───
	admin := func(handler http.HandlerFunc) http.Handler {
		return adminMw.Require(http.HandlerFunc(handler))
	}

	// ╔══════════════════════════════════════════╗
	// ║  PUBLIC ROUTES                            ║
	// ╚══════════════════════════════════════════╝

	// Health check
	mux.HandleFunc("GET /healthz", h.Stats.Healthz)

	// Invites — lookup ve redeem public'tir: davet alan kişinin henüz
	// hiçbir kimliği yoktur. Redeem kendi rate limiter'ını taşır.
	mux.HandleFunc("GET /api/invites/{token}", h.Invite.Lookup)
	mux.HandleFunc("POST /api/invites/redeem", h.Invite.Redeem)

	// Blob serve — client'lar üye listesindeki avatarUrl/iconUrl'leri
	// doğrudan buradan çeker.
	mux.HandleFunc("GET /api/avatars/{file}", h.Avatar.ServeAvatar)
	mux.HandleFunc("GET /api/icons/{file}", h.Avatar.ServeIcon)

	// Avatar upload — REST'te kullanıcı oturumu olmadığından path'teki
	// userId ile anahtarlanır; URL'i üyelere duyurmak WS tarafının işidir.
	mux.HandleFunc("POST /api/users/{userId}/avatar", h.Avatar.UploadUserAvatar)

	// WebSocket — auth socket üzerinden yapılır (auth frame'i).
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)

	// ╔══════════════════════════════════════════╗
	// ║  ADMIN ROUTES (bearer token)              ║
	// ╚══════════════════════════════════════════╝

	// Server
	mux.Handle("GET /api/server", admin(h.Server.Get))
	mux.Handle("PATCH /api/server", admin(h.Server.Update))
	mux.Handle("POST /api/server/icon", admin(h.Avatar.UploadServerIcon))

	// Channels
	mux.Handle("GET /api/channels", admin(h.Channel.List))
	mux.Handle("POST /api/channels", admin(h.Channel.Create))
	mux.Handle("PATCH /api/channels/{id}", admin(h.Channel.Update))
	mux.Handle("DELETE /api/channels/{id}", admin(h.Channel.Delete))

	// Roles
	mux.Handle("GET /api/roles", admin(h.Role.List))
	mux.Handle("POST /api/roles", admin(h.Role.Create))
	mux.Handle("PATCH /api/roles/{id}", admin(h.Role.Update))
	mux.Handle("DELETE /api/roles/{id}", admin(h.Role.Delete))

	// Channel permission overrides
	mux.Handle("GET /api/channels/{channelId}/permissions", admin(h.Role.GetOverrides))
	mux.Handle("PUT /api/channels/{channelId}/permissions/{roleId}", admin(h.Role.SetOverride))

	// Invites — mint/list/delete yönetim işidir
	mux.Handle("POST /api/servers/{serverId}/invites", admin(h.Invite.Mint))
	mux.Handle("GET /api/servers/{serverId}/invites", admin(h.Invite.List))
	mux.Handle("DELETE /api/invites/{id}", admin(h.Invite.Delete))

	// Credentials
	mux.Handle("GET /api/credentials", admin(h.Credential.List))
	mux.Handle("POST /api/credentials/{id}/revoke", admin(h.Credential.Revoke))

	// Message export — şifreli arşiv; sunucu içeriği zaten okuyamaz ama
	// erişimi yine de admin'e kısıtlıyoruz.
	mux.Handle("GET /api/channels/{channelId}/messages", admin(h.Message.Export))

	// Bans
	mux.Handle("GET /api/bans", admin(h.Ban.List))
	mux.Handle("DELETE /api/bans/{userId}", admin(h.Ban.Unban))

	// Observability
	mux.Handle("GET /api/stats", admin(h.Stats.Stats))
	mux.Handle("GET /metrics", adminMw.Require(metrics.Handler()))
}
