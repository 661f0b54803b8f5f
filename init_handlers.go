// Package main — Handler katmanı başlatma.
//
// initHandlers, tüm HTTP handler'larını oluşturur.
// Her handler, ihtiyaç duyduğu service interface'lerini constructor'dan alır.
// Handler'lar "thin" dir — sadece HTTP parse + service call + response write.
package main

import (
	"github.com/akinalp/koza/config"
	"github.com/akinalp/koza/handlers"
	"github.com/akinalp/koza/ws"
)

// Handlers, tüm handler instance'larını tutan container struct.
type Handlers struct {
	Server     *handlers.ServerHandler
	Channel    *handlers.ChannelHandler
	Role       *handlers.RoleHandler
	Invite     *handlers.InviteHandler
	Avatar     *handlers.AvatarHandler
	Credential *handlers.CredentialHandler
	Message    *handlers.MessageHandler
	Ban        *handlers.BanHandler
	Stats      *handlers.StatsHandler
	WS         *ws.Handler
}

// initHandlers, tüm handler'ları service dependency'leri ile oluşturur.
//
// hub iki şapka taşır: handler'ların Notifier'ı (REST mutasyonları canlı
// client'lara buradan duyurulur) ve stats için ConnectionCounter.
// AvatarHandler blob dizinlerini oluşturduğu için hata dönebilir.
func initHandlers(svcs *Services, hub *ws.Hub, cfg *config.Config) (*Handlers, error) {
	avatarHandler, err := handlers.NewAvatarHandler(svcs.User, svcs.Server, hub, cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	return &Handlers{
		Server:     handlers.NewServerHandler(svcs.Server, hub),
		Channel:    handlers.NewChannelHandler(svcs.Channel, svcs.Server, hub),
		Role:       handlers.NewRoleHandler(svcs.Role, svcs.Server, hub),
		Invite:     handlers.NewInviteHandler(svcs.Invite, cfg.Server.InviteAddress(), cfg.Server.TrustProxy),
		Avatar:     avatarHandler,
		Credential: handlers.NewCredentialHandler(svcs.Credential, svcs.Server),
		Message:    handlers.NewMessageHandler(svcs.Message),
		Ban:        handlers.NewBanHandler(svcs.Ban, svcs.Server),
		Stats:      handlers.NewStatsHandler(hub),
		WS:         ws.NewHandler(hub),
	}, nil
}
