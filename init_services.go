// Package main — Service katmanı başlatma.
//
// initServices, tüm service implementasyonlarını oluşturur.
// Her service, ihtiyaç duyduğu repository interface'lerini ve diğer
// dependency'leri constructor injection ile alır.
package main

import (
	"database/sql"
	"log"

	"github.com/akinalp/koza/config"
	"github.com/akinalp/koza/pkg/email"
	"github.com/akinalp/koza/services"
)

// Services, tüm service instance'larını tutan container struct.
type Services struct {
	User       services.UserService
	Server     services.ServerService
	Channel    services.ChannelService
	Member     services.MemberService
	Role       services.RoleService
	Permission services.PermissionService
	Credential services.CredentialService
	Invite     services.InviteService
	Ban        services.BanService
	Message    services.MessageService
}

// initServices, tüm service'leri oluşturur.
//
// conn, invite redeem'inin açık transaction'ı için ham bağlantı olarak
// InviteService'e de verilir — redeem+mint atomikliği SQL seviyesindedir.
func initServices(conn *sql.DB, repos *Repositories, cfg *config.Config) *Services {
	// ─── Email service (opsiyonel) ───
	var emailSender email.EmailSender
	if cfg.Email.ResendAPIKey != "" {
		emailSender = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.FromAddress)
		log.Printf("[main] invite email enabled (from=%s)", cfg.Email.FromAddress)
	} else {
		log.Println("[main] invite email disabled (RESEND_API_KEY not set)")
	}

	// Permission önce kurulur: rol/üyelik/kanal mutasyonu yapan servisler
	// onun çözümleme cache'ini düşürmek için referansını alır.
	permission := services.NewPermissionService(repos.Role, repos.Channel, repos.ChannelPermission)

	return &Services{
		User:       services.NewUserService(repos.User),
		Server:     services.NewServerService(repos.Server, repos.Channel, repos.Role),
		Channel:    services.NewChannelService(repos.Channel, permission),
		Member:     services.NewMemberService(repos.Member, repos.Role, permission),
		Role:       services.NewRoleService(repos.Role, repos.Member, repos.Channel, repos.ChannelPermission, permission),
		Permission: permission,
		Credential: services.NewCredentialService(repos.Credential),
		Invite:     services.NewInviteService(conn, repos.Invite, repos.Credential, repos.Server, repos.Member, emailSender),
		Ban:        services.NewBanService(repos.Ban),
		Message:    services.NewMessageService(repos.Message),
	}
}
