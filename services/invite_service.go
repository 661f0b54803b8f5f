// Package services — InviteService: davet kodu iş mantığı.
//
// Kod üretimi: crypto/rand ile 8 byte → hex string → 16 karakter benzersiz kod.
// Redeem, transaction içinde iki adım atar: kullanım hakkını koşullu UPDATE
// ile düş, session credential'ı yaz. Credential plaintext'i yalnızca redeem
// cevabında görünür — DB'ye SHA-256 hash'i girer.
package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/akinalp/koza/database"
	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/pkg/email"
	"github.com/akinalp/koza/pkg/metrics"
	"github.com/akinalp/koza/repository"
)

// InviteService, davet kodu iş mantığı interface'i.
type InviteService interface {
	// Mint, yeni bir davet kodu basar (admin REST).
	// serverAddress, davetin taşıyacağı kanonik sunucu adresidir.
	// req.Email doluysa ve email sender yapılandırılmışsa davet
	// alıcıya mail ile de gönderilir (best-effort).
	Mint(ctx context.Context, serverID, serverAddress string, req *models.CreateInviteRequest) (*models.InviteToken, error)

	// Lookup, davet kodunun auth'suz ön izlemesini döner.
	// Sunucu adresi DB'deki kanonik değerden yeniden yayınlanır.
	Lookup(ctx context.Context, token string) (*models.InvitePreview, error)

	// Redeem, daveti tek kullanımlık credential'a çevirir.
	Redeem(ctx context.Context, req *models.RedeemInviteRequest) (*models.RedeemInviteResult, error)

	List(ctx context.Context, serverID string) ([]models.InviteToken, error)
	Delete(ctx context.Context, id string) error
}

type inviteService struct {
	conn       *sql.DB
	inviteRepo repository.InviteRepository
	credRepo   repository.CredentialRepository
	serverRepo repository.ServerRepository
	memberRepo repository.MemberRepository
	sender     email.EmailSender // nil olabilir — email opsiyonel
}

// NewInviteService, constructor.
//
// conn: redeem'in WithTx çağrısı için ham bağlantı. sender nil geçilirse
// email gönderimi sessizce atlanır.
func NewInviteService(
	conn *sql.DB,
	inviteRepo repository.InviteRepository,
	credRepo repository.CredentialRepository,
	serverRepo repository.ServerRepository,
	memberRepo repository.MemberRepository,
	sender email.EmailSender,
) InviteService {
	return &inviteService{
		conn:       conn,
		inviteRepo: inviteRepo,
		credRepo:   credRepo,
		serverRepo: serverRepo,
		memberRepo: memberRepo,
		sender:     sender,
	}
}

func (s *inviteService) Mint(ctx context.Context, serverID, serverAddress string, req *models.CreateInviteRequest) (*models.InviteToken, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	// Kod üret: 8 byte rastgele → 16 hex karakter.
	// crypto/rand kriptografik güvenli üretir — davet kodları tahmin edilemez.
	tokenBytes := make([]byte, 8)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate invite token: %w", err)
	}

	invite := &models.InviteToken{
		ID:            uuid.New().String(),
		ServerID:      serverID,
		Token:         hex.EncodeToString(tokenBytes),
		ServerAddress: serverAddress,
	}
	if req.MaxUses > 0 {
		maxUses := req.MaxUses
		invite.MaxUses = &maxUses
	}
	if req.ExpiresIn > 0 {
		expiresAt := time.Now().UTC().Add(time.Duration(req.ExpiresIn) * time.Minute)
		invite.ExpiresAt = &expiresAt
	}

	if err := s.inviteRepo.Create(ctx, invite); err != nil {
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}

	// Email best-effort: gönderim hatası daveti geçersiz kılmaz,
	// kod zaten API cevabında dönüyor.
	if req.Email != "" && s.sender != nil {
		server, err := s.serverRepo.GetByID(ctx, serverID)
		if err != nil {
			log.Printf("[invite] email skipped, server lookup failed: %v", err)
			return invite, nil
		}
		if err := s.sender.SendInvite(ctx, req.Email, server.Name, serverAddress, invite.Token, req.Language); err != nil {
			log.Printf("[invite] email delivery failed: %v", err)
		}
	}

	return invite, nil
}

func (s *inviteService) Lookup(ctx context.Context, token string) (*models.InvitePreview, error) {
	invite, err := s.inviteRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	server, err := s.serverRepo.GetByID(ctx, invite.ServerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invite server: %w", err)
	}

	memberCount, err := s.memberRepo.Count(ctx, invite.ServerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}

	return &models.InvitePreview{
		ServerName:    server.Name,
		ServerIconURL: server.IconURL,
		ServerAddress: invite.ServerAddress,
		MemberCount:   memberCount,
	}, nil
}

// Redeem akışı:
//  1. Koşullu UPDATE ile kullanım hakkını düş (yarışlar SQL'de çözülür)
//  2. 32 byte'lık credential üret, SHA-256 hash'ini sakla
//
// İki adım tek transaction'dadır: credential yazılamazsa kullanım
// hakkı da geri gelir.
func (s *inviteService) Redeem(ctx context.Context, req *models.RedeemInviteRequest) (*models.RedeemInviteResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("failed to generate credential: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)
	hash := HashCredential(secret)

	var result *models.RedeemInviteResult
	err := database.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		invite, err := s.inviteRepo.Redeem(ctx, tx, req.Token)
		if err != nil {
			return err
		}

		cred := &models.SessionCredential{
			ID:             uuid.New().String(),
			ServerID:       invite.ServerID,
			CredentialHash: hash,
			InviteTokenID:  invite.ID,
		}
		if err := s.credRepo.Create(ctx, tx, cred); err != nil {
			return err
		}

		result = &models.RedeemInviteResult{
			Credential:    secret,
			ServerAddress: invite.ServerAddress,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.InvitesRedeemedTotal.Inc()

	server, err := s.serverRepo.GetDefault(ctx)
	if err == nil {
		result.ServerName = server.Name
	}

	return result, nil
}

func (s *inviteService) List(ctx context.Context, serverID string) ([]models.InviteToken, error) {
	invites, err := s.inviteRepo.List(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if invites == nil {
		invites = []models.InviteToken{}
	}
	return invites, nil
}

func (s *inviteService) Delete(ctx context.Context, id string) error {
	return s.inviteRepo.Delete(ctx, id)
}

// HashCredential, credential plaintext'ini saklanan forma çevirir.
// SHA-256 yeterlidir: girdi 32 byte crypto/rand çıktısıdır, brute-force
// arama uzayı zaten parola değil anahtar boyutundadır.
func HashCredential(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
