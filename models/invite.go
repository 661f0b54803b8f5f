// Package models — Invite domain modeli.
//
// InviteToken, sunucuya katılmak için dağıtılan davet kodunu temsil eder.
// Redeem edilen her davet bir SessionCredential üretir; davetin kendisi
// bağlantı kurmaz, sadece credential basar. Opsiyonel son kullanma
// tarihi ve maksimum kullanım sayısı olabilir.
package models

import (
	"fmt"
	"strings"
	"time"
)

// InviteToken, bir davet kodunu temsil eder.
// DB'deki "invite_tokens" tablosunun Go karşılığıdır.
// ServerAddress, davetin basıldığı andaki kanonik sunucu adresidir —
// istemci davet linkinden hangi host'a bağlanacağını buradan öğrenir.
type InviteToken struct {
	ID            string     `json:"id"`
	ServerID      string     `json:"serverId"`
	Token         string     `json:"token"`
	MaxUses       *int       `json:"maxUses"` // nil = sınırsız
	Uses          int        `json:"uses"`
	ExpiresAt     *time.Time `json:"expiresAt"` // nil = süresiz
	ServerAddress string     `json:"serverAddress"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Exhausted, davetin kullanım hakkının bitip bitmediğini döner.
func (i *InviteToken) Exhausted() bool {
	return i.MaxUses != nil && i.Uses >= *i.MaxUses
}

// Expired, davetin süresinin geçip geçmediğini döner.
func (i *InviteToken) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !i.ExpiresAt.After(now)
}

// InvitePreview, davet kodunun auth'suz ön izlemesi.
// İstemci "şu sunucuya katılıyorsun" kartını bununla çizer.
type InvitePreview struct {
	ServerName    string  `json:"serverName"`
	ServerIconURL *string `json:"serverIconUrl"`
	ServerAddress string  `json:"serverAddress"`
	MemberCount   int     `json:"memberCount"`
}

// CreateInviteRequest, yeni bir davet kodu basma isteği (admin REST).
type CreateInviteRequest struct {
	MaxUses   int    `json:"maxUses"`   // 0 = sınırsız
	ExpiresIn int    `json:"expiresIn"` // Dakika cinsinden, 0 = süresiz
	Email     string `json:"email"`     // Doluysa davet linki e-posta ile gönderilir
	Language  string `json:"language"`  // E-posta dili; boşsa Accept-Language'tan türetilir
}

// Validate, CreateInviteRequest kontrolü.
func (r *CreateInviteRequest) Validate() error {
	if r.MaxUses < 0 {
		return fmt.Errorf("maxUses cannot be negative")
	}
	if r.ExpiresIn < 0 {
		return fmt.Errorf("expiresIn cannot be negative")
	}
	r.Email = strings.TrimSpace(r.Email)
	if r.Email != "" {
		// Tam RFC doğrulaması değil — kaba bir şekil kontrolü yeterli,
		// gerisini e-posta sağlayıcısı reddeder.
		at := strings.IndexByte(r.Email, '@')
		if at < 1 || at == len(r.Email)-1 || len(r.Email) > 254 {
			return fmt.Errorf("invalid email address")
		}
	}
	return nil
}

// RedeemInviteRequest, davet kodunu credential'a çevirme isteği.
// Auth gerektirmez — davet linkine tıklayan herkes çağırabilir.
type RedeemInviteRequest struct {
	Token string `json:"token"`
}

// Validate, RedeemInviteRequest kontrolü.
func (r *RedeemInviteRequest) Validate() error {
	r.Token = strings.TrimSpace(r.Token)
	if r.Token == "" {
		return fmt.Errorf("token is required")
	}
	return nil
}

// RedeemInviteResult, başarılı redeem'in cevabı.
// Credential plaintext SADECE burada görünür — DB'de hash'i saklanır,
// kaybedilirse yeni davet gerekir.
type RedeemInviteResult struct {
	Credential    string `json:"credential"`
	ServerAddress string `json:"serverAddress"`
	ServerName    string `json:"serverName"`
}
