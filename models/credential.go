// Package models — SessionCredential domain modeli.
//
// SessionCredential, davet redeem'inin ürettiği tek seferlik sırdır.
// İstemci sırrın kendisini saklar; sunucu sadece SHA-256 hash'ini tutar.
// İlk başarılı auth'ta credential istemcinin public key'ine kalıcı
// olarak bağlanır (bind) — sonraki auth'larda farklı key reddedilir.
// DB'deki "session_credentials" tablosunun Go karşılığıdır.
package models

import "time"

// SessionCredential, bir credential satırını temsil eder.
type SessionCredential struct {
	ID             string     `json:"id"`
	ServerID       string     `json:"serverId"`
	UserPublicKey  *string    `json:"userPublicKey"` // nil = henüz bind edilmemiş
	CredentialHash string     `json:"-"`             // json:"-" → API response'a DAHİL ETME
	InviteTokenID  string     `json:"inviteTokenId"`
	CreatedAt      time.Time  `json:"createdAt"`
	BoundAt        *time.Time `json:"boundAt"`
	RevokedAt      *time.Time `json:"revokedAt"`
}

// Revoked, credential'ın iptal edilip edilmediğini döner.
func (c *SessionCredential) Revoked() bool {
	return c.RevokedAt != nil
}

// Bound, credential'ın bir public key'e bağlanıp bağlanmadığını döner.
func (c *SessionCredential) Bound() bool {
	return c.UserPublicKey != nil
}
