// Package models — Ban (yasaklama) domain modeli.
//
// Ban sistemi nasıl çalışır?
// 1. Yetkili bir kullanıcı WS üzerinden ban atar → bans tablosuna kayıt düşer
// 2. Banlanan kullanıcı anında WS'den disconnect edilir
// 3. Banlı kullanıcı tekrar auth denerse → auth-result{success:false} + socket kapanır
// 4. Süreli banlar kontrol anında lazy olarak temizlenir (cron yok)
// 5. Unban admin REST'inden yapılır → kayıt silinir
package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Ban, yasaklanmış bir kullanıcıyı temsil eder.
// DB'deki "bans" tablosunun Go karşılığıdır.
type Ban struct {
	ID        string     `json:"id"`
	ServerID  string     `json:"serverId"`
	UserID    string     `json:"userId"`
	BannedBy  string     `json:"bannedBy"`
	Reason    *string    `json:"reason"`
	ExpiresAt *time.Time `json:"expiresAt"` // nil = kalıcı
	CreatedAt time.Time  `json:"createdAt"`
}

// Expired, banın süresinin dolup dolmadığını döner.
func (b *Ban) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

// ValidateBanReason, WS ban frame'inden gelen sebebi doğrular ve
// kenar boşlukları kırpılmış halini döner.
func ValidateBanReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > 512 {
		return "", fmt.Errorf("ban reason must be at most 512 characters")
	}
	return reason, nil
}
