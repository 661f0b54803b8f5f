// Package models, uygulamanın domain modellerini (veri yapıları) tanımlar.
//
// Model nedir?
// Veritabanındaki bir tablonun Go karşılığıdır.
// Aynı zamanda API'den gelen/giden verilerin şeklini de belirler.
//
// Go'da `json:"nickname"` gibi tag'ler, struct field'larının JSON'a
// nasıl serialize/deserialize edileceğini belirler.
// Wire formatı baştan sona camelCase kullanır — WS frame'leri de,
// REST response'ları da aynı tag'lerle serialize edilir.
package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// User, kalıcı bir kimliği temsil eder.
//
// koza'da hesap/şifre yoktur: kimlik istemcinin ürettiği bir public
// key'dir. Sunucu key'in içeriğini yorumlamaz, sadece opak ve global
// unique bir string olarak saklar. publicKey'siz bağlanan (anonim)
// kullanıcılar her seferinde taze bir satır alır.
type User struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	PublicKey *string   `json:"publicKey"` // *string = nullable — anonim kullanıcıda nil
	AvatarURL *string   `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidateNickname, auth frame'inden gelen nickname'i doğrular.
// 1-32 karakter; kontrol karakterleri yasak, geri kalan Unicode serbest.
// Username-tarzı karakter kısıtı yoktur — nickname görünen addır, login adı değil.
func ValidateNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	n := utf8.RuneCountInString(nickname)
	if n < 1 || n > 32 {
		return "", fmt.Errorf("nickname must be between 1 and 32 characters")
	}
	for _, ch := range nickname {
		if ch < 0x20 || ch == 0x7f {
			return "", fmt.Errorf("nickname contains control characters")
		}
	}
	return nickname, nil
}

// ValidatePublicKey, istemcinin sunduğu public key'i doğrular.
// İçerik opak'tır ama taşınabilir olmalı: boş olmayan, makul uzunlukta,
// boşluksuz tek satır bekleriz (base64/hex encode edilmiş key material).
func ValidatePublicKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("publicKey cannot be empty")
	}
	if len(key) > 512 {
		return "", fmt.Errorf("publicKey must be at most 512 bytes")
	}
	for _, ch := range key {
		if ch <= 0x20 || ch == 0x7f {
			return "", fmt.Errorf("publicKey contains whitespace or control characters")
		}
	}
	return key, nil
}
