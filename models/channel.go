package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Channel, bir sunucu kanalını temsil eder.
// Her kanal ses + chat taşır; TeamSpeak modelinde ayrı "text kanal" yoktur.
// ParentID ile kanallar ağaç (forest) oluşturur — nil ise kök seviyededir.
// DB'deki "channels" tablosunun Go karşılığı.
type Channel struct {
	ID          string    `json:"id"`
	ServerID    string    `json:"serverId"`
	ParentID    *string   `json:"parentId"` // Nullable — kök kanalların parent'ı yok
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Position    int       `json:"position"`
	MaxUsers    int       `json:"maxUsers"`  // 0 = sınırsız
	JoinPower   int       `json:"joinPower"` // İstemci UI'ı için saklanır; giriş kontrolü join yetkisiyle yapılır
	TalkPower   int       `json:"talkPower"` // İstemci UI'ı için saklanır
	IsDefault   bool      `json:"isDefault"` // Varsayılan kanal silinemez
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateChannelRequest, yeni kanal oluşturma isteği.
type CreateChannelRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"` // Opsiyonel kanal açıklaması
	ParentID    *string `json:"parentId"`    // Hangi kanalın altına (nil = kök)
	Position    int     `json:"position"`
	MaxUsers    int     `json:"maxUsers"`
	JoinPower   int     `json:"joinPower"`
	TalkPower   int     `json:"talkPower"`
}

// Validate, CreateChannelRequest'in geçerli olup olmadığını kontrol eder.
func (r *CreateChannelRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	nameLen := utf8.RuneCountInString(r.Name)
	if nameLen < 1 || nameLen > 100 {
		return fmt.Errorf("channel name must be between 1 and 100 characters")
	}

	// Kanal adı Unicode harf, rakam, boşluk, tire ve alt çizgi içerebilir.
	for _, ch := range r.Name {
		if !isValidChannelNameChar(ch) {
			return fmt.Errorf("channel name contains invalid characters")
		}
	}

	r.Description = strings.TrimSpace(r.Description)
	if utf8.RuneCountInString(r.Description) > 1024 {
		return fmt.Errorf("channel description must be at most 1024 characters")
	}

	if r.Position < 0 {
		return fmt.Errorf("position cannot be negative")
	}
	if r.MaxUsers < 0 {
		return fmt.Errorf("maxUsers cannot be negative")
	}

	return nil
}

// UpdateChannelRequest, kanal güncelleme isteği.
// Pointer kullanılır — nil ise o alan güncellenmez (partial update).
// ParentID'yi köke taşımak için istemci parentId:"" gönderir;
// double-pointer yerine ayrı ClearParent flag'i tercih edildi.
type UpdateChannelRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ParentID    *string `json:"parentId"`
	ClearParent bool    `json:"clearParent"` // true ise kanal köke taşınır (ParentID yok sayılır)
	Position    *int    `json:"position"`
	MaxUsers    *int    `json:"maxUsers"`
	JoinPower   *int    `json:"joinPower"`
	TalkPower   *int    `json:"talkPower"`
}

// Validate, UpdateChannelRequest'in geçerli olup olmadığını kontrol eder.
func (r *UpdateChannelRequest) Validate() error {
	if r.Name != nil {
		*r.Name = strings.TrimSpace(*r.Name)
		nameLen := utf8.RuneCountInString(*r.Name)
		if nameLen < 1 || nameLen > 100 {
			return fmt.Errorf("channel name must be between 1 and 100 characters")
		}
		for _, ch := range *r.Name {
			if !isValidChannelNameChar(ch) {
				return fmt.Errorf("channel name contains invalid characters")
			}
		}
	}

	if r.Description != nil {
		*r.Description = strings.TrimSpace(*r.Description)
		if utf8.RuneCountInString(*r.Description) > 1024 {
			return fmt.Errorf("channel description must be at most 1024 characters")
		}
	}

	if r.Position != nil && *r.Position < 0 {
		return fmt.Errorf("position cannot be negative")
	}
	if r.MaxUsers != nil && *r.MaxUsers < 0 {
		return fmt.Errorf("maxUsers cannot be negative")
	}

	return nil
}

// isValidChannelNameChar, kanal adında izin verilen karakterleri kontrol eder.
// Unicode harf/rakam, boşluk, tire, alt çizgi kabul edilir.
// unicode.IsLetter: tüm dillerdeki harfleri kapsar (Türkçe ş/ç/ğ/ı/ö/ü dahil).
func isValidChannelNameChar(ch rune) bool {
	return unicode.IsLetter(ch) ||
		unicode.IsDigit(ch) ||
		ch == '-' || ch == '_' || ch == ' '
}
