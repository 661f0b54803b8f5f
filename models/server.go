// Package models — Server domain modeli.
//
// Server, self-host edilen tek instance'ı temsil eder.
// koza tek sunucu mimarisi kullanır (TeamSpeak'teki "virtual server" benzeri
// ama instance başına bir tane). Tüm kanallar, roller ve üyelikler bu
// satıra bağlıdır.
package models

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Server, sunucu verisini temsil eder.
// DB'deki "servers" tablosunun Go karşılığıdır.
type Server struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        *string   `json:"description"`
	IconURL            *string   `json:"iconUrl"`
	MaxUsers           int       `json:"maxUsers"`
	MaxWebcamProducers int       `json:"maxWebcamProducers"` // Kanal başına eşzamanlı webcam limiti
	MaxScreenProducers int       `json:"maxScreenProducers"` // Kanal başına eşzamanlı ekran paylaşımı limiti
	CreatedAt          time.Time `json:"createdAt"`
}

// UpdateServerRequest, sunucu güncelleme isteği.
//
// Partial update pattern: nil field'lar değiştirilmez.
// iconUrl icon handler tarafından güncellenir, buradan değil.
type UpdateServerRequest struct {
	Name               *string `json:"name"`
	Description        *string `json:"description"`
	MaxUsers           *int    `json:"maxUsers"`
	MaxWebcamProducers *int    `json:"maxWebcamProducers"`
	MaxScreenProducers *int    `json:"maxScreenProducers"`
}

// Validate, UpdateServerRequest kontrolü.
func (r *UpdateServerRequest) Validate() error {
	if r.Name != nil {
		nameLen := utf8.RuneCountInString(*r.Name)
		if nameLen < 1 || nameLen > 100 {
			return fmt.Errorf("server name must be between 1 and 100 characters")
		}
	}
	if r.Description != nil && utf8.RuneCountInString(*r.Description) > 1024 {
		return fmt.Errorf("server description must be at most 1024 characters")
	}
	if r.MaxUsers != nil && *r.MaxUsers < 1 {
		return fmt.Errorf("maxUsers must be at least 1")
	}
	if r.MaxWebcamProducers != nil && *r.MaxWebcamProducers < 0 {
		return fmt.Errorf("maxWebcamProducers cannot be negative")
	}
	if r.MaxScreenProducers != nil && *r.MaxScreenProducers < 0 {
		return fmt.Errorf("maxScreenProducers cannot be negative")
	}
	return nil
}
