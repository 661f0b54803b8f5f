// Package repository, veritabanı erişim katmanıdır.
//
// Repository pattern: her tablo için bir interface + bir SQLite
// implementasyonu. Service katmanı sadece interface'i görür — test'te
// fake, production'da SQLite geçilir (Dependency Inversion).
package repository

import (
	"context"

	"github.com/akinalp/koza/models"
)

// ServerRepository, sunucu veritabanı işlemleri için interface.
// Her method context.Context alır — istek iptal edilirse sorgu da durur.
type ServerRepository interface {
	Create(ctx context.Context, server *models.Server) error
	// GetDefault, instance'ın tek sunucusunu döner (bootstrap sonrası her zaman vardır).
	GetDefault(ctx context.Context) (*models.Server, error)
	GetByID(ctx context.Context, id string) (*models.Server, error)
	Update(ctx context.Context, server *models.Server) error
	UpdateIcon(ctx context.Context, id string, iconURL *string) error
	Count(ctx context.Context) (int, error)
}
