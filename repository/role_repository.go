package repository

import (
	"context"

	"github.com/akinalp/koza/models"
)

// RoleRepository, rol ve rol ataması veritabanı işlemleri için interface.
//
// Sıralama kuralı: rol listeleri her zaman priority DESC, id ASC döner.
// Yetki çözümlemesi "ilk karar veren kazanır" çalıştığı için bu sıranın
// deterministik olması şarttır — eşit priority'de id tie-break yapar.
type RoleRepository interface {
	Create(ctx context.Context, role *models.Role) error
	GetByID(ctx context.Context, id string) (*models.Role, error)
	GetByServer(ctx context.Context, serverID string) ([]models.Role, error)
	// GetDefault, sunucunun is_default işaretli rolünü döner.
	GetDefault(ctx context.Context, serverID string) (*models.Role, error)
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id string) error

	// Assign idempotent'tir: atama zaten varsa sessizce geçer.
	Assign(ctx context.Context, userID, serverID, roleID string) error
	// Unassign de idempotent'tir: atama yoksa hata dönmez —
	// istemciler duplicate state'e karşı zaten toleranslıdır.
	Unassign(ctx context.Context, userID, serverID, roleID string) error
	// GetUserRoles, kullanıcının sunucudaki rollerini priority sırasıyla döner.
	GetUserRoles(ctx context.Context, userID, serverID string) ([]models.Role, error)
	// GetRoleIDsByMember, sunucudaki tüm atamaları userID → []roleID
	// haritası olarak döner (üye listesi için tek sorgu).
	GetRoleIDsByMember(ctx context.Context, serverID string) (map[string][]string, error)
}
