// Package models — Role domain modeli.
//
// Rol, sunucu kapsamında bir yetki paketidir. Üyeler birden fazla rol
// taşıyabilir; effective yetki, roller priority sırasına göre
// birleştirilerek hesaplanır (yüksek priority önce karar verir).
// DB'deki "roles" tablosunun Go karşılığıdır.
package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Role, bir sunucu rolünü temsil eder.
//
// Permissions kısmi bir PermissionSet'tir: sadece rolün karar verdiği
// key'ler yazılır, yazılmayan her key inherit sayılır. DB'de JSON
// kolonu olarak saklanır.
type Role struct {
	ID          string        `json:"id"`
	ServerID    string        `json:"serverId"`
	Name        string        `json:"name"`
	Priority    int           `json:"priority"` // Yüksek = önce karar verir; eşitlikte id sırası bozar
	Color       *string       `json:"color"`    // Hex renk, örn. "#e91e63" — nil ise istemci varsayılanı
	Permissions PermissionSet `json:"permissions"`
	IsDefault   bool          `json:"isDefault"` // Enroll'da otomatik atanan rol; silinemez
	CreatedAt   time.Time     `json:"createdAt"`
}

// CreateRoleRequest, yeni rol oluşturma isteği.
type CreateRoleRequest struct {
	Name        string        `json:"name"`
	Priority    int           `json:"priority"`
	Color       *string       `json:"color"`
	Permissions PermissionSet `json:"permissions"`
}

// Validate, CreateRoleRequest'in geçerli olup olmadığını kontrol eder.
func (r *CreateRoleRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	nameLen := utf8.RuneCountInString(r.Name)
	if nameLen < 1 || nameLen > 64 {
		return fmt.Errorf("role name must be between 1 and 64 characters")
	}

	if r.Color != nil {
		if err := validateHexColor(*r.Color); err != nil {
			return err
		}
	}

	if r.Permissions == nil {
		r.Permissions = PermissionSet{}
	}
	if msg, ok := r.Permissions.ValidatePartial(); !ok {
		return fmt.Errorf("%s", msg)
	}

	return nil
}

// UpdateRoleRequest, rol güncelleme isteği.
// Pointer field'lar nil ise güncellenmez; Permissions nil ise dokunulmaz,
// verilmişse rolün set'i KOMPLE değiştirilir (merge edilmez).
type UpdateRoleRequest struct {
	Name        *string       `json:"name"`
	Priority    *int          `json:"priority"`
	Color       *string       `json:"color"`
	Permissions PermissionSet `json:"permissions"`
}

// Validate, UpdateRoleRequest'in geçerli olup olmadığını kontrol eder.
func (r *UpdateRoleRequest) Validate() error {
	if r.Name != nil {
		*r.Name = strings.TrimSpace(*r.Name)
		nameLen := utf8.RuneCountInString(*r.Name)
		if nameLen < 1 || nameLen > 64 {
			return fmt.Errorf("role name must be between 1 and 64 characters")
		}
	}

	if r.Color != nil {
		if err := validateHexColor(*r.Color); err != nil {
			return err
		}
	}

	if r.Permissions != nil {
		if msg, ok := r.Permissions.ValidatePartial(); !ok {
			return fmt.Errorf("%s", msg)
		}
	}

	return nil
}

// MemberRole, üye ↔ rol atamasını temsil eder.
// DB'deki "member_roles" tablosunun Go karşılığıdır.
type MemberRole struct {
	UserID     string    `json:"userId"`
	ServerID   string    `json:"serverId"`
	RoleID     string    `json:"roleId"`
	AssignedAt time.Time `json:"assignedAt"`
}

// validateHexColor, "#rrggbb" formatını kontrol eder.
func validateHexColor(color string) error {
	if len(color) != 7 || color[0] != '#' {
		return fmt.Errorf("color must be in #rrggbb format")
	}
	for _, ch := range color[1:] {
		isHex := (ch >= '0' && ch <= '9') ||
			(ch >= 'a' && ch <= 'f') ||
			(ch >= 'A' && ch <= 'F')
		if !isHex {
			return fmt.Errorf("color must be in #rrggbb format")
		}
	}
	return nil
}
