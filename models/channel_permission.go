// Package models — ChannelPermission domain modeli.
//
// ChannelPermission, bir kanal üzerinde bir role verilen yetki
// override'ıdır. Rol seviyesindeki kararın üstüne yazılır:
// override allow/deny diyorsa o kazanır, inherit diyorsa rol
// seviyesindeki karar geçerli kalır.
//
// Çözümleme kanal zinciri boyunca çalışır (kök → hedef kanal, §ağaç):
// derindeki kanalın override'ı üsttekini ezer.
// DB'deki "channel_permission_overrides" tablosunun Go karşılığıdır.
package models

import (
	"fmt"
	"time"
)

// ChannelPermission, (channelId, roleId) çiftine bağlı kısmi yetki set'i.
type ChannelPermission struct {
	ChannelID   string        `json:"channelId"`
	RoleID      string        `json:"roleId"`
	Permissions PermissionSet `json:"permissions"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// SetChannelPermissionRequest, override yazma isteği (PUT semantiği:
// verilen set mevcut override'ı komple değiştirir; boş set override'ı siler).
type SetChannelPermissionRequest struct {
	Permissions PermissionSet `json:"permissions"`
}

// Validate, SetChannelPermissionRequest kontrolü.
func (r *SetChannelPermissionRequest) Validate() error {
	if r.Permissions == nil {
		r.Permissions = PermissionSet{}
	}
	if msg, ok := r.Permissions.ValidatePartial(); !ok {
		return fmt.Errorf("%s", msg)
	}
	return nil
}
