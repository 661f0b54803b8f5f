// Package models — ServerMember domain modeli.
//
// ServerMember, kullanıcı ↔ sunucu üyelik ilişkisini temsil eder.
// İlk başarılı auth'ta oluşturulur (idempotent enroll), sadece admin
// aksiyonu ile silinir. DB'deki "server_members" tablosunun Go karşılığıdır.
package models

import "time"

// ServerMember, bir kullanıcının bir sunucuya üyeliğini temsil eder.
// JoinedNickname, üyeliğin oluşturulduğu andaki görünen addır —
// kullanıcı sonraki bağlantılarda farklı nickname ile gelse de korunur.
type ServerMember struct {
	ServerID       string    `json:"serverId"`
	UserID         string    `json:"userId"`
	JoinedNickname string    `json:"joinedNickname"`
	JoinedAt       time.Time `json:"joinedAt"`
}

// MemberInfo, joined-server frame'indeki üye listesi için zenginleştirilmiş görünüm.
// WS katmanı canlı bağlantı durumunu (channelId, mute/deafen) üstüne ekler.
type MemberInfo struct {
	UserID     string   `json:"userId"`
	Nickname   string   `json:"nickname"`
	ChannelID  *string  `json:"channelId"` // nil = bağlı ama kanalda değil / offline
	IsMuted    bool     `json:"isMuted"`
	IsDeafened bool     `json:"isDeafened"`
	PublicKey  *string  `json:"publicKey"`
	RoleIDs    []string `json:"roleIds"`
	AvatarURL  *string  `json:"avatarUrl"`
	Online     bool     `json:"online"`
}
