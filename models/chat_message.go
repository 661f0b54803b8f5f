// Package models — ChatMessage domain modeli.
//
// Sunucu chat içeriğini OKUYAMAZ: mesaj istemcide şifrelenir, buraya
// sadece ciphertext + iv + keyEpoch gelir. Satırlar kanal geçmişi
// export'u için saklanır; düz metin hiçbir zaman diske değmez.
// DB'deki "chat_messages" tablosunun Go karşılığıdır.
package models

import "time"

// Chat encoding değerleri. text varsayılandır; json-v1 yapılandırılmış
// istemci payload'ları için ayrılmıştır, sunucu ikisini de aynen taşır.
const (
	ChatEncodingText   = "text"
	ChatEncodingJSONV1 = "json-v1"
)

// ChatMessage, şifreli bir kanal mesajını temsil eder.
type ChatMessage struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channelId"`
	SenderID   string    `json:"senderId"`
	Ciphertext string    `json:"ciphertext"` // base64 — sunucu decode etmez
	IV         string    `json:"iv"`
	KeyEpoch   int       `json:"keyEpoch"`
	Encoding   string    `json:"encoding"`
	CreatedAt  time.Time `json:"createdAt"` // Sunucu saati — istemci timestamp'i yok sayılır
}
