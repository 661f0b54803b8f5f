package ws

import (
	"log"
	"time"

	"github.com/akinalp/koza/models"
)

// Opak aktarım işleyicileri. Sunucu bu çerçevelerin içeriğini hiçbir
// zaman çözemez: chat ciphertext'i ve e2ee payload'ları istemciler
// arasında şifreli dolaşır, burada yalnızca yönlendirilir.

// ─── E2EE protokol mesajı kind değerleri ───
//
// Yönlendirme kuralı kind'a bağlıdır; payload'a asla bakılmaz.

const (
	// e2eeKindPublicKeyAnnounce: kimlik anahtarı duyurusu. Hedefliyse
	// unicast, değilse kanal yayını.
	e2eeKindPublicKeyAnnounce = "public-key-announce"
	// e2eeKindEncryptedChannelKey: kanal anahtarının tek alıcıya sarılmış
	// kopyası. Yalnızca unicast.
	e2eeKindEncryptedChannelKey = "encrypted-channel-key"
	// e2eeKindVerificationRequest / Confirm: kullanıcı doğrulama el
	// sıkışması. Yalnızca unicast.
	e2eeKindVerificationRequest = "verification-request"
	e2eeKindVerificationConfirm = "verification-confirm"
	// e2eeKindKeyRatchet: kanal anahtarı tazeleme duyurusu. Kanal yayını.
	e2eeKindKeyRatchet = "key-ratchet"
)

// handleChat, şifreli mesajı kanala dağıtır. Gönderen de kopyayı alır —
// istemci kendi mesajını sunucu zaman damgası ve sırasıyla gösterir.
// Kanal kimliği istemciden OKUNMAZ: bağlantının o anki kanalı esastır,
// başka kanala mesaj enjekte edilemez.
func (h *Hub) handleChat(c *Client, raw []byte) {
	channelID := c.ChannelID()
	if channelID == "" {
		c.sendError(CodeNotInChannel, "join a channel before chatting")
		return
	}

	req, werr := decode[chatRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	if len(req.Ciphertext) > maxChatCiphertext {
		c.sendError(CodeChatTooLarge, "ciphertext exceeds 4 MiB")
		return
	}

	ctx, cancel := opCtx()
	defer cancel()

	if !c.isAdmin {
		allowed, err := h.svc.Permissions.Has(ctx, c.userID, c.serverID, &channelID, models.PermChat)
		if err != nil {
			log.Printf("[ws] chat permission check failed: %v", err)
			c.sendError(CodeInternalError, "could not check permissions")
			return
		}
		if !allowed {
			c.sendError(CodeNoPermission, "chat permission required")
			return
		}
	}

	encoding := req.Encoding
	if encoding != models.ChatEncodingJSONV1 {
		encoding = models.ChatEncodingText
	}

	h.broadcastToChannel(channelID, nil, chatFrame{
		Type:       MsgChat,
		ChannelID:  channelID,
		FromUserID: c.userID,
		Nickname:   c.nickname,
		Ciphertext: req.Ciphertext,
		IV:         req.IV,
		KeyEpoch:   req.KeyEpoch,
		Encoding:   encoding,
		Timestamp:  time.Now().UTC(),
	})

	// Arşive düşürme en iyi gayretlidir; canlı dağıtımı asla geciktirmez
	// ya da geri almaz.
	h.svc.Messages.Record(ctx, channelID, c.userID, req.Ciphertext, req.IV, req.KeyEpoch, encoding)
}

// handleE2EE, anahtar değişim mesajlarını kind'a göre yönlendirir.
//
// Unicast kuralı katıdır: hedef çevrimdışıysa ya da BAŞKA sunucudaysa
// mesaj sessizce düşer — anahtar malzemesi sunucu sınırını asla geçmez.
// Hata da dönmez; "hedef başka sunucuda" bilgisinin kendisi sızıntıdır.
func (h *Hub) handleE2EE(c *Client, raw []byte) {
	req, werr := decode[e2eeRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	if req.Kind == "" {
		c.sendError(CodeInvalidJSON, "e2ee frame requires a kind")
		return
	}

	out := e2eeFrame{
		Type:       MsgE2EE,
		Kind:       req.Kind,
		FromUserID: c.userID,
		Payload:    req.Payload,
	}

	switch req.Kind {
	case e2eeKindEncryptedChannelKey, e2eeKindVerificationRequest, e2eeKindVerificationConfirm:
		if req.TargetUserID == "" {
			c.sendError(CodeInvalidJSON, req.Kind+" requires a targetUserId")
			return
		}
		h.relayToUserSameServer(c, req.TargetUserID, out)

	case e2eeKindKeyRatchet:
		channelID := c.ChannelID()
		if channelID == "" {
			c.sendError(CodeNotInChannel, "join a channel before ratcheting keys")
			return
		}
		h.broadcastToChannel(channelID, c, out)

	default:
		// public-key-announce ve ileride eklenecek kind'lar: hedef
		// belirtilmişse unicast, yoksa kanal yayını.
		if req.TargetUserID != "" {
			h.relayToUserSameServer(c, req.TargetUserID, out)
			return
		}
		channelID := c.ChannelID()
		if channelID == "" {
			c.sendError(CodeNotInChannel, "join a channel before broadcasting keys")
			return
		}
		h.broadcastToChannel(channelID, c, out)
	}
}

// handleSpeaking, ses aktivitesi göstergesini kanala dağıtır. Durum
// sunucuda tutulmaz — anlık bir sinyaldir, kaçıran istemci bir sonraki
// geçişte yakalar.
func (h *Hub) handleSpeaking(c *Client, raw []byte) {
	channelID := c.ChannelID()
	if channelID == "" {
		c.sendError(CodeNotInChannel, "not in a channel")
		return
	}
	req, werr := decode[speakingRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	h.broadcastToChannel(channelID, c, speakingFrame{
		Type:      MsgSpeaking,
		UserID:    c.userID,
		ChannelID: channelID,
		Speaking:  req.Speaking,
	})
}
