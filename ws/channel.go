package ws

import (
	"context"
	"errors"
	"log"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
)

// handleJoinChannel, istemcinin kendi isteğiyle kanal değiştirmesi.
// Asıl iş joinChannel'dadır; move-user da aynı yolu kullanır.
func (h *Hub) handleJoinChannel(c *Client, raw []byte) {
	req, werr := decode[joinChannelRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	if werr := h.joinChannel(ctx, c, req.ChannelID); werr != nil {
		c.sendError(werr.code, werr.message)
	}
}

// joinChannel, hedef bağlantıyı kanala sokar. Kontrol sırası:
// kanal var mı ve bu sunucunun mu → join yetkisi → kapasite →
// mevcut kanaldan tam çıkış → SFU hazırlığı → yanıt ve duyurular.
//
// Kapasite iki kez denetlenir: erken hızlı ret için burada, kesin
// olarak da MoveChannel'ın kilidi altında — iki eşzamanlı join son
// koltuğu paylaşamasın.
func (h *Hub) joinChannel(ctx context.Context, target *Client, channelID string) *wsError {
	channel, err := h.svc.Channels.Get(ctx, channelID)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return &wsError{CodeChannelNotFound, "channel not found"}
		}
		log.Printf("[ws] channel lookup failed: %v", err)
		return &wsError{CodeInternalError, "could not load channel"}
	}
	// Başka sunucunun kanalı bu bağlantı için yok hükmündedir.
	if channel.ServerID != target.serverID {
		return &wsError{CodeChannelNotFound, "channel not found"}
	}

	if !target.isAdmin {
		allowed, err := h.svc.Permissions.Has(ctx, target.userID, target.serverID, &channelID, models.PermJoin)
		if err != nil {
			log.Printf("[ws] join permission check failed: %v", err)
			return &wsError{CodeInternalError, "could not check permissions"}
		}
		if !allowed {
			return &wsError{CodeNoPermission, "join permission required for this channel"}
		}
	}

	if channel.MaxUsers > 0 && h.registry.CountChannel(channelID) >= channel.MaxUsers {
		return &wsError{CodeChannelFull, "channel is full"}
	}

	if cur := target.ChannelID(); cur != "" {
		h.leaveChannel(target, cur)
	}

	if !h.registry.MoveChannel(target, channelID, channel.MaxUsers) {
		return &wsError{CodeChannelFull, "channel is full"}
	}

	caps, err := h.broker.RouterCapabilities(channelID)
	if err != nil {
		log.Printf("[ws] router for channel %s unavailable: %v", channelID, err)
		h.registry.MoveChannel(target, "", 0)
		return &wsError{CodeInternalError, "media router unavailable"}
	}
	h.broker.EnsurePeer(target.userID, channelID)
	target.setChannel(channelID)

	// Yanıt: kanaldaki mevcutların fotoğrafı + router yetenekleri.
	occupants := h.registry.SnapshotChannel(channelID, target)
	users := make([]channelUser, 0, len(occupants))
	for _, oc := range occupants {
		muted, deafened := oc.MuteState()
		users = append(users, channelUser{
			UserID:     oc.userID,
			Nickname:   oc.nickname,
			IsMuted:    muted,
			IsDeafened: deafened,
		})
	}
	target.sendFrame(joinedChannelFrame{
		Type:                  MsgJoinedChannel,
		ChannelID:             channelID,
		Users:                 users,
		RouterRtpCapabilities: caps,
	})

	// Kanalda zaten yayın yapanların kataloğu — yeni gelen consume
	// edebilsin. Kendi producer'ı olamaz, yine de dışlanır.
	for _, handle := range h.broker.ProducersInChannel(channelID, target.userID) {
		target.sendFrame(newProducerFrame{
			Type:       MsgNewProducer,
			ProducerID: handle.ID,
			UserID:     handle.UserID,
			MediaType:  string(handle.MediaType),
			Kind:       string(handle.Kind),
		})
	}

	h.broadcastToChannel(channelID, target, userJoinedChannelFrame{
		Type:      MsgUserJoinedChannel,
		ChannelID: channelID,
		UserID:    target.userID,
		Nickname:  target.nickname,
	})
	h.broadcastUserState(target)
	return nil
}

// handleLeaveChannel, istemcinin kanaldan kendi isteğiyle çıkışı.
func (h *Hub) handleLeaveChannel(c *Client) {
	cur := c.ChannelID()
	if cur == "" {
		c.sendError(CodeNotInChannel, "not in a channel")
		return
	}
	h.leaveChannel(c, cur)
}

// leaveChannel, kanaldan tam çıkış: SFU kaynakları kapanır, her canlı
// producer için producer-closed, ardından user-left-channel ve
// user-updated{channelId:null} duyuruları.
func (h *Hub) leaveChannel(c *Client, channelID string) {
	for _, handle := range h.broker.ClosePeer(c.userID) {
		h.broadcastToChannel(handle.ChannelID, c, producerClosedFrame{
			Type:       MsgProducerClosed,
			ProducerID: handle.ID,
			UserID:     c.userID,
		})
	}

	c.setChannel("")
	h.registry.MoveChannel(c, "", 0)

	h.broadcastToChannel(channelID, c, userLeftChannelFrame{
		Type:      MsgUserLeftChannel,
		ChannelID: channelID,
		UserID:    c.userID,
	})
	h.broadcastUserState(c)
}

// handleMute / handleDeafen: anlık durum değişikliği, sunucuya duyurulur.
// Ses hiçbir zaman sunucuya uğramadığı için bunlar yalnızca gösterge
// durumudur; asıl sessize alma istemci tarafında yapılır.

func (h *Hub) handleMute(c *Client, raw []byte) {
	req, werr := decode[muteRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	c.setMuted(req.Muted)
	h.broadcastUserState(c)
}

func (h *Hub) handleDeafen(c *Client, raw []byte) {
	req, werr := decode[deafenRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	c.setDeafened(req.Deafened)
	h.broadcastUserState(c)
}
