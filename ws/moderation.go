package ws

import (
	"context"
	"errors"
	"log"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
)

// Moderasyon işleyicileri. Hepsi aynı iskeleti izler: yetki kapısı →
// hedef çözümü → kalıcı etki (varsa) → duyuru → zorlayıcı eylem.
// Duyuru her zaman bağlantı koparmadan ÖNCE yazılır; hedefe giden son
// çerçeve kuyruk yarışına kurban gitmesin diye senkron gönderilir.

// requirePermission, moderasyon yetki kapısı. Ephemeral admin her
// kapıdan geçer. false dönmüşse hata çerçevesi yazılmıştır.
func (h *Hub) requirePermission(ctx context.Context, c *Client, key models.PermissionKey) bool {
	if c.isAdmin {
		return true
	}
	allowed, err := h.svc.Permissions.Has(ctx, c.userID, c.serverID, nil, key)
	if err != nil {
		log.Printf("[ws] permission check failed for %s: %v", c.userID, err)
		c.sendError(CodeInternalError, "could not check permissions")
		return false
	}
	if !allowed {
		c.sendError(CodeNoPermission, string(key)+" permission required")
		return false
	}
	return true
}

// requireOnlineTarget, aynı sunucuda canlı bağlantısı olan hedefi çözer.
func (h *Hub) requireOnlineTarget(c *Client, userID string) *Client {
	target := h.registry.Get(userID)
	if target == nil || target.serverID != c.serverID {
		c.sendError(CodeNotInServer, "target user is not connected to this server")
		return nil
	}
	return target
}

func (h *Hub) handleKick(c *Client, raw []byte) {
	req, werr := decode[kickRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	if !h.requirePermission(ctx, c, models.PermKick) {
		return
	}
	target := h.requireOnlineTarget(c, req.UserID)
	if target == nil {
		return
	}

	frame := userKickedFrame{
		Type:     MsgUserKicked,
		UserID:   req.UserID,
		ByUserID: c.userID,
		Reason:   req.Reason,
	}
	target.sendDirect(frame)
	h.broadcastToServer(c.serverID, target, frame)
	h.disconnect(target)
	log.Printf("[ws] %s kicked %s", c.userID, req.UserID)
}

// handleBan, ban satırını yazar ve hedefi düşürür. Hedefin o an
// çevrimiçi olması gerekmez — çevrimdışı kullanıcı da yasaklanabilir,
// bir sonraki auth denemesinde kapıda kalır.
func (h *Hub) handleBan(c *Client, raw []byte) {
	req, werr := decode[banRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	if !h.requirePermission(ctx, c, models.PermBan) {
		return
	}
	if req.UserID == "" {
		c.sendError(CodeInvalidJSON, "userId is required")
		return
	}

	if _, err := h.svc.Bans.Ban(ctx, c.serverID, req.UserID, c.userID, req.Reason, req.DurationMinutes); err != nil {
		if errors.Is(err, pkg.ErrBadRequest) {
			c.sendError(CodeInvalidJSON, err.Error())
		} else {
			log.Printf("[ws] ban write failed: %v", err)
			c.sendError(CodeInternalError, "could not create ban")
		}
		return
	}

	frame := userBannedFrame{
		Type:     MsgUserBanned,
		UserID:   req.UserID,
		ByUserID: c.userID,
		Reason:   req.Reason,
	}
	target := h.registry.Get(req.UserID)
	if target != nil && target.serverID == c.serverID {
		target.sendDirect(frame)
		h.broadcastToServer(c.serverID, target, frame)
		h.disconnect(target)
	} else {
		h.broadcastToServer(c.serverID, nil, frame)
	}
	log.Printf("[ws] %s banned %s", c.userID, req.UserID)
}

// handleMoveUser, hedefi başka kanala taşır. Hedef, taşıyanın yetkisiyle
// değil KENDİ join yetkisiyle kanala girer — moveUsers yetkisi kapalı
// kapıları açmaz. joined-channel yanıtı ve producer kataloğu hedefe
// normal join'deki gibi gider.
func (h *Hub) handleMoveUser(c *Client, raw []byte) {
	req, werr := decode[moveUserRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	if !h.requirePermission(ctx, c, models.PermMoveUsers) {
		return
	}
	target := h.requireOnlineTarget(c, req.UserID)
	if target == nil {
		return
	}

	if werr := h.joinChannel(ctx, target, req.ChannelID); werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	h.broadcastToServer(c.serverID, nil, userMovedFrame{
		Type:      MsgUserMoved,
		UserID:    req.UserID,
		ChannelID: req.ChannelID,
		ByUserID:  c.userID,
	})
	log.Printf("[ws] %s moved %s to channel %s", c.userID, req.UserID, req.ChannelID)
}

// handleRoleChange, assign-role ve unassign-role'ün ortak gövdesi.
// Başarıda sunucuya role-assigned{assigned} yayınlanır; hedef
// çevrimiçiyse taze etkin yetkileri kendisine itilir.
func (h *Hub) handleRoleChange(c *Client, raw []byte, assign bool) {
	req, werr := decode[roleChangeRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	if !h.requirePermission(ctx, c, models.PermManageRoles) {
		return
	}

	var err error
	if assign {
		err = h.svc.Roles.Assign(ctx, c.serverID, req.UserID, req.RoleID)
	} else {
		err = h.svc.Roles.Unassign(ctx, c.serverID, req.UserID, req.RoleID)
	}
	if err != nil {
		if errors.Is(err, pkg.ErrBadRequest) {
			c.sendError(CodeInvalidJSON, err.Error())
		} else {
			log.Printf("[ws] role change failed: %v", err)
			c.sendError(CodeInternalError, "could not update role assignment")
		}
		return
	}

	h.broadcastToServer(c.serverID, nil, roleAssignedFrame{
		Type:     MsgRoleAssigned,
		UserID:   req.UserID,
		RoleID:   req.RoleID,
		Assigned: assign,
	})

	if target := h.registry.Get(req.UserID); target != nil && target.serverID == c.serverID {
		h.pushPermissions(ctx, target)
	}
}
