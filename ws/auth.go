package ws

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg/metrics"
	"github.com/akinalp/koza/services"
)

// handleAuth, bağlantının ilk ve tek auth çerçevesini işler.
//
// Sıra önemlidir:
//  1. IP bazlı deneme sınırı — parola denemesi bile yapılmadan önce.
//  2. Nickname ve publicKey doğrulama — credential bağlamadan önce.
//  3. Kimlik kapısı: şifresiz sunucu / parola / credential+publicKey.
//  4. Kullanıcı satırı çözümü (publicKey ile bul ya da yarat).
//  5. Ban kontrolü — kullanıcı kimliği belli olduktan sonra.
//  6. Tek oturum: aynı kimliğin eski bağlantısı tamamen temizlenir,
//     ancak ondan sonra bu bağlantı ilerler.
//  7. İdempotent üyelik kaydı + varsayılan rol.
//  8. auth-result, ardından joined-server; en son online duyurusu.
//
// Her başarısızlık auth-result{success:false} yazar ve socket'i kapatır.
func (h *Hub) handleAuth(c *Client, raw []byte) {
	if !h.authLimiter.Allow(c.remoteAddr) {
		h.failAuth(c, "Too many auth attempts")
		return
	}

	req, werr := decode[authRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}

	nickname, err := models.ValidateNickname(req.Nickname)
	if err != nil {
		h.failAuth(c, err.Error())
		return
	}

	// PublicKey kapıdan ÖNCE doğrulanır ve normalize edilir: credential
	// bağlama geri alınamaz, geçersiz bir anahtarla bağlanırsa credential
	// boşa yanar. Authenticate ve ResolveOnAuth aynı normalize değeri görür.
	if req.PublicKey != "" {
		normalized, err := models.ValidatePublicKey(req.PublicKey)
		if err != nil {
			h.failAuth(c, err.Error())
			return
		}
		req.PublicKey = normalized
	}

	ctx, cancel := opCtx()
	defer cancel()

	server, err := h.svc.Servers.Get(ctx)
	if err != nil {
		log.Printf("[ws] auth: server lookup failed: %v", err)
		h.failAuth(c, "internal error")
		return
	}

	if !h.authenticate(ctx, c, server.ID, req) {
		return
	}

	var pk *string
	if req.PublicKey != "" {
		pk = &req.PublicKey
	}
	user, err := h.svc.Users.ResolveOnAuth(ctx, nickname, pk)
	if err != nil {
		log.Printf("[ws] auth: user resolve failed: %v", err)
		h.failAuth(c, "internal error")
		return
	}

	banned, err := h.svc.Bans.IsBanned(ctx, server.ID, user.ID)
	if err != nil {
		log.Printf("[ws] auth: ban check failed: %v", err)
		h.failAuth(c, "internal error")
		return
	}
	if banned {
		h.failAuth(c, "you are banned from this server")
		return
	}

	c.userID = user.ID
	c.nickname = user.Nickname
	c.serverID = server.ID
	c.publicKey = user.PublicKey
	c.isAdmin = h.cfg.AdminToken != "" && req.AdminToken != "" &&
		subtle.ConstantTimeCompare([]byte(req.AdminToken), []byte(h.cfg.AdminToken)) == 1

	// Tek oturum kuralı: eski bağlantının medyası ve duyuruları bu
	// noktada SENKRON temizlenir; bu bağlantı kanala ancak temizlik
	// bittikten sonra girebilir (mesajlar sırayla işlendiğinden).
	if displaced := h.registry.Register(c); displaced != nil {
		log.Printf("[ws] displacing previous session of %s", user.ID)
		h.disconnect(displaced)
	}
	c.authenticated.Store(true)

	if err := h.svc.Members.Enroll(ctx, server.ID, user.ID, user.Nickname); err != nil {
		log.Printf("[ws] auth: enroll failed for %s: %v", user.ID, err)
		h.registry.Unregister(c)
		c.authenticated.Store(false)
		h.failAuth(c, "internal error")
		return
	}

	c.sendFrame(authResultFrame{Type: MsgAuthResult, Success: true, UserID: user.ID})

	joined, err := h.buildJoinedServer(ctx, c, server)
	if err != nil {
		log.Printf("[ws] auth: joined-server assembly failed for %s: %v", user.ID, err)
		c.sendError(CodeInternalError, "could not load server state")
		h.disconnect(c)
		return
	}
	c.sendFrame(joined)

	h.broadcastUserState(c)

	log.Printf("[ws] %s authenticated from %s (admin=%v)", user.ID, c.remoteAddr, c.isAdmin)
}

// authenticate, üç yollu kimlik kapısını soldan sağa değerlendirir:
// (a) sunucu şifresiz, (b) parola eşleşti, (c) credential + publicKey.
// Şifresiz sunucuda credential sunulmuş olsa bile bağlama protokolüne
// girilmez — kapı zaten açıktır ve binding yan etkisi yaratmak istemeyiz.
// false dönerse hata çerçevesi yazılmış ve bağlantı kapatılmıştır.
func (h *Hub) authenticate(ctx context.Context, c *Client, serverID string, req *authRequest) bool {
	if h.cfg.Password == "" {
		return true
	}
	if req.Password != "" &&
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.Password)) == 1 {
		return true
	}
	if req.Credential != "" {
		if req.PublicKey == "" {
			// Bilinçli olarak ayrı mesaj: anahtar olmadan credential'ın
			// kime bağlanacağı belirsizdir, istemci hatasıdır.
			h.failAuth(c, "credential auth requires a publicKey")
			return false
		}
		if _, err := h.svc.Credentials.Authenticate(ctx, serverID, req.Credential, req.PublicKey); err == nil {
			return true
		} else if errors.Is(err, services.ErrCredentialRejected) {
			h.failAuth(c, services.ErrCredentialRejected.Error())
		} else {
			log.Printf("[ws] auth: credential check failed: %v", err)
			h.failAuth(c, "internal error")
		}
		return false
	}
	if req.Password != "" {
		h.failAuth(c, "invalid password")
		return false
	}
	h.failAuth(c, "password or credential required")
	return false
}

// failAuth, başarısız auth sonucunu SENKRON yazar ve bağlantıyı kapatır.
// Kuyruğa bırakmak yeterli değil: hemen ardından gelen kapanışla
// yarışıp çerçeve kaybolabilir.
func (h *Hub) failAuth(c *Client, msg string) {
	metrics.AuthFailuresTotal.Inc()
	c.sendDirect(authResultFrame{Type: MsgAuthResult, Success: false, Error: msg})
	h.disconnect(c)
}

// buildJoinedServer, auth sonrası durum fotoğrafını birleştirir:
// kalıcı üye listesi canlı bağlantı durumuyla zenginleştirilir.
func (h *Hub) buildJoinedServer(ctx context.Context, c *Client, server *models.Server) (joinedServerFrame, error) {
	channels, err := h.svc.Channels.List(ctx, server.ID)
	if err != nil {
		return joinedServerFrame{}, err
	}

	members, err := h.svc.Members.ListMembers(ctx, server.ID)
	if err != nil {
		return joinedServerFrame{}, err
	}
	for i := range members {
		m := &members[i]
		live := h.registry.Get(m.UserID)
		if live == nil {
			continue
		}
		m.Online = true
		m.Nickname = live.nickname
		if ch := live.ChannelID(); ch != "" {
			chCopy := ch
			m.ChannelID = &chCopy
		}
		m.IsMuted, m.IsDeafened = live.MuteState()
	}

	roles, err := h.svc.Roles.List(ctx, server.ID)
	if err != nil {
		return joinedServerFrame{}, err
	}

	var perms models.PermissionSet
	if c.isAdmin {
		perms = models.AllAllow()
	} else {
		perms, err = h.svc.Permissions.EffectivePermissions(ctx, c.userID, server.ID, nil)
		if err != nil {
			return joinedServerFrame{}, err
		}
	}

	return joinedServerFrame{
		Type:               MsgJoinedServer,
		ServerID:           server.ID,
		Name:               server.Name,
		Description:        server.Description,
		IconURL:            server.IconURL,
		MaxUsers:           server.MaxUsers,
		MaxWebcamProducers: server.MaxWebcamProducers,
		MaxScreenProducers: server.MaxScreenProducers,
		Channels:           channels,
		Members:            members,
		Roles:              roles,
		Permissions:        perms,
	}, nil
}
