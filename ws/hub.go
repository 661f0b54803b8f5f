package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/akinalp/koza/media"
	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg/metrics"
	"github.com/akinalp/koza/pkg/ratelimit"
	"github.com/akinalp/koza/services"
)

// opTimeout, tek bir WS mesajının tetiklediği DB/SFU işlerinin üst süresi.
const opTimeout = 10 * time.Second

// preAuthLimit / preAuthWindow: IP başına auth denemesi tavanı.
// Auth öncesi tek koruma budur; kategori limitleri auth sonrası devrededir.
const (
	preAuthLimit  = 10
	preAuthWindow = time.Minute
)

// Services, hub'ın ihtiyaç duyduğu servis katmanı bağımlılıklarını
// tek yapıda toplar; constructor parametre listesi şişmesin.
type Services struct {
	Users       services.UserService
	Servers     services.ServerService
	Channels    services.ChannelService
	Members     services.MemberService
	Roles       services.RoleService
	Permissions services.PermissionService
	Credentials services.CredentialService
	Bans        services.BanService
	Messages    services.MessageService
}

// Config, hub'ın çalışma zamanı ayarları.
type Config struct {
	// Password boşsa sunucu şifresizdir: herkes girebilir.
	Password string
	// AdminToken boşsa ephemeral admin girişi tamamen kapalıdır.
	AdminToken string
	// TrustProxy true ise X-Forwarded-For başlığına güvenilir.
	TrustProxy bool
}

// Hub, tüm canlı bağlantıların koordinatörüdür: auth, kanal üyeliği,
// medya sinyalleşmesi, yayınlar ve bağlantı temizliği buradan yönetilir.
//
// Hub hiçbir işlemi kendi goroutine'inde sıraya sokmaz; her bağlantının
// ReadPump'ı kendi mesajlarını senkron işler, paylaşılan durum Registry
// ve Broker kilitleriyle korunur.
type Hub struct {
	registry *Registry
	broker   *media.Broker
	svc      Services
	cfg      Config

	// authLimiter, IP başına auth denemelerini pencereler.
	authLimiter *ratelimit.SlidingWindow

	stop     chan struct{}
	stopOnce sync.Once
}

// NewHub, hub'ı kurar. Run ayrıca çağrılmalıdır.
func NewHub(svc Services, broker *media.Broker, cfg Config) *Hub {
	return &Hub{
		registry:    NewRegistry(),
		broker:      broker,
		svc:         svc,
		cfg:         cfg,
		authLimiter: ratelimit.NewSlidingWindow(preAuthLimit, preAuthWindow),
		stop:        make(chan struct{}),
	}
}

// Run, heartbeat süpürme döngüsünü işletir. Shutdown çağrılana dek bloklar.
func (h *Hub) Run() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.sweepHeartbeat()
		case <-h.stop:
			return
		}
	}
}

// sweepHeartbeat, önceki turdan beri pong dönmeyen bağlantıları koparır,
// kalanlara yeni ping yollar.
func (h *Hub) sweepHeartbeat() {
	for _, c := range h.registry.SnapshotAll() {
		if !c.alive.Load() {
			log.Printf("[ws] heartbeat timeout for %s, terminating", c.userID)
			go h.disconnect(c)
			continue
		}
		c.alive.Store(false)
		c.ping()
	}
}

// Shutdown, heartbeat'i durdurur ve tüm bağlantıları kapatır.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.stop)
		h.authLimiter.Stop()
		for _, c := range h.registry.SnapshotAll() {
			h.disconnect(c)
		}
		log.Println("[ws] hub stopped")
	})
}

// ConnectionCount, aktif oturum sayısı (admin istatistikleri için).
func (h *Hub) ConnectionCount() int {
	return h.registry.Count()
}

// opCtx, tek mesajlık işler için zaman sınırlı context üretir.
func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// ─── Dispatch ───

// dispatch, auth'u tamamlanmış bağlantıların çerçevelerini işleyiciye
// yönlendirir. Çağıran hız sınırını zaten uygulamıştır.
func (h *Hub) dispatch(c *Client, msgType string, raw []byte) {
	switch msgType {
	case MsgAuth:
		c.sendError(CodeUnknownMessage, "already authenticated")
	case MsgJoinChannel:
		h.handleJoinChannel(c, raw)
	case MsgLeaveChannel:
		h.handleLeaveChannel(c)
	case MsgMute:
		h.handleMute(c, raw)
	case MsgDeafen:
		h.handleDeafen(c, raw)
	case MsgRtpCapabilities:
		h.handleRtpCapabilities(c, raw)
	case MsgCreateTransport:
		h.handleCreateTransport(c, raw)
	case MsgConnectTransport:
		h.handleConnectTransport(c, raw)
	case MsgProduce:
		h.handleProduce(c, raw)
	case MsgStopProducer:
		h.handleStopProducer(c, raw)
	case MsgConsume:
		h.handleConsume(c, raw)
	case MsgResumeConsumer:
		h.handleResumeConsumer(c, raw)
	case MsgSetPreferredLayers:
		h.handleSetPreferredLayers(c, raw)
	case MsgChat:
		h.handleChat(c, raw)
	case MsgE2EE:
		h.handleE2EE(c, raw)
	case MsgSpeaking:
		h.handleSpeaking(c, raw)
	case MsgKick:
		h.handleKick(c, raw)
	case MsgMoveUser:
		h.handleMoveUser(c, raw)
	case MsgBan:
		h.handleBan(c, raw)
	case MsgAssignRole:
		h.handleRoleChange(c, raw, true)
	case MsgUnassignRole:
		h.handleRoleChange(c, raw, false)
	default:
		c.sendError(CodeUnknownMessage, "unknown message type: "+msgType)
	}
}

// ─── Yayın yardımcıları ───
//
// Hepsi aynı deseni izler: gövde bir kez marshal edilir, hedef kümesi
// registry kilidi altında kopyalanır, gönderim kilitsiz yapılır. Tek
// istemciye gönderim hatası fan-out'u asla durdurmaz — enqueue zaten
// bloklamaz.

func (h *Hub) broadcastToChannel(channelID string, exclude *Client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[ws] broadcast marshal failed: %v", err)
		return
	}
	targets := h.registry.SnapshotChannel(channelID, exclude)
	for _, c := range targets {
		c.enqueue(data)
	}
	metrics.BroadcastsTotal.Inc()
}

func (h *Hub) broadcastToServer(serverID string, exclude *Client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[ws] broadcast marshal failed: %v", err)
		return
	}
	targets := h.registry.SnapshotServer(serverID, exclude)
	for _, c := range targets {
		c.enqueue(data)
	}
	metrics.BroadcastsTotal.Inc()
}

// sendToUser, çerçeveyi kullanıcının aktif bağlantısına iletir.
// Kullanıcı çevrimdışıysa sessizce düşer.
func (h *Hub) sendToUser(userID string, v any) {
	if c := h.registry.Get(userID); c != nil {
		c.sendFrame(v)
	}
}

// relayToUserSameServer, E2EE unicast kuralıdır: hedef çevrimiçi VE
// gönderenle aynı sunucudaysa iletir, aksi halde sessizce düşürür.
// Sunucular arası anahtar sızıntısı bu tek kontrolle engellenir.
func (h *Hub) relayToUserSameServer(from *Client, targetUserID string, v any) {
	target := h.registry.Get(targetUserID)
	if target == nil || target.serverID != from.serverID {
		return
	}
	target.sendFrame(v)
}

// broadcastUserState, bağlantının güncel durumunu user-updated olarak
// sunucuya duyurur; gönderen hariç (kendi durumunu zaten biliyor).
func (h *Hub) broadcastUserState(c *Client) {
	muted, deafened := c.MuteState()
	var chPtr *string
	if ch := c.ChannelID(); ch != "" {
		chPtr = &ch
	}
	h.broadcastToServer(c.serverID, c, userUpdatedFrame{
		Type:       MsgUserUpdated,
		UserID:     c.userID,
		Nickname:   c.nickname,
		Online:     true,
		ChannelID:  chPtr,
		IsMuted:    muted,
		IsDeafened: deafened,
	})
}

// ─── Bağlantı temizliği ───

// disconnect, bağlantıyı koparır ve tüm izlerini temizler. Birden çok
// yoldan çağrılabilir (okuma hatası, heartbeat, displacement, kick);
// cleanupOnce gerçek temizliğin tam olarak bir kez koşmasını garantiler.
func (h *Hub) disconnect(c *Client) {
	c.cleanupOnce.Do(func() { h.runDisconnect(c) })
}

// runDisconnect, temizlik sırası:
//  1. done kapanır, socket kapanır — pompalar sonlanır.
//  2. Registry'den düşülür — bundan sonraki yayınlar bu bağlantıyı görmez.
//  3. SFU kaynakları kapanır, her canlı producer için eski kanala
//     producer-closed duyurulur.
//  4. Kanal ve sunucu kapsamına ayrılış duyuruları.
func (h *Hub) runDisconnect(c *Client) {
	close(c.done)
	c.conn.Close()
	metrics.ConnectionsActive.Dec()

	if !c.authenticated.Load() {
		return
	}

	channelID := c.ChannelID()
	h.registry.Unregister(c)

	for _, handle := range h.broker.ClosePeer(c.userID) {
		h.broadcastToChannel(handle.ChannelID, nil, producerClosedFrame{
			Type:       MsgProducerClosed,
			ProducerID: handle.ID,
			UserID:     c.userID,
		})
	}

	if channelID != "" {
		h.broadcastToChannel(channelID, nil, userLeftChannelFrame{
			Type:      MsgUserLeftChannel,
			ChannelID: channelID,
			UserID:    c.userID,
		})
	}

	h.broadcastToServer(c.serverID, nil, userUpdatedFrame{
		Type:      MsgUserUpdated,
		UserID:    c.userID,
		Nickname:  c.nickname,
		Online:    false,
		ChannelID: nil,
	})

	log.Printf("[ws] %s disconnected", c.userID)
}

// ─── REST köprüleri ───
//
// HTTP handler'ları durum değiştirdiğinde canlı istemcilerin haberdar
// olması gerekir. Handlers paketi ws'e bağımlıdır (tersi asla değil);
// bu metodlar o yönlü köprüdür.

// NotifyChannelCreated, yeni kanalı sunucudaki herkese duyurur.
func (h *Hub) NotifyChannelCreated(ch *models.Channel) {
	h.broadcastToServer(ch.ServerID, nil, channelCreatedFrame{Type: MsgChannelCreated, Channel: *ch})
}

// NotifyChannelUpdated: kanal meta verisi değişti. Ayrı bir frame tipi
// yerine upsert anlamıyla channel-created yeniden kullanılır; istemci
// kanalı id'ye göre ekler ya da günceller.
func (h *Hub) NotifyChannelUpdated(ch *models.Channel) {
	h.broadcastToServer(ch.ServerID, nil, channelCreatedFrame{Type: MsgChannelCreated, Channel: *ch})
}

// NotifyChannelDeleted, kanal silinmeden hemen sonra çağrılır:
// içeridekiler varsayılan kanala taşınır, router kapatılır, silme
// sunucuya duyurulur.
func (h *Hub) NotifyChannelDeleted(serverID, channelID string) {
	// Router'ı kapat; açıkta kalan producer'ları duyur.
	for _, handle := range h.broker.CloseRouter(channelID) {
		h.broadcastToChannel(channelID, nil, producerClosedFrame{
			Type:       MsgProducerClosed,
			ProducerID: handle.ID,
			UserID:     handle.UserID,
		})
	}

	occupants := h.registry.SnapshotChannel(channelID, nil)

	h.broadcastToServer(serverID, nil, channelDeletedFrame{Type: MsgChannelDeleted, ChannelID: channelID})

	if len(occupants) == 0 {
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	def, err := h.svc.Channels.GetDefault(ctx, serverID)
	if err != nil {
		log.Printf("[ws] default channel lookup failed after channel delete: %v", err)
		// Taşıyamıyorsak en azından kanaldan düşür.
		for _, c := range occupants {
			h.leaveChannel(c, channelID)
		}
		return
	}
	for _, c := range occupants {
		if werr := h.joinChannel(ctx, c, def.ID); werr != nil {
			h.leaveChannel(c, channelID)
		}
	}
}

// NotifyServerUpdated, sunucu ayar değişikliklerini yayınlar.
func (h *Hub) NotifyServerUpdated(s *models.Server) {
	h.broadcastToServer(s.ID, nil, serverUpdatedFrame{
		Type:               MsgServerUpdated,
		Name:               s.Name,
		Description:        s.Description,
		IconURL:            s.IconURL,
		MaxUsers:           s.MaxUsers,
		MaxWebcamProducers: s.MaxWebcamProducers,
		MaxScreenProducers: s.MaxScreenProducers,
	})
}

// NotifyPermissionsChanged, rol tanımı ya da kanal override'ı değişince
// çağrılır. Etkilenen kümeyi ayıklamak yerine sunucudaki her çevrimiçi
// kullanıcının etkin seti yeniden hesaplanıp kendisine itilir; tek
// sunucu ölçeğinde bu maliyet önemsizdir.
func (h *Hub) NotifyPermissionsChanged(serverID string) {
	ctx, cancel := opCtx()
	defer cancel()
	for _, c := range h.registry.SnapshotServer(serverID, nil) {
		h.pushPermissions(ctx, c)
	}
}

// pushPermissions, bağlantının güncel etkin yetkilerini kendisine yollar.
func (h *Hub) pushPermissions(ctx context.Context, c *Client) {
	var perms models.PermissionSet
	if c.isAdmin {
		perms = models.AllAllow()
	} else {
		var chPtr *string
		if ch := c.ChannelID(); ch != "" {
			chPtr = &ch
		}
		var err error
		perms, err = h.svc.Permissions.EffectivePermissions(ctx, c.userID, c.serverID, chPtr)
		if err != nil {
			log.Printf("[ws] permission recompute failed for %s: %v", c.userID, err)
			return
		}
	}
	c.sendFrame(permissionsUpdatedFrame{Type: MsgPermissionsUpdated, Permissions: perms})
}
