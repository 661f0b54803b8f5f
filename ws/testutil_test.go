package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/koza/database"
	"github.com/akinalp/koza/media"
	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/repository"
	"github.com/akinalp/koza/services"
)

// wsEnv, hub testleri için uçtan uca ortam: gerçek SQLite üstünde servis
// katmanı, stub SFU motoru ve httptest sunucusuna bağlı gerçek WebSocket
// bağlantıları. Testler sunucuyla istemcinin konuştuğu aynı çerçevelerle
// konuşur — registry'ye elle client sokulmaz.
type wsEnv struct {
	hub *Hub
	url string

	db          *database.DB
	users       repository.UserRepository
	servers     repository.ServerRepository
	channels    repository.ChannelRepository
	roles       repository.RoleRepository
	invites     repository.InviteRepository
	credentials repository.CredentialRepository

	server *models.Server
}

// newWSEnv, hub'ı verilen config ile ayağa kaldırır. Sunucu satırı ve
// join+chat izinli varsayılan rol baştan ekilidir; enroll bu rolü
// otomatik atar, bağlanan herkes kanala girebilir.
func newWSEnv(t *testing.T, cfg Config) *wsEnv {
	t.Helper()

	migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	require.NoError(t, err)

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), migrations)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	userRepo := repository.NewSQLiteUserRepo(db.Conn)
	serverRepo := repository.NewSQLiteServerRepo(db.Conn)
	channelRepo := repository.NewSQLiteChannelRepo(db.Conn)
	memberRepo := repository.NewSQLiteMemberRepo(db.Conn)
	roleRepo := repository.NewSQLiteRoleRepo(db.Conn)
	cpRepo := repository.NewSQLiteChannelPermissionRepo(db.Conn)
	credRepo := repository.NewSQLiteCredentialRepo(db.Conn)
	inviteRepo := repository.NewSQLiteInviteRepo(db.Conn)
	banRepo := repository.NewSQLiteBanRepo(db.Conn)
	msgRepo := repository.NewSQLiteMessageRepo(db.Conn)

	permission := services.NewPermissionService(roleRepo, channelRepo, cpRepo)
	svc := Services{
		Users:       services.NewUserService(userRepo),
		Servers:     services.NewServerService(serverRepo, channelRepo, roleRepo),
		Channels:    services.NewChannelService(channelRepo, permission),
		Members:     services.NewMemberService(memberRepo, roleRepo, permission),
		Roles:       services.NewRoleService(roleRepo, memberRepo, channelRepo, cpRepo, permission),
		Permissions: permission,
		Credentials: services.NewCredentialService(credRepo),
		Bans:        services.NewBanService(banRepo),
		Messages:    services.NewMessageService(msgRepo),
	}

	broker := media.NewBroker([]media.Engine{&stubEngine{}})
	hub := NewHub(svc, broker, cfg)

	srv := httptest.NewServer(http.HandlerFunc(NewHandler(hub).HandleConnection))
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Shutdown)

	env := &wsEnv{
		hub:         hub,
		url:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		db:          db,
		users:       userRepo,
		servers:     serverRepo,
		channels:    channelRepo,
		roles:       roleRepo,
		invites:     inviteRepo,
		credentials: credRepo,
	}

	env.server = &models.Server{
		ID:                 uuid.New().String(),
		Name:               "Test Server",
		MaxUsers:           100,
		MaxWebcamProducers: 4,
		MaxScreenProducers: 2,
	}
	require.NoError(t, serverRepo.Create(context.Background(), env.server))

	require.NoError(t, roleRepo.Create(context.Background(), &models.Role{
		ID:        uuid.New().String(),
		ServerID:  env.server.ID,
		Name:      "member",
		IsDefault: true,
		Permissions: models.PermissionSet{
			models.PermJoin: models.PermAllow,
			models.PermChat: models.PermAllow,
		},
	}))

	return env
}

func (e *wsEnv) seedChannel(t *testing.T, name string) *models.Channel {
	t.Helper()
	channel := &models.Channel{
		ID:       uuid.New().String(),
		ServerID: e.server.ID,
		Name:     name,
	}
	require.NoError(t, e.channels.Create(context.Background(), channel))
	return channel
}

// seedCredential, davet + credential satırı eker ve plaintext'i döner.
// Satır bağlanmamış başlar; ilk auth'taki key'e bağlanması beklenir.
func (e *wsEnv) seedCredential(t *testing.T) (plaintext, credentialID string) {
	t.Helper()
	invite := &models.InviteToken{
		ID:            uuid.New().String(),
		ServerID:      e.server.ID,
		Token:         uuid.New().String()[:16],
		ServerAddress: "voice.example.org:9090",
	}
	require.NoError(t, e.invites.Create(context.Background(), invite))

	plaintext = uuid.New().String()
	cred := &models.SessionCredential{
		ID:             uuid.New().String(),
		ServerID:       e.server.ID,
		CredentialHash: services.HashCredential(plaintext),
		InviteTokenID:  invite.ID,
	}
	require.NoError(t, e.credentials.Create(context.Background(), e.db.Conn, cred))
	return plaintext, cred.ID
}

// ─── İstemci tarafı yardımcıları ───

func (e *wsEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

// readUntil, aradaki alakasız duyuruları (user-updated vb.) atlayarak
// istenen tipte ilk çerçeveyi döner.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		m := readFrame(t, conn)
		if m["type"] == msgType {
			return m
		}
	}
	t.Fatalf("no %q frame arrived in time", msgType)
	return nil
}

// expectNoFrame, verilen süre boyunca bu tipte çerçeve GELMEMESİNİ doğrular.
// Başka tip çerçeveler serbestçe akabilir.
func expectNoFrame(t *testing.T, conn *websocket.Conn, msgType string, d time.Duration) {
	t.Helper()
	deadline := time.Now().Add(d)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return // deadline doldu, çerçeve gelmedi
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		require.NotEqual(t, msgType, m["type"], "unexpected %s frame: %s", msgType, raw)
	}
}

// authOpen, şifresiz sunucuya nickname + publicKey ile girer; auth-result
// ve joined-server çerçevelerini tüketir, userID'yi döner.
func authOpen(t *testing.T, conn *websocket.Conn, nickname, publicKey string) string {
	t.Helper()
	sendJSON(t, conn, map[string]any{
		"type":      MsgAuth,
		"nickname":  nickname,
		"publicKey": publicKey,
	})
	result := readUntil(t, conn, MsgAuthResult)
	require.Equal(t, true, result["success"], "auth failed: %v", result["error"])
	readUntil(t, conn, MsgJoinedServer)
	userID, _ := result["userId"].(string)
	require.NotEmpty(t, userID)
	return userID
}

func joinChannel(t *testing.T, conn *websocket.Conn, channelID string) {
	t.Helper()
	sendJSON(t, conn, map[string]any{
		"type":      MsgJoinChannel,
		"channelId": channelID,
	})
	readUntil(t, conn, MsgJoinedChannel)
}

// ─── Stub SFU ───
//
// Hub testleri medya düzlemini umursamaz; router açılabilsin ve
// yetenekleri dönebilsin, gerisi önemsiz. Broker davranışının asıl
// testleri media paketindedir.

type stubEngine struct {
	mu  sync.Mutex
	seq int
}

func (e *stubEngine) NewRouter() (media.Router, error) {
	e.mu.Lock()
	e.seq++
	id := fmt.Sprintf("stub-router-%d", e.seq)
	e.mu.Unlock()
	return &stubRouter{id: id}, nil
}

func (e *stubEngine) Close() {}

type stubRouter struct {
	id  string
	mu  sync.Mutex
	seq int
}

func (r *stubRouter) ID() string { return r.id }

func (r *stubRouter) RtpCapabilities() json.RawMessage {
	return json.RawMessage(`{"codecs":["opus"]}`)
}

func (r *stubRouter) CanConsume(string, json.RawMessage) bool { return true }

func (r *stubRouter) CreateTransport(media.Direction) (media.Transport, error) {
	r.mu.Lock()
	r.seq++
	id := fmt.Sprintf("%s-tr-%d", r.id, r.seq)
	r.mu.Unlock()
	return &stubTransport{id: id}, nil
}

func (r *stubRouter) Close() {}

type stubTransport struct {
	id  string
	mu  sync.Mutex
	seq int
}

func (t *stubTransport) ID() string { return t.id }

func (t *stubTransport) Info() media.TransportInfo {
	return media.TransportInfo{
		ID:             t.id,
		IceParameters:  json.RawMessage(`{}`),
		IceCandidates:  json.RawMessage(`[]`),
		DtlsParameters: json.RawMessage(`{}`),
	}
}

func (t *stubTransport) Connect(json.RawMessage) error { return nil }

func (t *stubTransport) Produce(kind media.Kind, _ json.RawMessage) (media.Producer, error) {
	t.mu.Lock()
	t.seq++
	id := fmt.Sprintf("%s-prod-%d", t.id, t.seq)
	t.mu.Unlock()
	return &stubProducer{id: id, kind: kind}, nil
}

func (t *stubTransport) Consume(producerID string, _ json.RawMessage) (media.Consumer, error) {
	t.mu.Lock()
	t.seq++
	id := fmt.Sprintf("%s-cons-%d", t.id, t.seq)
	t.mu.Unlock()
	return &stubConsumer{id: id, producerID: producerID}, nil
}

func (t *stubTransport) Close() {}

type stubProducer struct {
	id   string
	kind media.Kind
}

func (p *stubProducer) ID() string       { return p.id }
func (p *stubProducer) Kind() media.Kind { return p.kind }
func (p *stubProducer) Close()           {}

type stubConsumer struct {
	id         string
	producerID string
}

func (c *stubConsumer) ID() string { return c.id }

func (c *stubConsumer) Info() media.ConsumerInfo {
	return media.ConsumerInfo{
		ID:            c.id,
		ProducerID:    c.producerID,
		Kind:          media.KindAudio,
		RtpParameters: json.RawMessage(`{}`),
	}
}

func (c *stubConsumer) Resume() error                          { return nil }
func (c *stubConsumer) SetPreferredLayers(uint8, *uint8) error { return nil }
func (c *stubConsumer) Close()                                 {}
