package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akinalp/koza/pkg/metrics"
	"github.com/akinalp/koza/pkg/ratelimit"
)

const (
	// writeWait, tek bir yazma işleminin socket'te bekleyebileceği süre.
	writeWait = 10 * time.Second

	// heartbeatInterval, hub'ın ping süpürmesinin periyodu.
	// Bir önceki süpürmeden beri pong dönmeyen bağlantı koparılır.
	heartbeatInterval = 15 * time.Second

	// pongWait, okuma deadline'ı — heartbeat mekanizması çalışmazsa
	// (ör. hub durduysa) ölü bağlantıyı yine de düşüren emniyet kemeri.
	pongWait = 60 * time.Second

	// maxMessageSize, tek çerçevenin üst sınırı: 4 MiB'lık chat
	// ciphertext'i JSON zarfıyla birlikte sığabilsin diye küçük bir
	// pay içerir.
	maxMessageSize = 4<<20 + 64<<10

	// maxChatCiphertext, chat çerçevesindeki ciphertext alanının
	// (base64 metin olarak) kabul edilen en büyük uzunluğu.
	maxChatCiphertext = 4 << 20

	// sendBufferSize, istemci başına giden çerçeve kuyruğu. Kuyruğu
	// dolduran istemci yayını tüketemiyor demektir ve koparılır.
	sendBufferSize = 256
)

// Client, tek bir WebSocket bağlantısının sunucu tarafı durumudur.
//
// Alan grupları ve eşzamanlılık kuralları:
//   - userID, nickname, serverID, publicKey, isAdmin: handleAuth içinde
//     bir kez yazılır, authenticated bayrağı kalkmadan başka goroutine
//     bunları okumaz.
//   - channelID, isMuted, isDeafened, rtpCaps: mesaj işleyiciler yazar,
//     yayın yolları okur; mu ile korunur.
//   - send/done: yazma kuyruğu ve kapanış sinyali. send kanalı asla
//     close edilmez — kapanış done üzerinden duyurulur ki geç kalan
//     enqueue panic'lemesin.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	send chan []byte
	done chan struct{}

	remoteAddr string

	authenticated atomic.Bool
	userID        string
	nickname      string
	serverID      string
	publicKey     *string
	isAdmin       bool

	mu         sync.RWMutex
	channelID  string
	isMuted    bool
	isDeafened bool
	rtpCaps    json.RawMessage

	limiter *ratelimit.CategoryLimiter
	alive   atomic.Bool

	cleanupOnce sync.Once
	writeMu     sync.Mutex
}

func newClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	c := &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
		remoteAddr: remoteAddr,
		limiter:    ratelimit.NewCategoryLimiter(),
	}
	c.alive.Store(true)
	return c
}

// ─── Durum erişimcileri ───

// ChannelID, bağlantının o anki kanalını döner; boş string = kanalda değil.
func (c *Client) ChannelID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channelID
}

func (c *Client) setChannel(channelID string) {
	c.mu.Lock()
	c.channelID = channelID
	c.mu.Unlock()
}

// MuteState, (isMuted, isDeafened) çiftini döner.
func (c *Client) MuteState() (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isMuted, c.isDeafened
}

func (c *Client) setMuted(v bool) {
	c.mu.Lock()
	c.isMuted = v
	c.mu.Unlock()
}

func (c *Client) setDeafened(v bool) {
	c.mu.Lock()
	c.isDeafened = v
	c.mu.Unlock()
}

func (c *Client) rtpCapabilities() json.RawMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rtpCaps
}

func (c *Client) setRtpCapabilities(caps json.RawMessage) {
	c.mu.Lock()
	c.rtpCaps = caps
	c.mu.Unlock()
}

// ─── Pompalar ───

// ReadPump, bağlantının okuma döngüsüdür; HTTP upgrade goroutine'inde
// koşar. Mesajlar SENKRON işlenir: aynı bağlantının çerçeveleri geliş
// sırasıyla tamamlanır, bu yüzden auth bitmeden join-channel işlenemez.
func (c *Client) ReadPump() {
	defer c.hub.disconnect(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error from %s: %v", c.remoteAddr, err)
			}
			return
		}
		c.handleMessage(raw)
	}
}

// WritePump, giden kuyruk tüketicisidir; bağlantı başına bir goroutine.
func (c *Client) WritePump() {
	defer c.conn.Close()
	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-c.done:
			c.closeMessage(websocket.CloseNormalClosure, "")
			return
		}
	}
}

// write, tek veri çerçevesi yazar. WritePump dışında da (senkron auth
// yanıtları, kick bildirimi) çağrıldığı için mutex ile sıralanır.
func (c *Client) write(messageType int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

func (c *Client) ping() {
	_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *Client) closeMessage(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// ─── Gönderme yardımcıları ───

// enqueue, çerçeveyi yazma kuyruğuna bırakır. Kuyruk doluysa istemci
// yayını tüketemiyor demektir; bağlantı asenkron koparılır ki tek yavaş
// istemci fan-out'u arkasında bekletmesin.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		log.Printf("[ws] send buffer full for %s, terminating", c.userID)
		go c.hub.disconnect(c)
	}
}

// sendFrame, gövdeyi JSON'layıp kuyruğa bırakır.
func (c *Client) sendFrame(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[ws] frame marshal failed: %v", err)
		return
	}
	c.enqueue(data)
}

// sendDirect, çerçeveyi kuyruğu atlayarak socket'e senkron yazar.
// Bağlantı hemen ardından kapatılacaksa (auth reddi, kick) kuyruktaki
// yarış yüzünden kaybolmasın diye kullanılır.
func (c *Client) sendDirect(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[ws] frame marshal failed: %v", err)
		return
	}
	_ = c.write(websocket.TextMessage, data)
}

// sendError, standart hata çerçevesi yollar.
func (c *Client) sendError(code, message string) {
	c.sendFrame(errorFrame{Type: MsgError, Code: code, Message: message})
}

// ─── Gelen çerçeve yönlendirme ───

// handleMessage, tek bir gelen çerçeveyi uçtan uca işler: tip çözümü,
// auth kapısı, kategori bazlı hız sınırı ve hub'a dispatch.
func (c *Client) handleMessage(raw []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.Type == "" {
		c.sendError(CodeInvalidJSON, "frame must be a json object with a type field")
		return
	}

	if !c.authenticated.Load() {
		if head.Type == MsgAuth {
			c.hub.handleAuth(c, raw)
		} else {
			c.sendError(CodeNotAuthenticated, "authenticate before sending "+head.Type)
		}
		return
	}

	category := categoryFor(head.Type)
	if !c.limiter.Allow(category) {
		metrics.RateLimitedTotal.WithLabelValues(string(category)).Inc()
		c.sendError(CodeRateLimited, "too many "+string(category)+" messages, slow down")
		return
	}
	metrics.MessagesReceivedTotal.WithLabelValues(string(category)).Inc()

	c.hub.dispatch(c, head.Type, raw)
}
