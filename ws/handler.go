package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/akinalp/koza/pkg/metrics"
	"github.com/akinalp/koza/pkg/ratelimit"
)

// upgrader, HTTP → WebSocket yükseltmesi. Origin kontrolü bilinçli
// olarak açıktır: masaüstü istemciler tauri://localhost gibi standart
// dışı origin'lerle gelir, asıl kimlik kapısı auth çerçevesidir.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler, /ws endpoint'inin HTTP tarafı.
type Handler struct {
	hub *Hub
}

// NewHandler, constructor.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// HandleConnection, yükseltmeyi yapar ve pompaları başlatır. Okuma
// döngüsü bu goroutine'de koşar — handler bağlantı kapanana dek döner.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	client := newClient(h.hub, conn, ratelimit.ExtractIP(r, h.hub.cfg.TrustProxy))
	metrics.ConnectionsActive.Inc()
	metrics.ConnectionsTotal.Inc()

	go client.WritePump()
	client.ReadPump()
}
