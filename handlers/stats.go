package handlers

import (
	"net/http"
	"time"

	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/pkg/metrics"
)

// ConnectionCounter, hub'ın istatistik için açtığı dar arayüz.
type ConnectionCounter interface {
	ConnectionCount() int
}

// StatsHandler, admin istatistik ve sağlık endpoint'leri. Prometheus
// formatı /metrics'te ayrıca sunulur; buradaki JSON, admin panelinin
// tek istekte okuduğu özettir.
type StatsHandler struct {
	hub       ConnectionCounter
	startedAt time.Time
}

// NewStatsHandler, constructor.
func NewStatsHandler(hub ConnectionCounter) *StatsHandler {
	return &StatsHandler{hub: hub, startedAt: time.Now()}
}

// Stats godoc
// GET /api/stats
// Sayaç özetini JSON döner. Admin gate arkasındadır.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snapshot := metrics.Snapshot()
	snapshot["connections"] = h.hub.ConnectionCount()
	snapshot["uptimeSeconds"] = int(time.Since(h.startedAt).Seconds())
	pkg.JSON(w, http.StatusOK, snapshot)
}

// Healthz godoc
// GET /healthz
// Liveness probe'u; yük dengeleyici ve systemd izlemesi için.
func (h *StatsHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
