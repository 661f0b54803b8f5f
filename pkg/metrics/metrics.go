// Package metrics — Prometheus metrik tanımları ve /metrics endpoint'i.
//
// promauto ile tanımlanan metrikler default registry'ye kaydolur; Handler()
// bu registry'yi text exposition formatında sunar. Admin paneli ayrıca
// Snapshot() ile aynı sayıların JSON özetini alabilir — iki görünüm de
// aynı sayaçlardan beslenir, değerler iki yerde tutulmaz.
//
// Kardinalite notu: label olarak yalnızca sabit küçük kümeler kullanılır
// (mesaj kategorisi, medya türü). Kanal veya kullanıcı id'si asla label
// olmaz — her kanal ayrı bir zaman serisi doğurur ve registry şişer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

var (
	// ─── Bağlantı yaşam döngüsü ───

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "koza_connections_active",
		Help: "Number of live WebSocket connections.",
	})

	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "koza_connections_total",
		Help: "Total WebSocket connections accepted since start.",
	})

	AuthFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "koza_auth_failures_total",
		Help: "Total failed authentication attempts.",
	})

	// ─── Mesaj trafiği ───

	MessagesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koza_messages_received_total",
		Help: "Client messages processed, by rate limit category.",
	}, []string{"category"})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koza_rate_limited_total",
		Help: "Client messages rejected by the rate limiter, by category.",
	}, []string{"category"})

	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "koza_broadcasts_total",
		Help: "Server frames fanned out to clients.",
	})

	// ─── Medya ───

	RoutersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "koza_media_routers_active",
		Help: "Live per-channel media routers.",
	})

	ProducersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "koza_media_producers_active",
		Help: "Live producers, by media type (mic, webcam, screen, screen-audio).",
	}, []string{"mediaType"})

	ConsumersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "koza_media_consumers_active",
		Help: "Live consumers.",
	})

	// ─── Davetler ───

	InvitesRedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "koza_invites_redeemed_total",
		Help: "Invite tokens successfully redeemed into credentials.",
	})
)

// Handler, Prometheus text exposition endpoint'ini döner.
// Admin route'larının altına bağlanır — dışarıya açılmaz.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Snapshot, admin panelinin istatistik kartları için metriklerin anlık
// JSON-dostu özetini üretir. Default registry'den Gather ile okur.
func Snapshot() map[string]any {
	snap := map[string]any{
		"connectionsActive": 0.0,
		"connectionsTotal":  0.0,
		"authFailures":      0.0,
		"broadcastsTotal":   0.0,
		"routersActive":     0.0,
		"consumersActive":   0.0,
		"producersActive":   map[string]float64{},
		"invitesRedeemed":   0.0,
	}

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return snap
	}

	producers := map[string]float64{}
	for _, mf := range families {
		switch mf.GetName() {
		case "koza_connections_active":
			snap["connectionsActive"] = firstValue(mf)
		case "koza_connections_total":
			snap["connectionsTotal"] = firstValue(mf)
		case "koza_auth_failures_total":
			snap["authFailures"] = firstValue(mf)
		case "koza_broadcasts_total":
			snap["broadcastsTotal"] = firstValue(mf)
		case "koza_media_routers_active":
			snap["routersActive"] = firstValue(mf)
		case "koza_media_consumers_active":
			snap["consumersActive"] = firstValue(mf)
		case "koza_invites_redeemed_total":
			snap["invitesRedeemed"] = firstValue(mf)
		case "koza_media_producers_active":
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "mediaType" {
						producers[lp.GetValue()] = m.GetGauge().GetValue()
					}
				}
			}
		}
	}
	snap["producersActive"] = producers

	return snap
}

// firstValue, label'sız tek serili ailenin (gauge veya counter) değerini çeker.
func firstValue(mf *dto.MetricFamily) float64 {
	ms := mf.GetMetric()
	if len(ms) == 0 {
		return 0
	}
	if g := ms[0].GetGauge(); g != nil {
		return g.GetValue()
	}
	if c := ms[0].GetCounter(); c != nil {
		return c.GetValue()
	}
	return 0
}
