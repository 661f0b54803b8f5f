package media

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/jiyeyuran/mediasoup-go"
)

// EngineConfig, mediasoup worker'larının ağ ayarları.
type EngineConfig struct {
	// RtcMinPort/RtcMaxPort, worker'lara verilen UDP port aralığı.
	RtcMinPort uint16
	RtcMaxPort uint16
	// ListenIP, worker'ın bind olduğu yerel adres. Boşsa 0.0.0.0.
	ListenIP string
	// AnnouncedIP, ICE candidate'larda duyurulan dışarıdan erişilebilir
	// adres. NAT arkasında zorunludur — boş bırakılırsa client'lar
	// sunucunun yerel adresine bağlanmaya çalışır ve başarısız olur.
	AnnouncedIP string
}

// NewMediasoupEngines, n adet mediasoup worker process'i başlatır.
// Worker başına bir Engine döner; biri başlatılamazsa öncekiler kapatılır.
func NewMediasoupEngines(n int, cfg EngineConfig) ([]Engine, error) {
	if cfg.ListenIP == "" {
		cfg.ListenIP = "0.0.0.0"
	}

	engines := make([]Engine, 0, n)
	for i := 0; i < n; i++ {
		worker, err := mediasoup.NewWorker(
			mediasoup.WithLogLevel("warn"),
			mediasoup.WithRtcMinPort(cfg.RtcMinPort),
			mediasoup.WithRtcMaxPort(cfg.RtcMaxPort),
		)
		if err != nil {
			for _, e := range engines {
				e.Close()
			}
			return nil, fmt.Errorf("failed to start media worker %d/%d: %w", i+1, n, err)
		}
		engines = append(engines, &msEngine{worker: worker, cfg: cfg})
	}

	log.Printf("[media] %d mediasoup worker(s) started, rtc ports %d-%d", n, cfg.RtcMinPort, cfg.RtcMaxPort)
	return engines, nil
}

// routerMediaCodecs, router'ların codec kataloğu: ses için opus, görüntü
// için VP8. Tüm WebRTC client'ları ikisini de zorunlu destekler.
func routerMediaCodecs() []*mediasoup.RtpCodecCapability {
	return []*mediasoup.RtpCodecCapability{
		{
			Kind:      "audio",
			MimeType:  "audio/opus",
			ClockRate: 48000,
			Channels:  2,
		},
		{
			Kind:      "video",
			MimeType:  "video/VP8",
			ClockRate: 90000,
			Parameters: mediasoup.RtpCodecSpecificParameters{
				XGoogleStartBitrate: 1000,
			},
		},
	}
}

// ─── Engine ───

type msEngine struct {
	worker *mediasoup.Worker
	cfg    EngineConfig
}

func (e *msEngine) NewRouter() (Router, error) {
	router, err := e.worker.CreateRouter(mediasoup.RouterOptions{
		MediaCodecs: routerMediaCodecs(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	// Yetenek seti router ömrü boyunca sabittir — bir kez marshal edilir.
	caps, err := json.Marshal(router.RtpCapabilities())
	if err != nil {
		router.Close()
		return nil, fmt.Errorf("failed to encode router capabilities: %w", err)
	}

	return &msRouter{router: router, caps: caps, cfg: e.cfg}, nil
}

func (e *msEngine) Close() {
	e.worker.Close()
}

// ─── Router ───

type msRouter struct {
	router *mediasoup.Router
	caps   json.RawMessage
	cfg    EngineConfig
}

func (r *msRouter) ID() string {
	return r.router.Id()
}

func (r *msRouter) RtpCapabilities() json.RawMessage {
	return r.caps
}

func (r *msRouter) CanConsume(producerID string, rtpCapabilities json.RawMessage) bool {
	var caps mediasoup.RtpCapabilities
	if err := json.Unmarshal(rtpCapabilities, &caps); err != nil {
		return false
	}
	return r.router.CanConsume(producerID, caps)
}

func (r *msRouter) CreateTransport(direction Direction) (Transport, error) {
	listenIP := mediasoup.TransportListenIp{Ip: r.cfg.ListenIP}
	if r.cfg.AnnouncedIP != "" {
		listenIP.AnnouncedIp = r.cfg.AnnouncedIP
	}

	transport, err := r.router.CreateWebRtcTransport(mediasoup.WebRtcTransportOptions{
		ListenIps: []mediasoup.TransportListenIp{listenIP},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s transport: %w", direction, err)
	}

	info, err := buildTransportInfo(transport)
	if err != nil {
		transport.Close()
		return nil, err
	}
	return &msTransport{transport: transport, info: info}, nil
}

func (r *msRouter) Close() {
	r.router.Close()
}

// buildTransportInfo, transport'un ICE/DTLS parametrelerini client'a
// gidecek opak forma çevirir.
func buildTransportInfo(t *mediasoup.WebRtcTransport) (TransportInfo, error) {
	ice, err := json.Marshal(t.IceParameters())
	if err != nil {
		return TransportInfo{}, fmt.Errorf("failed to encode ice parameters: %w", err)
	}
	candidates, err := json.Marshal(t.IceCandidates())
	if err != nil {
		return TransportInfo{}, fmt.Errorf("failed to encode ice candidates: %w", err)
	}
	dtls, err := json.Marshal(t.DtlsParameters())
	if err != nil {
		return TransportInfo{}, fmt.Errorf("failed to encode dtls parameters: %w", err)
	}

	return TransportInfo{
		ID:             t.Id(),
		IceParameters:  ice,
		IceCandidates:  candidates,
		DtlsParameters: dtls,
	}, nil
}

// ─── Transport ───

type msTransport struct {
	transport *mediasoup.WebRtcTransport
	info      TransportInfo
}

func (t *msTransport) ID() string {
	return t.info.ID
}

func (t *msTransport) Info() TransportInfo {
	return t.info
}

func (t *msTransport) Connect(dtlsParameters json.RawMessage) error {
	var dtls mediasoup.DtlsParameters
	if err := json.Unmarshal(dtlsParameters, &dtls); err != nil {
		return fmt.Errorf("invalid dtls parameters: %w", err)
	}
	return t.transport.Connect(mediasoup.TransportConnectOptions{
		DtlsParameters: &dtls,
	})
}

func (t *msTransport) Produce(kind Kind, rtpParameters json.RawMessage) (Producer, error) {
	var params mediasoup.RtpParameters
	if err := json.Unmarshal(rtpParameters, &params); err != nil {
		return nil, fmt.Errorf("invalid rtp parameters: %w", err)
	}

	producer, err := t.transport.Produce(mediasoup.ProducerOptions{
		Kind:          mediasoup.MediaKind(kind),
		RtpParameters: params,
	})
	if err != nil {
		return nil, fmt.Errorf("produce failed: %w", err)
	}
	return &msProducer{producer: producer}, nil
}

func (t *msTransport) Consume(producerID string, rtpCapabilities json.RawMessage) (Consumer, error) {
	var caps mediasoup.RtpCapabilities
	if err := json.Unmarshal(rtpCapabilities, &caps); err != nil {
		return nil, fmt.Errorf("invalid rtp capabilities: %w", err)
	}

	// Paused başlat — client resume-consumer gönderene kadar RTP akmaz.
	consumer, err := t.transport.Consume(mediasoup.ConsumerOptions{
		ProducerId:      producerID,
		RtpCapabilities: caps,
		Paused:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("consume failed: %w", err)
	}

	params, err := json.Marshal(consumer.RtpParameters())
	if err != nil {
		consumer.Close()
		return nil, fmt.Errorf("failed to encode consumer rtp parameters: %w", err)
	}

	return &msConsumer{
		consumer: consumer,
		info: ConsumerInfo{
			ID:            consumer.Id(),
			ProducerID:    producerID,
			Kind:          Kind(consumer.Kind()),
			RtpParameters: params,
		},
	}, nil
}

func (t *msTransport) Close() {
	t.transport.Close()
}

// ─── Producer / Consumer ───

type msProducer struct {
	producer *mediasoup.Producer
}

func (p *msProducer) ID() string {
	return p.producer.Id()
}

func (p *msProducer) Kind() Kind {
	return Kind(p.producer.Kind())
}

func (p *msProducer) Close() {
	p.producer.Close()
}

type msConsumer struct {
	consumer *mediasoup.Consumer
	info     ConsumerInfo
}

func (c *msConsumer) ID() string {
	return c.info.ID
}

func (c *msConsumer) Info() ConsumerInfo {
	return c.info
}

func (c *msConsumer) Resume() error {
	return c.consumer.Resume()
}

func (c *msConsumer) SetPreferredLayers(spatial uint8, temporal *uint8) error {
	layers := mediasoup.ConsumerLayers{SpatialLayer: spatial}
	if temporal != nil {
		layers.TemporalLayer = *temporal
	}
	return c.consumer.SetPreferredLayers(layers)
}

func (c *msConsumer) Close() {
	c.consumer.Close()
}
