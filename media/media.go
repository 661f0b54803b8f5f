// Package media, SFU (Selective Forwarding Unit) kontrol düzlemini yönetir.
//
// Katmanlar:
//  1. Engine/Router/Transport/Producer/Consumer interface'leri — hub'ın
//     gördüğü soyutlama. Testler in-memory fake ile çalışır.
//  2. Broker — kanal başına router, kullanıcı başına transport/producer/
//     consumer kayıtları. Tüm indeksleme burada.
//  3. mediasoup binding — production implementasyonu (mediasoup.go).
//
// RTP/ICE/DTLS parametreleri bu katmanda json.RawMessage olarak opak
// taşınır: hub client'tan gelen JSON'u SFU'ya, SFU'dan geleni client'a
// aynen aktarır. Sunucu bu yapıların içini yorumlamaz — medya müzakeresi
// client ile SFU arasındadır.
package media

import "encoding/json"

// Kind, RTP akışının türü. SFU seviyesinde yalnızca iki tür vardır.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// MediaType, bir producer'ın uygulama seviyesindeki anlamı. Aynı Kind'a
// sahip iki akış farklı şekilde yetkilendirilir: webcam ile ekran
// paylaşımı ikisi de video'dur ama ayrı izinlere ve ayrı kanal
// limitlerine tabidir.
type MediaType string

const (
	MediaTypeMic         MediaType = "mic"
	MediaTypeWebcam      MediaType = "webcam"
	MediaTypeScreen      MediaType = "screen"
	MediaTypeScreenAudio MediaType = "screen-audio"
)

// Valid, bilinen bir mediaType olup olmadığını kontrol eder.
func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeMic, MediaTypeWebcam, MediaTypeScreen, MediaTypeScreenAudio:
		return true
	}
	return false
}

// Kind, mediaType'ın RTP türünü döner.
func (t MediaType) Kind() Kind {
	switch t {
	case MediaTypeWebcam, MediaTypeScreen:
		return KindVideo
	default:
		return KindAudio
	}
}

// Direction, transport'un akış yönü (client açısından).
type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

// Valid, bilinen bir direction olup olmadığını kontrol eder.
func (d Direction) Valid() bool {
	return d == DirectionSend || d == DirectionRecv
}

// TransportInfo, client'ın WebRTC bağlantısını kurması için gereken
// parametre seti. transport-created frame'inin gövdesidir.
type TransportInfo struct {
	ID             string          `json:"id"`
	IceParameters  json.RawMessage `json:"iceParameters"`
	IceCandidates  json.RawMessage `json:"iceCandidates"`
	DtlsParameters json.RawMessage `json:"dtlsParameters"`
}

// ConsumerInfo, client'ın uzak akışı almaya başlaması için gereken
// parametre seti. consume-result frame'inin gövdesidir.
type ConsumerInfo struct {
	ID            string          `json:"id"`
	ProducerID    string          `json:"producerId"`
	Kind          Kind            `json:"kind"`
	RtpParameters json.RawMessage `json:"rtpParameters"`
}

// Engine, tek bir SFU worker process'ini temsil eder. Broker CPU başına
// bir engine çalıştırır ve router'ları round-robin dağıtır.
type Engine interface {
	// NewRouter, worker üzerinde yeni bir router (medya odası) açar.
	NewRouter() (Router, error)
	Close()
}

// Router, bir kanalın medya odası. Kanalın tüm producer ve consumer'ları
// aynı router üzerindedir; SFU yönlendirmeyi router içinde yapar.
type Router interface {
	ID() string
	// RtpCapabilities, router'ın codec seti. Client bununla kendi
	// device'ını yükler; consume edebilmek için geri bildirir.
	RtpCapabilities() json.RawMessage
	// CanConsume, verilen client yetenekleriyle producer'ın tüketilip
	// tüketilemeyeceğini kontrol eder (codec uyumu).
	CanConsume(producerID string, rtpCapabilities json.RawMessage) bool
	CreateTransport(direction Direction) (Transport, error)
	Close()
}

// Transport, tek bir client'ın tek yönlü WebRTC bacağı.
type Transport interface {
	ID() string
	Info() TransportInfo
	// Connect, client'ın DTLS el sıkışma parametrelerini SFU'ya iletir.
	Connect(dtlsParameters json.RawMessage) error
	Produce(kind Kind, rtpParameters json.RawMessage) (Producer, error)
	// Consume her zaman paused consumer oluşturur — client transport'u
	// hazırlayıp resume-consumer gönderene kadar RTP akmaz, ilk
	// paketler kaybolmaz.
	Consume(producerID string, rtpCapabilities json.RawMessage) (Consumer, error)
	Close()
}

// Producer, client'tan SFU'ya akan tek bir medya akışı.
type Producer interface {
	ID() string
	Kind() Kind
	Close()
}

// Consumer, SFU'dan client'a akan tek bir medya akışı.
type Consumer interface {
	ID() string
	Info() ConsumerInfo
	Resume() error
	// SetPreferredLayers, simulcast katman seçimi. temporal nil ise
	// yalnızca spatial katman ayarlanır.
	SetPreferredLayers(spatial uint8, temporal *uint8) error
	Close()
}
