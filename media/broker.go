package media

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/akinalp/koza/pkg/metrics"
)

// Broker hata sınıfları. Hub bunları WS hata kodlarına çevirir:
// ErrNotReady → NOT_READY, ErrCannotConsume → CANNOT_CONSUME,
// ErrProducerLimit → PRODUCER_LIMIT. Diğer her şey INTERNAL_ERROR.
var (
	ErrNotReady      = errors.New("media transport not ready")
	ErrCannotConsume = errors.New("cannot consume producer")
	ErrProducerLimit = errors.New("producer limit reached")
)

// ProducerHandle, bir producer'ın broadcast'lerde kullanılan kimlik özeti.
// Broker içi kayıt silindikten sonra da geçerli kalır — producer-closed
// ve new-producer frame'leri bundan üretilir.
type ProducerHandle struct {
	ID        string
	UserID    string
	ChannelID string
	MediaType MediaType
	Kind      Kind
}

// producerRecord, producer referansını uygulama seviyesi türüyle eşler.
type producerRecord struct {
	producer  Producer
	mediaType MediaType
}

// peerState, tek bir kullanıcının medya kaynakları. Tüm alanlar Broker.mu
// koruması altında okunur/yazılır; SFU çağrıları lock dışında yapılır ve
// dönüşte pointer kimliğiyle revalidate edilir.
type peerState struct {
	userID    string
	channelID string
	send      Transport
	recv      Transport
	producers map[string]*producerRecord
	consumers map[string]Consumer
}

// Broker, SFU kaynaklarının kanal ve kullanıcı bazlı muhasebesini tutar.
//
// Router'lar kanal başına lazy açılır ve worker'lara round-robin dağıtılır.
// Kanal silinene veya process kapanana kadar yaşarlar — kullanıcılar girip
// çıktıkça router yıkılıp kurulmaz.
//
// Kilitleme kuralı: SFU çağrıları (CreateTransport, Produce, Consume...)
// worker process'iyle IPC yapar ve bloklayabilir; mu bu çağrılar boyunca
// TUTULMAZ. Çağrı dönünce lock yeniden alınır ve peer'in hâlâ aynı kayıt
// olduğu doğrulanır — arada disconnect olduysa yeni kaynak kapatılıp
// işlem iptal edilir.
type Broker struct {
	mu         sync.RWMutex
	engines    []Engine
	nextEngine int
	routers    map[string]Router     // channelID → router
	peers      map[string]*peerState // userID → peer
}

// NewBroker, verilen engine havuzuyla broker oluşturur.
func NewBroker(engines []Engine) *Broker {
	return &Broker{
		engines: engines,
		routers: make(map[string]Router),
		peers:   make(map[string]*peerState),
	}
}

// ─── Router Yönetimi ───

// RouterCapabilities, kanalın router'ını (yoksa açarak) bulur ve RTP
// yeteneklerini döner. joined-channel frame'i bu değeri taşır.
func (b *Broker) RouterCapabilities(channelID string) (json.RawMessage, error) {
	router, err := b.ensureRouter(channelID)
	if err != nil {
		return nil, err
	}
	return router.RtpCapabilities(), nil
}

// ensureRouter, double-checked lazy router oluşturma. Yarışta kaybeden
// taraf kendi router'ını kapatır — kanal başına tek router invariant'ı.
func (b *Broker) ensureRouter(channelID string) (Router, error) {
	b.mu.RLock()
	router, ok := b.routers[channelID]
	b.mu.RUnlock()
	if ok {
		return router, nil
	}

	b.mu.Lock()
	engine := b.engines[b.nextEngine%len(b.engines)]
	b.nextEngine++
	b.mu.Unlock()

	created, err := engine.NewRouter()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if existing, ok := b.routers[channelID]; ok {
		b.mu.Unlock()
		created.Close()
		return existing, nil
	}
	b.routers[channelID] = created
	b.mu.Unlock()

	metrics.RoutersActive.Inc()
	log.Printf("[media] router %s created for channel %s", created.ID(), channelID)
	return created, nil
}

// CloseRouter, kanal silindiğinde router'ı ve kanalda kalmış tüm peer
// kayıtlarını kapatır. Kapanan producer'ların handle'ları döner — hub
// producer-closed yayınlamak isterse kullanır.
func (b *Broker) CloseRouter(channelID string) []ProducerHandle {
	b.mu.Lock()
	router, ok := b.routers[channelID]
	delete(b.routers, channelID)

	var stranded []*peerState
	for userID, peer := range b.peers {
		if peer.channelID == channelID {
			stranded = append(stranded, peer)
			delete(b.peers, userID)
		}
	}
	b.mu.Unlock()

	var handles []ProducerHandle
	for _, peer := range stranded {
		handles = append(handles, closePeerResources(peer)...)
	}
	if ok {
		router.Close()
		metrics.RoutersActive.Dec()
		log.Printf("[media] router closed for channel %s", channelID)
	}
	return handles
}

// ─── Peer Yaşam Döngüsü ───

// EnsurePeer, kullanıcı için boş bir medya kaydı açar. Kanala katılırken
// çağrılır; önceki kanalın kaynakları ClosePeer ile zaten kapatılmış
// olmalıdır. Eski kayıt bulunursa sessizce kapatılır.
func (b *Broker) EnsurePeer(userID, channelID string) {
	fresh := &peerState{
		userID:    userID,
		channelID: channelID,
		producers: make(map[string]*producerRecord),
		consumers: make(map[string]Consumer),
	}

	b.mu.Lock()
	old := b.peers[userID]
	b.peers[userID] = fresh
	b.mu.Unlock()

	if old != nil {
		log.Printf("[media] stale peer record replaced for user %s", userID)
		closePeerResources(old)
	}
}

// ClosePeer, kullanıcının tüm medya kaynaklarını kapatır ve kapanan
// producer'ların handle'larını döner. Kanal değişiminde ve disconnect
// cleanup'ta çağrılır; kayıt yoksa sessizce boş döner (idempotent).
func (b *Broker) ClosePeer(userID string) []ProducerHandle {
	b.mu.Lock()
	peer := b.peers[userID]
	delete(b.peers, userID)
	b.mu.Unlock()

	if peer == nil {
		return nil
	}
	return closePeerResources(peer)
}

// closePeerResources, peer'in map'ten çıkarılmış bir kaydını kapatır.
// Kayıt artık paylaşılmadığı için lock gerekmez.
func closePeerResources(peer *peerState) []ProducerHandle {
	for _, consumer := range peer.consumers {
		consumer.Close()
		metrics.ConsumersActive.Dec()
	}

	handles := make([]ProducerHandle, 0, len(peer.producers))
	for id, rec := range peer.producers {
		rec.producer.Close()
		metrics.ProducersActive.WithLabelValues(string(rec.mediaType)).Dec()
		handles = append(handles, ProducerHandle{
			ID:        id,
			UserID:    peer.userID,
			ChannelID: peer.channelID,
			MediaType: rec.mediaType,
			Kind:      rec.mediaType.Kind(),
		})
	}

	if peer.send != nil {
		peer.send.Close()
	}
	if peer.recv != nil {
		peer.recv.Close()
	}
	return handles
}

// ─── Transport ───

// CreateTransport, peer için send veya recv yönünde WebRTC transport açar.
// Aynı yönde eski bir transport varsa kapatılıp yenisiyle değiştirilir
// (client'ın yeniden müzakere akışı).
func (b *Broker) CreateTransport(userID string, direction Direction) (TransportInfo, error) {
	b.mu.RLock()
	peer := b.peers[userID]
	var router Router
	if peer != nil {
		router = b.routers[peer.channelID]
	}
	b.mu.RUnlock()

	if peer == nil || router == nil {
		return TransportInfo{}, ErrNotReady
	}

	transport, err := router.CreateTransport(direction)
	if err != nil {
		return TransportInfo{}, err
	}

	b.mu.Lock()
	if b.peers[userID] != peer {
		b.mu.Unlock()
		transport.Close()
		return TransportInfo{}, ErrNotReady
	}
	var old Transport
	if direction == DirectionSend {
		old, peer.send = peer.send, transport
	} else {
		old, peer.recv = peer.recv, transport
	}
	b.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return transport.Info(), nil
}

// ConnectTransport, client'ın DTLS parametrelerini ilgili transport'a iletir.
func (b *Broker) ConnectTransport(userID, transportID string, dtlsParameters json.RawMessage) error {
	b.mu.RLock()
	transport := b.transportByIDLocked(userID, transportID)
	b.mu.RUnlock()

	if transport == nil {
		return ErrNotReady
	}
	return transport.Connect(dtlsParameters)
}

// transportByIDLocked, peer'in send/recv transport'larından id eşleşenini
// döner. Caller b.mu tutuyor olmalı.
func (b *Broker) transportByIDLocked(userID, transportID string) Transport {
	peer := b.peers[userID]
	if peer == nil {
		return nil
	}
	if peer.send != nil && peer.send.ID() == transportID {
		return peer.send
	}
	if peer.recv != nil && peer.recv.ID() == transportID {
		return peer.recv
	}
	return nil
}

// ─── Producer ───

// Produce, send transport üzerinde yeni bir producer açar.
//
// maxActive > 0 ise kanal genelinde aynı mediaType'tan aktif producer
// sayısı sınırlanır. Sayım hem SFU çağrısından önce (erken ret) hem de
// kayıt anında aynı lock altında yapılır — iki eşzamanlı produce aynı
// son hakkı alamaz.
func (b *Broker) Produce(userID, transportID string, mediaType MediaType, rtpParameters json.RawMessage, maxActive int) (string, error) {
	b.mu.RLock()
	peer := b.peers[userID]
	var send Transport
	var channelID string
	if peer != nil {
		send = peer.send
		channelID = peer.channelID
	}
	overCap := maxActive > 0 && peer != nil && b.countProducersLocked(channelID, mediaType) >= maxActive
	b.mu.RUnlock()

	if peer == nil || send == nil || send.ID() != transportID {
		return "", ErrNotReady
	}
	if overCap {
		return "", ErrProducerLimit
	}

	producer, err := send.Produce(mediaType.Kind(), rtpParameters)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	if b.peers[userID] != peer {
		b.mu.Unlock()
		producer.Close()
		return "", ErrNotReady
	}
	if maxActive > 0 && b.countProducersLocked(channelID, mediaType) >= maxActive {
		b.mu.Unlock()
		producer.Close()
		return "", ErrProducerLimit
	}
	peer.producers[producer.ID()] = &producerRecord{producer: producer, mediaType: mediaType}
	b.mu.Unlock()

	metrics.ProducersActive.WithLabelValues(string(mediaType)).Inc()
	return producer.ID(), nil
}

// countProducersLocked, kanaldaki aktif producer sayısını mediaType'a göre
// sayar. Caller b.mu tutuyor olmalı.
func (b *Broker) countProducersLocked(channelID string, mediaType MediaType) int {
	count := 0
	for _, peer := range b.peers {
		if peer.channelID != channelID {
			continue
		}
		for _, rec := range peer.producers {
			if rec.mediaType == mediaType {
				count++
			}
		}
	}
	return count
}

// CloseProducer, kullanıcıya ait producer'ı kapatır. Sahiplik tutmuyorsa
// (id başkasının veya bilinmiyor) false döner ve hiçbir şey kapanmaz.
func (b *Broker) CloseProducer(userID, producerID string) (ProducerHandle, bool) {
	b.mu.Lock()
	peer := b.peers[userID]
	if peer == nil {
		b.mu.Unlock()
		return ProducerHandle{}, false
	}
	rec, ok := peer.producers[producerID]
	if !ok {
		b.mu.Unlock()
		return ProducerHandle{}, false
	}
	delete(peer.producers, producerID)
	channelID := peer.channelID
	b.mu.Unlock()

	rec.producer.Close()
	metrics.ProducersActive.WithLabelValues(string(rec.mediaType)).Dec()
	return ProducerHandle{
		ID:        producerID,
		UserID:    userID,
		ChannelID: channelID,
		MediaType: rec.mediaType,
		Kind:      rec.mediaType.Kind(),
	}, true
}

// ProducersInChannel, kanaldaki aktif producer'ların handle'larını döner.
// Kanala yeni katılan client'a new-producer kataloğu buradan gönderilir.
func (b *Broker) ProducersInChannel(channelID, excludeUserID string) []ProducerHandle {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var handles []ProducerHandle
	for userID, peer := range b.peers {
		if peer.channelID != channelID || userID == excludeUserID {
			continue
		}
		for id, rec := range peer.producers {
			handles = append(handles, ProducerHandle{
				ID:        id,
				UserID:    userID,
				ChannelID: channelID,
				MediaType: rec.mediaType,
				Kind:      rec.mediaType.Kind(),
			})
		}
	}
	return handles
}

// ─── Consumer ───

// Consume, producer'ı peer'in recv transport'u üzerinde paused consumer'a
// bağlar. Router codec uyumsuzluğu bildirirse ErrCannotConsume döner.
func (b *Broker) Consume(userID, producerID string, rtpCapabilities json.RawMessage) (ConsumerInfo, error) {
	b.mu.RLock()
	peer := b.peers[userID]
	var recv Transport
	var router Router
	if peer != nil {
		recv = peer.recv
		router = b.routers[peer.channelID]
	}
	b.mu.RUnlock()

	if peer == nil || recv == nil || router == nil {
		return ConsumerInfo{}, ErrNotReady
	}
	if !router.CanConsume(producerID, rtpCapabilities) {
		return ConsumerInfo{}, ErrCannotConsume
	}

	consumer, err := recv.Consume(producerID, rtpCapabilities)
	if err != nil {
		return ConsumerInfo{}, err
	}

	b.mu.Lock()
	if b.peers[userID] != peer {
		b.mu.Unlock()
		consumer.Close()
		return ConsumerInfo{}, ErrNotReady
	}
	peer.consumers[consumer.ID()] = consumer
	b.mu.Unlock()

	metrics.ConsumersActive.Inc()
	return consumer.Info(), nil
}

// ResumeConsumer, paused consumer'da RTP akışını başlatır.
func (b *Broker) ResumeConsumer(userID, consumerID string) error {
	consumer := b.consumerByID(userID, consumerID)
	if consumer == nil {
		return ErrNotReady
	}
	return consumer.Resume()
}

// SetPreferredLayers, simulcast katman tercihini consumer'a iletir.
func (b *Broker) SetPreferredLayers(userID, consumerID string, spatial uint8, temporal *uint8) error {
	consumer := b.consumerByID(userID, consumerID)
	if consumer == nil {
		return ErrNotReady
	}
	return consumer.SetPreferredLayers(spatial, temporal)
}

func (b *Broker) consumerByID(userID, consumerID string) Consumer {
	b.mu.RLock()
	defer b.mu.RUnlock()

	peer := b.peers[userID]
	if peer == nil {
		return nil
	}
	return peer.consumers[consumerID]
}

// ─── Kapanış ───

// Close, tüm router ve engine'leri kapatır. Process kapanışında çağrılır;
// peer kaynakları router'larla birlikte SFU tarafında zaten ölür.
func (b *Broker) Close() {
	b.mu.Lock()
	routers := b.routers
	engines := b.engines
	b.routers = make(map[string]Router)
	b.peers = make(map[string]*peerState)
	b.mu.Unlock()

	for channelID, router := range routers {
		router.Close()
		log.Printf("[media] router closed for channel %s", channelID)
	}
	for _, engine := range engines {
		engine.Close()
	}
}
