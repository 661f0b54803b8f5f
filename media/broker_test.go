package media

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker() (*Broker, *fakeEngine) {
	engine := newFakeEngine()
	return NewBroker([]Engine{engine}), engine
}

// joinPeer, happy-path kurulumu: kanalın router'ını açar ve peer kaydını
// oluşturur — production'da joined-channel akışının yaptığı sırayla.
func joinPeer(t *testing.T, b *Broker, userID, channelID string) {
	t.Helper()
	_, err := b.RouterCapabilities(channelID)
	require.NoError(t, err)
	b.EnsurePeer(userID, channelID)
}

func sendTransport(t *testing.T, b *Broker, engine *fakeEngine, userID string) (TransportInfo, *fakeTransport) {
	t.Helper()
	info, err := b.CreateTransport(userID, DirectionSend)
	require.NoError(t, err)
	tr := engine.transport(info.ID)
	require.NotNil(t, tr)
	return info, tr
}

func recvTransport(t *testing.T, b *Broker, engine *fakeEngine, userID string) (TransportInfo, *fakeTransport) {
	t.Helper()
	info, err := b.CreateTransport(userID, DirectionRecv)
	require.NoError(t, err)
	tr := engine.transport(info.ID)
	require.NotNil(t, tr)
	return info, tr
}

// ─── Router ───

func TestRouterCapabilitiesCreatesRouterPerChannel(t *testing.T) {
	b, engine := newTestBroker()

	caps, err := b.RouterCapabilities("ch-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"codecs":["opus","VP8"]}`, string(caps))
	assert.Equal(t, 1, engine.routerCount())

	// Aynı kanal ikinci çağrıda yeni router açmaz
	_, err = b.RouterCapabilities("ch-1")
	require.NoError(t, err)
	assert.Equal(t, 1, engine.routerCount())

	// Farklı kanal yeni router alır
	_, err = b.RouterCapabilities("ch-2")
	require.NoError(t, err)
	assert.Equal(t, 2, engine.routerCount())
}

func TestRouterRoundRobinAcrossEngines(t *testing.T) {
	first, second := newFakeEngine(), newFakeEngine()
	b := NewBroker([]Engine{first, second})

	for _, ch := range []string{"ch-1", "ch-2", "ch-3"} {
		_, err := b.RouterCapabilities(ch)
		require.NoError(t, err)
	}

	// Router'lar worker'lara sırayla dağıtılır
	assert.Equal(t, 2, first.routerCount())
	assert.Equal(t, 1, second.routerCount())
}

func TestCloseRouterDropsChannelState(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")
	_, tr := sendTransport(t, b, engine, "alice")

	producerID, err := b.Produce("alice", tr.id, MediaTypeMic, json.RawMessage(`{}`), 0)
	require.NoError(t, err)

	handles := b.CloseRouter("ch-1")

	// Kanalda kalan peer'lerin producer'ları handle olarak döner
	require.Len(t, handles, 1)
	assert.Equal(t, producerID, handles[0].ID)
	assert.Equal(t, "alice", handles[0].UserID)
	assert.Equal(t, "ch-1", handles[0].ChannelID)

	assert.True(t, engine.routers[0].isClosed())
	assert.True(t, tr.isClosed())

	// Peer kaydı da düştü — transport açılamaz
	_, err = b.CreateTransport("alice", DirectionSend)
	assert.ErrorIs(t, err, ErrNotReady)

	// Kanal yeniden kullanılırsa taze router açılır
	_, err = b.RouterCapabilities("ch-1")
	require.NoError(t, err)
	assert.Equal(t, 2, engine.routerCount())
}

// ─── Peer yaşam döngüsü ───

func TestEnsurePeerReplacesStaleRecord(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")
	_, oldTr := sendTransport(t, b, engine, "alice")

	// Cleanup'sız yeniden kayıt (ör. reconnect yarışı) eski kaynakları kapatır
	b.EnsurePeer("alice", "ch-1")

	assert.True(t, oldTr.isClosed())
}

func TestClosePeerReturnsHandlesAndIsIdempotent(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")
	_, send := sendTransport(t, b, engine, "alice")
	_, recv := recvTransport(t, b, engine, "alice")

	micID, err := b.Produce("alice", send.id, MediaTypeMic, json.RawMessage(`{}`), 0)
	require.NoError(t, err)
	camID, err := b.Produce("alice", send.id, MediaTypeWebcam, json.RawMessage(`{}`), 0)
	require.NoError(t, err)

	handles := b.ClosePeer("alice")
	require.Len(t, handles, 2)

	byID := map[string]ProducerHandle{}
	for _, h := range handles {
		byID[h.ID] = h
	}
	assert.Equal(t, MediaTypeMic, byID[micID].MediaType)
	assert.Equal(t, KindAudio, byID[micID].Kind)
	assert.Equal(t, MediaTypeWebcam, byID[camID].MediaType)
	assert.Equal(t, KindVideo, byID[camID].Kind)

	assert.True(t, send.isClosed())
	assert.True(t, recv.isClosed())
	assert.True(t, send.producers[0].isClosed())
	assert.True(t, send.producers[1].isClosed())

	// İkinci çağrı sessizce boş döner
	assert.Nil(t, b.ClosePeer("alice"))
}

// ─── Transport ───

func TestCreateTransportRequiresPeerAndRouter(t *testing.T) {
	b, _ := newTestBroker()

	// Peer yok
	_, err := b.CreateTransport("ghost", DirectionSend)
	assert.ErrorIs(t, err, ErrNotReady)

	// Peer var ama kanalın router'ı hiç açılmadı
	b.EnsurePeer("alice", "ch-no-router")
	_, err = b.CreateTransport("alice", DirectionSend)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestCreateTransportReplacesSameDirection(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")

	_, first := sendTransport(t, b, engine, "alice")
	_, second := sendTransport(t, b, engine, "alice")

	// Yeniden müzakere: eski send kapanır, yenisi geçerli olur
	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())

	// recv ayrı slottur, send'i etkilemez
	_, recv := recvTransport(t, b, engine, "alice")
	assert.False(t, second.isClosed())
	assert.False(t, recv.isClosed())
}

func TestConnectTransport(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")
	info, tr := sendTransport(t, b, engine, "alice")

	dtls := json.RawMessage(`{"fingerprints":["sha-256"]}`)
	require.NoError(t, b.ConnectTransport("alice", info.ID, dtls))
	assert.JSONEq(t, string(dtls), string(tr.connectedDtls()))

	assert.ErrorIs(t, b.ConnectTransport("alice", "no-such-transport", dtls), ErrNotReady)
	assert.ErrorIs(t, b.ConnectTransport("ghost", info.ID, dtls), ErrNotReady)
}

// ─── Producer ───

func TestProduceRegistersProducer(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")
	_, tr := sendTransport(t, b, engine, "alice")

	producerID, err := b.Produce("alice", tr.id, MediaTypeMic, json.RawMessage(`{}`), 0)
	require.NoError(t, err)
	assert.NotEmpty(t, producerID)
	assert.Equal(t, KindAudio, tr.lastProducer().kind)

	handles := b.ProducersInChannel("ch-1", "")
	require.Len(t, handles, 1)
	assert.Equal(t, producerID, handles[0].ID)
	assert.Equal(t, "alice", handles[0].UserID)
	assert.Equal(t, MediaTypeMic, handles[0].MediaType)

	// Sahibi hariç tutulunca liste boşalır — kataloğu yeni katılan alır,
	// kendi producer'ı ona geri anlatılmaz
	assert.Empty(t, b.ProducersInChannel("ch-1", "alice"))
}

func TestProduceRequiresOwnSendTransport(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")

	// Hiç transport yok
	_, err := b.Produce("alice", "whatever", MediaTypeMic, json.RawMessage(`{}`), 0)
	assert.ErrorIs(t, err, ErrNotReady)

	// recv transport'un id'siyle produce edilemez
	_, recv := recvTransport(t, b, engine, "alice")
	_, err = b.Produce("alice", recv.id, MediaTypeMic, json.RawMessage(`{}`), 0)
	assert.ErrorIs(t, err, ErrNotReady)

	// Yanlış id de aynı şekilde reddedilir
	_, send := sendTransport(t, b, engine, "alice")
	_, err = b.Produce("alice", "not-"+send.id, MediaTypeMic, json.RawMessage(`{}`), 0)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestProduceEnforcesChannelLimitPerMediaType(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")
	joinPeer(t, b, "bob", "ch-1")
	_, aliceTr := sendTransport(t, b, engine, "alice")
	_, bobTr := sendTransport(t, b, engine, "bob")

	_, err := b.Produce("alice", aliceTr.id, MediaTypeWebcam, json.RawMessage(`{}`), 1)
	require.NoError(t, err)

	// Kanal genelinde webcam limiti doldu — SFU çağrısına hiç gidilmez
	_, err = b.Produce("bob", bobTr.id, MediaTypeWebcam, json.RawMessage(`{}`), 1)
	assert.ErrorIs(t, err, ErrProducerLimit)
	assert.Equal(t, 0, bobTr.producerCount())

	// Limit mediaType başınadır, ekran paylaşımı ayrı sayılır
	_, err = b.Produce("bob", bobTr.id, MediaTypeScreen, json.RawMessage(`{}`), 1)
	assert.NoError(t, err)

	// maxActive=0 sınırsız demektir
	_, err = b.Produce("bob", bobTr.id, MediaTypeMic, json.RawMessage(`{}`), 0)
	assert.NoError(t, err)
}

func TestProduceLimitIgnoresOtherChannels(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")
	joinPeer(t, b, "bob", "ch-2")
	_, aliceTr := sendTransport(t, b, engine, "alice")
	_, bobTr := sendTransport(t, b, engine, "bob")

	_, err := b.Produce("alice", aliceTr.id, MediaTypeWebcam, json.RawMessage(`{}`), 1)
	require.NoError(t, err)

	// Limit kanal bazlıdır — başka kanaldaki webcam sayılmaz
	_, err = b.Produce("bob", bobTr.id, MediaTypeWebcam, json.RawMessage(`{}`), 1)
	assert.NoError(t, err)
}

func TestProduceRevalidatesPeerAfterSFUCall(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")
	_, tr := sendTransport(t, b, engine, "alice")

	// SFU çağrısı sürerken kullanıcı disconnect olur: dönüşte pointer
	// kimliği tutmaz, yeni üretilen producer kapatılıp işlem iptal edilir
	tr.produceHook = func() {
		b.ClosePeer("alice")
	}

	_, err := b.Produce("alice", tr.id, MediaTypeMic, json.RawMessage(`{}`), 0)
	assert.ErrorIs(t, err, ErrNotReady)

	orphan := tr.lastProducer()
	require.NotNil(t, orphan)
	assert.True(t, orphan.isClosed())
	assert.Empty(t, b.ProducersInChannel("ch-1", ""))
}

func TestCloseProducerChecksOwnership(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")
	joinPeer(t, b, "bob", "ch-1")
	_, tr := sendTransport(t, b, engine, "alice")

	producerID, err := b.Produce("alice", tr.id, MediaTypeMic, json.RawMessage(`{}`), 0)
	require.NoError(t, err)

	// Başkasının producer'ı kapatılamaz
	_, ok := b.CloseProducer("bob", producerID)
	assert.False(t, ok)
	assert.False(t, tr.lastProducer().isClosed())

	handle, ok := b.CloseProducer("alice", producerID)
	require.True(t, ok)
	assert.Equal(t, producerID, handle.ID)
	assert.Equal(t, "alice", handle.UserID)
	assert.Equal(t, "ch-1", handle.ChannelID)
	assert.Equal(t, MediaTypeMic, handle.MediaType)
	assert.Equal(t, KindAudio, handle.Kind)
	assert.True(t, tr.lastProducer().isClosed())

	// Kayıt silindi — ikinci kapama sahiplik bulamaz
	_, ok = b.CloseProducer("alice", producerID)
	assert.False(t, ok)
}

// ─── Consumer ───

func TestConsumeFlow(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")
	joinPeer(t, b, "bob", "ch-1")
	_, aliceSend := sendTransport(t, b, engine, "alice")
	_, bobRecv := recvTransport(t, b, engine, "bob")

	producerID, err := b.Produce("alice", aliceSend.id, MediaTypeMic, json.RawMessage(`{}`), 0)
	require.NoError(t, err)

	info, err := b.Consume("bob", producerID, json.RawMessage(`{"codecs":[]}`))
	require.NoError(t, err)
	assert.Equal(t, producerID, info.ProducerID)
	assert.NotEmpty(t, info.ID)

	// Consumer paused başlar; resume RTP'yi başlatır
	consumer := bobRecv.lastConsumer()
	require.NotNil(t, consumer)
	assert.False(t, consumer.isResumed())

	require.NoError(t, b.ResumeConsumer("bob", info.ID))
	assert.True(t, consumer.isResumed())

	// Simulcast katman tercihi consumer'a iletilir
	temporal := uint8(1)
	require.NoError(t, b.SetPreferredLayers("bob", info.ID, 2, &temporal))
	assert.Equal(t, uint8(2), consumer.spatial)
	require.NotNil(t, consumer.temporal)
	assert.Equal(t, uint8(1), *consumer.temporal)
}

func TestConsumeRequiresRecvTransport(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")
	joinPeer(t, b, "bob", "ch-1")
	_, aliceSend := sendTransport(t, b, engine, "alice")

	producerID, err := b.Produce("alice", aliceSend.id, MediaTypeMic, json.RawMessage(`{}`), 0)
	require.NoError(t, err)

	// bob recv transport açmadı
	_, err = b.Consume("bob", producerID, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrNotReady)

	// Peer'i hiç olmayan kullanıcı
	_, err = b.Consume("ghost", producerID, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestConsumeCodecMismatch(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")
	joinPeer(t, b, "bob", "ch-1")
	_, aliceSend := sendTransport(t, b, engine, "alice")
	recvTransport(t, b, engine, "bob")

	producerID, err := b.Produce("alice", aliceSend.id, MediaTypeMic, json.RawMessage(`{}`), 0)
	require.NoError(t, err)

	engine.routers[0].setCanConsume(false)

	_, err = b.Consume("bob", producerID, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrCannotConsume)
}

func TestResumeUnknownConsumer(t *testing.T) {
	b, _ := newTestBroker()
	joinPeer(t, b, "bob", "ch-1")

	assert.ErrorIs(t, b.ResumeConsumer("bob", "no-such-consumer"), ErrNotReady)
	assert.ErrorIs(t, b.SetPreferredLayers("bob", "no-such-consumer", 1, nil), ErrNotReady)
}

// ─── Kapanış ───

func TestBrokerCloseShutsDownEverything(t *testing.T) {
	b, engine := newTestBroker()
	joinPeer(t, b, "alice", "ch-1")
	joinPeer(t, b, "bob", "ch-2")

	b.Close()

	assert.True(t, engine.isClosed())
	for _, r := range engine.routers {
		assert.True(t, r.isClosed())
	}

	// Broker kapandıktan sonra peer kayıtları da boştur
	_, err := b.CreateTransport("alice", DirectionSend)
	assert.ErrorIs(t, err, ErrNotReady)
}
