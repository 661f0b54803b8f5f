package ws

import (
	"errors"
	"log"

	"github.com/akinalp/koza/media"
	"github.com/akinalp/koza/models"
)

// Medya sinyalleşmesi. Sıralı akış istemci tarafında şöyle görünür:
//
//	rtp-capabilities → create-transport(send/recv) → connect-transport
//	→ produce / consume → resume-consumer
//
// Sunucu bu sırayı dayatmaz; eksik ön koşul NOT_READY ile yüzeye çıkar.
// Asıl SFU muhasebesi media.Broker'dadır, burada yalnızca yetki ve
// doğrulama kapıları ile çerçeve çevrimi vardır.

// sendBrokerError, broker hatalarını protokol hata kodlarına çevirir.
func (c *Client) sendBrokerError(op string, err error) {
	switch {
	case errors.Is(err, media.ErrNotReady):
		c.sendError(CodeNotReady, op+": transport or channel not ready")
	case errors.Is(err, media.ErrCannotConsume):
		c.sendError(CodeCannotConsume, "router cannot consume this producer with the announced capabilities")
	case errors.Is(err, media.ErrProducerLimit):
		c.sendError(CodeProducerLimit, "producer limit for this media type reached")
	default:
		log.Printf("[ws] %s failed for %s: %v", op, c.userID, err)
		c.sendError(CodeInternalError, op+" failed")
	}
}

// handleRtpCapabilities, istemcinin cihaz yeteneklerini bağlantıya
// kaydeder; consume çağrıları bu sete karşı doğrulanır.
func (h *Hub) handleRtpCapabilities(c *Client, raw []byte) {
	req, werr := decode[rtpCapabilitiesRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	if len(req.RtpCapabilities) == 0 {
		c.sendError(CodeInvalidJSON, "rtpCapabilities is required")
		return
	}
	c.setRtpCapabilities(req.RtpCapabilities)
}

func (h *Hub) handleCreateTransport(c *Client, raw []byte) {
	req, werr := decode[createTransportRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	dir := media.Direction(req.Direction)
	if !dir.Valid() {
		c.sendError(CodeInvalidJSON, "direction must be send or recv")
		return
	}
	if c.ChannelID() == "" {
		c.sendError(CodeNotInChannel, "join a channel before creating transports")
		return
	}

	info, err := h.broker.CreateTransport(c.userID, dir)
	if err != nil {
		c.sendBrokerError("create-transport", err)
		return
	}
	c.sendFrame(transportCreatedFrame{
		Type:           MsgTransportCreated,
		Direction:      req.Direction,
		ID:             info.ID,
		IceParameters:  info.IceParameters,
		IceCandidates:  info.IceCandidates,
		DtlsParameters: info.DtlsParameters,
	})
}

func (h *Hub) handleConnectTransport(c *Client, raw []byte) {
	req, werr := decode[connectTransportRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	if err := h.broker.ConnectTransport(c.userID, req.TransportID, req.DtlsParameters); err != nil {
		c.sendBrokerError("connect-transport", err)
	}
}

// handleProduce, medya türüne göre yetki ve kanal başına tavan uygular.
// produced yanıtı HER ZAMAN new-producer duyurusundan önce yazılır;
// istemci kendi producerId'sini öğrenmeden başkasının duyurusunu almaz.
func (h *Hub) handleProduce(c *Client, raw []byte) {
	req, werr := decode[produceRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	mediaType := media.MediaType(req.MediaType)
	if !mediaType.Valid() {
		c.sendError(CodeInvalidJSON, "unknown mediaType: "+req.MediaType)
		return
	}
	channelID := c.ChannelID()
	if channelID == "" {
		c.sendError(CodeNotInChannel, "join a channel before producing")
		return
	}

	ctx, cancel := opCtx()
	defer cancel()

	if !c.isAdmin {
		var needed models.PermissionKey
		switch mediaType {
		case media.MediaTypeMic:
			needed = models.PermSpeak
		case media.MediaTypeWebcam:
			needed = models.PermVideo
		default: // screen ve screen-audio
			needed = models.PermScreenShare
		}
		allowed, err := h.svc.Permissions.Has(ctx, c.userID, c.serverID, &channelID, needed)
		if err != nil {
			log.Printf("[ws] produce permission check failed: %v", err)
			c.sendError(CodeInternalError, "could not check permissions")
			return
		}
		if !allowed {
			c.sendError(CodeNoPermission, string(needed)+" permission required")
			return
		}
	}

	// Kanal başına tavan yalnızca görüntü türlerinde; mikrofon ve ekran
	// sesi sınırsızdır.
	maxActive := 0
	if mediaType == media.MediaTypeWebcam || mediaType == media.MediaTypeScreen {
		server, err := h.svc.Servers.GetByID(ctx, c.serverID)
		if err != nil {
			log.Printf("[ws] produce: server settings lookup failed: %v", err)
			c.sendError(CodeInternalError, "could not load server settings")
			return
		}
		if mediaType == media.MediaTypeWebcam {
			maxActive = server.MaxWebcamProducers
		} else {
			maxActive = server.MaxScreenProducers
		}
	}

	producerID, err := h.broker.Produce(c.userID, req.TransportID, mediaType, req.RtpParameters, maxActive)
	if err != nil {
		c.sendBrokerError("produce", err)
		return
	}

	c.sendFrame(producedFrame{Type: MsgProduced, ProducerID: producerID, MediaType: req.MediaType})

	h.broadcastToChannel(channelID, c, newProducerFrame{
		Type:       MsgNewProducer,
		ProducerID: producerID,
		UserID:     c.userID,
		MediaType:  string(mediaType),
		Kind:       string(mediaType.Kind()),
	})
}

// handleStopProducer, yalnızca çağıranın kendi producer'ını kapatır;
// sahibi olmadığı id'ler sessizce yok sayılır.
func (h *Hub) handleStopProducer(c *Client, raw []byte) {
	req, werr := decode[stopProducerRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	handle, ok := h.broker.CloseProducer(c.userID, req.ProducerID)
	if !ok {
		return
	}
	h.broadcastToChannel(handle.ChannelID, c, producerClosedFrame{
		Type:       MsgProducerClosed,
		ProducerID: handle.ID,
		UserID:     c.userID,
	})
}

func (h *Hub) handleConsume(c *Client, raw []byte) {
	req, werr := decode[consumeRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	caps := c.rtpCapabilities()
	if len(caps) == 0 {
		c.sendError(CodeNotReady, "announce rtp-capabilities before consuming")
		return
	}
	info, err := h.broker.Consume(c.userID, req.ProducerID, caps)
	if err != nil {
		c.sendBrokerError("consume", err)
		return
	}
	c.sendFrame(consumeResultFrame{
		Type:          MsgConsumeResult,
		ConsumerID:    info.ID,
		ProducerID:    info.ProducerID,
		Kind:          string(info.Kind),
		RtpParameters: info.RtpParameters,
	})
}

func (h *Hub) handleResumeConsumer(c *Client, raw []byte) {
	req, werr := decode[resumeConsumerRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	if err := h.broker.ResumeConsumer(c.userID, req.ConsumerID); err != nil {
		c.sendBrokerError("resume-consumer", err)
	}
}

// handleSetPreferredLayers, simulcast katman tercihini [0,2] aralığına
// kıstırarak uygular; aralık dışı istekler hata yerine en yakın geçerli
// katmana çekilir.
func (h *Hub) handleSetPreferredLayers(c *Client, raw []byte) {
	req, werr := decode[setPreferredLayersRequest](raw)
	if werr != nil {
		c.sendError(werr.code, werr.message)
		return
	}
	spatial := clampLayer(req.SpatialLayer)
	var temporal *uint8
	if req.TemporalLayer != nil {
		t := clampLayer(*req.TemporalLayer)
		temporal = &t
	}
	if err := h.broker.SetPreferredLayers(c.userID, req.ConsumerID, spatial, temporal); err != nil {
		c.sendBrokerError("set-preferred-layers", err)
	}
}

func clampLayer(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 2 {
		return 2
	}
	return uint8(v)
}
