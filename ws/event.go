// Package ws, WebSocket sinyal katmanını içerir: bağlantı yaşam döngüsü,
// auth el sıkışması, kanal üyeliği, medya sinyalleşmesi ve E2EE payload
// aktarımı. Tel üzerindeki her çerçeve düz bir JSON nesnesidir ve "type"
// alanıyla ayrıştırılır:
//
//	{"type": "join-channel", "channelId": "..."}
//
// İç içe zarf (envelope) kullanmıyoruz; istemci tarafında tek bir
// switch(type) ile yönlendirme yapılabilsin diye tüm alanlar kök
// seviyesindedir. Sunucu hiçbir mesaj içeriğini çözemez: chat ve e2ee
// çerçevelerindeki ciphertext alanları sunucu için opak byte dizileridir.
package ws

import (
	"encoding/json"
	"time"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg/ratelimit"
)

// ─── İstemci → Sunucu mesaj tipleri ───

const (
	MsgAuth                = "auth"
	MsgJoinChannel         = "join-channel"
	MsgLeaveChannel        = "leave-channel"
	MsgMute                = "mute"
	MsgDeafen              = "deafen"
	MsgRtpCapabilities     = "rtp-capabilities"
	MsgCreateTransport     = "create-transport"
	MsgConnectTransport    = "connect-transport"
	MsgProduce             = "produce"
	MsgStopProducer        = "stop-producer"
	MsgConsume             = "consume"
	MsgResumeConsumer      = "resume-consumer"
	MsgSetPreferredLayers  = "set-preferred-layers"
	MsgChat                = "chat"
	MsgE2EE                = "e2ee"
	MsgSpeaking            = "speaking"
	MsgKick                = "kick"
	MsgMoveUser            = "move-user"
	MsgBan                 = "ban"
	MsgAssignRole          = "assign-role"
	MsgUnassignRole        = "unassign-role"
)

// ─── Sunucu → İstemci mesaj tipleri ───

const (
	MsgError              = "error"
	MsgAuthResult         = "auth-result"
	MsgJoinedServer       = "joined-server"
	MsgJoinedChannel      = "joined-channel"
	MsgUserJoinedChannel  = "user-joined-channel"
	MsgUserLeftChannel    = "user-left-channel"
	MsgUserUpdated        = "user-updated"
	MsgTransportCreated   = "transport-created"
	MsgProduced           = "produced"
	MsgNewProducer        = "new-producer"
	MsgConsumeResult      = "consume-result"
	MsgProducerClosed     = "producer-closed"
	MsgUserKicked         = "user-kicked"
	MsgUserMoved          = "user-moved"
	MsgUserBanned         = "user-banned"
	MsgRoleAssigned       = "role-assigned"
	MsgChannelCreated     = "channel-created"
	MsgChannelDeleted     = "channel-deleted"
	MsgPermissionsUpdated = "permissions-updated"
	MsgServerUpdated      = "server-updated"
)

// ─── Hata kodları ───
//
// error çerçevesindeki code alanı makine tarafından işlenir, message
// alanı yalnızca insan okuru içindir. İstemciler davranışlarını koda
// göre belirlemelidir.

const (
	CodeInvalidJSON      = "INVALID_JSON"
	CodeNotAuthenticated = "NOT_AUTHENTICATED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeNotInServer      = "NOT_IN_SERVER"
	CodeNotInChannel     = "NOT_IN_CHANNEL"
	CodeChannelNotFound  = "CHANNEL_NOT_FOUND"
	CodeNoPermission     = "NO_PERMISSION"
	CodeChannelFull      = "CHANNEL_FULL"
	CodeProducerLimit    = "PRODUCER_LIMIT"
	CodeNotReady         = "NOT_READY"
	CodeCannotConsume    = "CANNOT_CONSUME"
	CodeChatTooLarge     = "CHAT_TOO_LARGE"
	CodeUnknownMessage   = "UNKNOWN_MESSAGE"
	CodeInternalError    = "INTERNAL_ERROR"
)

// wsError, bir işleyicinin başlatan istemciye dönecek hatayı taşır.
// Hata çerçevesine çevirme kararı çağırana bırakılır — move-user gibi
// dolaylı işlemlerde hata hedefe değil komutu verene gider.
type wsError struct {
	code    string
	message string
}

// decode, ham çerçeveyi hedef gövde türüne çözer.
func decode[T any](raw []byte) (*T, *wsError) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &wsError{CodeInvalidJSON, "malformed frame body"}
	}
	return &v, nil
}

// categoryFor, gelen mesaj tipini hız sınırı kategorisine eşler.
// Medya sinyalleşme mesajları tek havuzda toplanır; listede olmayan
// her tip genel kategoriye düşer.
func categoryFor(msgType string) ratelimit.Category {
	switch msgType {
	case MsgChat:
		return ratelimit.CategoryChat
	case MsgE2EE:
		return ratelimit.CategoryE2EE
	case MsgSpeaking:
		return ratelimit.CategorySpeaking
	case MsgCreateTransport, MsgConnectTransport, MsgProduce,
		MsgStopProducer, MsgConsume, MsgResumeConsumer, MsgSetPreferredLayers:
		return ratelimit.CategoryMedia
	default:
		return ratelimit.CategoryGeneral
	}
}

// ─── Gelen çerçeve gövdeleri ───

type authRequest struct {
	Nickname   string `json:"nickname"`
	Password   string `json:"password,omitempty"`
	Credential string `json:"credential,omitempty"`
	PublicKey  string `json:"publicKey,omitempty"`
	AdminToken string `json:"adminToken,omitempty"`
}

type joinChannelRequest struct {
	ChannelID string `json:"channelId"`
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

type deafenRequest struct {
	Deafened bool `json:"deafened"`
}

type rtpCapabilitiesRequest struct {
	RtpCapabilities json.RawMessage `json:"rtpCapabilities"`
}

type createTransportRequest struct {
	Direction string `json:"direction"`
}

type connectTransportRequest struct {
	TransportID    string          `json:"transportId"`
	DtlsParameters json.RawMessage `json:"dtlsParameters"`
}

type produceRequest struct {
	TransportID   string          `json:"transportId"`
	Kind          string          `json:"kind"`
	RtpParameters json.RawMessage `json:"rtpParameters"`
	MediaType     string          `json:"mediaType"`
}

type stopProducerRequest struct {
	ProducerID string `json:"producerId"`
}

type consumeRequest struct {
	ProducerID string `json:"producerId"`
}

type resumeConsumerRequest struct {
	ConsumerID string `json:"consumerId"`
}

type setPreferredLayersRequest struct {
	ConsumerID    string `json:"consumerId"`
	SpatialLayer  int    `json:"spatialLayer"`
	TemporalLayer *int   `json:"temporalLayer,omitempty"`
}

type chatRequest struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	KeyEpoch   int    `json:"keyEpoch"`
	Encoding   string `json:"encoding,omitempty"`
}

// e2eeRequest, uçtan uca şifreleme protokol mesajlarının sunucuda
// görünen kısmıdır. Sunucu yalnızca kind ve targetUserId alanlarını
// okur; payload hiç açılmadan alıcıya iletilir.
type e2eeRequest struct {
	Kind         string          `json:"kind"`
	TargetUserID string          `json:"targetUserId,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

type speakingRequest struct {
	Speaking bool `json:"speaking"`
}

type kickRequest struct {
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

type moveUserRequest struct {
	UserID    string `json:"userId"`
	ChannelID string `json:"channelId"`
}

type banRequest struct {
	UserID          string `json:"userId"`
	Reason          string `json:"reason,omitempty"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
}

type roleChangeRequest struct {
	UserID string `json:"userId"`
	RoleID string `json:"roleId"`
}

// ─── Giden çerçeve gövdeleri ───
//
// Her giden yapı kendi Type alanını taşır; böylece hub katmanı tek bir
// json.Marshal ile çerçevenin tamamını üretebilir.

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type authResultFrame struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	UserID  string `json:"userId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type joinedServerFrame struct {
	Type               string               `json:"type"`
	ServerID           string               `json:"serverId"`
	Name               string               `json:"name"`
	Description        *string              `json:"description"`
	IconURL            *string              `json:"iconUrl"`
	MaxUsers           int                  `json:"maxUsers"`
	MaxWebcamProducers int                  `json:"maxWebcamProducers"`
	MaxScreenProducers int                  `json:"maxScreenProducers"`
	Channels           []models.Channel     `json:"channels"`
	Members            []models.MemberInfo  `json:"members"`
	Roles              []models.Role        `json:"roles"`
	Permissions        models.PermissionSet `json:"permissions"`
}

// channelUser, joined-channel yanıtında kanaldaki mevcut kullanıcıları
// betimler; yeni gelen istemci üye listesine bakmadan kanalı çizebilsin.
type channelUser struct {
	UserID     string `json:"userId"`
	Nickname   string `json:"nickname"`
	IsMuted    bool   `json:"isMuted"`
	IsDeafened bool   `json:"isDeafened"`
}

type joinedChannelFrame struct {
	Type                  string          `json:"type"`
	ChannelID             string          `json:"channelId"`
	Users                 []channelUser   `json:"users"`
	RouterRtpCapabilities json.RawMessage `json:"routerRtpCapabilities"`
}

type userJoinedChannelFrame struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
	Nickname  string `json:"nickname"`
}

type userLeftChannelFrame struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
}

type userUpdatedFrame struct {
	Type       string  `json:"type"`
	UserID     string  `json:"userId"`
	Nickname   string  `json:"nickname"`
	Online     bool    `json:"online"`
	ChannelID  *string `json:"channelId"`
	IsMuted    bool    `json:"isMuted"`
	IsDeafened bool    `json:"isDeafened"`
}

type transportCreatedFrame struct {
	Type           string          `json:"type"`
	Direction      string          `json:"direction"`
	ID             string          `json:"id"`
	IceParameters  json.RawMessage `json:"iceParameters"`
	IceCandidates  json.RawMessage `json:"iceCandidates"`
	DtlsParameters json.RawMessage `json:"dtlsParameters"`
}

type producedFrame struct {
	Type       string `json:"type"`
	ProducerID string `json:"producerId"`
	MediaType  string `json:"mediaType"`
}

type newProducerFrame struct {
	Type       string `json:"type"`
	ProducerID string `json:"producerId"`
	UserID     string `json:"userId"`
	MediaType  string `json:"mediaType"`
	Kind       string `json:"kind"`
}

type consumeResultFrame struct {
	Type          string          `json:"type"`
	ConsumerID    string          `json:"consumerId"`
	ProducerID    string          `json:"producerId"`
	Kind          string          `json:"kind"`
	RtpParameters json.RawMessage `json:"rtpParameters"`
}

type producerClosedFrame struct {
	Type       string `json:"type"`
	ProducerID string `json:"producerId"`
	UserID     string `json:"userId"`
}

type chatFrame struct {
	Type       string    `json:"type"`
	ChannelID  string    `json:"channelId"`
	FromUserID string    `json:"fromUserId"`
	Nickname   string    `json:"nickname"`
	Ciphertext string    `json:"ciphertext"`
	IV         string    `json:"iv"`
	KeyEpoch   int       `json:"keyEpoch"`
	Encoding   string    `json:"encoding"`
	Timestamp  time.Time `json:"timestamp"`
}

type e2eeFrame struct {
	Type       string          `json:"type"`
	Kind       string          `json:"kind"`
	FromUserID string          `json:"fromUserId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type speakingFrame struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	ChannelID string `json:"channelId"`
	Speaking  bool   `json:"speaking"`
}

type userKickedFrame struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	ByUserID string `json:"byUserId"`
	Reason   string `json:"reason,omitempty"`
}

type userMovedFrame struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	ChannelID string `json:"channelId"`
	ByUserID  string `json:"byUserId"`
}

type userBannedFrame struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	ByUserID string `json:"byUserId"`
	Reason   string `json:"reason,omitempty"`
}

type roleAssignedFrame struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	RoleID   string `json:"roleId"`
	Assigned bool   `json:"assigned"`
}

type channelCreatedFrame struct {
	Type    string         `json:"type"`
	Channel models.Channel `json:"channel"`
}

type channelDeletedFrame struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId"`
}

type permissionsUpdatedFrame struct {
	Type        string               `json:"type"`
	Permissions models.PermissionSet `json:"permissions"`
}

type serverUpdatedFrame struct {
	Type               string  `json:"type"`
	Name               string  `json:"name"`
	Description        *string `json:"description"`
	IconURL            *string `json:"iconUrl"`
	MaxUsers           int     `json:"maxUsers"`
	MaxWebcamProducers int     `json:"maxWebcamProducers"`
	MaxScreenProducers int     `json:"maxScreenProducers"`
}
