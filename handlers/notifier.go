// Package handlers, REST endpoint'lerini içerir. Her handler ince bir
// katmandır: gövdeyi çöz → servisi çağır → pkg.JSON / pkg.Error ile
// yanıtla. İş kuralı servislerde, canlı istemci duyuruları Notifier
// köprüsünün arkasındaki hub'dadır.
package handlers

import "github.com/akinalp/koza/models"

// Notifier, REST mutasyonlarının WebSocket istemcilerine duyurulmasını
// soyutlar. *ws.Hub bu arayüzü uygular; handler'lar somut hub tipine
// bağlanmaz, testlerde sahte Notifier yeterlidir.
type Notifier interface {
	NotifyChannelCreated(ch *models.Channel)
	NotifyChannelUpdated(ch *models.Channel)
	NotifyChannelDeleted(serverID, channelID string)
	NotifyServerUpdated(s *models.Server)
	NotifyPermissionsChanged(serverID string)
}
