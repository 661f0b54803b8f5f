package ws

import "sync"

// Registry, canlı oturum kayıt defteridir: userID → bağlantı eşlemesi ve
// fan-out için sunucu/kanal ikincil indeksleri. Tek oturum kuralını da
// burada uygularız — Register aynı kullanıcının eski bağlantısını döner,
// kapatma kararı çağırana aittir.
//
// Kilit disiplini: Registry metodları yalnızca kendi mutex'ini tutar ve
// tutarken asla ağ I/O'su ya da Client metodu çağırmaz. Yayın yapacak
// kod önce Snapshot* ile hedef listesini kopyalar, kilidi bıraktıktan
// sonra gönderir.
type Registry struct {
	mu        sync.RWMutex
	byUser    map[string]*Client
	byServer  map[string]map[*Client]struct{}
	byChannel map[string]map[*Client]struct{}
	channelOf map[*Client]string
}

// NewRegistry, boş kayıt defteri döner.
func NewRegistry() *Registry {
	return &Registry{
		byUser:    make(map[string]*Client),
		byServer:  make(map[string]map[*Client]struct{}),
		byChannel: make(map[string]map[*Client]struct{}),
		channelOf: make(map[*Client]string),
	}
}

// Register, bağlantıyı kullanıcının aktif oturumu olarak kaydeder.
// Aynı userID'nin önceki bağlantısı varsa indekslerden çıkarılıp geri
// döndürülür; yerinden edilen oturumun kapatılması çağıranın işidir.
func (r *Registry) Register(c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	displaced := r.byUser[c.userID]
	if displaced != nil {
		r.removeLocked(displaced)
	}

	r.byUser[c.userID] = c
	if r.byServer[c.serverID] == nil {
		r.byServer[c.serverID] = make(map[*Client]struct{})
	}
	r.byServer[c.serverID][c] = struct{}{}
	return displaced
}

// Unregister, bağlantıyı tüm indekslerden düşürür. Bağlantı bu arada
// yerinden edilmişse (byUser artık başka bir *Client gösteriyorsa)
// kullanıcı girdisine dokunulmaz; yalnızca kendi set üyelikleri silinir.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(c)
}

func (r *Registry) removeLocked(c *Client) {
	if r.byUser[c.userID] == c {
		delete(r.byUser, c.userID)
	}
	if set := r.byServer[c.serverID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byServer, c.serverID)
		}
	}
	if ch, ok := r.channelOf[c]; ok {
		r.dropFromChannelLocked(c, ch)
	}
}

func (r *Registry) dropFromChannelLocked(c *Client, channelID string) {
	if set := r.byChannel[channelID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byChannel, channelID)
		}
	}
	delete(r.channelOf, c)
}

// MoveChannel, bağlantıyı kanal indeksinde taşır. to boş string ise
// bağlantı kanaldan çıkar. maxUsers > 0 ise hedef kanalın doluluk
// kontrolü aynı kilit altında yapılır — iki eşzamanlı join son koltuğu
// paylaşamaz. Kapasite aşımında false döner ve hiçbir şey değişmez.
func (r *Registry) MoveChannel(c *Client, to string, maxUsers int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.channelOf[c]
	if cur == to {
		return true
	}
	if to != "" && maxUsers > 0 {
		if len(r.byChannel[to]) >= maxUsers {
			return false
		}
	}
	if cur != "" {
		r.dropFromChannelLocked(c, cur)
	}
	if to != "" {
		if r.byChannel[to] == nil {
			r.byChannel[to] = make(map[*Client]struct{})
		}
		r.byChannel[to][c] = struct{}{}
		r.channelOf[c] = to
	}
	return true
}

// Get, kullanıcının aktif bağlantısını döner; çevrimdışıysa nil.
func (r *Registry) Get(userID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[userID]
}

// CountChannel, kanaldaki anlık bağlantı sayısını döner.
func (r *Registry) CountChannel(channelID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byChannel[channelID])
}

// Count, toplam aktif oturum sayısını döner.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// SnapshotChannel, kanaldaki bağlantıların kopya listesini döner.
// exclude nil değilse listeden çıkarılır.
func (r *Registry) SnapshotChannel(channelID string, exclude *Client) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshotSet(r.byChannel[channelID], exclude)
}

// SnapshotServer, sunucuya bağlı tüm bağlantıların kopya listesini döner.
func (r *Registry) SnapshotServer(serverID string, exclude *Client) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshotSet(r.byServer[serverID], exclude)
}

// SnapshotAll, tüm aktif bağlantıların kopya listesini döner
// (heartbeat süpürmesi ve kapatma için).
func (r *Registry) SnapshotAll() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byUser))
	for _, c := range r.byUser {
		out = append(out, c)
	}
	return out
}

func snapshotSet(set map[*Client]struct{}, exclude *Client) []*Client {
	out := make([]*Client, 0, len(set))
	for c := range set {
		if c == exclude {
			continue
		}
		out = append(out, c)
	}
	return out
}
