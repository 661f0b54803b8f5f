// CategoryLimiter — WebSocket mesajları için bağlantı başına, kategori
// bazlı rate limiting.
//
// SlidingWindow'dan farklar:
//   - Key yok: her bağlantı kendi limiter'ını taşır, bağlantı kapanınca
//     limiter da GC'ye gider. Map süpürme goroutine'i gerekmez.
//   - Kategori başına ayrı sınır: chat ile speaking'in trafiği çok farklı,
//     tek sayaçta toplanırsa konuşma göstergesi chat hakkını yer.
//   - Damga deposu bounded ring buffer: kapasite = kategori limiti.
//     Reddedilen istek damga eklemediği için pencerede asla limitten
//     fazla damga olmaz — ring hiç büyümez, alokasyon sadece ilk istekte.
package ratelimit

import (
	"sync"
	"time"
)

// Category, bir WebSocket mesajının rate limit sınıfı.
type Category string

const (
	CategoryChat     Category = "chat"
	CategoryE2EE     Category = "e2ee"
	CategorySpeaking Category = "speaking"
	CategoryMedia    Category = "media"
	CategoryGeneral  Category = "general"
)

// categoryLimits, kategori başına saniyede izin verilen mesaj sayısı.
// Bilinmeyen kategori general sayılır.
var categoryLimits = map[Category]int{
	CategoryChat:     5,
	CategoryE2EE:     10,
	CategorySpeaking: 20,
	CategoryMedia:    20,
	CategoryGeneral:  30,
}

// LimitFor, kategorinin saniyelik limitini döner.
func LimitFor(cat Category) int {
	if max, ok := categoryLimits[cat]; ok {
		return max
	}
	return categoryLimits[CategoryGeneral]
}

// stampRing, sabit kapasiteli dairesel zaman damgası tamponu.
// head en eski damgayı gösterir; yeni damga (head+size) % cap'e yazılır.
type stampRing struct {
	stamps []time.Time
	head   int
	size   int
}

func newStampRing(capacity int) *stampRing {
	return &stampRing{stamps: make([]time.Time, capacity)}
}

// prune, cutoff'tan eski damgaları baştan atar.
func (r *stampRing) prune(cutoff time.Time) {
	for r.size > 0 && !r.stamps[r.head].After(cutoff) {
		r.head = (r.head + 1) % len(r.stamps)
		r.size--
	}
}

// push, yeni damgayı kuyruğa ekler. Caller doluluk kontrolünü yapmış olmalı.
func (r *stampRing) push(t time.Time) {
	r.stamps[(r.head+r.size)%len(r.stamps)] = t
	r.size++
}

// CategoryLimiter, bir WebSocket bağlantısının tüm kategori pencerelerini
// tutar. Her bağlantı kendi instance'ına sahiptir.
//
// Kullanım (ws client read pump):
//
//	limiter := ratelimit.NewCategoryLimiter()
//	if !limiter.Allow(ratelimit.CategoryChat) { /* RATE_LIMITED gönder */ }
type CategoryLimiter struct {
	mu     sync.Mutex
	rings  map[Category]*stampRing
	window time.Duration
}

// NewCategoryLimiter, saniyelik pencereli yeni limiter oluşturur.
// Ring'ler lazy: bir kategori ilk kullanıldığında ayrılır.
func NewCategoryLimiter() *CategoryLimiter {
	return &CategoryLimiter{
		rings:  make(map[Category]*stampRing),
		window: time.Second,
	}
}

// Allow, kategoriye şu an bir mesaj hakkı olup olmadığını kontrol eder.
//
// true: Mesaj kabul edildi. false: Pencere dolu → caller RATE_LIMITED
// hatası göndermeli; damga eklenmez, mesaj hak tüketmez.
func (cl *CategoryLimiter) Allow(cat Category) bool {
	max := LimitFor(cat)
	now := time.Now()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	ring, ok := cl.rings[cat]
	if !ok {
		ring = newStampRing(max)
		cl.rings[cat] = ring
	}

	ring.prune(now.Add(-cl.window))
	if ring.size >= max {
		return false
	}
	ring.push(now)
	return true
}
