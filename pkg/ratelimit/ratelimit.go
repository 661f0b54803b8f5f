// Package ratelimit — brute-force ve spam koruması için sliding window
// rate limiting.
//
// Tasarım:
//   - Her anahtar (IP) için izin verilen isteklerin zaman damgaları tutulur.
//   - Bir istek, pencere içindeki damga sayısı max'ın altındaysa kabul edilir
//     ve kendi damgasını ekler. Reddedilen istek damga EKLEMEZ — sürekli
//     deneyen bir saldırgan pencereyi sonsuza kadar dolu tutamaz, her
//     pencere uzunluğunda tam olarak max istek geçer.
//   - Pencere dışına düşen damgalar her kontrolde atılır.
//   - Background goroutine boş kalan anahtarları süpürür (memory leak engeli).
//
// Neden sabit pencere değil?
// Sabit pencere (sayaç + pencere başlangıcı) sınırda iki katına izin verir:
// pencerenin son saniyesinde max, yeni pencerenin ilk saniyesinde max daha.
// Zaman damgalı pencere bu açığı kapatır — HERHANGİ bir pencere uzunluğunda
// en fazla max istek geçer.
//
// Neden in-memory?
//   - SQLite'a her request'te yazma gereksiz I/O + contention yaratır.
//   - Tek instance deploy'da Redis bağımlılığına gerek yok.
//   - sync.Mutex ile thread-safe.
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// SlidingWindow, anahtar bazlı (IP gibi) sliding window rate limiter.
//
// Kullanım:
//
//	limiter := ratelimit.NewSlidingWindow(10, time.Minute)
//	defer limiter.Stop()
//	if !limiter.Allow(ip) { /* reddet */ }
type SlidingWindow struct {
	mu     sync.Mutex
	keys   map[string][]time.Time
	max    int
	window time.Duration

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewSlidingWindow, yeni limiter oluşturur ve arka plan süpürme
// goroutine'ini başlatır.
//
// max: Pencere başına izin verilen istek sayısı (ör: 10).
// window: Pencere süresi (ör: time.Minute → dakikada 10 istek).
func NewSlidingWindow(max int, window time.Duration) *SlidingWindow {
	rl := &SlidingWindow{
		keys:        make(map[string][]time.Time),
		max:         max,
		window:      window,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow, anahtarın şu an bir istek hakkı olup olmadığını kontrol eder.
//
// true: İstek kabul edildi, damga pencereye eklendi.
// false: Pencere dolu → caller reddetmeli. Damga eklenmez.
func (rl *SlidingWindow) Allow(key string) bool {
	now := time.Now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	stamps := rl.keys[key]

	// Pencere dışındaki damgaları at. Slice'ı yerinde sıkıştırır —
	// damgalar kronolojik eklendiği için sıra korunur.
	kept := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= rl.max {
		rl.keys[key] = kept
		return false
	}

	rl.keys[key] = append(kept, now)
	return true
}

// RetryAfterSeconds, pencere doluyken kalan bekleme süresini saniye
// cinsinden döner. HTTP Retry-After header değeri olarak kullanılır.
//
// Pencerede yer varsa 0 döner.
func (rl *SlidingWindow) RetryAfterSeconds(key string) int {
	now := time.Now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	stamps := rl.keys[key]
	inWindow := 0
	var oldest time.Time
	for _, t := range stamps {
		if t.After(cutoff) {
			if inWindow == 0 {
				oldest = t
			}
			inWindow++
		}
	}
	if inWindow < rl.max {
		return 0
	}

	// En eski damga pencereden çıktığı an bir hak açılır.
	remaining := oldest.Add(rl.window).Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1 // +1 yuvarlama — client'ın tam süreyi beklemesi için
}

// Stop, arka plan süpürme goroutine'ini durdurur. Birden fazla çağrı
// güvenlidir.
func (rl *SlidingWindow) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// cleanupLoop, her 60 saniyede bir boşalan anahtarları map'ten siler.
func (rl *SlidingWindow) cleanupLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup, tüm damgaları pencere dışına düşmüş anahtarları siler.
func (rl *SlidingWindow) cleanup() {
	cutoff := time.Now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, stamps := range rl.keys {
		live := false
		for _, t := range stamps {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(rl.keys, key)
		}
	}
}

// ExtractIP, HTTP request'ten client IP adresini çıkarır.
//
// trustProxy true ise proxy header'larına bakılır (öncelik sırası):
//  1. X-Forwarded-For (ilk IP — "client, proxy1, proxy2" formatı)
//  2. X-Real-IP
//  3. RemoteAddr
//
// trustProxy false ise her zaman RemoteAddr kullanılır. İnternete doğrudan
// açık bir sunucuda header'lara güvenmek rate limit bypass'ı demektir —
// saldırgan X-Forwarded-For'a her istekte farklı değer yazabilir.
func ExtractIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	// Doğrudan bağlantı — host:port formatından host'u ayır
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FormatRetryMessage, kalan süreyi okunabilir formata çevirir.
// Örn: 120 → "2 minute(s)", 45 → "45 second(s)"
func FormatRetryMessage(seconds int) string {
	if seconds >= 60 {
		minutes := seconds / 60
		return fmt.Sprintf("%d minute(s)", minutes)
	}
	return fmt.Sprintf("%d second(s)", seconds)
}
