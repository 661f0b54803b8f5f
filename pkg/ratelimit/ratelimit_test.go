package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowAllowsUpToMax(t *testing.T) {
	rl := NewSlidingWindow(3, time.Minute)
	defer rl.Stop()

	// İlk max istek geçer
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"), "request %d should pass", i+1)
	}

	// max+1'inci reddedilir
	assert.False(t, rl.Allow("1.2.3.4"))
}

func TestSlidingWindowKeysAreIndependent(t *testing.T) {
	rl := NewSlidingWindow(1, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))

	// Başka IP'nin penceresi dolmadı
	assert.True(t, rl.Allow("2.2.2.2"))
}

func TestSlidingWindowRejectedRequestDoesNotStamp(t *testing.T) {
	rl := NewSlidingWindow(2, 80*time.Millisecond)
	defer rl.Stop()

	require.True(t, rl.Allow("ip"))
	require.True(t, rl.Allow("ip"))

	// Pencere doluyken sürekli dene — reddedilen istekler damga
	// eklemediği için pencereyi uzatamaz
	for i := 0; i < 5; i++ {
		assert.False(t, rl.Allow("ip"))
		time.Sleep(10 * time.Millisecond)
	}

	// İlk damgalar pencere dışına düşünce hak yeniden açılır
	time.Sleep(80 * time.Millisecond)
	assert.True(t, rl.Allow("ip"))
}

func TestSlidingWindowExpiryReopensWindow(t *testing.T) {
	rl := NewSlidingWindow(1, 50*time.Millisecond)
	defer rl.Stop()

	require.True(t, rl.Allow("ip"))
	require.False(t, rl.Allow("ip"))

	time.Sleep(80 * time.Millisecond)
	assert.True(t, rl.Allow("ip"))
}

func TestSlidingWindowRetryAfterSeconds(t *testing.T) {
	rl := NewSlidingWindow(1, time.Minute)
	defer rl.Stop()

	// Pencere boşken 0
	assert.Equal(t, 0, rl.RetryAfterSeconds("ip"))

	require.True(t, rl.Allow("ip"))
	require.False(t, rl.Allow("ip"))

	// En eski damga ~60 sn sonra düşer; +1 yuvarlama ile 60 beklenir
	got := rl.RetryAfterSeconds("ip")
	assert.InDelta(t, 60, got, 1)
}

func TestSlidingWindowRetryAfterZeroWhenFree(t *testing.T) {
	rl := NewSlidingWindow(5, time.Minute)
	defer rl.Stop()

	require.True(t, rl.Allow("ip"))
	assert.Equal(t, 0, rl.RetryAfterSeconds("ip"))
}

func TestSlidingWindowConcurrentAllow(t *testing.T) {
	rl := NewSlidingWindow(100, time.Minute)
	defer rl.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("ip") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Yarış altında bile tam olarak max istek geçer
	assert.Equal(t, 100, admitted)
}

func TestSlidingWindowCleanupDropsIdleKeys(t *testing.T) {
	rl := NewSlidingWindow(1, 10*time.Millisecond)
	defer rl.Stop()

	require.True(t, rl.Allow("a"))
	require.True(t, rl.Allow("b"))

	time.Sleep(20 * time.Millisecond)
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.keys)
}

func TestSlidingWindowStopIsIdempotent(t *testing.T) {
	rl := NewSlidingWindow(1, time.Minute)
	rl.Stop()
	rl.Stop() // İkinci çağrı panic'lememeli
}

func TestExtractIPDirectConnection(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:51234"

	assert.Equal(t, "203.0.113.7", ExtractIP(r, false))
	assert.Equal(t, "203.0.113.7", ExtractIP(r, true))
}

func TestExtractIPIgnoresHeadersWithoutTrust(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	r.Header.Set("X-Forwarded-For", "198.51.100.9")
	r.Header.Set("X-Real-IP", "198.51.100.10")

	// trustProxy=false → header'lar rate limit bypass'ı olurdu, yok sayılır
	assert.Equal(t, "203.0.113.7", ExtractIP(r, false))
}

func TestExtractIPForwardedForFirstHop(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:443"
	r.Header.Set("X-Forwarded-For", " 198.51.100.9 , 10.0.0.2, 10.0.0.3")

	assert.Equal(t, "198.51.100.9", ExtractIP(r, true))
}

func TestExtractIPRealIPFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:443"
	r.Header.Set("X-Real-IP", "198.51.100.10")

	assert.Equal(t, "198.51.100.10", ExtractIP(r, true))
}

func TestExtractIPWithoutPort(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7" // SplitHostPort başarısız → olduğu gibi döner

	assert.Equal(t, "203.0.113.7", ExtractIP(r, false))
}

func TestFormatRetryMessage(t *testing.T) {
	assert.Equal(t, "45 second(s)", FormatRetryMessage(45))
	assert.Equal(t, "1 minute(s)", FormatRetryMessage(60))
	assert.Equal(t, "2 minute(s)", FormatRetryMessage(120))
	assert.Equal(t, "2 minute(s)", FormatRetryMessage(150)) // Aşağı yuvarlanır
}

func TestLimitFor(t *testing.T) {
	assert.Equal(t, 5, LimitFor(CategoryChat))
	assert.Equal(t, 10, LimitFor(CategoryE2EE))
	assert.Equal(t, 20, LimitFor(CategorySpeaking))
	assert.Equal(t, 20, LimitFor(CategoryMedia))
	assert.Equal(t, 30, LimitFor(CategoryGeneral))

	// Bilinmeyen kategori general sayılır
	assert.Equal(t, 30, LimitFor(Category("bogus")))
}

func TestCategoryLimiterEnforcesPerCategoryLimit(t *testing.T) {
	cl := NewCategoryLimiter()

	for i := 0; i < 5; i++ {
		assert.True(t, cl.Allow(CategoryChat), "chat message %d should pass", i+1)
	}
	assert.False(t, cl.Allow(CategoryChat))
}

func TestCategoryLimiterCategoriesAreIndependent(t *testing.T) {
	cl := NewCategoryLimiter()

	// Chat penceresini doldur
	for i := 0; i < 5; i++ {
		require.True(t, cl.Allow(CategoryChat))
	}
	require.False(t, cl.Allow(CategoryChat))

	// Speaking kendi penceresini kullanır, chat'ten etkilenmez
	for i := 0; i < 20; i++ {
		assert.True(t, cl.Allow(CategorySpeaking), "speaking message %d should pass", i+1)
	}
	assert.False(t, cl.Allow(CategorySpeaking))
}

func TestCategoryLimiterWindowSlides(t *testing.T) {
	cl := NewCategoryLimiter()

	for i := 0; i < 5; i++ {
		require.True(t, cl.Allow(CategoryChat))
	}
	require.False(t, cl.Allow(CategoryChat))

	// 1 saniyelik pencere geçince hak yeniden açılır
	time.Sleep(1100 * time.Millisecond)
	assert.True(t, cl.Allow(CategoryChat))
}

func TestCategoryLimiterRejectDoesNotConsume(t *testing.T) {
	cl := NewCategoryLimiter()

	for i := 0; i < 5; i++ {
		require.True(t, cl.Allow(CategoryChat))
	}

	// Reddedilen denemeler ring'e damga eklemez — ring kapasitesi
	// limit kadardır, taşma olsaydı panic ya da yanlış sayım görürdük
	for i := 0; i < 50; i++ {
		assert.False(t, cl.Allow(CategoryChat))
	}
}

func TestStampRingPruneAndPush(t *testing.T) {
	ring := newStampRing(3)
	now := time.Now()

	ring.push(now.Add(-30 * time.Millisecond))
	ring.push(now.Add(-20 * time.Millisecond))
	ring.push(now.Add(-10 * time.Millisecond))
	require.Equal(t, 3, ring.size)

	// İki eski damga cutoff'un gerisinde kaldı
	ring.prune(now.Add(-15 * time.Millisecond))
	assert.Equal(t, 1, ring.size)

	// Boşalan slotlar yeniden kullanılır (dairesel yazım)
	ring.push(now)
	ring.push(now)
	assert.Equal(t, 3, ring.size)
}

func ExampleFormatRetryMessage() {
	fmt.Println(FormatRetryMessage(90))
	// Output: 1 minute(s)
}
