// Package cache — süreli (TTL) in-memory önbellek.
//
// Tek tüketicisi permission çözümleme katmanıdır: bir kullanıcının etkin
// yetki seti rol birleştirme + kanal zinciri yürüyüşüyle üç sorguya mal
// olur, sonuç ise saniyeler boyunca değişmez. Çözülen set kısa bir TTL
// ile burada tutulur; rol ya da override değiştiğinde ilgili kayıtlar
// TTL dolmadan düşürülür (bkz. DeleteFunc).
//
// Tutarlılık sözleşmesi: süresi dolan kayıt asla okunamaz ama map'ten
// anında da silinmez — fiziksel temizlik arka plandaki süpürücüdedir.
// Okuma yolu bu sayede RLock ile kalır.
package cache

import (
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache, comparable anahtarla çalışan süreli önbellek. Tüm metodlar
// goroutine-safe'tir.
type TTLCache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]item[V]
	ttl   time.Duration

	// stop, süpürücü goroutine'in kapanış sinyali; Close kapatır.
	stop chan struct{}
}

// New, önbelleği kurar ve süpürücüyü başlatır.
//
// ttl kaydın yaşam süresi, sweepInterval süresi dolanların map'ten
// fiziksel silinme periyodudur. Süpürme seyrek olabilir — dolmuş kayıt
// Get'ten zaten dönmez, süpürücü yalnızca belleği geri verir.
func New[K comparable, V any](ttl, sweepInterval time.Duration) *TTLCache[K, V] {
	c := &TTLCache[K, V]{
		items: make(map[K]item[V]),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	go c.sweeper(sweepInterval)
	return c
}

// Get, kaydı döner; yoksa ya da süresi dolmuşsa (zero, false).
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || time.Now().After(it.expiresAt) {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Set, kaydı TTL kadar yaşayacak şekilde yazar; varsa üstüne yazar ve
// süreyi baştan başlatır.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = item[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete, tek kaydı düşürür.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// DeleteFunc, predicate'in tuttuğu tüm kayıtları düşürür.
//
// Permission katmanı anahtarları "userID:serverID:channelID" olarak
// kurar; bir kullanıcının rolü değiştiğinde "userID:" önekiyle eşleşen
// her kayıt buradan tek geçişte invalidate edilir.
func (c *TTLCache[K, V]) DeleteFunc(predicate func(key K) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.items {
		if predicate(key) {
			delete(c.items, key)
		}
	}
}

// Clear, tüm kayıtları düşürür. Sunucu genelini etkileyen değişiklikler
// (rol tanımı, kanal override'ı) tek tek ayıklamaya değmez — hepsi gider,
// sonraki istekler yeniden çözer.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]item[V])
}

// Len, süresi dolmuş ama henüz süpürülmemiş kayıtlar dahil toplam sayı.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Close, süpürücüyü durdurur. Önbellek bırakılmadan önce çağrılmalı.
func (c *TTLCache[K, V]) Close() {
	close(c.stop)
}

// sweeper, periyodik fiziksel temizlik döngüsü.
func (c *TTLCache[K, V]) sweeper(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *TTLCache[K, V]) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, key)
		}
	}
}
