// Package services — PermissionService: effective yetki hesaplama motoru.
//
// TeamSpeak tarzı çözümleme, iki katmandan oluşur:
//
//  1. Sunucu katmanı: kullanıcının rolleri priority sırasına dizilir,
//     her yetki için İLK karar veren (inherit olmayan) rol kazanır.
//  2. Kanal katmanı: kanal zinciri kökten hedefe yürünür; her kanaldaki
//     override'lar (kullanıcının rollerine ait olanlar) üstüne yazılır.
//     Derindeki kanal üsttekini, aynı kanalda yüksek priority düşüğünü ezer.
//
// admin=allow her şeyi kısa devre eder. Sonda inherit kalan her yetki
// deny'a düşer: açıkça verilmemiş hiçbir şey serbest değildir.
//
// Motor salt-okunurdur — hiçbir çağrısı veritabanına yazmaz. Çözümleme
// sonuçları kısa TTL'li bir in-memory cache'te tutulur: hub her chat ve
// speak frame'inde yetki sorar, her seferinde 3 sorgu koşmak israftır.
// Rol/override mutasyonu yapan servisler PermissionInvalidator üzerinden
// ilgili girdileri düşürür; TTL de olası kaçakları 30 saniyede kapatır.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg/cache"
	"github.com/akinalp/koza/repository"
)

const (
	permCacheTTL     = 30 * time.Second
	permCacheCleanup = 5 * time.Minute
)

// PermissionInvalidator, yetki girdilerini değiştiren servislerin
// (rol CRUD, üyelik, kanal taşıma) çözümleme cache'ini düşürmek için
// kullandığı dar interface.
type PermissionInvalidator interface {
	// Invalidate, tek kullanıcının cache'lenmiş çözümlemelerini düşürür.
	Invalidate(userID string)
	// InvalidateAll, tüm cache'i boşaltır — rol tanımı ya da override
	// değişti, kimlerin etkilendiği sorgusuz bilinemez.
	InvalidateAll()
}

// PermissionService, yetki çözümleme interface'i.
type PermissionService interface {
	PermissionInvalidator

	// EffectivePermissions, (user, server, channel?) için TAM yetki seti
	// döner — her key allow veya deny, inherit asla sızmaz.
	// channelID nil ise sadece sunucu katmanı hesaplanır.
	EffectivePermissions(ctx context.Context, userID, serverID string, channelID *string) (models.PermissionSet, error)

	// Has, tek yetki sorgusu için kısayol.
	Has(ctx context.Context, userID, serverID string, channelID *string, key models.PermissionKey) (bool, error)
}

type permissionService struct {
	roleRepo     repository.RoleRepository
	channelRepo  repository.ChannelRepository
	overrideRepo repository.ChannelPermissionRepository
	cache        *cache.TTLCache[string, models.PermissionSet]
}

// NewPermissionService, constructor.
func NewPermissionService(
	roleRepo repository.RoleRepository,
	channelRepo repository.ChannelRepository,
	overrideRepo repository.ChannelPermissionRepository,
) PermissionService {
	return &permissionService{
		roleRepo:     roleRepo,
		channelRepo:  channelRepo,
		overrideRepo: overrideRepo,
		cache:        cache.New[string, models.PermissionSet](permCacheTTL, permCacheCleanup),
	}
}

// cacheKey, "userID:serverID:channelID" formatında anahtar üretir.
// ID'ler UUID'dir, ':' içermez — Invalidate'in prefix eşlemesi güvenlidir.
func cacheKey(userID, serverID string, channelID *string) string {
	ch := ""
	if channelID != nil {
		ch = *channelID
	}
	return userID + ":" + serverID + ":" + ch
}

func (s *permissionService) EffectivePermissions(ctx context.Context, userID, serverID string, channelID *string) (models.PermissionSet, error) {
	key := cacheKey(userID, serverID, channelID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.Clone(), nil
	}

	resolved, err := s.resolve(ctx, userID, serverID, channelID)
	if err != nil {
		return nil, err
	}

	// Cache kanonik kopyayı tutar; çağırana her zaman klon döner ki
	// sonucu kurcalayan bir handler cache'i zehirleyemesin.
	s.cache.Set(key, resolved)
	return resolved.Clone(), nil
}

func (s *permissionService) Invalidate(userID string) {
	s.cache.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, userID+":")
	})
}

func (s *permissionService) InvalidateAll() {
	s.cache.Clear()
}

func (s *permissionService) resolve(ctx context.Context, userID, serverID string, channelID *string) (models.PermissionSet, error) {
	// 1. Roller — repo priority DESC, id ASC sırasıyla döner.
	roles, err := s.roleRepo.GetUserRoles(ctx, userID, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}

	// 2. Rolsüz kullanıcı: her şey yasak.
	if len(roles) == 0 {
		return models.AllDeny(), nil
	}

	// 3. Sunucu katmanı merge'i: her key için ilk non-inherit değer.
	merged := MergeRolePermissions(roles)

	// 4. Admin kısa devresi.
	if merged.Get(models.PermAdmin) == models.PermAllow {
		return models.AllAllow(), nil
	}

	// 5. Kanal yoksa kalan inherit'ler deny'a düşer, bitti.
	if channelID == nil {
		return merged.ResolveInherit(), nil
	}

	// 6. Kanal zinciri: kök → hedef yürü, override'ları uygula.
	path, err := s.channelRepo.GetPath(ctx, *channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel chain: %w", err)
	}

	pathIDs := make([]string, len(path))
	for i, ch := range path {
		pathIDs[i] = ch.ID
	}

	overridesByChannel, err := s.overrideRepo.GetByChannels(ctx, pathIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel overrides: %w", err)
	}

	result := ApplyChannelOverrides(merged, roles, pathIDs, overridesByChannel)

	// 7. Kalan inherit'ler deny.
	return result.ResolveInherit(), nil
}

func (s *permissionService) Has(ctx context.Context, userID, serverID string, channelID *string, key models.PermissionKey) (bool, error) {
	perms, err := s.EffectivePermissions(ctx, userID, serverID, channelID)
	if err != nil {
		return false, err
	}
	return perms.Allows(key), nil
}

// MergeRolePermissions, priority sırasındaki rol listesini tek kısmi
// set'e indirger: her key için ilk non-inherit değer kazanır.
// Saf fonksiyondur; testlerin doğrudan vurabilmesi için export edilir.
func MergeRolePermissions(roles []models.Role) models.PermissionSet {
	merged := models.PermissionSet{}
	for _, key := range models.AllPermissionKeys {
		for _, role := range roles {
			if v := role.Permissions.Get(key); v != models.PermInherit {
				merged[key] = v
				break
			}
		}
	}
	return merged
}

// ApplyChannelOverrides, kanal zincirini kökten hedefe yürüyüp
// override'ları base set'in üstüne uygular.
//
// Uygulama sırası iki kuralı kodlar:
//   - Zincirde DERİNDEKİ kanal üsttekini ezer → kanallar kök→hedef
//     sırayla işlenir, sonra gelen üstüne yazar.
//   - Aynı kanalda YÜKSEK priority'li rolün override'ı kazanır →
//     o kanalın override'ları düşük priority'den yükseğe uygulanır,
//     yüksek en son yazar.
//
// roles parametresi priority DESC sıralıdır; düşükten yükseğe uygulamak
// için tersten yürünür. Kullanıcının taşımadığı rollerin override'ları
// atlanır. Saf fonksiyondur.
func ApplyChannelOverrides(
	base models.PermissionSet,
	roles []models.Role,
	pathIDs []string,
	overridesByChannel map[string][]models.ChannelPermission,
) models.PermissionSet {
	result := base.Clone()

	overrideFor := func(channelID, roleID string) models.PermissionSet {
		for _, o := range overridesByChannel[channelID] {
			if o.RoleID == roleID {
				return o.Permissions
			}
		}
		return nil
	}

	for _, channelID := range pathIDs {
		for i := len(roles) - 1; i >= 0; i-- {
			perms := overrideFor(channelID, roles[i].ID)
			if perms == nil {
				continue
			}
			for _, key := range models.AllPermissionKeys {
				if v := perms.Get(key); v != models.PermInherit {
					result[key] = v
				}
			}
		}
	}

	return result
}
