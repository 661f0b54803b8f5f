// Package models — Permission modeli.
//
// Yetki sistemi üç değerli (tri-state) çalışır:
//   - allow:   yetki açıkça verilmiş
//   - deny:    yetki açıkça reddedilmiş
//   - inherit: bu rol/override karar vermiyor — bir alttaki kaynağa bakılır
//
// Bitfield yerine neden map?
// TeamSpeak tarzı rol birleştirmede (priority merge + kanal override zinciri)
// "karar vermedi" durumu ayrı bir değer olmak zorunda. İki bit'lik
// allow/deny maskeleriyle bu ifade edilemez; her key için açık bir
// üç-değerli alan gerekir. Çözümleme sonunda hâlâ inherit kalan her key
// deny'a düşer (varsayılan: yasak).
package models

// PermissionKey, tek bir yetkinin sabit adıdır.
// Wire format ve DB'deki JSON kolonları bu string'leri kullanır.
type PermissionKey string

const (
	PermAdmin          PermissionKey = "admin"          // Tüm yetkileri kapsar (short-circuit)
	PermJoin           PermissionKey = "join"           // Kanala katılma
	PermSpeak          PermissionKey = "speak"          // Mikrofon producer açma
	PermVideo          PermissionKey = "video"          // Webcam producer açma
	PermScreenShare    PermissionKey = "screenShare"    // Ekran paylaşımı (video + ses)
	PermChat           PermissionKey = "chat"           // Kanal chat'ine yazma
	PermKick           PermissionKey = "kick"           // Kullanıcıyı sunucudan atma
	PermBan            PermissionKey = "ban"            // Kullanıcıyı yasaklama
	PermMoveUsers      PermissionKey = "moveUsers"      // Kullanıcıyı başka kanala taşıma
	PermManageChannels PermissionKey = "manageChannels" // Kanal CRUD
	PermManageRoles    PermissionKey = "manageRoles"    // Rol CRUD + atama
	PermManageServer   PermissionKey = "manageServer"   // Sunucu ayarları
)

// AllPermissionKeys, katalogdaki tüm yetkiler — sabit sırayla.
// Permission engine her hesaplamada bu listenin TAMAMINI çözümler;
// eksik key'li bir sonuç dönmez.
var AllPermissionKeys = []PermissionKey{
	PermAdmin,
	PermJoin,
	PermSpeak,
	PermVideo,
	PermScreenShare,
	PermChat,
	PermKick,
	PermBan,
	PermMoveUsers,
	PermManageChannels,
	PermManageRoles,
	PermManageServer,
}

// validPermissionKeys, hızlı lookup için set.
var validPermissionKeys = func() map[PermissionKey]bool {
	m := make(map[PermissionKey]bool, len(AllPermissionKeys))
	for _, k := range AllPermissionKeys {
		m[k] = true
	}
	return m
}()

// IsValidPermissionKey, key'in katalogda olup olmadığını döner.
func IsValidPermissionKey(key PermissionKey) bool {
	return validPermissionKeys[key]
}

// PermissionValue, bir yetkinin üç-değerli durumu.
type PermissionValue string

const (
	PermAllow   PermissionValue = "allow"
	PermDeny    PermissionValue = "deny"
	PermInherit PermissionValue = "inherit"
)

// Valid, değerin üç geçerli durumdan biri olup olmadığını döner.
func (v PermissionValue) Valid() bool {
	return v == PermAllow || v == PermDeny || v == PermInherit
}

// PermissionSet, key → value haritası.
//
// Rol satırlarında ve kanal override'larında KISMİ olabilir (sadece
// karar verilen key'ler yazılır, geri kalanı inherit sayılır).
// Permission engine'in döndürdüğü "effective" set ise TAM'dır:
// her key ya allow ya deny'dır, inherit içermez.
type PermissionSet map[PermissionKey]PermissionValue

// Get, key'in değerini döner; set'te yoksa inherit.
func (s PermissionSet) Get(key PermissionKey) PermissionValue {
	if v, ok := s[key]; ok && v.Valid() {
		return v
	}
	return PermInherit
}

// Allows, key'in allow olup olmadığını döner.
// Effective (tam çözümlenmiş) set'ler üzerinde kullanılır.
func (s PermissionSet) Allows(key PermissionKey) bool {
	return s.Get(key) == PermAllow
}

// Clone, set'in bağımsız kopyasını döner.
// Engine ara hesaplamalarda orijinal rol set'lerini mutate etmemek için kullanır.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ResolveInherit, kalan tüm inherit değerleri deny'a düşürür ve
// katalogdaki eksik key'leri deny olarak tamamlar.
// Çözümleme pipeline'ının son adımıdır — sonuç her zaman tam settir.
func (s PermissionSet) ResolveInherit() PermissionSet {
	out := make(PermissionSet, len(AllPermissionKeys))
	for _, key := range AllPermissionKeys {
		if v := s.Get(key); v == PermAllow {
			out[key] = PermAllow
		} else {
			out[key] = PermDeny
		}
	}
	return out
}

// AllDeny, her key'i deny olan tam set döner.
// Rolü olmayan kullanıcının effective set'i budur.
func AllDeny() PermissionSet {
	out := make(PermissionSet, len(AllPermissionKeys))
	for _, key := range AllPermissionKeys {
		out[key] = PermDeny
	}
	return out
}

// AllAllow, her key'i allow olan tam set döner.
// Admin short-circuit ve ephemeral admin bu set'i kullanır.
func AllAllow() PermissionSet {
	out := make(PermissionSet, len(AllPermissionKeys))
	for _, key := range AllPermissionKeys {
		out[key] = PermAllow
	}
	return out
}

// ValidatePartial, rol/override isteklerinden gelen kısmi set'i doğrular.
// Bilinmeyen key veya geçersiz değer → hata mesajı döner (error değil,
// çağıran request.Validate() içinde fmt.Errorf ile sarar).
func (s PermissionSet) ValidatePartial() (string, bool) {
	for k, v := range s {
		if !IsValidPermissionKey(k) {
			return "unknown permission key: " + string(k), false
		}
		if !v.Valid() {
			return "invalid permission value for " + string(k) + ": " + string(v), false
		}
	}
	return "", true
}
