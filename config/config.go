// Package config, uygulamanın tüm konfigürasyonunu merkezi olarak yönetir.
// Environment variable'lardan okur, .env dosyasını da destekler.
//
// Go'da "struct" bir veri yapısıdır — birden fazla field'ı bir arada tutar.
// Config struct'ı tüm ayarları tek bir yerde toplar, böylece
// her yerde ayrı ayrı os.Getenv() çağırmak yerine tek bir Config nesnesi taşırız.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// TLS modları. Off: düz HTTP (reverse proxy arkası için), Manual: dosyadan
// cert/key, Auto: Let's Encrypt üzerinden otomatik sertifika.
const (
	TLSModeOff    = "off"
	TLSModeManual = "manual"
	TLSModeAuto   = "auto"
)

// Config, uygulamanın tüm konfigürasyon değerlerini taşır.
// Her alt bölüm ayrı bir struct — Single Responsibility: her struct tek bir concern'ü temsil eder.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Media    MediaConfig
	Auth     AuthConfig
	TLS      TLSConfig
	Storage  StorageConfig
	Email    EmailConfig
}

// ServerConfig, HTTP+WS server ayarları.
type ServerConfig struct {
	Host string
	Port int
	// PublicAddress, davetlere basılan kanonik sunucu adresi
	// (ör: voice.example.com:9090). Boşsa host:port'tan türetilir.
	PublicAddress string
	// TrustProxy true ise rate limiter IP'yi X-Forwarded-For'dan okur.
	// Sadece güvenilir bir reverse proxy arkasındayken açılmalı.
	TrustProxy bool
	// CORSOrigins, REST API'ye erişebilecek origin listesi.
	CORSOrigins []string
}

// DatabaseConfig, SQLite database ayarları.
type DatabaseConfig struct {
	Path string // SQLite dosya yolu (ör: ./data/koza.db)
}

// MediaConfig, SFU worker havuzunun ayarları.
type MediaConfig struct {
	// Workers, başlatılacak mediasoup worker sayısı. Varsayılan: CPU sayısı.
	Workers int
	// RtcMinPort/RtcMaxPort, worker'lara verilen UDP port aralığı.
	RtcMinPort uint16
	RtcMaxPort uint16
	// AnnouncedIP, ICE candidate'larda duyurulan dışarıdan erişilebilir adres.
	// NAT arkasındaki kurulumlarda zorunlu; boşsa yerel adres duyurulur.
	AnnouncedIP string
}

// AuthConfig, sunucuya giriş ve admin yetkilendirme ayarları.
type AuthConfig struct {
	// Password, sunucunun paylaşılan parolası. Boşsa parolasız giriş açık.
	Password string
	// AdminToken doluysa: REST admin endpoint'leri bu bearer token'ı ister,
	// WS auth'ta eşleşen adminToken bağlantıya geçici admin yetkisi verir.
	AdminToken string
	// OpenAdmin true VE AdminToken boş ise admin REST kapısız kalır.
	// Bilinçli opt-in — sadece korunan ağlarda kullanılmalı.
	OpenAdmin bool
}

// TLSConfig, TLS edinim modu ve parametreleri.
type TLSConfig struct {
	Mode   string // off | manual | auto
	Cert   string // manual: PEM cert dosyası
	Key    string // manual: PEM key dosyası
	Domain string // auto: Let's Encrypt'e bildirilecek domain
	Email  string // auto: Let's Encrypt hesap email'i (önerilir, zorunlu değil)
}

// StorageConfig, blob (avatar/ikon) ve cache dizinleri.
type StorageConfig struct {
	// DataDir altında avatars/, icons/ ve autocert cache'i tutulur.
	DataDir string
}

// EmailConfig, davet email'i gönderimi (opsiyonel).
type EmailConfig struct {
	ResendAPIKey string // Boşsa email gönderimi kapalı.
	FromAddress  string
}

// Load, environment variable'lardan Config oluşturur.
// .env dosyası varsa önce onu yükler (development kolaylığı için).
//
// godotenv.Load set edilmiş değişkenlerin üzerine yazmaz — gerçek
// environment her zaman .env dosyasını ezer.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	workers, err := strconv.Atoi(getEnv("MEDIA_WORKERS", strconv.Itoa(runtime.NumCPU())))
	if err != nil {
		return nil, fmt.Errorf("invalid MEDIA_WORKERS: %w", err)
	}
	if workers < 1 {
		workers = 1
	}

	rtcMin, err := strconv.ParseUint(getEnv("RTC_MIN_PORT", "40000"), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid RTC_MIN_PORT: %w", err)
	}
	rtcMax, err := strconv.ParseUint(getEnv("RTC_MAX_PORT", "49999"), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid RTC_MAX_PORT: %w", err)
	}
	if rtcMin > rtcMax {
		return nil, fmt.Errorf("RTC_MIN_PORT (%d) must not exceed RTC_MAX_PORT (%d)", rtcMin, rtcMax)
	}

	tlsMode := getEnv("TLS_MODE", TLSModeOff)
	switch tlsMode {
	case TLSModeOff, TLSModeManual, TLSModeAuto:
	default:
		return nil, fmt.Errorf("invalid TLS_MODE %q: must be off, manual or auto", tlsMode)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:          getEnv("SERVER_HOST", "0.0.0.0"),
			Port:          port,
			PublicAddress: getEnv("SERVER_ADDRESS", ""),
			TrustProxy:    getEnvBool("TRUST_PROXY", false),
			CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "")),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/koza.db"),
		},
		Media: MediaConfig{
			Workers:     workers,
			RtcMinPort:  uint16(rtcMin),
			RtcMaxPort:  uint16(rtcMax),
			AnnouncedIP: getEnv("ANNOUNCED_IP", ""),
		},
		Auth: AuthConfig{
			Password:   getEnv("SERVER_PASSWORD", ""),
			AdminToken: getEnv("ADMIN_TOKEN", ""),
			OpenAdmin:  getEnvBool("OPEN_ADMIN", false),
		},
		TLS: TLSConfig{
			Mode:   tlsMode,
			Cert:   getEnv("TLS_CERT", ""),
			Key:    getEnv("TLS_KEY", ""),
			Domain: getEnv("TLS_DOMAIN", ""),
			Email:  getEnv("TLS_EMAIL", ""),
		},
		Storage: StorageConfig{
			DataDir: getEnv("DATA_DIR", "./data"),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromAddress:  getEnv("EMAIL_FROM", "noreply@localhost"),
		},
	}

	if cfg.TLS.Mode == TLSModeManual && (cfg.TLS.Cert == "" || cfg.TLS.Key == "") {
		return nil, fmt.Errorf("TLS_MODE=manual requires TLS_CERT and TLS_KEY")
	}
	if cfg.TLS.Mode == TLSModeAuto && cfg.TLS.Domain == "" {
		return nil, fmt.Errorf("TLS_MODE=auto requires TLS_DOMAIN")
	}

	return cfg, nil
}

// Addr, HTTP server'ın dinleyeceği adresi döner (ör: "0.0.0.0:9090").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// InviteAddress, davetlere basılacak kanonik adresi döner.
// SERVER_ADDRESS set edilmemişse host:port'tan makul bir değer üretir.
func (c *ServerConfig) InviteAddress() string {
	if c.PublicAddress != "" {
		return c.PublicAddress
	}
	host := c.Host
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

// getEnv, environment variable'ı okur, yoksa fallback değeri döner.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// getEnvBool, "true"/"1"/"yes" değerlerini true sayar.
func getEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// splitList, virgülle ayrılmış listeyi parse eder; boş girdiler atılır.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
