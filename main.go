// Package main, koza sunucusunun giriş noktasıdır.
//
// Bu dosyanın görevi — Dependency Injection "wire-up":
//   1.  Config'i yükle
//   2.  Database'i başlat (gömülü migration'larla)
//   3.  Repository'leri oluştur (DB bağlantısı ile)
//   4.  Service'leri oluştur + varsayılanları bootstrap et
//   5.  Medya worker'larını ve broker'ı başlat
//   6.  WebSocket Hub'ı başlat
//   7.  Handler'ları oluştur (service'ler + hub ile)
//   8.  HTTP router'ı kur, route'ları bağla
//   9.  CORS yapılandır
//  10.  HTTP Server'ı başlat (TLS moduna göre)
//  11.  Graceful shutdown
//
// Global değişken YOK — her şey bu fonksiyonda oluşturulup birbirine bağlanıyor.
package main

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/akinalp/koza/config"
	"github.com/akinalp/koza/database"
	"github.com/akinalp/koza/media"
	"github.com/akinalp/koza/middleware"
	"github.com/akinalp/koza/pkg/i18n"
	"github.com/akinalp/koza/ws"
	"github.com/rs/cors"
	"golang.org/x/crypto/acme/autocert"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] koza server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d, tls=%s)", cfg.Server.Port, cfg.TLS.Mode)

	// Davet e-postalarının çeviri kataloğu — binary'ye gömülü.
	localesFS, err := fs.Sub(i18n.EmbeddedLocales, "locales")
	if err != nil {
		log.Fatalf("[main] failed to open embedded locales: %v", err)
	}
	if err := i18n.Load(localesFS); err != nil {
		log.Fatalf("[main] failed to load translations: %v", err)
	}

	// ─── 2. Database ───
	//
	// Migration'lar binary'ye gömülüdür (database/embed.go) — deploy edilen
	// binary'nin yanında SQL dosyası taşımak gerekmez.
	migrationsFS, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatalf("[main] failed to open embedded migrations: %v", err)
	}

	db, err := database.New(cfg.Database.Path, migrationsFS)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Repository Layer ───
	repos := initRepositories(db.Conn)

	// ─── 4. Service Layer + Bootstrap ───
	svcs := initServices(db.Conn, repos, cfg)

	// Varsayılanları garanti et: tek sunucu satırı, default kanal,
	// default rol. İlk açılışta oluşturulur, sonrakilerde no-op.
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	server, err := svcs.Server.EnsureDefaults(bootCtx)
	bootCancel()
	if err != nil {
		log.Fatalf("[main] failed to bootstrap defaults: %v", err)
	}
	log.Printf("[main] default server ready (id=%s name=%q)", server.ID, server.Name)

	// ─── 5. Media Engines ───
	//
	// Worker başına bir OS process'i; broker kanalları router'lara
	// round-robin dağıtır. Worker'lar ağırdır, sayı CPU ile sınırlı tutulur.
	engines, err := media.NewMediasoupEngines(cfg.Media.Workers, media.EngineConfig{
		RtcMinPort:  cfg.Media.RtcMinPort,
		RtcMaxPort:  cfg.Media.RtcMaxPort,
		AnnouncedIP: cfg.Media.AnnouncedIP,
	})
	if err != nil {
		log.Fatalf("[main] failed to start media workers: %v", err)
	}
	log.Printf("[main] %d media worker(s) started (rtc=%d-%d)", len(engines), cfg.Media.RtcMinPort, cfg.Media.RtcMaxPort)

	broker := media.NewBroker(engines)

	// ─── 6. WebSocket Hub ───
	hub := ws.NewHub(ws.Services{
		Users:       svcs.User,
		Servers:     svcs.Server,
		Channels:    svcs.Channel,
		Members:     svcs.Member,
		Roles:       svcs.Role,
		Permissions: svcs.Permission,
		Credentials: svcs.Credential,
		Bans:        svcs.Ban,
		Messages:    svcs.Message,
	}, broker, ws.Config{
		Password:   cfg.Auth.Password,
		AdminToken: cfg.Auth.AdminToken,
		TrustProxy: cfg.Server.TrustProxy,
	})
	go hub.Run()

	// ─── 7. Handler Layer ───
	h, err := initHandlers(svcs, hub, cfg)
	if err != nil {
		log.Fatalf("[main] failed to initialize handlers: %v", err)
	}

	// ─── 8. HTTP Router ───
	mux := http.NewServeMux()
	adminMw := middleware.NewAdminMiddleware(cfg.Auth.AdminToken, cfg.Auth.OpenAdmin)
	initRoutes(mux, h, adminMw)

	if cfg.Auth.AdminToken == "" {
		if cfg.Auth.OpenAdmin {
			log.Println("[main] WARNING: admin REST is open (OPEN_ADMIN=true, no ADMIN_TOKEN)")
		} else {
			log.Println("[main] admin REST disabled (no ADMIN_TOKEN)")
		}
	}

	// ─── 9. CORS ───
	//
	// Desktop client Tauri'dir: production'da tauri://localhost origin'i
	// ile gelir, dev'de Vite (1420). Ek origin'ler config'ten eklenir.
	allowedOrigins := append([]string{
		"http://localhost:1420",
		"tauri://localhost",
	}, cfg.Server.CORSOrigins...)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	handler := corsHandler.Handler(mux)

	// ─── 10. HTTP Server ───
	//
	// Read/Write timeout'ları REST istekleri içindir; WebSocket bağlantısı
	// upgrade sırasında hijack edildiğinden bu sınırlardan muaftır.
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─── 11. Serve + Graceful Shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		var serveErr error
		switch cfg.TLS.Mode {
		case config.TLSModeManual:
			log.Printf("[main] server listening on %s (tls=manual)", cfg.Server.Addr())
			serveErr = srv.ListenAndServeTLS(cfg.TLS.Cert, cfg.TLS.Key)

		case config.TLSModeAuto:
			m := &autocert.Manager{
				Prompt:     autocert.AcceptTOS,
				HostPolicy: autocert.HostWhitelist(cfg.TLS.Domain),
				Cache:      autocert.DirCache(filepath.Join(cfg.Storage.DataDir, "autocert")),
				Email:      cfg.TLS.Email,
			}
			srv.TLSConfig = m.TLSConfig()

			// HTTP-01 challenge cevapları ve https yönlendirmesi için
			// 80 portunda ayrı bir listener gerekir.
			go func() {
				if acmeErr := http.ListenAndServe(":80", m.HTTPHandler(nil)); acmeErr != nil {
					log.Printf("[main] acme http listener error: %v", acmeErr)
				}
			}()

			log.Printf("[main] server listening on %s (tls=auto, domain=%s)", cfg.Server.Addr(), cfg.TLS.Domain)
			serveErr = srv.ListenAndServeTLS("", "")

		default:
			log.Printf("[main] server listening on %s", cfg.Server.Addr())
			serveErr = srv.ListenAndServe()
		}

		if serveErr != nil && serveErr != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", serveErr)
		}
	}()

	<-done
	log.Println("[main] shutting down...")

	// Önce WebSocket bağlantılarını kapat — client'lar kopuşu hemen görür.
	// Sonra HTTP server'ı kapat — yeni request kabul etmeyi durdurur,
	// mevcut request'lerin bitmesini bekler (5sn timeout).
	// En son medya worker process'leri öldürülür.
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] forced shutdown: %v", err)
	}

	broker.Close()
	log.Println("[main] server stopped gracefully")
}
