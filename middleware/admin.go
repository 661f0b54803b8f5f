// Package middleware — AdminMiddleware, ayrıcalıklı REST endpoint'lerinin
// bearer token kapısı.
//
// Bu sistemde REST tarafında kullanıcı oturumu yoktur (kimlik WS auth'ta
// kurulur); REST'in tek ayrıcalık düzeyi admin'dir. Token doğrulaması
// sabit zamanlıdır — yan kanaldan token uzunluğu/içeriği sızmaz.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/akinalp/koza/pkg"
)

// AdminMiddleware, admin endpoint'lerini bearer token ile korur.
type AdminMiddleware struct {
	adminToken string
	openAdmin  bool
}

// NewAdminMiddleware, constructor.
//
// adminToken boş VE openAdmin true ise kapı açık bırakılır — yalnızca
// bilinçli opt-in için (ör. localhost'a bağlı geliştirme kurulumu).
// adminToken boş ve openAdmin false ise admin REST tamamen kapalıdır.
func NewAdminMiddleware(adminToken string, openAdmin bool) *AdminMiddleware {
	return &AdminMiddleware{adminToken: adminToken, openAdmin: openAdmin}
}

// Require, admin yetkisi zorunlu kılan middleware.
func (m *AdminMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.adminToken == "" {
			if m.openAdmin {
				next.ServeHTTP(w, r)
				return
			}
			pkg.ErrorWithMessage(w, http.StatusForbidden, "admin endpoints are disabled: no admin token configured")
			return
		}

		token := bearerToken(r)
		if token == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(m.adminToken)) != 1 {
			pkg.ErrorWithMessage(w, http.StatusForbidden, "invalid admin token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken, Authorization başlığından token'ı çıkarır.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
