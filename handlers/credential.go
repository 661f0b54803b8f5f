package handlers

import (
	"net/http"

	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/services"
)

// CredentialHandler, oturum credential'larının admin endpoint'leri.
// Plaintext credential hiçbir zaman dönmez — satırlar hash ve bağlama
// meta verisiyle listelenir; tek yazma işlemi iptal etmektir.
type CredentialHandler struct {
	credentialService services.CredentialService
	serverService     services.ServerService
}

// NewCredentialHandler, constructor.
func NewCredentialHandler(
	credentialService services.CredentialService,
	serverService services.ServerService,
) *CredentialHandler {
	return &CredentialHandler{
		credentialService: credentialService,
		serverService:     serverService,
	}
}

// List godoc
// GET /api/credentials
// Sunucunun credential kayıtlarını döner. Admin gate arkasındadır.
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverService.Get(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	creds, err := h.credentialService.List(r.Context(), server.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, creds)
}

// Revoke godoc
// POST /api/credentials/{id}/revoke
// Credential'ı iptal eder; bir sonraki auth denemesi kapıda kalır.
// Canlı oturum düşürülmez — iptal, yeniden bağlanmayı engeller.
func (h *CredentialHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.credentialService.Revoke(r.Context(), r.PathValue("id")); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "credential revoked"})
}
