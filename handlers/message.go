package handlers

import (
	"net/http"
	"strconv"

	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/services"
)

// exportDefaultLimit / exportMaxLimit: tek sayfalık arşiv dökümü sınırı.
const (
	exportDefaultLimit = 100
	exportMaxLimit     = 1000
)

// MessageHandler, şifreli chat arşivinin admin endpoint'leri. Arşivdeki
// satırlar ciphertext'tir: sunucu yedeği taşır, içeriği asla okuyamaz.
type MessageHandler struct {
	messageService services.MessageService
}

// NewMessageHandler, constructor.
func NewMessageHandler(messageService services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// Export godoc
// GET /api/channels/{channelId}/messages?limit=100&before=<messageId>
// Kanal arşivini en yeniden eskiye sayfalayarak döner. Admin gate
// arkasındadır.
func (h *MessageHandler) Export(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("channelId")

	limit := exportDefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			pkg.ErrorWithMessage(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > exportMaxLimit {
			parsed = exportMaxLimit
		}
		limit = parsed
	}

	messages, err := h.messageService.Export(r.Context(), channelID, limit, r.URL.Query().Get("before"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	total, err := h.messageService.Count(r.Context(), channelID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"total":    total,
	})
}
