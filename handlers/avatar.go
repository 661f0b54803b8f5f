package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/services"
)

// blobMaxSize, avatar/ikon dosyası üst sınırı. Küçük tutulur: bunlar
// optimize edilmiş küçük resimlerdir, genel dosya deposu değildir.
const blobMaxSize = 2 << 20

// imageExtByMime, İÇERİKTEN tespit edilen MIME'ı dosya uzantısına eşler.
// İstemcinin beyan ettiği Content-Type'a güvenilmez — ilk 512 bayt
// http.DetectContentType ile koklanır.
var imageExtByMime = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// AvatarHandler, kullanıcı avatarı ve sunucu ikonu yükleme/sunma
// endpoint'lerini yönetir. Dosyalar deterministik adla saklanır:
// <dataDir>/avatars/<userId>.<ext> ve <dataDir>/icons/<serverId>.<ext>.
// Aynı kimliğe yeni yükleme eskisinin üzerine yazar; uzantı değiştiyse
// eski dosya silinir.
type AvatarHandler struct {
	userService   services.UserService
	serverService services.ServerService
	notifier      Notifier
	avatarDir     string
	iconDir       string
}

// NewAvatarHandler, constructor. Dizinler yoksa oluşturulur.
func NewAvatarHandler(
	userService services.UserService,
	serverService services.ServerService,
	notifier Notifier,
	dataDir string,
) (*AvatarHandler, error) {
	avatarDir := filepath.Join(dataDir, "avatars")
	iconDir := filepath.Join(dataDir, "icons")
	for _, dir := range []string{avatarDir, iconDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create blob dir %s: %w", dir, err)
		}
	}
	return &AvatarHandler{
		userService:   userService,
		serverService: serverService,
		notifier:      notifier,
		avatarDir:     avatarDir,
		iconDir:       iconDir,
	}, nil
}

// UploadUserAvatar godoc
// POST /api/users/{userId}/avatar
// Content-Type: multipart/form-data, "file" alanı.
func (h *AvatarHandler) UploadUserAvatar(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	filename, err := h.saveUpload(r, h.avatarDir, userID)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	h.deleteStale(h.avatarDir, userID, filename, user.AvatarURL)

	url := "/api/avatars/" + filename
	if err := h.userService.UpdateAvatar(r.Context(), userID, &url); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"avatarUrl": url})
}

// UploadServerIcon godoc
// POST /api/server/icon
// Sunucu ikonunu günceller ve server-updated yayınlatır. Admin gate
// arkasındadır.
func (h *AvatarHandler) UploadServerIcon(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverService.Get(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}

	filename, err := h.saveUpload(r, h.iconDir, server.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	h.deleteStale(h.iconDir, server.ID, filename, server.IconURL)

	url := "/api/icons/" + filename
	if err := h.serverService.UpdateIcon(r.Context(), server.ID, &url); err != nil {
		pkg.Error(w, err)
		return
	}

	updated, err := h.serverService.Get(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	h.notifier.NotifyServerUpdated(updated)

	pkg.JSON(w, http.StatusOK, map[string]string{"iconUrl": url})
}

// ServeAvatar godoc
// GET /api/avatars/{file}
func (h *AvatarHandler) ServeAvatar(w http.ResponseWriter, r *http.Request) {
	h.serveBlob(w, r, h.avatarDir)
}

// ServeIcon godoc
// GET /api/icons/{file}
func (h *AvatarHandler) ServeIcon(w http.ResponseWriter, r *http.Request) {
	h.serveBlob(w, r, h.iconDir)
}

// serveBlob, dizinden tek dosya sunar. filepath.Base path traversal'ı
// keser; http.ServeFile content-type ve range işini halleder.
func (h *AvatarHandler) serveBlob(w http.ResponseWriter, r *http.Request, dir string) {
	name := filepath.Base(r.PathValue("file"))
	if name == "." || name == "/" || strings.HasPrefix(name, ".") {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid file name")
		return
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		pkg.ErrorWithMessage(w, http.StatusNotFound, "file not found")
		return
	}
	http.ServeFile(w, r, path)
}

// saveUpload, multipart gövdeden dosyayı okur, içeriğini koklayarak
// doğrular ve <dir>/<id>.<ext> olarak yazar. Dosya adını döner.
func (h *AvatarHandler) saveUpload(r *http.Request, dir, id string) (string, error) {
	if err := r.ParseMultipartForm(blobMaxSize); err != nil {
		return "", fmt.Errorf("%w: failed to parse multipart form", pkg.ErrBadRequest)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", fmt.Errorf("%w: file field is required", pkg.ErrBadRequest)
	}
	defer file.Close()

	if header.Size > blobMaxSize {
		return "", fmt.Errorf("%w: file too large (max 2MB)", pkg.ErrBadRequest)
	}

	// İlk 512 bayttan gerçek içerik türü tespit edilir.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	ext, ok := imageExtByMime[http.DetectContentType(head[:n])]
	if !ok {
		return "", fmt.Errorf("%w: only png, jpeg, webp and gif images are allowed", pkg.ErrBadRequest)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind upload: %w", err)
	}

	filename := id + ext
	destPath := filepath.Join(dir, filename)
	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create blob file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, io.LimitReader(file, blobMaxSize)); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("failed to save blob file: %w", err)
	}
	return filename, nil
}

// deleteStale, uzantısı değişen eski dosyayı temizler. Blob temizliği
// kritik değildir; hatalar yutulur.
func (h *AvatarHandler) deleteStale(dir, id, keep string, oldURL *string) {
	if oldURL == nil || *oldURL == "" {
		return
	}
	old := filepath.Base(*oldURL)
	if old == keep || !strings.HasPrefix(old, id+".") {
		return
	}
	os.Remove(filepath.Join(dir, old))
}
