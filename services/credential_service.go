package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
	"github.com/akinalp/koza/repository"
)

// CredentialService, session credential doğrulama ve yönetimi.
//
// İlk kullanım kuralı: credential redeem anında hiçbir kimliğe bağlı
// değildir. İlk auth'ta sunulan public key'e kalıcı olarak bağlanır ve
// o andan itibaren yalnızca aynı key'le kullanılabilir. Böylece davet
// linkini ele geçiren biri, asıl sahibi bir kez bağlandıktan sonra
// credential'ı çalamaz.
type CredentialService interface {
	// Authenticate, credential + public key çiftini doğrular.
	// Başarıda bağlı credential kaydını döner.
	Authenticate(ctx context.Context, serverID, credential, publicKey string) (*models.SessionCredential, error)

	Revoke(ctx context.Context, id string) error
	List(ctx context.Context, serverID string) ([]models.SessionCredential, error)
}

type credentialService struct {
	credRepo repository.CredentialRepository
}

// NewCredentialService, constructor.
func NewCredentialService(credRepo repository.CredentialRepository) CredentialService {
	return &credentialService{credRepo: credRepo}
}

// ErrCredentialRejected, credential'ın geçersiz, iptal edilmiş veya başka
// bir kimliğe bağlı olduğu tüm durumları tek mesajla örter. Hangi koşulun
// tuttuğunu dışarı sızdırmamak bilinçli: saldırgan geçerli hash ile
// geçersiz hash'i ayırt edememeli.
var ErrCredentialRejected = errors.New("invalid or revoked credential")

func (s *credentialService) Authenticate(ctx context.Context, serverID, credential, publicKey string) (*models.SessionCredential, error) {
	if credential == "" || publicKey == "" {
		return nil, ErrCredentialRejected
	}

	hash := HashCredential(credential)
	cred, err := s.credRepo.GetActiveByHash(ctx, serverID, hash)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, ErrCredentialRejected
		}
		return nil, fmt.Errorf("failed to look up credential: %w", err)
	}

	// Zaten bağlıysa key eşitliği tek kriterdir.
	if cred.Bound() {
		if *cred.UserPublicKey != publicKey {
			return nil, ErrCredentialRejected
		}
		return cred, nil
	}

	// İlk bağlama: atomik UPDATE yarışı. İki bağlantı aynı anda farklı
	// key'lerle gelirse UPDATE'i kazanan bağlar; kaybeden yeniden okur
	// ve ancak aynı key'i sunuyorsa (aynı kullanıcının çift bağlantısı)
	// kabul edilir.
	bound, err := s.credRepo.Bind(ctx, cred.ID, publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to bind credential: %w", err)
	}
	if !bound {
		cred, err = s.credRepo.GetByID(ctx, cred.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read credential: %w", err)
		}
		if !cred.Bound() || *cred.UserPublicKey != publicKey || cred.Revoked() {
			return nil, ErrCredentialRejected
		}
		return cred, nil
	}

	cred, err = s.credRepo.GetByID(ctx, cred.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read credential: %w", err)
	}
	return cred, nil
}

func (s *credentialService) Revoke(ctx context.Context, id string) error {
	return s.credRepo.Revoke(ctx, id)
}

func (s *credentialService) List(ctx context.Context, serverID string) ([]models.SessionCredential, error) {
	creds, err := s.credRepo.List(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		creds = []models.SessionCredential{}
	}
	return creds, nil
}
