package services

import (
	"context"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/pkg"
)

func newInviteService(env *testEnv) InviteService {
	// Email sender nil — gönderim sessizce atlanır
	return NewInviteService(env.db.Conn, env.invites, env.credentials, env.servers, env.members, nil)
}

func TestMintRejectsNegativeLimits(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	svc := newInviteService(env)

	_, err := svc.Mint(context.Background(), server.ID, "host:9090", &models.CreateInviteRequest{MaxUses: -1})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	_, err = svc.Mint(context.Background(), server.ID, "host:9090", &models.CreateInviteRequest{ExpiresIn: -5})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	_, err = svc.Mint(context.Background(), server.ID, "host:9090", &models.CreateInviteRequest{Email: "not-an-email"})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestMintUnlimitedInvite(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	svc := newInviteService(env)

	invite, err := svc.Mint(context.Background(), server.ID, "voice.example.org:9090", &models.CreateInviteRequest{})
	require.NoError(t, err)

	// 8 byte → 16 hex karakter
	assert.Len(t, invite.Token, 16)
	_, err = hex.DecodeString(invite.Token)
	assert.NoError(t, err)

	// 0 = sınırsız/süresiz → nil saklanır
	assert.Nil(t, invite.MaxUses)
	assert.Nil(t, invite.ExpiresAt)
	assert.Equal(t, "voice.example.org:9090", invite.ServerAddress)
	assert.Equal(t, 0, invite.Uses)
}

func TestMintBoundedInvite(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	svc := newInviteService(env)

	invite, err := svc.Mint(context.Background(), server.ID, "host:9090", &models.CreateInviteRequest{
		MaxUses:   5,
		ExpiresIn: 60,
	})
	require.NoError(t, err)

	require.NotNil(t, invite.MaxUses)
	assert.Equal(t, 5, *invite.MaxUses)
	require.NotNil(t, invite.ExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), *invite.ExpiresAt, time.Minute)
}

func TestLookupReturnsPreview(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	svc := newInviteService(env)

	// İki üye ekle — preview memberCount taşımalı
	for _, nick := range []string{"alice", "bob"} {
		user := env.seedUser(t, nick, nil)
		require.NoError(t, env.members.Add(context.Background(), &models.ServerMember{
			ServerID:       server.ID,
			UserID:         user.ID,
			JoinedNickname: nick,
		}))
	}

	invite, err := svc.Mint(context.Background(), server.ID, "voice.example.org:9090", &models.CreateInviteRequest{})
	require.NoError(t, err)

	preview, err := svc.Lookup(context.Background(), invite.Token)
	require.NoError(t, err)

	assert.Equal(t, "Test Server", preview.ServerName)
	assert.Equal(t, "voice.example.org:9090", preview.ServerAddress)
	assert.Equal(t, 2, preview.MemberCount)
}

func TestLookupUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedServer(t)
	svc := newInviteService(env)

	_, err := svc.Lookup(context.Background(), "deadbeefdeadbeef")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestRedeemProducesBoundableCredential(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	svc := newInviteService(env)

	invite, err := svc.Mint(context.Background(), server.ID, "voice.example.org:9090", &models.CreateInviteRequest{})
	require.NoError(t, err)

	result, err := svc.Redeem(context.Background(), &models.RedeemInviteRequest{Token: invite.Token})
	require.NoError(t, err)

	// 32 byte sır → 64 hex karakter, sadece cevapta görünür
	assert.Len(t, result.Credential, 64)
	assert.Equal(t, "voice.example.org:9090", result.ServerAddress)
	assert.Equal(t, "Test Server", result.ServerName)

	// DB'de plaintext değil hash durmalı ve invite'a bağlı olmalı
	creds, err := env.credentials.List(context.Background(), server.ID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, HashCredential(result.Credential), creds[0].CredentialHash)
	assert.Equal(t, invite.ID, creds[0].InviteTokenID)
	assert.False(t, creds[0].Bound())
	assert.False(t, creds[0].Revoked())

	// Kullanım sayacı düşmüş olmalı
	stored, err := env.invites.GetByToken(context.Background(), invite.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Uses)
}

func TestRedeemUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedServer(t)
	svc := newInviteService(env)

	_, err := svc.Redeem(context.Background(), &models.RedeemInviteRequest{Token: "deadbeefdeadbeef"})
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	_, err = svc.Redeem(context.Background(), &models.RedeemInviteRequest{Token: "   "})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestRedeemExhaustedInvite(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	svc := newInviteService(env)

	invite := env.seedInvite(t, server.ID, intPtr(1), nil)

	_, err := svc.Redeem(context.Background(), &models.RedeemInviteRequest{Token: invite.Token})
	require.NoError(t, err)

	// İkinci redeem son hakkı bulamaz
	_, err = svc.Redeem(context.Background(), &models.RedeemInviteRequest{Token: invite.Token})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	// Başarısız redeem credential sızdırmamalı
	creds, err := env.credentials.List(context.Background(), server.ID)
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestRedeemExpiredInvite(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	svc := newInviteService(env)

	past := time.Now().UTC().Add(-time.Hour)
	invite := env.seedInvite(t, server.ID, nil, &past)

	_, err := svc.Redeem(context.Background(), &models.RedeemInviteRequest{Token: invite.Token})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	// Süresi geçmiş davette sayaç oynamaz
	stored, err := env.invites.GetByToken(context.Background(), invite.Token)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Uses)
}

func TestRedeemConcurrentRespectsMaxUses(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	svc := newInviteService(env)

	invite := env.seedInvite(t, server.ID, intPtr(3), nil)

	// 10 eşzamanlı redeem — koşullu UPDATE yarışı SQL'de çözer,
	// tam olarak 3 tanesi geçmeli
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Redeem(context.Background(), &models.RedeemInviteRequest{Token: invite.Token}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)

	stored, err := env.invites.GetByToken(context.Background(), invite.Token)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Uses)

	creds, err := env.credentials.List(context.Background(), server.ID)
	require.NoError(t, err)
	assert.Len(t, creds, 3)
}

func TestInviteListAndDelete(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	svc := newInviteService(env)

	first, err := svc.Mint(context.Background(), server.ID, "host:9090", &models.CreateInviteRequest{})
	require.NoError(t, err)
	_, err = svc.Mint(context.Background(), server.ID, "host:9090", &models.CreateInviteRequest{})
	require.NoError(t, err)

	invites, err := svc.List(context.Background(), server.ID)
	require.NoError(t, err)
	assert.Len(t, invites, 2)

	require.NoError(t, svc.Delete(context.Background(), first.ID))

	invites, err = svc.List(context.Background(), server.ID)
	require.NoError(t, err)
	assert.Len(t, invites, 1)

	// Silinen davet redeem edilemez
	_, err = svc.Redeem(context.Background(), &models.RedeemInviteRequest{Token: first.Token})
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(context.Background(), "no-such-id"), pkg.ErrNotFound)
}

func TestListNeverReturnsNil(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	svc := newInviteService(env)

	invites, err := svc.List(context.Background(), server.ID)
	require.NoError(t, err)
	assert.NotNil(t, invites)
	assert.Empty(t, invites)
}

func TestHashCredential(t *testing.T) {
	h := HashCredential("secret")

	// SHA-256 → 64 hex karakter, deterministik
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashCredential("secret"))
	assert.NotEqual(t, h, HashCredential("other"))
}
