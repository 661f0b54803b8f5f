package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/koza/pkg"
)

func TestBanStoresTrimmedReason(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	target := env.seedUser(t, "troll", nil)
	mod := env.seedUser(t, "mod", nil)
	svc := NewBanService(env.bans)

	ban, err := svc.Ban(context.Background(), server.ID, target.ID, mod.ID, "  spam flood  ", 0)
	require.NoError(t, err)

	// Kenar boşlukları DB'ye girmeden kırpılır
	require.NotNil(t, ban.Reason)
	assert.Equal(t, "spam flood", *ban.Reason)

	stored, err := svc.List(context.Background(), server.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].Reason)
	assert.Equal(t, "spam flood", *stored[0].Reason)
}

func TestBanWhitespaceOnlyReasonBecomesNull(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	target := env.seedUser(t, "troll", nil)
	mod := env.seedUser(t, "mod", nil)
	svc := NewBanService(env.bans)

	ban, err := svc.Ban(context.Background(), server.ID, target.ID, mod.ID, "   ", 0)
	require.NoError(t, err)

	// Kırpma sonrası boş kalan sebep hiç saklanmaz
	assert.Nil(t, ban.Reason)
}

func TestBanRejectsOverlongReason(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	target := env.seedUser(t, "troll", nil)
	mod := env.seedUser(t, "mod", nil)
	svc := NewBanService(env.bans)

	_, err := svc.Ban(context.Background(), server.ID, target.ID, mod.ID, strings.Repeat("a", 513), 0)
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestBanRejectsNegativeDuration(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	target := env.seedUser(t, "troll", nil)
	mod := env.seedUser(t, "mod", nil)
	svc := NewBanService(env.bans)

	_, err := svc.Ban(context.Background(), server.ID, target.ID, mod.ID, "", -1)
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestBanDurationSetsExpiry(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	target := env.seedUser(t, "troll", nil)
	mod := env.seedUser(t, "mod", nil)
	svc := NewBanService(env.bans)

	before := time.Now().UTC()
	ban, err := svc.Ban(context.Background(), server.ID, target.ID, mod.ID, "", 30)
	require.NoError(t, err)

	require.NotNil(t, ban.ExpiresAt)
	assert.WithinDuration(t, before.Add(30*time.Minute), *ban.ExpiresAt, 5*time.Second)

	banned, err := svc.IsBanned(context.Background(), server.ID, target.ID)
	require.NoError(t, err)
	assert.True(t, banned)
}

func TestUnbanLiftsBan(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	target := env.seedUser(t, "troll", nil)
	mod := env.seedUser(t, "mod", nil)
	svc := NewBanService(env.bans)

	_, err := svc.Ban(context.Background(), server.ID, target.ID, mod.ID, "", 0)
	require.NoError(t, err)

	require.NoError(t, svc.Unban(context.Background(), server.ID, target.ID))

	banned, err := svc.IsBanned(context.Background(), server.ID, target.ID)
	require.NoError(t, err)
	assert.False(t, banned)
}
