package services

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/koza/database"
	"github.com/akinalp/koza/models"
	"github.com/akinalp/koza/repository"
)

// testEnv, service testleri için gerçek (geçici dosyada) SQLite ortamı.
//
// Fake repo yerine gerçek şema kullanılır: FK zinciri, unique index'ler
// ve koşullu UPDATE'lerin yarış davranışı ancak gerçek SQLite üstünde
// anlamlı test edilir. Migration'lar embedded set'ten uygulanır — testler
// production şemasının birebir aynısında koşar.
type testEnv struct {
	db *database.DB

	users       repository.UserRepository
	servers     repository.ServerRepository
	channels    repository.ChannelRepository
	members     repository.MemberRepository
	roles       repository.RoleRepository
	overrides   repository.ChannelPermissionRepository
	credentials repository.CredentialRepository
	invites     repository.InviteRepository
	bans        repository.BanRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	require.NoError(t, err)

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), migrations)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &testEnv{
		db:          db,
		users:       repository.NewSQLiteUserRepo(db.Conn),
		servers:     repository.NewSQLiteServerRepo(db.Conn),
		channels:    repository.NewSQLiteChannelRepo(db.Conn),
		members:     repository.NewSQLiteMemberRepo(db.Conn),
		roles:       repository.NewSQLiteRoleRepo(db.Conn),
		overrides:   repository.NewSQLiteChannelPermissionRepo(db.Conn),
		credentials: repository.NewSQLiteCredentialRepo(db.Conn),
		invites:     repository.NewSQLiteInviteRepo(db.Conn),
		bans:        repository.NewSQLiteBanRepo(db.Conn),
	}
}

// ─── Seed yardımcıları ───
//
// FK'ler açık olduğu için bağımlı satırlardan önce üst satırlar yazılmalı.
// ID'ler test tarafından verilir — permission testlerinde id tie-break
// sırası deterministik olsun diye.

func (e *testEnv) seedServer(t *testing.T) *models.Server {
	t.Helper()
	server := &models.Server{
		ID:                 uuid.New().String(),
		Name:               "Test Server",
		MaxUsers:           100,
		MaxWebcamProducers: 4,
		MaxScreenProducers: 2,
	}
	require.NoError(t, e.servers.Create(context.Background(), server))
	return server
}

func (e *testEnv) seedUser(t *testing.T, nickname string, publicKey *string) *models.User {
	t.Helper()
	user := &models.User{
		ID:        uuid.New().String(),
		Nickname:  nickname,
		PublicKey: publicKey,
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *testEnv) seedChannel(t *testing.T, serverID string, parentID *string, name string) *models.Channel {
	t.Helper()
	channel := &models.Channel{
		ID:       uuid.New().String(),
		ServerID: serverID,
		ParentID: parentID,
		Name:     name,
	}
	require.NoError(t, e.channels.Create(context.Background(), channel))
	return channel
}

func (e *testEnv) seedRole(t *testing.T, id, serverID string, priority int, perms models.PermissionSet) *models.Role {
	t.Helper()
	role := &models.Role{
		ID:          id,
		ServerID:    serverID,
		Name:        "role-" + id,
		Priority:    priority,
		Permissions: perms,
	}
	require.NoError(t, e.roles.Create(context.Background(), role))
	return role
}

func (e *testEnv) seedMember(t *testing.T, serverID, userID, nickname string) {
	t.Helper()
	require.NoError(t, e.members.Add(context.Background(), &models.ServerMember{
		ServerID:       serverID,
		UserID:         userID,
		JoinedNickname: nickname,
	}))
}

func (e *testEnv) assignRole(t *testing.T, userID, serverID, roleID string) {
	t.Helper()
	require.NoError(t, e.roles.Assign(context.Background(), userID, serverID, roleID))
}

func (e *testEnv) setOverride(t *testing.T, channelID, roleID string, perms models.PermissionSet) {
	t.Helper()
	require.NoError(t, e.overrides.Set(context.Background(), &models.ChannelPermission{
		ChannelID:   channelID,
		RoleID:      roleID,
		Permissions: perms,
	}))
}

func (e *testEnv) seedInvite(t *testing.T, serverID string, maxUses *int, expiresAt *time.Time) *models.InviteToken {
	t.Helper()
	invite := &models.InviteToken{
		ID:            uuid.New().String(),
		ServerID:      serverID,
		Token:         uuid.New().String()[:16],
		MaxUses:       maxUses,
		ExpiresAt:     expiresAt,
		ServerAddress: "voice.example.org:9090",
	}
	require.NoError(t, e.invites.Create(context.Background(), invite))
	return invite
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }
