package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/koza/models"
)

// ─── Saf fonksiyon testleri ───

func TestMergeRolePermissionsFirstDecisionWins(t *testing.T) {
	// roles zaten priority DESC sıralı gelir (repo sözleşmesi)
	roles := []models.Role{
		{ID: "role-a", Priority: 100, Permissions: models.PermissionSet{
			models.PermChat: models.PermDeny,
		}},
		{ID: "role-b", Priority: 10, Permissions: models.PermissionSet{
			models.PermChat: models.PermAllow,
			models.PermJoin: models.PermAllow,
		}},
	}

	merged := MergeRolePermissions(roles)

	// Yüksek priority ilk karar verdi — düşüğün allow'u işlemez
	assert.Equal(t, models.PermDeny, merged.Get(models.PermChat))
	// Yüksek priority inherit kaldı — karar düşüğe düşer
	assert.Equal(t, models.PermAllow, merged.Get(models.PermJoin))
	// Kimse karar vermedi — merge kısmi kalır
	assert.Equal(t, models.PermInherit, merged.Get(models.PermKick))
}

func TestMergeRolePermissionsInheritIsNotADecision(t *testing.T) {
	roles := []models.Role{
		{ID: "role-a", Priority: 50, Permissions: models.PermissionSet{
			models.PermSpeak: models.PermInherit, // Açıkça inherit yazılmış
		}},
		{ID: "role-b", Priority: 1, Permissions: models.PermissionSet{
			models.PermSpeak: models.PermAllow,
		}},
	}

	merged := MergeRolePermissions(roles)
	assert.Equal(t, models.PermAllow, merged.Get(models.PermSpeak))
}

func TestApplyChannelOverridesDeeperChannelWins(t *testing.T) {
	roles := []models.Role{
		{ID: "role-a", Priority: 10},
	}
	base := models.PermissionSet{models.PermSpeak: models.PermDeny}

	// Zincir: kök → alt kanal. Kök allow der, alt kanal deny der.
	overrides := map[string][]models.ChannelPermission{
		"ch-root": {{ChannelID: "ch-root", RoleID: "role-a", Permissions: models.PermissionSet{
			models.PermSpeak: models.PermAllow,
		}}},
		"ch-leaf": {{ChannelID: "ch-leaf", RoleID: "role-a", Permissions: models.PermissionSet{
			models.PermSpeak: models.PermDeny,
		}}},
	}

	result := ApplyChannelOverrides(base, roles, []string{"ch-root", "ch-leaf"}, overrides)
	assert.Equal(t, models.PermDeny, result.Get(models.PermSpeak))

	// Hedef kök kanalsa sadece kökün override'ı uygulanır
	result = ApplyChannelOverrides(base, roles, []string{"ch-root"}, overrides)
	assert.Equal(t, models.PermAllow, result.Get(models.PermSpeak))
}

func TestApplyChannelOverridesHigherPriorityWinsInSameChannel(t *testing.T) {
	roles := []models.Role{
		{ID: "role-high", Priority: 100},
		{ID: "role-low", Priority: 1},
	}
	base := models.PermissionSet{}

	overrides := map[string][]models.ChannelPermission{
		"ch": {
			{ChannelID: "ch", RoleID: "role-low", Permissions: models.PermissionSet{
				models.PermChat: models.PermAllow,
			}},
			{ChannelID: "ch", RoleID: "role-high", Permissions: models.PermissionSet{
				models.PermChat: models.PermDeny,
			}},
		},
	}

	// Düşük priority önce uygulanır, yüksek üstüne yazar
	result := ApplyChannelOverrides(base, roles, []string{"ch"}, overrides)
	assert.Equal(t, models.PermDeny, result.Get(models.PermChat))
}

func TestApplyChannelOverridesInheritLeavesBase(t *testing.T) {
	roles := []models.Role{{ID: "role-a", Priority: 10}}
	base := models.PermissionSet{models.PermChat: models.PermAllow}

	overrides := map[string][]models.ChannelPermission{
		"ch": {{ChannelID: "ch", RoleID: "role-a", Permissions: models.PermissionSet{
			models.PermChat:  models.PermInherit, // Karar vermiyor
			models.PermSpeak: models.PermDeny,
		}}},
	}

	result := ApplyChannelOverrides(base, roles, []string{"ch"}, overrides)

	// inherit base'deki kararı silemez
	assert.Equal(t, models.PermAllow, result.Get(models.PermChat))
	assert.Equal(t, models.PermDeny, result.Get(models.PermSpeak))
}

func TestApplyChannelOverridesIgnoresForeignRoles(t *testing.T) {
	roles := []models.Role{{ID: "role-mine", Priority: 10}}
	base := models.PermissionSet{models.PermChat: models.PermAllow}

	// Override kullanıcının taşımadığı bir role ait
	overrides := map[string][]models.ChannelPermission{
		"ch": {{ChannelID: "ch", RoleID: "role-other", Permissions: models.PermissionSet{
			models.PermChat: models.PermDeny,
		}}},
	}

	result := ApplyChannelOverrides(base, roles, []string{"ch"}, overrides)
	assert.Equal(t, models.PermAllow, result.Get(models.PermChat))
}

func TestApplyChannelOverridesDoesNotMutateBase(t *testing.T) {
	roles := []models.Role{{ID: "role-a", Priority: 10}}
	base := models.PermissionSet{models.PermChat: models.PermAllow}

	overrides := map[string][]models.ChannelPermission{
		"ch": {{ChannelID: "ch", RoleID: "role-a", Permissions: models.PermissionSet{
			models.PermChat: models.PermDeny,
		}}},
	}

	_ = ApplyChannelOverrides(base, roles, []string{"ch"}, overrides)
	assert.Equal(t, models.PermAllow, base.Get(models.PermChat))
}

// ─── Gerçek SQLite üstünde uçtan uca çözümleme ───

func TestEffectivePermissionsNoRolesMeansAllDeny(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	user := env.seedUser(t, "roleless", nil)
	svc := NewPermissionService(env.roles, env.channels, env.overrides)

	perms, err := svc.EffectivePermissions(context.Background(), user.ID, server.ID, nil)
	require.NoError(t, err)

	for _, key := range models.AllPermissionKeys {
		assert.Equal(t, models.PermDeny, perms.Get(key), "key %s", key)
	}
}

func TestEffectivePermissionsAdminShortCircuit(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	user := env.seedUser(t, "admin", nil)
	svc := NewPermissionService(env.roles, env.channels, env.overrides)

	env.seedRole(t, "role-admin", server.ID, 100, models.PermissionSet{
		models.PermAdmin: models.PermAllow,
	})
	env.assignRole(t, user.ID, server.ID, "role-admin")

	// Kanal override'ı her şeyi deny etse bile admin kısa devre eder —
	// kanal katmanına hiç inilmez
	channel := env.seedChannel(t, server.ID, nil, "locked")
	denyAll := models.PermissionSet{}
	for _, key := range models.AllPermissionKeys {
		denyAll[key] = models.PermDeny
	}
	env.setOverride(t, channel.ID, "role-admin", denyAll)

	perms, err := svc.EffectivePermissions(context.Background(), user.ID, server.ID, &channel.ID)
	require.NoError(t, err)

	for _, key := range models.AllPermissionKeys {
		assert.Equal(t, models.PermAllow, perms.Get(key), "key %s", key)
	}
}

func TestEffectivePermissionsServerLayerResolvesInheritToDeny(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	user := env.seedUser(t, "member", nil)
	svc := NewPermissionService(env.roles, env.channels, env.overrides)

	env.seedRole(t, "role-member", server.ID, 10, models.PermissionSet{
		models.PermJoin: models.PermAllow,
		models.PermChat: models.PermAllow,
	})
	env.assignRole(t, user.ID, server.ID, "role-member")

	perms, err := svc.EffectivePermissions(context.Background(), user.ID, server.ID, nil)
	require.NoError(t, err)

	assert.True(t, perms.Allows(models.PermJoin))
	assert.True(t, perms.Allows(models.PermChat))
	// Karar verilmeyen her key deny'a düşmüş olmalı, inherit sızmamalı
	assert.Equal(t, models.PermDeny, perms.Get(models.PermKick))
	assert.Equal(t, models.PermDeny, perms.Get(models.PermManageServer))
	for _, key := range models.AllPermissionKeys {
		assert.NotEqual(t, models.PermInherit, perms.Get(key), "key %s", key)
	}
}

func TestEffectivePermissionsPriorityTieBreaksById(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	user := env.seedUser(t, "member", nil)
	svc := NewPermissionService(env.roles, env.channels, env.overrides)

	// Aynı priority — id ASC sırası deterministik kazananı belirler
	env.seedRole(t, "role-a", server.ID, 50, models.PermissionSet{
		models.PermChat: models.PermDeny,
	})
	env.seedRole(t, "role-b", server.ID, 50, models.PermissionSet{
		models.PermChat: models.PermAllow,
	})
	env.assignRole(t, user.ID, server.ID, "role-a")
	env.assignRole(t, user.ID, server.ID, "role-b")

	perms, err := svc.EffectivePermissions(context.Background(), user.ID, server.ID, nil)
	require.NoError(t, err)

	// role-a id sırasında önce gelir, ilk kararı o verir
	assert.Equal(t, models.PermDeny, perms.Get(models.PermChat))
}

func TestEffectivePermissionsChannelChain(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	user := env.seedUser(t, "member", nil)
	svc := NewPermissionService(env.roles, env.channels, env.overrides)

	env.seedRole(t, "role-member", server.ID, 10, models.PermissionSet{
		models.PermJoin:  models.PermAllow,
		models.PermSpeak: models.PermDeny,
	})
	env.assignRole(t, user.ID, server.ID, "role-member")

	parent := env.seedChannel(t, server.ID, nil, "parent")
	child := env.seedChannel(t, server.ID, &parent.ID, "child")

	// Üst kanal konuşmayı açar, alt kanal geri kapatır
	env.setOverride(t, parent.ID, "role-member", models.PermissionSet{
		models.PermSpeak: models.PermAllow,
	})
	env.setOverride(t, child.ID, "role-member", models.PermissionSet{
		models.PermSpeak: models.PermDeny,
	})

	parentPerms, err := svc.EffectivePermissions(context.Background(), user.ID, server.ID, &parent.ID)
	require.NoError(t, err)
	assert.True(t, parentPerms.Allows(models.PermSpeak))

	childPerms, err := svc.EffectivePermissions(context.Background(), user.ID, server.ID, &child.ID)
	require.NoError(t, err)
	assert.False(t, childPerms.Allows(models.PermSpeak))

	// Override'ın dokunmadığı key sunucu katmanından gelir
	assert.True(t, childPerms.Allows(models.PermJoin))
}

func TestEffectivePermissionsSameChannelHigherPriorityOverrideWins(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	user := env.seedUser(t, "member", nil)
	svc := NewPermissionService(env.roles, env.channels, env.overrides)

	env.seedRole(t, "role-high", server.ID, 100, models.PermissionSet{})
	env.seedRole(t, "role-low", server.ID, 1, models.PermissionSet{
		models.PermJoin: models.PermAllow,
	})
	env.assignRole(t, user.ID, server.ID, "role-high")
	env.assignRole(t, user.ID, server.ID, "role-low")

	channel := env.seedChannel(t, server.ID, nil, "general")
	env.setOverride(t, channel.ID, "role-low", models.PermissionSet{
		models.PermChat: models.PermAllow,
	})
	env.setOverride(t, channel.ID, "role-high", models.PermissionSet{
		models.PermChat: models.PermDeny,
	})

	perms, err := svc.EffectivePermissions(context.Background(), user.ID, server.ID, &channel.ID)
	require.NoError(t, err)

	assert.Equal(t, models.PermDeny, perms.Get(models.PermChat))
	assert.True(t, perms.Allows(models.PermJoin))
}

func TestEffectivePermissionsCachesUntilInvalidated(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	user := env.seedUser(t, "member", nil)
	svc := NewPermissionService(env.roles, env.channels, env.overrides)

	env.seedRole(t, "role-member", server.ID, 10, models.PermissionSet{
		models.PermChat: models.PermAllow,
	})
	env.assignRole(t, user.ID, server.ID, "role-member")

	perms, err := svc.EffectivePermissions(context.Background(), user.ID, server.ID, nil)
	require.NoError(t, err)
	require.True(t, perms.Allows(models.PermChat))

	// Rol repo'dan doğrudan değiştirilir — servis katmanı atlandığı için
	// cache'in haberi yok, TTL dolana dek eski karar servis edilir
	role, err := env.roles.GetByID(context.Background(), "role-member")
	require.NoError(t, err)
	role.Permissions = models.PermissionSet{models.PermChat: models.PermDeny}
	require.NoError(t, env.roles.Update(context.Background(), role))

	stale, err := svc.EffectivePermissions(context.Background(), user.ID, server.ID, nil)
	require.NoError(t, err)
	assert.True(t, stale.Allows(models.PermChat))

	// Invalidate sonrası taze çözümleme yeni kararı görür
	svc.Invalidate(user.ID)
	fresh, err := svc.EffectivePermissions(context.Background(), user.ID, server.ID, nil)
	require.NoError(t, err)
	assert.False(t, fresh.Allows(models.PermChat))
}

func TestEffectivePermissionsReturnsClones(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	user := env.seedUser(t, "member", nil)
	svc := NewPermissionService(env.roles, env.channels, env.overrides)

	env.seedRole(t, "role-member", server.ID, 10, models.PermissionSet{
		models.PermChat: models.PermAllow,
	})
	env.assignRole(t, user.ID, server.ID, "role-member")

	first, err := svc.EffectivePermissions(context.Background(), user.ID, server.ID, nil)
	require.NoError(t, err)

	// Dönen set kurcalanır — cache'teki kanonik kopya etkilenmemeli
	first[models.PermChat] = models.PermDeny

	second, err := svc.EffectivePermissions(context.Background(), user.ID, server.ID, nil)
	require.NoError(t, err)
	assert.True(t, second.Allows(models.PermChat))
}

func TestRoleServiceAssignInvalidatesPermissionCache(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	user := env.seedUser(t, "member", nil)
	permSvc := NewPermissionService(env.roles, env.channels, env.overrides)
	roleSvc := NewRoleService(env.roles, env.members, env.channels, env.overrides, permSvc)

	env.seedMember(t, server.ID, user.ID, "member")
	env.seedRole(t, "role-chat", server.ID, 10, models.PermissionSet{
		models.PermChat: models.PermAllow,
	})

	// Rolsüz çözümleme cache'e all-deny yazar
	before, err := permSvc.EffectivePermissions(context.Background(), user.ID, server.ID, nil)
	require.NoError(t, err)
	require.False(t, before.Allows(models.PermChat))

	// Servis üzerinden atama cache'i düşürür — yeni rol hemen görünür
	require.NoError(t, roleSvc.Assign(context.Background(), server.ID, user.ID, "role-chat"))

	after, err := permSvc.EffectivePermissions(context.Background(), user.ID, server.ID, nil)
	require.NoError(t, err)
	assert.True(t, after.Allows(models.PermChat))
}

func TestHas(t *testing.T) {
	env := newTestEnv(t)
	server := env.seedServer(t)
	user := env.seedUser(t, "member", nil)
	svc := NewPermissionService(env.roles, env.channels, env.overrides)

	env.seedRole(t, "role-member", server.ID, 10, models.PermissionSet{
		models.PermJoin: models.PermAllow,
	})
	env.assignRole(t, user.ID, server.ID, "role-member")

	ok, err := svc.Has(context.Background(), user.ID, server.ID, nil, models.PermJoin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Has(context.Background(), user.ID, server.ID, nil, models.PermBan)
	require.NoError(t, err)
	assert.False(t, ok)
}
