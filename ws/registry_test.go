package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Registry, Client'ın yalnızca userID/serverID alanlarını okur; testlerde
// gerçek bağlantı yerine çıplak struct yeterlidir.
func testClient(userID, serverID string) *Client {
	return &Client{userID: userID, serverID: serverID}
}

func TestRegisterFirstSession(t *testing.T) {
	r := NewRegistry()
	c := testClient("alice", "srv")

	displaced := r.Register(c)

	assert.Nil(t, displaced)
	assert.Same(t, c, r.Get("alice"))
	assert.Equal(t, 1, r.Count())
}

func TestRegisterDisplacesPreviousSession(t *testing.T) {
	r := NewRegistry()
	old := testClient("alice", "srv")
	r.Register(old)
	require.True(t, r.MoveChannel(old, "ch-1", 0))

	fresh := testClient("alice", "srv")
	displaced := r.Register(fresh)

	// Tek oturum kuralı: eski bağlantı döner, kapatması çağıranın işi
	assert.Same(t, old, displaced)
	assert.Same(t, fresh, r.Get("alice"))
	assert.Equal(t, 1, r.Count())

	// Eski oturum tüm indekslerden düştü — kanal üyeliği dahil
	assert.Equal(t, 0, r.CountChannel("ch-1"))
	snapshot := r.SnapshotServer("srv", nil)
	require.Len(t, snapshot, 1)
	assert.Same(t, fresh, snapshot[0])
}

func TestUnregisterRemovesAllIndexes(t *testing.T) {
	r := NewRegistry()
	c := testClient("alice", "srv")
	r.Register(c)
	require.True(t, r.MoveChannel(c, "ch-1", 0))

	r.Unregister(c)

	assert.Nil(t, r.Get("alice"))
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 0, r.CountChannel("ch-1"))
	assert.Empty(t, r.SnapshotServer("srv", nil))

	// İkinci çağrı sessizce no-op
	r.Unregister(c)
	assert.Equal(t, 0, r.Count())
}

func TestUnregisterDisplacedClientKeepsCurrentSession(t *testing.T) {
	r := NewRegistry()
	old := testClient("alice", "srv")
	r.Register(old)
	fresh := testClient("alice", "srv")
	r.Register(fresh)

	// Yerinden edilen bağlantının geç gelen cleanup'ı taze oturuma dokunmaz
	r.Unregister(old)

	assert.Same(t, fresh, r.Get("alice"))
	assert.Equal(t, 1, r.Count())
	require.Len(t, r.SnapshotServer("srv", nil), 1)
}

func TestMoveChannelBasics(t *testing.T) {
	r := NewRegistry()
	c := testClient("alice", "srv")
	r.Register(c)

	require.True(t, r.MoveChannel(c, "ch-1", 0))
	assert.Equal(t, 1, r.CountChannel("ch-1"))

	// Aynı kanala tekrar taşıma no-op ama başarılı sayılır
	require.True(t, r.MoveChannel(c, "ch-1", 0))
	assert.Equal(t, 1, r.CountChannel("ch-1"))

	// Kanal değişimi eski üyeliği düşürür
	require.True(t, r.MoveChannel(c, "ch-2", 0))
	assert.Equal(t, 0, r.CountChannel("ch-1"))
	assert.Equal(t, 1, r.CountChannel("ch-2"))

	// Boş hedef kanaldan çıkmaktır
	require.True(t, r.MoveChannel(c, "", 0))
	assert.Equal(t, 0, r.CountChannel("ch-2"))
}

func TestMoveChannelEnforcesCapacity(t *testing.T) {
	r := NewRegistry()
	first := testClient("u1", "srv")
	second := testClient("u2", "srv")
	third := testClient("u3", "srv")
	for _, c := range []*Client{first, second, third} {
		r.Register(c)
	}

	require.True(t, r.MoveChannel(first, "ch-1", 2))
	require.True(t, r.MoveChannel(second, "ch-1", 2))

	// Kanal dolu — taşıma reddedilir, sayaçlar değişmez
	assert.False(t, r.MoveChannel(third, "ch-1", 2))
	assert.Equal(t, 2, r.CountChannel("ch-1"))

	// Koltuk boşalınca aynı taşıma geçer
	require.True(t, r.MoveChannel(first, "", 2))
	assert.True(t, r.MoveChannel(third, "ch-1", 2))
	assert.Equal(t, 2, r.CountChannel("ch-1"))
}

func TestMoveChannelUnlimitedWhenMaxUsersZero(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		c := testClient(id, "srv")
		r.Register(c)
		require.True(t, r.MoveChannel(c, "ch-1", 0))
	}
	assert.Equal(t, 4, r.CountChannel("ch-1"))
}

func TestMoveChannelFailureKeepsCurrentMembership(t *testing.T) {
	r := NewRegistry()
	blocker := testClient("u1", "srv")
	mover := testClient("u2", "srv")
	r.Register(blocker)
	r.Register(mover)

	require.True(t, r.MoveChannel(blocker, "ch-full", 1))
	require.True(t, r.MoveChannel(mover, "ch-old", 1))

	// Hedef doluysa bağlantı eski kanalında kalır
	assert.False(t, r.MoveChannel(mover, "ch-full", 1))
	assert.Equal(t, 1, r.CountChannel("ch-old"))
	assert.Equal(t, 1, r.CountChannel("ch-full"))
}

func TestSnapshotChannelExcludes(t *testing.T) {
	r := NewRegistry()
	alice := testClient("alice", "srv")
	bob := testClient("bob", "srv")
	r.Register(alice)
	r.Register(bob)
	require.True(t, r.MoveChannel(alice, "ch-1", 0))
	require.True(t, r.MoveChannel(bob, "ch-1", 0))

	all := r.SnapshotChannel("ch-1", nil)
	assert.ElementsMatch(t, []*Client{alice, bob}, all)

	// Yayın yapan kendini hariç tutar
	others := r.SnapshotChannel("ch-1", alice)
	require.Len(t, others, 1)
	assert.Same(t, bob, others[0])

	assert.Empty(t, r.SnapshotChannel("no-such-channel", nil))
}

func TestSnapshotServerScopesByServer(t *testing.T) {
	r := NewRegistry()
	alice := testClient("alice", "srv-a")
	bob := testClient("bob", "srv-a")
	carol := testClient("carol", "srv-b")
	for _, c := range []*Client{alice, bob, carol} {
		r.Register(c)
	}

	assert.ElementsMatch(t, []*Client{alice, bob}, r.SnapshotServer("srv-a", nil))
	assert.ElementsMatch(t, []*Client{carol}, r.SnapshotServer("srv-b", nil))

	others := r.SnapshotServer("srv-a", bob)
	require.Len(t, others, 1)
	assert.Same(t, alice, others[0])
}

func TestSnapshotAll(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.SnapshotAll())

	alice := testClient("alice", "srv-a")
	bob := testClient("bob", "srv-b")
	r.Register(alice)
	r.Register(bob)

	assert.ElementsMatch(t, []*Client{alice, bob}, r.SnapshotAll())
}
