package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/compound/internal/composition"
	"github.com/Iron-Ham/compound/internal/config"
	"github.com/Iron-Ham/compound/internal/errors"
)

func testMembers() []Member {
	return MembersFromConfig([]config.NodeConfig{
		{Name: "a1", Labels: []string{"linux"}, RootDir: "/srv/a1", Cloud: true},
		{Name: "b1", Labels: []string{"pg"}, RootDir: "/srv/b1", Slots: 2},
		{Name: "b2", Labels: []string{"pg"}, RootDir: "/srv/b2"},
		{Name: "b3", Labels: []string{"pg"}, RootDir: "/srv/b3"},
	})
}

func TestMembersFromConfig(t *testing.T) {
	members := testMembers()
	require.Len(t, members, 4)
	assert.True(t, members[0].Owned)
	assert.False(t, members[1].Owned)
	assert.Equal(t, 2, members[1].Slots)
	assert.Equal(t, 1, members[2].Slots, "zero slots defaults to one")

	node := members[1].Node()
	assert.Equal(t, "b1", node.Name)
	assert.Equal(t, "/srv/b1", node.RootDir)
}

func TestStatic_RequestResources(t *testing.T) {
	pool := NewStatic(testMembers())
	ctx := context.Background()

	got, err := pool.RequestResources(ctx, composition.MustSelector("pg"), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b1", got[0].Name)
	assert.Equal(t, "b2", got[1].Name)

	// Only one pg member left: a short list, not an error.
	got, err = pool.RequestResources(ctx, composition.MustSelector("pg"), 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b3", got[0].Name)

	// Matching by name works too.
	got, err = pool.RequestResources(ctx, composition.MustSelector("a*"), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, 4, pool.Allocated())
}

func TestStatic_RequestResourcesSkipsInUse(t *testing.T) {
	held := map[string]bool{"b1": true}
	pool := NewStatic(testMembers(), WithInUse(func(name string) bool { return held[name] }))

	got, err := pool.RequestResources(context.Background(), composition.MustSelector("pg"), 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b2", got[0].Name)
	assert.Equal(t, "b3", got[1].Name)
}

func TestStatic_RequestResourcesCanceled(t *testing.T) {
	pool := NewStatic(testMembers())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.RequestResources(ctx, composition.MustSelector("pg"), 1)
	assert.ErrorIs(t, err, errors.ErrInterrupted)
	assert.Equal(t, 0, pool.Allocated())
}

func TestStatic_Release(t *testing.T) {
	pool := NewStatic(testMembers())
	ctx := context.Background()

	got, err := pool.RequestResources(ctx, composition.MustSelector("linux"), 1)
	require.NoError(t, err)

	require.NoError(t, pool.Terminate(ctx, got[0]))
	assert.Equal(t, 1, pool.Terminated("a1"))
	assert.Equal(t, 0, pool.Allocated())

	// Released members can be handed out again.
	again, err := pool.RequestResources(ctx, composition.MustSelector("linux"), 1)
	require.NoError(t, err)
	assert.Len(t, again, 1)

	require.NoError(t, pool.Deregister(ctx, Member{Name: "b1"}))
	assert.Equal(t, 1, pool.Deregistered("b1"))

	err = pool.Deregister(ctx, Member{Name: "ghost"})
	assert.ErrorIs(t, err, errors.ErrMemberNotFound)
}

func TestStatic_Lookup(t *testing.T) {
	pool := NewStatic(testMembers())

	m, ok := pool.Lookup("a1")
	require.True(t, ok)
	assert.True(t, m.Owned)

	_, ok = pool.Lookup("ghost")
	assert.False(t, ok)
}
