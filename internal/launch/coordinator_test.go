package launch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/compound/internal/backend"
	"github.com/Iron-Ham/compound/internal/composition"
	"github.com/Iron-Ham/compound/internal/compound"
	"github.com/Iron-Ham/compound/internal/errors"
	"github.com/Iron-Ham/compound/internal/event"
	"github.com/Iron-Ham/compound/internal/exclusivity"
	"github.com/Iron-Ham/compound/internal/host"
	"github.com/Iron-Ham/compound/internal/workpool"
)

type fixture struct {
	coord     *Coordinator
	connector *backend.StaticConnector
	ctrl      *exclusivity.Controller
	host      *host.Memory
	worker    *compound.Worker
	events    []string
}

func newFixture(t *testing.T, opts ...backend.ConnectorOption) *fixture {
	t.Helper()

	h := host.NewMemory()
	r := compound.NewRegistry()
	add := func(role composition.Role, name string) {
		m := backend.Member{Name: name, RootDir: "/srv/" + name, Slots: 1}
		require.NoError(t, h.RegisterNode(m.Node()))
		require.NoError(t, r.Add(role, m))
	}
	add(composition.Root, "a1")
	add("db", "b1")
	add("db", "b2")
	add("web", "c1")
	require.NoError(t, r.Seal())

	w, err := compound.NewWorker("Dynamic-compound-1", r)
	require.NoError(t, err)

	f := &fixture{
		connector: backend.NewStaticConnector(opts...),
		host:      h,
		worker:    w,
	}
	bus := event.NewBus()
	bus.SubscribeAll(func(e event.Event) { f.events = append(f.events, e.EventType()) })
	f.ctrl = exclusivity.New(h)
	f.coord = New(workpool.New(2), f.connector, f.ctrl, WithBus(bus))
	return f
}

func TestLaunch_AllOnline(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.coord.Launch(context.Background(), f.worker))

	assert.Equal(t, compound.StateOnline, f.worker.State())
	for _, name := range []string{"a1", "b1", "b2", "c1"} {
		assert.Equal(t, 1, f.connector.Connects(name), "connects for %s", name)
		owner, ok := f.ctrl.Owner(name)
		assert.True(t, ok, "%s not occupied", name)
		assert.Equal(t, "Dynamic-compound-1", owner)
		accepting, _ := f.host.AcceptingTasks(name)
		assert.False(t, accepting, "%s still accepting tasks", name)
	}
	assert.Contains(t, f.events, event.TypeLaunched)
}

func TestLaunch_SatelliteFailureSkipsRoot(t *testing.T) {
	f := newFixture(t, backend.WithFailing("b2"))

	err := f.coord.Launch(context.Background(), f.worker)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConnectFailed)

	var launchErr *errors.LaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.Equal(t, []string{"b2"}, launchErr.Members)

	assert.Equal(t, 0, f.connector.Connects("a1"), "root must not be connected")
	assert.Equal(t, compound.StateLaunchFailed, f.worker.State())
	assert.Contains(t, f.events, event.TypeLaunchFailed)
	assert.NotContains(t, f.events, event.TypeLaunched)

	// The satellites that did connect are still occupied; teardown owns them.
	_, ok := f.ctrl.Owner("b1")
	assert.True(t, ok)
}

func TestLaunch_AlreadyRunningMembers(t *testing.T) {
	f := newFixture(t)
	f.connector.SetStatus("b1", backend.StatusOnline)
	f.connector.SetStatus("c1", backend.StatusConnecting)

	require.NoError(t, f.coord.Launch(context.Background(), f.worker))

	assert.Equal(t, 0, f.connector.Connects("b1"))
	assert.Equal(t, 0, f.connector.Connects("c1"))
	assert.Equal(t, 1, f.connector.Connects("b2"))

	_, ok := f.ctrl.Owner("c1")
	assert.True(t, ok, "already running member must still be occupied")
}

func TestLaunch_RootFailure(t *testing.T) {
	f := newFixture(t, backend.WithFailing("a1"))

	err := f.coord.Launch(context.Background(), f.worker)
	assert.ErrorIs(t, err, errors.ErrConnectFailed)
	assert.Equal(t, compound.StateLaunchFailed, f.worker.State())
	_, ok := f.ctrl.Owner("a1")
	assert.False(t, ok)
}

func TestLaunch_MemberHeldElsewhere(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.Occupy("c1", "Dynamic-compound-9")
	require.NoError(t, err)

	err = f.coord.Launch(context.Background(), f.worker)
	assert.ErrorIs(t, err, errors.ErrAlreadyOccupied)
	assert.Equal(t, 0, f.connector.Connects("a1"))
}

func TestLaunch_Canceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.coord.Launch(ctx, f.worker)
	assert.ErrorIs(t, err, errors.ErrInterrupted)
	assert.Equal(t, 0, f.connector.Connects("a1"))
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.coord.Launch(context.Background(), f.worker))

	require.NoError(t, f.coord.Disconnect(context.Background(), f.worker))

	for _, name := range []string{"a1", "b1", "b2", "c1"} {
		assert.Equal(t, 1, f.connector.Disconnects(name))
		assert.Equal(t, backend.StatusOffline, f.connector.Status(backend.Member{Name: name}))
		_, held := f.ctrl.Owner(name)
		assert.False(t, held)
		accepting, _ := f.host.AcceptingTasks(name)
		assert.True(t, accepting)
	}
}
