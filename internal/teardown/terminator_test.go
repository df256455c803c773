package teardown

import (
	"context"
	"sync"
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
)

type recordingPool struct {
	mu           sync.Mutex
	failOn       map[string]error
	terminated   []string
	deregistered []string
}

func (p *recordingPool) RequestResources(context.Context, composition.Selector, int) ([]backend.Member, error) {
	return nil, nil
}

func (p *recordingPool) Terminate(_ context.Context, m backend.Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = append(p.terminated, m.Name)
	return p.failOn[m.Name]
}

func (p *recordingPool) Deregister(_ context.Context, m backend.Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deregistered = append(p.deregistered, m.Name)
	return p.failOn[m.Name]
}

type fixture struct {
	term   *Terminator
	pool   *recordingPool
	hosts  *host.Memory
	ctrl   *exclusivity.Controller
	dir    *compound.Directory
	worker *compound.Worker
	events []event.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		pool:  &recordingPool{failOn: map[string]error{}},
		hosts: host.NewMemory(),
		dir:   compound.NewDirectory(),
	}
	f.ctrl = exclusivity.New(f.hosts)

	reg := compound.NewRegistry()
	add := func(role composition.Role, m backend.Member) {
		require.NoError(t, f.hosts.RegisterNode(m.Node()))
		require.NoError(t, reg.Add(role, m))
		_, err := f.ctrl.Occupy(m.Name, "Dynamic-compound-1")
		require.NoError(t, err)
	}
	add(composition.Root, backend.Member{Name: "a1", RootDir: "/srv/a1", Owned: true})
	add("db", backend.Member{Name: "b1", RootDir: "/srv/b1"})
	add("db", backend.Member{Name: "b2", RootDir: "/srv/b2", Owned: true})
	require.NoError(t, reg.Seal())

	w, err := compound.NewWorker("Dynamic-compound-1", reg)
	require.NoError(t, err)
	require.NoError(t, f.dir.Add(w))
	require.NoError(t, f.hosts.RegisterNode(w.Node()))
	f.worker = w

	bus := event.NewBus()
	bus.SubscribeAll(func(e event.Event) { f.events = append(f.events, e) })
	f.term = New(f.pool, f.hosts, f.ctrl, f.dir, WithBus(bus))
	return f
}

func TestTerminate(t *testing.T) {
	f := newFixture(t)

	report := f.term.Terminate(context.Background(), f.worker)
	assert.False(t, report.Failed())
	assert.False(t, report.Skipped)
	require.Len(t, report.Members, 3)

	assert.ElementsMatch(t, []string{"a1", "b2"}, f.pool.terminated)
	assert.Equal(t, []string{"b1"}, f.pool.deregistered)

	for _, name := range []string{"a1", "b1", "b2"} {
		_, held := f.ctrl.Owner(name)
		assert.False(t, held, "%s still occupied", name)
		_, registered := f.hosts.Node(name)
		assert.False(t, registered, "%s still registered", name)
	}
	_, registered := f.hosts.Node(f.worker.Name())
	assert.False(t, registered)
	assert.Equal(t, 0, f.dir.Len())
	assert.Equal(t, 0, f.worker.Registry().Len())
	assert.Equal(t, compound.StateTerminated, f.worker.State())

	require.Len(t, f.events, 4) // three releases, one termination
	last := f.events[3].(event.TerminatedEvent)
	assert.Equal(t, 3, last.Members)
	assert.Equal(t, 0, last.Failures)
}

func TestTerminate_BestEffort(t *testing.T) {
	f := newFixture(t)
	f.pool.failOn["a1"] = errors.New("cloud API down")

	report := f.term.Terminate(context.Background(), f.worker)

	assert.True(t, report.Failed())
	require.Len(t, report.Errors, 1)
	var cleanupErr *errors.CleanupError
	require.ErrorAs(t, report.Errors[0], &cleanupErr)
	assert.Equal(t, "a1", cleanupErr.Member)

	// The other members and the worker are still handled.
	assert.Contains(t, f.pool.terminated, "b2")
	assert.Contains(t, f.pool.deregistered, "b1")
	_, registered := f.hosts.Node(f.worker.Name())
	assert.False(t, registered)
}

func TestTerminate_LeavesMembersHeldElsewhere(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.Release("b1", "Dynamic-compound-1"))
	_, err := f.ctrl.Occupy("b1", "manual")
	require.NoError(t, err)

	report := f.term.Terminate(context.Background(), f.worker)

	assert.False(t, report.Failed())
	var actions []string
	for _, m := range report.Members {
		actions = append(actions, m.Member+":"+m.Action)
	}
	assert.Contains(t, actions, "b1:skip")
	assert.NotContains(t, f.pool.deregistered, "b1")
	owner, held := f.ctrl.Owner("b1")
	assert.True(t, held)
	assert.Equal(t, "manual", owner)
	_, registered := f.hosts.Node("b1")
	assert.True(t, registered, "b1 removed from host while held by another worker")
}

func TestTerminate_Idempotent(t *testing.T) {
	f := newFixture(t)

	f.term.Terminate(context.Background(), f.worker)
	again := f.term.Terminate(context.Background(), f.worker)

	assert.True(t, again.Skipped)
	assert.Len(t, f.pool.terminated, 2)
	assert.Len(t, f.pool.deregistered, 1)
}

func TestFinalize(t *testing.T) {
	tests := []struct {
		name        string
		node        string
		outcome     Outcome
		wantSkipped bool
	}{
		{"success on compound worker", "Dynamic-compound-1", OutcomeSuccess, false},
		{"failed job leaves worker", "Dynamic-compound-1", OutcomeFailure, true},
		{"unstable job leaves worker", "Dynamic-compound-1", OutcomeUnstable, true},
		{"plain node", "b1", OutcomeSuccess, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			report := f.term.Finalize(context.Background(), tt.node, tt.outcome)

			assert.Equal(t, tt.wantSkipped, report.Skipped)
			_, exists := f.dir.Get("Dynamic-compound-1")
			assert.Equal(t, tt.wantSkipped, exists)
		})
	}
}

func TestFinalize_Twice(t *testing.T) {
	f := newFixture(t)

	first := f.term.Finalize(context.Background(), "Dynamic-compound-1", OutcomeSuccess)
	second := f.term.Finalize(context.Background(), "Dynamic-compound-1", OutcomeSuccess)

	assert.False(t, first.Skipped)
	assert.True(t, second.Skipped)
	assert.Len(t, f.pool.terminated, 2)
}
