// Package internal contains integration tests that drive the fleet packages
// together through the event bus.
package internal

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/compound/internal/config"
	"github.com/Iron-Ham/compound/internal/dispatch"
	"github.com/Iron-Ham/compound/internal/errors"
	"github.com/Iron-Ham/compound/internal/event"
	"github.com/Iron-Ham/compound/internal/fleet"
	"github.com/Iron-Ham/compound/internal/host"
	"github.com/Iron-Ham/compound/internal/teardown"
	"github.com/Iron-Ham/compound/internal/workspace"
)

// eventLog collects events from every publisher.
type eventLog struct {
	mu     sync.Mutex
	counts map[string]int
	order  []string
}

func newEventLog(bus *event.Bus) *eventLog {
	l := &eventLog{counts: make(map[string]int)}
	bus.SubscribeAll(func(e event.Event) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.counts[e.EventType()]++
		l.order = append(l.order, e.EventType())
	})
	return l
}

func (l *eventLog) count(eventType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[eventType]
}

// fleetConfig describes a "ci" composition of one root and two db members,
// with nodes enough for the given number of workers.
func fleetConfig(workers int) *config.Config {
	cfg := config.Default()
	cfg.Fleet.Roles = []string{"db"}
	cfg.Fleet.Compositions = []config.CompositionConfig{{
		Name:     "ci",
		Selector: "ci",
		Entries: []config.EntryConfig{
			{Role: config.RootRole, Selector: "runner", Count: 1},
			{Role: "db", Selector: "db", Count: 2},
		},
	}}
	for i := 1; i <= workers; i++ {
		cfg.Backend.Nodes = append(cfg.Backend.Nodes,
			config.NodeConfig{Name: fmt.Sprintf("runner-%d", i), Labels: []string{"runner"}, RootDir: "/srv/runner"},
			config.NodeConfig{Name: fmt.Sprintf("db-%da", i), Labels: []string{"db"}, RootDir: "/srv/db", Cloud: true},
			config.NodeConfig{Name: fmt.Sprintf("db-%db", i), Labels: []string{"db"}, RootDir: "/srv/db", Cloud: true},
		)
	}
	return cfg
}

func newManager(t *testing.T, cfg *config.Config) (*fleet.Manager, *host.Memory, *eventLog) {
	t.Helper()

	h := host.NewMemory()
	bus := event.NewBus()
	log := newEventLog(bus)
	m, err := fleet.New(cfg,
		fleet.WithHost(h),
		fleet.WithBus(bus),
		fleet.WithWorkspaceProvider(workspace.NewDirProvider(cfg.Workspace, workspace.WithFs(afero.NewMemMapFs()))),
	)
	if err != nil {
		t.Fatalf("fleet.New() error = %v", err)
	}
	return m, h, log
}

// TestConcurrentAcquireKeepsMembersExclusive provisions several workers at
// once and checks that no member ends up in two of them.
func TestConcurrentAcquireKeepsMembersExclusive(t *testing.T) {
	const workers = 4
	m, h, log := newManager(t, fleetConfig(workers))

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Acquire(context.Background(), "ci"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Acquire() error = %v", err)
	}

	owners := make(map[string]string)
	for _, name := range m.Directory().Names() {
		w, _ := m.Directory().Get(name)
		for _, member := range w.Registry().All() {
			if prev, ok := owners[member.Name]; ok {
				t.Errorf("member %s is in both %s and %s", member.Name, prev, name)
			}
			owners[member.Name] = name

			accepting, err := h.AcceptingTasks(member.Name)
			if err != nil || accepting {
				t.Errorf("member %s accepting = %v, err = %v; want occupied", member.Name, accepting, err)
			}
		}
	}
	if len(owners) != workers*3 {
		t.Errorf("expected %d occupied members, got %d", workers*3, len(owners))
	}
	if got := log.count(event.TypeLaunched); got != workers {
		t.Errorf("expected %d launched events, got %d", workers, got)
	}
	if got := log.count(event.TypeMemberOccupied); got != workers*3 {
		t.Errorf("expected %d occupied events, got %d", workers*3, got)
	}
}

// TestCapacityFreedByTermination checks that a finished worker makes room
// under max_instances.
func TestCapacityFreedByTermination(t *testing.T) {
	cfg := fleetConfig(2)
	cfg.Fleet.MaxInstances = 1
	m, _, log := newManager(t, cfg)
	ctx := context.Background()

	w, err := m.Acquire(ctx, "ci")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	_, err = m.Provision(ctx, "ci")
	if !errors.Is(err, errors.ErrCapacityReached) {
		t.Fatalf("Provision() at capacity error = %v, want ErrCapacityReached", err)
	}
	if !errors.IsDeclined(err) {
		t.Errorf("capacity decline should be a decline")
	}

	if report := m.Finalize(ctx, w.Name(), teardown.OutcomeSuccess); report.Failed() {
		t.Fatalf("Finalize() errors = %v", report.Errors)
	}
	if _, err := m.Acquire(ctx, "ci"); err != nil {
		t.Errorf("Acquire() after termination error = %v", err)
	}
	if got := log.count(event.TypeDeclined); got != 1 {
		t.Errorf("expected 1 declined event, got %d", got)
	}
}

// TestDispatchOnPlainNode checks that a job on an ordinary node runs its
// step in place, with no members and no workspace override.
func TestDispatchOnPlainNode(t *testing.T) {
	m, h, log := newManager(t, fleetConfig(1))
	if err := h.RegisterNode(host.Node{Name: "plain", RootDir: "/srv/plain"}); err != nil {
		t.Fatalf("RegisterNode() error = %v", err)
	}

	var runs []dispatch.Execution
	step := dispatch.StepFunc(func(_ context.Context, e dispatch.Execution) (bool, error) {
		runs = append(runs, e)
		return true, nil
	})
	ctx := host.WithNode(context.Background(), "plain")
	ok, err := m.Dispatch(ctx, dispatch.Request{JobID: "j", Role: "db", Workspace: "/ambient"}, step)
	if err != nil || !ok {
		t.Fatalf("Dispatch() = %v, %v; want true, nil", ok, err)
	}

	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].OnMember() {
		t.Errorf("run on plain node should not target a member")
	}
	if runs[0].Node != "plain" || runs[0].Workspace != "/ambient" {
		t.Errorf("run = node %q workspace %q, want plain /ambient", runs[0].Node, runs[0].Workspace)
	}
	if env := m.JobEnvironment("plain"); env != nil {
		t.Errorf("JobEnvironment(plain) = %v, want nil", env)
	}
	if got := log.count(event.TypeDispatchCompleted); got != 1 {
		t.Errorf("expected 1 dispatch event, got %d", got)
	}
}

// TestEventBusConcurrentPublish checks that members occupied from many
// goroutines all reach a wildcard subscriber.
func TestEventBusConcurrentPublish(t *testing.T) {
	bus := event.NewBus()
	log := newEventLog(bus)

	var wg sync.WaitGroup
	const publishCount = 100
	for i := 0; i < publishCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			bus.Publish(event.NewMemberOccupiedEvent(fmt.Sprintf("m-%d", id), "w", 1, false))
		}(i)
	}
	wg.Wait()

	if got := log.count(event.TypeMemberOccupied); got != publishCount {
		t.Errorf("expected %d events, got %d", publishCount, got)
	}
}
