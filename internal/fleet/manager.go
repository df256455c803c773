package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/compound/internal/backend"
	"github.com/Iron-Ham/compound/internal/composition"
	"github.com/Iron-Ham/compound/internal/compound"
	"github.com/Iron-Ham/compound/internal/config"
	"github.com/Iron-Ham/compound/internal/dispatch"
	"github.com/Iron-Ham/compound/internal/errors"
	"github.com/Iron-Ham/compound/internal/event"
	"github.com/Iron-Ham/compound/internal/exclusivity"
	"github.com/Iron-Ham/compound/internal/host"
	"github.com/Iron-Ham/compound/internal/launch"
	"github.com/Iron-Ham/compound/internal/logging"
	"github.com/Iron-Ham/compound/internal/provision"
	"github.com/Iron-Ham/compound/internal/teardown"
	"github.com/Iron-Ham/compound/internal/workpool"
	"github.com/Iron-Ham/compound/internal/workspace"
)

// Manager runs compound workers for one fleet configuration.
type Manager struct {
	mu  sync.RWMutex
	cfg *config.Config

	logger     *logging.Logger
	bus        *event.Bus
	hosts      host.Registry
	pool       backend.Pool
	connector  backend.Connector
	workspaces workspace.Provider
	now        func() time.Time

	directory   *compound.Directory
	workers     *workpool.Pool
	ctrl        *exclusivity.Controller
	provisioner *provision.Provisioner
	launcher    *launch.Coordinator
	router      *dispatch.Router
	terminator  *teardown.Terminator
	contributor *dispatch.Contributor
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithBus sets the event bus shared by every component.
func WithBus(bus *event.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithHost replaces the in-memory host scheduler.
func WithHost(h host.Registry) Option {
	return func(m *Manager) { m.hosts = h }
}

// WithPool replaces the static backend built from backend.nodes.
func WithPool(p backend.Pool) Option {
	return func(m *Manager) { m.pool = p }
}

// WithConnector replaces the static connector.
func WithConnector(c backend.Connector) Option {
	return func(m *Manager) { m.connector = c }
}

// WithWorkspaceProvider replaces the directory-based workspace provider.
func WithWorkspaceProvider(p workspace.Provider) Option {
	return func(m *Manager) { m.workspaces = p }
}

// WithClock sets the clock used for failure cooldowns.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New builds a Manager from cfg. The configuration is validated first.
func New(cfg *config.Config, opts ...Option) (*Manager, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", config.ValidationErrors(errs))
	}
	catalog, err := composition.FromConfig(cfg.Fleet)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:       cfg,
		logger:    logging.NopLogger(),
		directory: compound.NewDirectory(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus == nil {
		m.bus = event.NewBus(event.WithLogger(m.logger))
	}
	if m.hosts == nil {
		m.hosts = host.NewMemory()
	}
	m.ctrl = exclusivity.New(m.hosts, exclusivity.WithBus(m.bus), exclusivity.WithLogger(m.logger))
	if m.pool == nil {
		m.pool = backend.NewStatic(backend.MembersFromConfig(cfg.Backend.Nodes),
			backend.WithStaticLogger(m.logger),
			backend.WithInUse(m.held))
	}
	if m.connector == nil {
		m.connector = backend.NewStaticConnector(backend.WithFailing(failingNodes(cfg.Backend.Nodes)...))
	}
	if m.workspaces == nil {
		m.workspaces = workspace.NewDirProvider(cfg.Workspace, workspace.WithLogger(m.logger))
	}

	m.workers = workpool.New(cfg.Pool.MaxWorkers, workpool.WithLogger(m.logger))
	m.provisioner = provision.New(catalog, m.pool, m.hosts, m.directory, m.workers,
		provision.WithBus(m.bus),
		provision.WithLogger(m.logger),
		provision.WithOccupancy(m.ctrl),
		provision.WithCooldown(provision.NewCooldown(cfg.Fleet.RetryTimeout(), m.now)),
		provision.WithMaxInstances(cfg.Fleet.MaxInstances),
		provision.WithRootSuffix(cfg.Workspace.RootSuffix))
	m.launcher = launch.New(m.workers, m.connector, m.ctrl,
		launch.WithBus(m.bus), launch.WithLogger(m.logger))
	m.router = dispatch.NewRouter(m.directory, m.workspaces,
		dispatch.WithOutOfRange(cfg.Dispatch.OutOfRange),
		dispatch.WithMaxOrdinal(cfg.Dispatch.MaxOrdinal),
		dispatch.WithBus(m.bus),
		dispatch.WithLogger(m.logger))
	m.terminator = teardown.New(m.pool, m.hosts, m.ctrl, m.directory,
		teardown.WithBus(m.bus), teardown.WithLogger(m.logger))
	m.contributor = dispatch.NewContributor(m.directory)
	return m, nil
}

// held reports whether member belongs to a compound worker, dynamic or
// assembled by hand.
func (m *Manager) held(member string) bool {
	if _, ok := m.ctrl.Owner(member); ok {
		return true
	}
	_, ok := m.directory.Owner(member)
	return ok
}

func failingNodes(nodes []config.NodeConfig) []string {
	var out []string
	for _, n := range nodes {
		if n.FailConnect {
			out = append(out, n.Name)
		}
	}
	return out
}

// Config returns the configuration in effect.
func (m *Manager) Config() *config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Bus returns the event bus.
func (m *Manager) Bus() *event.Bus { return m.bus }

// Hosts returns the host registry.
func (m *Manager) Hosts() host.Registry { return m.hosts }

// Directory returns the compound workers currently known.
func (m *Manager) Directory() *compound.Directory { return m.directory }

// Catalog returns the compositions in effect.
func (m *Manager) Catalog() *composition.Catalog { return m.provisioner.Catalog() }

// Vocabulary returns the role vocabulary in effect.
func (m *Manager) Vocabulary() *composition.Vocabulary { return m.Catalog().Vocabulary() }

// CanProvision reports whether some composition serves demand.
func (m *Manager) CanProvision(demand string) bool { return m.provisioner.CanProvision(demand) }

// Provision starts provisioning a compound worker for demand.
func (m *Manager) Provision(ctx context.Context, demand string) (*provision.Planned, error) {
	return m.provisioner.Provision(ctx, demand)
}

// Launch brings w online.
func (m *Manager) Launch(ctx context.Context, w *compound.Worker) error {
	return m.launcher.Launch(ctx, w)
}

// Acquire provisions a worker for demand, waits for it and launches it.
// A worker that fails to launch is torn down before the error is returned.
// If ctx ends first, the worker is torn down once provisioning finishes.
func (m *Manager) Acquire(ctx context.Context, demand string) (*compound.Worker, error) {
	planned, err := m.Provision(ctx, demand)
	if err != nil {
		return nil, err
	}
	w, err := planned.Wait(ctx)
	if err != nil {
		go m.reap(planned)
		return nil, err
	}
	if err := m.Launch(ctx, w); err != nil {
		report := m.terminator.Terminate(ctx, w)
		m.logger.WithWorker(w.Name()).Warn("launch failed, worker torn down",
			"error", err, "cleanup_failures", len(report.Errors))
		return nil, err
	}
	return w, nil
}

// reap tears down the worker of an attempt nobody is waiting for anymore.
func (m *Manager) reap(planned *provision.Planned) {
	<-planned.Done()
	w, err := planned.Wait(context.Background())
	if err != nil {
		return
	}
	report := m.terminator.Terminate(context.Background(), w)
	m.logger.WithWorker(w.Name()).Warn("caller stopped waiting, worker torn down",
		"cleanup_failures", len(report.Errors))
}

// Dispatch routes step per req.
func (m *Manager) Dispatch(ctx context.Context, req dispatch.Request, step dispatch.Step) (bool, error) {
	return m.router.Dispatch(ctx, req, step)
}

// Finalize is the termination directive: it tears down the compound worker
// behind node when outcome is success.
func (m *Manager) Finalize(ctx context.Context, node string, outcome teardown.Outcome) teardown.Report {
	return m.terminator.Finalize(ctx, node, outcome)
}

// Terminate tears w down regardless of any job outcome.
func (m *Manager) Terminate(ctx context.Context, w *compound.Worker) teardown.Report {
	return m.terminator.Terminate(ctx, w)
}

// Disconnect releases and disconnects every member of w.
func (m *Manager) Disconnect(ctx context.Context, w *compound.Worker) error {
	return m.launcher.Disconnect(ctx, w)
}

// JobEnvironment returns the compound worker variables for a job running
// on node, or nil on plain nodes.
func (m *Manager) JobEnvironment(node string) map[string]string {
	return m.contributor.Environment(node)
}

// Assemble builds a compound worker by hand from nodes the host already
// knows, occupies every member and registers the worker.
func (m *Manager) Assemble(name, label string, assignments []compound.Assignment) (*compound.Worker, error) {
	opts := []compound.AssemblerOption{compound.WithVocabulary(m.Vocabulary())}
	if inv, ok := m.pool.(backend.Inventory); ok {
		opts = append(opts, compound.WithInventory(inv))
	}
	assembler := compound.NewAssembler(m.directory, m.hosts, opts...)

	w, err := assembler.Assemble(name, assignments,
		compound.WithLabel(label),
		compound.WithRootSuffix(m.Config().Workspace.RootSuffix))
	if err != nil {
		return nil, err
	}

	var occupied []string
	for _, member := range w.Registry().All() {
		if _, err := m.ctrl.Occupy(member.Name, name); err != nil {
			for _, o := range occupied {
				_ = m.ctrl.Release(o, name)
			}
			return nil, errors.NewConfigurationError("occupy member", err).WithComposition(name)
		}
		occupied = append(occupied, member.Name)
	}

	if err := m.directory.Add(w); err != nil {
		_ = m.ctrl.ReleaseAll(name)
		return nil, err
	}
	if err := m.hosts.RegisterNode(w.Node()); err != nil {
		m.directory.Remove(name)
		_ = m.ctrl.ReleaseAll(name)
		return nil, err
	}
	w.SetState(compound.StateOnline)
	m.logger.WithWorker(name).Info("compound worker assembled", "members", compound.Names(w.Registry().All()))
	return w, nil
}

// Reload applies cfg to later operations. The role vocabulary gets a new
// version; workers that already exist are not touched.
func (m *Manager) Reload(cfg *config.Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", config.ValidationErrors(errs))
	}
	catalog, err := m.Catalog().Reload(cfg.Fleet)
	if err != nil {
		return err
	}

	m.provisioner.SetCatalog(catalog)
	m.provisioner.SetMaxInstances(cfg.Fleet.MaxInstances)
	m.provisioner.Cooldown().SetDuration(cfg.Fleet.RetryTimeout())
	m.workers.SetMaxWorkers(cfg.Pool.MaxWorkers)

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()

	m.logger.Info("configuration reloaded",
		"vocabulary_version", catalog.Vocabulary().Version(),
		"compositions", len(catalog.Specs()))
	return nil
}

// WatchConfig reloads the manager whenever the config file changes.
func (m *Manager) WatchConfig() {
	config.Watch(func(e fsnotify.Event, cfg *config.Config, err error) {
		log := m.logger.With("file", e.Name, "op", e.Op.String())
		if err != nil {
			log.Error("config reload failed", "error", err)
			return
		}
		if err := m.Reload(cfg); err != nil {
			log.Error("config reload rejected", "error", err)
		}
	})
}
