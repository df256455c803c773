package provision

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/compound/internal/backend"
	"github.com/Iron-Ham/compound/internal/composition"
	"github.com/Iron-Ham/compound/internal/compound"
	"github.com/Iron-Ham/compound/internal/errors"
	"github.com/Iron-Ham/compound/internal/event"
	"github.com/Iron-Ham/compound/internal/host"
	"github.com/Iron-Ham/compound/internal/logging"
	"github.com/Iron-Ham/compound/internal/workpool"
)

// DefaultRetryTimeout is the cooldown after a failed attempt.
const DefaultRetryTimeout = 300 * time.Second

// Provisioner builds compound workers from backend resources.
type Provisioner struct {
	catalog   atomic.Pointer[composition.Catalog]
	pool      backend.Pool
	hosts     host.Registry
	directory *compound.Directory
	workers   *workpool.Pool
	cooldown  *Cooldown
	occupancy Occupancy

	maxInstances atomic.Int64 // 0 = unlimited
	rootSuffix   string

	mu       sync.Mutex
	inFlight int

	bus    *event.Bus
	logger *logging.Logger
}

// Occupancy reports which members are held outside the directory, such as
// by a compound worker assembled by hand.
type Occupancy interface {
	Owner(member string) (string, bool)
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithBus publishes provisioning events to bus.
func WithBus(bus *event.Bus) Option {
	return func(p *Provisioner) { p.bus = bus }
}

// WithLogger sets the provisioner logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Provisioner) { p.logger = logger }
}

// WithCooldown replaces the default cooldown (DefaultRetryTimeout, wall
// clock).
func WithCooldown(c *Cooldown) Option {
	return func(p *Provisioner) { p.cooldown = c }
}

// WithOccupancy makes the provisioner refuse members that o reports held.
func WithOccupancy(o Occupancy) Option {
	return func(p *Provisioner) { p.occupancy = o }
}

// WithMaxInstances caps the number of compound workers that may exist or be
// in flight at once. 0 means unlimited.
func WithMaxInstances(n int) Option {
	return func(p *Provisioner) { p.maxInstances.Store(int64(max(n, 0))) }
}

// WithRootSuffix sets the suffix of each worker's root path.
func WithRootSuffix(suffix string) Option {
	return func(p *Provisioner) { p.rootSuffix = suffix }
}

// New creates a Provisioner. Acquired members are registered in hosts and
// finished workers are added to directory.
func New(
	catalog *composition.Catalog,
	pool backend.Pool,
	hosts host.Registry,
	directory *compound.Directory,
	workers *workpool.Pool,
	opts ...Option,
) *Provisioner {
	p := &Provisioner{
		pool:      pool,
		hosts:     hosts,
		directory: directory,
		workers:   workers,
		logger:    logging.NopLogger(),
	}
	p.catalog.Store(catalog)
	for _, opt := range opts {
		opt(p)
	}
	if p.cooldown == nil {
		p.cooldown = NewCooldown(DefaultRetryTimeout, nil)
	}
	return p
}

// Catalog returns the catalog currently in use.
func (p *Provisioner) Catalog() *composition.Catalog { return p.catalog.Load() }

// SetCatalog swaps the catalog used by later attempts. Attempts already
// running keep the composition they matched.
func (p *Provisioner) SetCatalog(c *composition.Catalog) { p.catalog.Store(c) }

// SetMaxInstances changes the worker cap.
func (p *Provisioner) SetMaxInstances(n int) { p.maxInstances.Store(int64(max(n, 0))) }

// Cooldown returns the failure cooldown.
func (p *Provisioner) Cooldown() *Cooldown { return p.cooldown }

// CanProvision reports whether some composition matches demand. It ignores
// cooldown and capacity.
func (p *Provisioner) CanProvision(demand string) bool {
	return p.Catalog().CanProvision(demand)
}

// Provision starts building a compound worker for demand and returns
// without waiting for the backend. A declined demand returns a nil Planned
// and an error for which errors.IsDeclined is true.
func (p *Provisioner) Provision(ctx context.Context, demand string) (*Planned, error) {
	spec, ok := p.Catalog().Match(demand)
	if !ok {
		p.logger.Warn("no composition matches demand", "demand", demand)
		return nil, p.decline(demand, "", errors.NewConfigurationError(
			"no composition matches demand", errors.ErrNoMatchingComposition).WithDemand(demand))
	}

	log := p.logger.WithComposition(spec.Name())

	if left := p.cooldown.Remaining(spec.Name()); left > 0 {
		log.Warn("composition had problems recently, waiting out cooldown",
			"demand", demand, "remaining", left.Round(time.Second).String())
		return nil, p.decline(demand, spec.Name(), errors.NewDeclinedError(
			fmt.Sprintf("cooling down for another %s", left.Round(time.Second)), errors.ErrCooldownActive).
			WithComposition(spec.Name()).WithDemand(demand))
	}

	if !p.reserve() {
		log.Warn("compound worker cap reached", "demand", demand, "max_instances", p.maxInstances.Load())
		return nil, p.decline(demand, spec.Name(), errors.NewDeclinedError(
			fmt.Sprintf("%d compound workers already exist", p.maxInstances.Load()), errors.ErrCapacityReached).
			WithComposition(spec.Name()).WithDemand(demand))
	}

	name := p.directory.NextName()
	planned := newPlanned(name, spec)
	log.Info("provisioning compound worker", "demand", demand, "worker", name, "members", spec.Size())

	go func() {
		w, err := p.build(ctx, spec, name, demand)
		p.release()
		planned.resolve(w, err)
	}()
	return planned, nil
}

func (p *Provisioner) decline(demand, comp string, err error) error {
	p.bus.Publish(event.NewDeclinedEvent(demand, comp, err.Error()))
	return err
}

// reserve counts an attempt against the cap.
func (p *Provisioner) reserve() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limit := p.maxInstances.Load(); limit > 0 && int64(p.directory.Len()+p.inFlight) >= limit {
		return false
	}
	p.inFlight++
	return true
}

func (p *Provisioner) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight--
}

// roleOutcome is what one role request acquired. registered names the
// members this request added to the host.
type roleOutcome struct {
	entry      composition.Entry
	members    []backend.Member
	registered []string
}

// build runs the role requests, joins them all, and either assembles the
// worker or rolls back everything acquired.
func (p *Provisioner) build(ctx context.Context, spec *composition.Spec, name, demand string) (*compound.Worker, error) {
	log := p.logger.WithComposition(spec.Name()).WithWorker(name)

	entries := spec.Entries()
	tasks := make([]workpool.Task[roleOutcome], len(entries))
	for i, e := range entries {
		tasks[i] = func(ctx context.Context) (roleOutcome, error) {
			return p.requestRole(ctx, e, log.WithRole(e.Role.String()))
		}
	}
	results := workpool.Run(ctx, p.workers, tasks)

	var acquired []backend.Member
	var registered []string
	var errs []error
	for _, res := range results {
		acquired = append(acquired, res.Value.members...)
		registered = append(registered, res.Value.registered...)
		if res.Err != nil {
			role := entries[res.Index].Role.String()
			log.Error("role request failed", "role", role, "error", res.Err)
			errs = append(errs, errors.NewProvisioningError("role request failed", res.Err).
				WithComposition(spec.Name()).WithRole(role).WithWorker(name))
		}
	}

	if len(errs) > 0 {
		return nil, p.fail(ctx, spec, name, acquired, registered, errors.Join(errs...), log)
	}

	w, err := p.assemble(spec, name, results)
	if err != nil {
		return nil, p.fail(ctx, spec, name, acquired, registered, errors.NewProvisioningError("assemble compound worker", err).
			WithComposition(spec.Name()).WithWorker(name).WithRetryable(false), log)
	}

	log.Info("compound worker provisioned", "demand", demand, "members", compound.Names(w.Registry().All()))
	p.bus.Publish(event.NewProvisionedEvent(spec.Name(), name, compound.Names(w.Registry().All())))
	return w, nil
}

// requestRole asks the backend for one entry's members and registers them
// with the host. Whatever it acquired is returned even on failure. A member
// that another compound worker already holds is a conflict: it is left out
// of the outcome so rollback never touches it.
func (p *Provisioner) requestRole(ctx context.Context, e composition.Entry, log *logging.Logger) (roleOutcome, error) {
	out := roleOutcome{entry: e}

	members, err := p.pool.RequestResources(ctx, e.Selector, e.Count)
	if err != nil {
		out.members = members
		return out, fmt.Errorf("request %d x %s: %w", e.Count, e.Selector, err)
	}

	var errs []error
	for _, m := range members {
		if holder, held := p.holder(m.Name); held {
			log.WithMember(m.Name).Warn("backend returned a member held by another compound worker", "holder", holder)
			errs = append(errs, fmt.Errorf("%w: %s is held by %s", errors.ErrAlreadyOccupied, m.Name, holder))
			continue
		}
		out.members = append(out.members, m)
	}
	for _, m := range out.members {
		if err := p.hosts.RegisterNode(m.Node()); err != nil {
			errs = append(errs, fmt.Errorf("register %s: %w", m.Name, err))
			continue
		}
		out.registered = append(out.registered, m.Name)
	}
	if len(errs) > 0 {
		return out, errors.Join(errs...)
	}

	if len(members) != e.Count {
		log.Warn("backend returned wrong number of members", "got", len(members), "want", e.Count)
		return out, fmt.Errorf("%w: got %d members, want %d", errors.ErrCountMismatch, len(members), e.Count)
	}
	return out, nil
}

// holder returns the compound worker holding member, if any.
func (p *Provisioner) holder(member string) (string, bool) {
	if w, ok := p.directory.Owner(member); ok {
		return w.Name(), true
	}
	if p.occupancy != nil {
		return p.occupancy.Owner(member)
	}
	return "", false
}

func (p *Provisioner) assemble(spec *composition.Spec, name string, results []workpool.Result[roleOutcome]) (*compound.Worker, error) {
	registry := compound.NewRegistry()
	for _, res := range results {
		for _, m := range res.Value.members {
			if err := registry.Add(res.Value.entry.Role, m); err != nil {
				return nil, err
			}
		}
	}
	if err := registry.Seal(); err != nil {
		return nil, err
	}

	w, err := compound.NewWorker(name, registry,
		compound.WithLabel(spec.Selector().String()),
		compound.WithComposition(spec.Name()),
		compound.WithRootSuffix(p.rootSuffix))
	if err != nil {
		return nil, err
	}
	if err := p.directory.Add(w); err != nil {
		return nil, err
	}
	if err := p.hosts.RegisterNode(w.Node()); err != nil {
		p.directory.Remove(name)
		return nil, err
	}
	return w, nil
}

// fail starts the cooldown and rolls back every acquired member.
func (p *Provisioner) fail(ctx context.Context, spec *composition.Spec, name string, acquired []backend.Member, registered []string, cause error, log *logging.Logger) error {
	at := p.cooldown.Record(spec.Name())
	log.Error("provisioning failed, cleaning up", "members", len(acquired), "cooldown_from", at)

	rolledBack := Rollback(context.WithoutCancel(ctx), p.pool, p.hosts, acquired, registered, log)
	p.bus.Publish(event.NewProvisionFailedEvent(spec.Name(), name, cause, rolledBack))
	return cause
}

// Rollback hands each member back to the backend exactly once: owned
// members are terminated, the rest deregistered. Only the nodes named in
// registered are removed from the host. Failures are logged and the
// remaining members are still attempted. It returns the members whose
// backend release succeeded.
func Rollback(ctx context.Context, pool backend.Pool, hosts host.Registry, members []backend.Member, registered []string, log *logging.Logger) []string {
	var released []string
	seen := make(map[string]bool, len(members))
	ours := make(map[string]bool, len(registered))
	for _, name := range registered {
		ours[name] = true
	}

	for _, m := range members {
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		mlog := log.WithMember(m.Name)

		action, release := "deregister", pool.Deregister
		if m.Owned {
			action, release = "terminate", pool.Terminate
		}
		if err := release(ctx, m); err != nil {
			mlog.Warn("cleanup failed", "error", errors.NewCleanupError("return member to backend", err).
				WithMember(m.Name).WithAction(action))
		} else {
			mlog.Warn("member returned to backend", "action", action)
			released = append(released, m.Name)
		}

		if ours[m.Name] {
			if err := hosts.DeregisterNode(m.Name); err != nil {
				mlog.Warn("host deregistration failed", "error", err)
			}
		}
	}
	return released
}
