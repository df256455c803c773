package launch

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/compound/internal/backend"
	"github.com/Iron-Ham/compound/internal/compound"
	"github.com/Iron-Ham/compound/internal/errors"
	"github.com/Iron-Ham/compound/internal/event"
	"github.com/Iron-Ham/compound/internal/exclusivity"
	"github.com/Iron-Ham/compound/internal/logging"
	"github.com/Iron-Ham/compound/internal/workpool"
)

// Coordinator connects and disconnects compound workers.
type Coordinator struct {
	pool        *workpool.Pool
	connector   backend.Connector
	exclusivity *exclusivity.Controller
	bus         *event.Bus
	logger      *logging.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBus publishes launch events to bus.
func WithBus(bus *event.Bus) Option {
	return func(c *Coordinator) { c.bus = bus }
}

// WithLogger sets the coordinator logger. It is also the log sink handed
// to the connector.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New creates a Coordinator.
func New(pool *workpool.Pool, connector backend.Connector, ctrl *exclusivity.Controller, opts ...Option) *Coordinator {
	c := &Coordinator{
		pool:        pool,
		connector:   connector,
		exclusivity: ctrl,
		logger:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// memberOutcome is what a satellite task reports.
type memberOutcome struct {
	member string
	online bool
}

// Launch connects every satellite of w, then its root. If any satellite
// fails, the root is not connected, w is left in StateLaunchFailed and a
// LaunchError listing the failed members is returned. Tearing w down is
// then up to the caller.
func (c *Coordinator) Launch(ctx context.Context, w *compound.Worker) error {
	log := c.logger.WithWorker(w.Name())
	w.SetState(compound.StateLaunching)

	satellites := w.Registry().Satellites()
	tasks := make([]workpool.Task[memberOutcome], len(satellites))
	for i, m := range satellites {
		tasks[i] = func(ctx context.Context) (memberOutcome, error) {
			return c.launchMember(ctx, w.Name(), m, log)
		}
	}

	var failed []string
	var errs []error
	for i, res := range workpool.Run(ctx, c.pool, tasks) {
		name := satellites[i].Name
		switch {
		case res.Err != nil:
			log.Error("member launch failed", "member", name, "error", res.Err)
			failed = append(failed, name)
			errs = append(errs, res.Err)
		case !res.Value.online:
			log.Warn("member did not come online", "member", name)
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		log.Warn("some members failed to come online, not launching root", "failed", failed)
		return c.fail(w, failed, errors.Join(append([]error{errors.ErrConnectFailed}, errs...)...))
	}

	root, _ := w.Registry().Root()
	log.Info("launching root", "member", root.Name, "satellites", len(satellites))
	online, err := c.connector.Connect(ctx, root, log.WithMember(root.Name))
	if err != nil || !online {
		if err == nil {
			err = errors.ErrConnectFailed
		}
		return c.fail(w, []string{root.Name}, err)
	}
	if _, err := c.exclusivity.Occupy(root.Name, w.Name()); err != nil {
		return c.fail(w, []string{root.Name}, err)
	}

	w.SetState(compound.StateOnline)
	log.Info("compound worker online", "members", w.Registry().Len())
	c.bus.Publish(event.NewLaunchedEvent(w.Name(), w.Registry().Len()))
	return nil
}

// launchMember connects one satellite unless it is already connecting or
// online, then occupies it for owner either way.
func (c *Coordinator) launchMember(ctx context.Context, owner string, m backend.Member, log *logging.Logger) (memberOutcome, error) {
	out := memberOutcome{member: m.Name}
	mlog := log.WithMember(m.Name)

	switch status := c.connector.Status(m); status {
	case backend.StatusConnecting, backend.StatusOnline:
		mlog.Info("member already running", "status", status.String())
		if _, err := c.exclusivity.Occupy(m.Name, owner); err != nil {
			return out, err
		}
		out.online = true
		return out, nil
	}

	mlog.Info("launching member")
	online, err := c.connector.Connect(ctx, m, mlog)
	if err != nil {
		return out, fmt.Errorf("connect %s: %w", m.Name, err)
	}
	if _, err := c.exclusivity.Occupy(m.Name, owner); err != nil {
		return out, err
	}
	out.online = online
	return out, nil
}

func (c *Coordinator) fail(w *compound.Worker, failed []string, cause error) error {
	w.SetState(compound.StateLaunchFailed)
	c.bus.Publish(event.NewLaunchFailedEvent(w.Name(), failed))
	return errors.NewLaunchError("compound worker did not come online", cause).
		WithWorker(w.Name()).WithMembers(failed...)
}

// Disconnect releases and disconnects every member of w, root included.
// Each member is attempted; failures are logged and returned joined.
func (c *Coordinator) Disconnect(ctx context.Context, w *compound.Worker) error {
	log := c.logger.WithWorker(w.Name())

	var errs []error
	for _, m := range w.Registry().All() {
		mlog := log.WithMember(m.Name)
		if err := c.exclusivity.Release(m.Name, w.Name()); err != nil {
			mlog.Warn("release on disconnect failed", "error", err)
			errs = append(errs, err)
		}
		if err := c.connector.Disconnect(ctx, m, mlog); err != nil {
			mlog.Warn("disconnect failed", "error", err)
			errs = append(errs, errors.NewCleanupError("disconnect member", err).
				WithWorker(w.Name()).WithMember(m.Name).WithAction("disconnect"))
		}
	}
	return errors.Join(errs...)
}
