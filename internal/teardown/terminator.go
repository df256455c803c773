package teardown

import (
	"context"

	"github.com/Iron-Ham/compound/internal/backend"
	"github.com/Iron-Ham/compound/internal/compound"
	"github.com/Iron-Ham/compound/internal/errors"
	"github.com/Iron-Ham/compound/internal/event"
	"github.com/Iron-Ham/compound/internal/exclusivity"
	"github.com/Iron-Ham/compound/internal/host"
	"github.com/Iron-Ham/compound/internal/logging"
)

// Outcome is the final result of the job that ran on a worker.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeUnstable
	OutcomeFailure
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeUnstable:
		return "unstable"
	case OutcomeFailure:
		return "failure"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// MemberResult is what happened to one member.
type MemberResult struct {
	Member string
	Action string // "terminate", "deregister" or "skip"
	Err    error
}

// Report summarizes a teardown.
type Report struct {
	Worker  string
	Members []MemberResult
	// Skipped is set when nothing was torn down; Reason says why.
	Skipped bool
	Reason  string
	// Errors holds every failure, members and worker alike.
	Errors []error
}

// Failed reports whether any step failed.
func (r Report) Failed() bool { return len(r.Errors) > 0 }

// Terminator tears down compound workers.
type Terminator struct {
	pool      backend.Pool
	hosts     host.Registry
	ctrl      *exclusivity.Controller
	directory *compound.Directory
	bus       *event.Bus
	logger    *logging.Logger
}

// Option configures a Terminator.
type Option func(*Terminator)

// WithBus publishes fleet.terminated events to bus.
func WithBus(bus *event.Bus) Option {
	return func(t *Terminator) { t.bus = bus }
}

// WithLogger sets the terminator logger.
func WithLogger(logger *logging.Logger) Option {
	return func(t *Terminator) { t.logger = logger }
}

// New creates a Terminator.
func New(pool backend.Pool, hosts host.Registry, ctrl *exclusivity.Controller, directory *compound.Directory, opts ...Option) *Terminator {
	t := &Terminator{
		pool:      pool,
		hosts:     hosts,
		ctrl:      ctrl,
		directory: directory,
		logger:    logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Finalize tears down the worker behind node, but only when the job
// succeeded and node is a compound worker. Calling it again for a worker
// already torn down does nothing.
func (t *Terminator) Finalize(ctx context.Context, node string, outcome Outcome) Report {
	log := t.logger.With("node", node, "outcome", outcome.String())

	if outcome != OutcomeSuccess {
		log.Info("job has not succeeded, leaving worker as-is")
		return Report{Worker: node, Skipped: true, Reason: "job outcome is " + outcome.String()}
	}

	c, ok := t.directory.Resolve(node).(compound.Compound)
	if !ok {
		log.Info("not a compound worker, nothing to do")
		return Report{Worker: node, Skipped: true, Reason: "not a compound worker"}
	}

	log.Info("terminating compound worker")
	return t.Terminate(ctx, c.Worker)
}

// Terminate hands every member of w back and removes w from the host.
func (t *Terminator) Terminate(ctx context.Context, w *compound.Worker) Report {
	report := Report{Worker: w.Name()}
	log := t.logger.WithWorker(w.Name())

	if !w.BeginTermination() {
		log.Debug("worker already terminated")
		report.Skipped = true
		report.Reason = "already terminated"
		return report
	}

	ctx = context.WithoutCancel(ctx)
	members := w.Registry().All()
	for _, m := range members {
		res := t.terminateMember(ctx, w.Name(), m, log.WithMember(m.Name))
		report.Members = append(report.Members, res)
		if res.Err != nil {
			report.Errors = append(report.Errors, res.Err)
		}
	}

	if err := t.hosts.DeregisterNode(w.Name()); err != nil && !errors.Is(err, errors.ErrMemberNotFound) {
		log.Error("failed to remove compound worker from host", "error", err)
		report.Errors = append(report.Errors, errors.NewCleanupError("remove compound worker", err).
			WithWorker(w.Name()).WithAction("deregister"))
	}
	t.directory.Remove(w.Name())
	w.Registry().Clear()
	w.SetState(compound.StateTerminated)

	log.Info("compound worker terminated", "members", len(members), "failures", len(report.Errors))
	t.bus.Publish(event.NewTerminatedEvent(w.Name(), len(members), len(report.Errors)))
	return report
}

func (t *Terminator) terminateMember(ctx context.Context, worker string, m backend.Member, log *logging.Logger) MemberResult {
	res := MemberResult{Member: m.Name, Action: "deregister"}
	var errs []error

	if holder, ok := t.ctrl.Owner(m.Name); ok && holder != worker {
		log.Warn("member is held by another compound worker, leaving it alone", "holder", holder)
		res.Action = "skip"
		return res
	}

	if err := t.ctrl.Release(m.Name, worker); err != nil {
		log.Warn("release failed", "error", err)
		errs = append(errs, err)
	}

	release := t.pool.Deregister
	if m.Owned {
		res.Action, release = "terminate", t.pool.Terminate
	}
	if err := release(ctx, m); err != nil {
		log.Warn("returning member to backend failed", "action", res.Action, "error", err)
		errs = append(errs, errors.NewCleanupError("return member to backend", err).
			WithWorker(worker).WithMember(m.Name).WithAction(res.Action))
	} else {
		log.Info("member returned to backend", "action", res.Action)
	}

	if _, ok := t.hosts.Node(m.Name); ok {
		if err := t.hosts.DeregisterNode(m.Name); err != nil {
			log.Warn("removing member from host failed", "error", err)
			errs = append(errs, errors.NewCleanupError("remove member from host", err).
				WithWorker(worker).WithMember(m.Name).WithAction("deregister"))
		}
	}

	res.Err = errors.Join(errs...)
	return res
}
