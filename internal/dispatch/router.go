package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Iron-Ham/compound/internal/backend"
	"github.com/Iron-Ham/compound/internal/composition"
	"github.com/Iron-Ham/compound/internal/compound"
	"github.com/Iron-Ham/compound/internal/config"
	"github.com/Iron-Ham/compound/internal/errors"
	"github.com/Iron-Ham/compound/internal/event"
	"github.com/Iron-Ham/compound/internal/host"
	"github.com/Iron-Ham/compound/internal/logging"
	"github.com/Iron-Ham/compound/internal/workspace"
)

// Request is one dispatch directive.
type Request struct {
	JobID string
	// Node is the node the enclosing work runs on. Empty means take it
	// from the context (see host.WithNode).
	Node      string
	Role      string
	Ordinal   int               // 0 = every member of the role
	Env       map[string]string // ambient environment
	Workspace string            // ambient workspace
}

// Router resolves dispatch requests against the known compound workers.
type Router struct {
	directory  *compound.Directory
	workspaces workspace.Provider
	outOfRange string
	maxOrdinal int
	bus        *event.Bus
	logger     *logging.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithOutOfRange sets what an ordinal past the end of the role does:
// config.OutOfRangeSucceed (the default) or config.OutOfRangeFail.
func WithOutOfRange(policy string) Option {
	return func(r *Router) { r.outOfRange = policy }
}

// WithMaxOrdinal rejects ordinals above n. 0 means unbounded.
func WithMaxOrdinal(n int) Option {
	return func(r *Router) { r.maxOrdinal = n }
}

// WithBus publishes dispatch.completed events to bus.
func WithBus(bus *event.Bus) Option {
	return func(r *Router) { r.bus = bus }
}

// WithLogger sets the router logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// NewRouter creates a Router.
func NewRouter(directory *compound.Directory, workspaces workspace.Provider, opts ...Option) *Router {
	r := &Router{
		directory:  directory,
		workspaces: workspaces,
		outOfRange: config.OutOfRangeSucceed,
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch runs step as req directs and reports the combined result. When
// it returns false the error says why.
func (r *Router) Dispatch(ctx context.Context, req Request, step Step) (bool, error) {
	if req.Ordinal < 0 || (r.maxOrdinal > 0 && req.Ordinal > r.maxOrdinal) {
		return false, errors.NewValidationError("ordinal out of bounds").WithField("ordinal").WithValue(req.Ordinal)
	}

	nodeName := req.Node
	if nodeName == "" {
		nodeName, _ = host.NodeFromContext(ctx)
	}

	id := uuid.NewString()
	log := r.logger.With("dispatch_id", id, "node", nodeName, "role", req.Role, "ordinal", req.Ordinal)
	role := composition.Role(req.Role)
	base := Execution{
		DispatchID: id,
		JobID:      req.JobID,
		Node:       nodeName,
		Role:       role,
		Workspace:  req.Workspace,
		Env:        NewEnvironment(req.Env),
		Log:        log,
	}

	switch n := r.directory.Resolve(nodeName).(type) {
	case compound.Compound:
		return r.dispatchCompound(ctx, n.Worker, req, base, step)
	default:
		log.Debug("not a compound worker, running in place")
		ok, err := runStep(ctx, step, base)
		r.publish(id, "", req, nil, ok)
		return ok, wrapStepErr(ok, err, "", req, nil)
	}
}

func (r *Router) dispatchCompound(ctx context.Context, w *compound.Worker, req Request, base Execution, step Step) (bool, error) {
	log := base.Log.WithWorker(w.Name())
	base.Log = log
	members := w.Registry().Members(base.Role)

	if base.Role.IsRoot() || len(members) == 0 {
		log.Info("running on compound root")
		ok, err := runStep(ctx, step, base)
		r.publish(base.DispatchID, w.Name(), req, nil, ok)
		return ok, wrapStepErr(ok, err, w.Name(), req, nil)
	}

	success := true
	var matched, failed []string
	var errs []error
	for i, m := range members {
		ordinal := i + 1
		if req.Ordinal != 0 && req.Ordinal != ordinal {
			continue
		}
		matched = append(matched, m.Name)

		ok, err := r.runOnMember(ctx, step, base, m, ordinal)
		if !ok {
			failed = append(failed, m.Name)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", m.Name, err))
			}
		}
		success = success && ok
	}

	if len(matched) == 0 {
		if r.outOfRange == config.OutOfRangeFail {
			r.publish(base.DispatchID, w.Name(), req, nil, false)
			return false, errors.NewDispatchError(
				fmt.Sprintf("role %s has %d members", req.Role, len(members)), errors.ErrOrdinalOutOfRange).
				WithWorker(w.Name()).WithRole(req.Role).WithOrdinal(req.Ordinal)
		}
		log.Warn("ordinal matched no member, treating as success", "members", len(members))
	}

	r.publish(base.DispatchID, w.Name(), req, matched, success)
	if success {
		return true, nil
	}
	cause := errors.Join(append([]error{errors.ErrStepFailed}, errs...)...)
	return false, errors.NewDispatchError("step failed on some members", cause).
		WithWorker(w.Name()).WithRole(req.Role).WithOrdinal(req.Ordinal).WithMembers(failed...)
}

// runOnMember prepares the member's workspace and runs step there.
func (r *Router) runOnMember(ctx context.Context, step Step, base Execution, m backend.Member, ordinal int) (bool, error) {
	log := base.Log.WithMember(m.Name)

	lease, err := r.workspaces.PrepareWorkspace(ctx, m, base.JobID)
	if err != nil {
		log.Error("could not prepare workspace", "error", err)
		return false, err
	}
	defer lease.Release()

	exec := base
	exec.Node = m.Name
	exec.Ordinal = ordinal
	exec.Member = &m
	exec.Workspace = lease.Path
	exec.Env = base.Env.With(WorkspaceVar, lease.Path)
	exec.Log = log

	log.Info("running step on member", "workspace", lease.Path)
	ok, err := runStep(ctx, step, exec)
	if !ok {
		log.Warn("step failed on member", "error", err)
	}
	return ok, err
}

// runStep runs step and folds an error into failure.
func runStep(ctx context.Context, step Step, exec Execution) (bool, error) {
	ok, err := step.Run(ctx, exec)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func wrapStepErr(ok bool, err error, worker string, req Request, members []string) error {
	if ok {
		return nil
	}
	cause := errors.ErrStepFailed
	if err != nil {
		cause = errors.Join(errors.ErrStepFailed, err)
	}
	return errors.NewDispatchError("step failed", cause).
		WithWorker(worker).WithRole(req.Role).WithOrdinal(req.Ordinal).WithMembers(members...)
}

func (r *Router) publish(id, worker string, req Request, members []string, ok bool) {
	r.bus.Publish(event.NewDispatchCompletedEvent(id, worker, req.Role, req.Ordinal, members, ok))
}
