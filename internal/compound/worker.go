package compound

import (
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/compound/internal/composition"
	"github.com/Iron-Ham/compound/internal/host"
)

// DefaultRootSuffix is appended to the root member's directory to form the
// compound worker's own root path.
const DefaultRootSuffix = "compound-root"

// State is the lifecycle state of a compound worker.
type State int

const (
	// StateAssembled means the registry is sealed but nothing is connected.
	StateAssembled State = iota
	// StateLaunching means satellites are being connected.
	StateLaunching
	// StateOnline means every member and the root are connected.
	StateOnline
	// StateLaunchFailed means a satellite did not come online; the root was
	// never connected and the worker must be torn down.
	StateLaunchFailed
	// StateTerminating means teardown has started.
	StateTerminating
	// StateTerminated means every member has been handed back.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAssembled:
		return "assembled"
	case StateLaunching:
		return "launching"
	case StateOnline:
		return "online"
	case StateLaunchFailed:
		return "launch_failed"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Worker is one compound worker. It exclusively owns its registry.
type Worker struct {
	name        string
	label       string
	composition string
	rootSuffix  string
	registry    *Registry
	createdAt   time.Time

	mu    sync.Mutex
	state State

	envOnce sync.Once
	env     map[string]string
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithLabel sets the label the worker advertises to the host.
func WithLabel(label string) WorkerOption {
	return func(w *Worker) { w.label = label }
}

// WithComposition records the composition the worker was built from.
func WithComposition(name string) WorkerOption {
	return func(w *Worker) { w.composition = name }
}

// WithRootSuffix overrides DefaultRootSuffix.
func WithRootSuffix(suffix string) WorkerOption {
	return func(w *Worker) {
		if suffix != "" {
			w.rootSuffix = suffix
		}
	}
}

// NewWorker wraps a sealed registry.
func NewWorker(name string, registry *Registry, opts ...WorkerOption) (*Worker, error) {
	if !registry.Sealed() {
		return nil, fmt.Errorf("worker %s: registry is not sealed", name)
	}
	w := &Worker{
		name:       name,
		rootSuffix: DefaultRootSuffix,
		registry:   registry,
		createdAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Name returns the worker name.
func (w *Worker) Name() string { return w.name }

// Label returns the label the worker advertises.
func (w *Worker) Label() string { return w.label }

// Composition returns the composition name, empty for manual assembly.
func (w *Worker) Composition() string { return w.composition }

// Registry returns the member registry.
func (w *Worker) Registry() *Registry { return w.registry }

// CreatedAt returns when the worker was assembled.
func (w *Worker) CreatedAt() time.Time { return w.createdAt }

// RootPath is the root member's directory joined with the root suffix.
func (w *Worker) RootPath() string {
	root, _ := w.registry.Root()
	return path.Join(root.RootDir, w.rootSuffix)
}

// Node is the host record for the worker itself.
func (w *Worker) Node() host.Node {
	var labels []string
	if w.label != "" {
		labels = []string{w.label}
	}
	return host.Node{
		Name:    w.name,
		Labels:  labels,
		RootDir: w.RootPath(),
		Slots:   1,
	}
}

// State returns the lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SetState moves the worker to s unconditionally.
func (w *Worker) SetState(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}

// BeginTermination moves the worker to StateTerminating and reports whether
// this call did so. It returns false once teardown has started.
func (w *Worker) BeginTermination() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateTerminating || w.state == StateTerminated {
		return false
	}
	w.state = StateTerminating
	return true
}

// Environment returns the variables describing the worker to jobs running
// on it. They are computed on first use and cached.
func (w *Worker) Environment() map[string]string {
	w.envOnce.Do(func() {
		env := map[string]string{"COMPOUND_NAME": w.name}
		if root, ok := w.registry.Root(); ok {
			env["COMPOUND_ROOT"] = root.Name
		}

		var roles []string
		for _, role := range w.registry.Roles() {
			if role.IsRoot() {
				continue
			}
			roles = append(roles, role.String())
			members := w.registry.Members(role)
			key := envKey(role)
			env[key+"_COUNT"] = fmt.Sprint(len(members))
			for i, m := range members {
				env[fmt.Sprintf("%s_%d", key, i+1)] = m.Name
			}
		}
		env["COMPOUND_ROLES"] = strings.Join(roles, ",")
		w.env = env
	})

	out := make(map[string]string, len(w.env))
	for k, v := range w.env {
		out[k] = v
	}
	return out
}

func envKey(role composition.Role) string {
	return "COMPOUND_" + strings.ToUpper(role.String())
}
