package dispatch

import (
	"context"

	"github.com/Iron-Ham/compound/internal/backend"
	"github.com/Iron-Ham/compound/internal/composition"
	"github.com/Iron-Ham/compound/internal/logging"
)

// Execution is what one run of a step sees.
type Execution struct {
	DispatchID string
	JobID      string
	Node       string // node the step runs on
	Role       composition.Role
	Ordinal    int             // 1-based; 0 when running on the current node
	Member     *backend.Member // nil when running on the current node
	Workspace  string
	Env        Environment
	Log        *logging.Logger
}

// OnMember reports whether the execution targets a satellite member.
func (e Execution) OnMember() bool { return e.Member != nil }

// Step is the wrapped unit of work.
type Step interface {
	// Run executes the work and reports whether it succeeded. An error
	// also counts as failure.
	Run(ctx context.Context, exec Execution) (bool, error)
}

// StepFunc adapts a function to Step.
type StepFunc func(ctx context.Context, exec Execution) (bool, error)

// Run calls f.
func (f StepFunc) Run(ctx context.Context, exec Execution) (bool, error) { return f(ctx, exec) }
