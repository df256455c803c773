package provision

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/compound/internal/composition"
	"github.com/Iron-Ham/compound/internal/compound"
)

// Planned is a compound worker that is still being provisioned.
type Planned struct {
	name        string
	composition string
	size        int
	done        chan struct{}
	worker      *compound.Worker
	err         error
}

func newPlanned(name string, spec *composition.Spec) *Planned {
	return &Planned{
		name:        name,
		composition: spec.Name(),
		size:        spec.Size(),
		done:        make(chan struct{}),
	}
}

func (p *Planned) resolve(w *compound.Worker, err error) {
	p.worker, p.err = w, err
	close(p.done)
}

// Name is the name the worker will have.
func (p *Planned) Name() string { return p.name }

// Composition is the composition being provisioned.
func (p *Planned) Composition() string { return p.composition }

// Size is the number of members requested, root included.
func (p *Planned) Size() int { return p.size }

// Done is closed once the attempt has finished.
func (p *Planned) Done() <-chan struct{} { return p.done }

// Wait blocks until the attempt finishes or ctx is done. Giving up on ctx
// does not stop the attempt.
func (p *Planned) Wait(ctx context.Context) (*compound.Worker, error) {
	select {
	case <-p.done:
		return p.worker, p.err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for %s: %w", p.name, ctx.Err())
	}
}
