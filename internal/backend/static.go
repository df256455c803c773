package backend

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Iron-Ham/compound/internal/composition"
	"github.com/Iron-Ham/compound/internal/config"
	"github.com/Iron-Ham/compound/internal/errors"
	"github.com/Iron-Ham/compound/internal/logging"
)

// Static is a Pool over a fixed list of configured machines. A machine is
// handed out at most once until it is terminated or deregistered.
type Static struct {
	mu           sync.Mutex
	members      []Member // configuration order
	allocated    map[string]bool
	terminated   map[string]int
	deregistered map[string]int
	inUse        func(name string) bool
	logger       *logging.Logger
}

// StaticOption configures a Static pool.
type StaticOption func(*Static)

// WithStaticLogger sets the pool logger.
func WithStaticLogger(logger *logging.Logger) StaticOption {
	return func(s *Static) { s.logger = logger }
}

// WithInUse makes the pool skip members for which inUse returns true, such
// as machines held by a compound worker assembled by hand.
func WithInUse(inUse func(name string) bool) StaticOption {
	return func(s *Static) { s.inUse = inUse }
}

// NewStatic creates a pool serving members.
func NewStatic(members []Member, opts ...StaticOption) *Static {
	s := &Static{
		members:      slices.Clone(members),
		allocated:    make(map[string]bool),
		terminated:   make(map[string]int),
		deregistered: make(map[string]int),
		logger:       logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MembersFromConfig converts configured backend nodes into members.
func MembersFromConfig(nodes []config.NodeConfig) []Member {
	members := make([]Member, 0, len(nodes))
	for _, n := range nodes {
		members = append(members, Member{
			Name:    n.Name,
			Labels:  slices.Clone(n.Labels),
			RootDir: n.RootDir,
			Slots:   max(n.Slots, 1),
			Owned:   n.Cloud,
		})
	}
	return members
}

var (
	_ Pool      = (*Static)(nil)
	_ Inventory = (*Static)(nil)
)

// RequestResources hands out up to count free members whose name or one of
// whose labels matches selector, in configuration order. Members reported
// in use are not free. Running out is not
// an error: the caller sees a short list.
func (s *Static) RequestResources(ctx context.Context, selector composition.Selector, count int) ([]Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInterrupted, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Member
	for _, m := range s.members {
		if len(out) == count {
			break
		}
		if s.allocated[m.Name] {
			continue
		}
		if s.inUse != nil && s.inUse(m.Name) {
			continue
		}
		if !selector.Matches(m.Name) && !selector.MatchesAny(m.Labels) {
			continue
		}
		s.allocated[m.Name] = true
		out = append(out, m)
	}

	s.logger.Debug("static pool request",
		"selector", selector.String(),
		"requested", count,
		"granted", len(out))
	return out, nil
}

// Terminate returns an owned member to the pool. Unknown members fail.
func (s *Static) Terminate(ctx context.Context, m Member) error {
	return s.release(m, s.terminated, "terminate")
}

// Deregister returns a member to the pool.
func (s *Static) Deregister(ctx context.Context, m Member) error {
	return s.release(m, s.deregistered, "deregister")
}

func (s *Static) release(m Member, counter map[string]int, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.ContainsFunc(s.members, func(c Member) bool { return c.Name == m.Name }) {
		return errors.NewNotFoundError("member", m.Name).WithCause(errors.ErrMemberNotFound)
	}
	// Members assembled by hand were never allocated here; releasing them
	// is still counted.
	delete(s.allocated, m.Name)
	counter[m.Name]++
	s.logger.Info("static pool released member", "member", m.Name, "action", action)
	return nil
}

// Lookup returns the configured member named name.
func (s *Static) Lookup(name string) (Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// Allocated returns the number of members currently handed out.
func (s *Static) Allocated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.allocated)
}

// Terminated returns how many times the named member was terminated.
func (s *Static) Terminated(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated[name]
}

// Deregistered returns how many times the named member was deregistered.
func (s *Static) Deregistered(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deregistered[name]
}
