package backend

import (
	"context"
	"slices"

	"github.com/Iron-Ham/compound/internal/composition"
	"github.com/Iron-Ham/compound/internal/host"
	"github.com/Iron-Ham/compound/internal/logging"
)

// Member is a concrete machine obtained from the backend pool.
type Member struct {
	Name    string
	Labels  []string
	RootDir string
	Slots   int
	// Owned marks a backend-owned (cloud) machine. Owned members are
	// terminated when released; the rest are only deregistered.
	Owned bool
}

// Node returns the host scheduler record for the member.
func (m Member) Node() host.Node {
	return host.Node{
		Name:    m.Name,
		Labels:  slices.Clone(m.Labels),
		RootDir: m.RootDir,
		Slots:   m.Slots,
	}
}

// Pool is the backend resource pool that creates and destroys machines.
type Pool interface {
	// RequestResources asks for count members matching selector. It may
	// return fewer (or more) members than asked for, and may return the
	// members it did obtain alongside an error; the caller owns every
	// returned member either way.
	RequestResources(ctx context.Context, selector composition.Selector, count int) ([]Member, error)

	// Terminate destroys a backend-owned member.
	Terminate(ctx context.Context, m Member) error

	// Deregister returns a member that the backend does not own.
	Deregister(ctx context.Context, m Member) error
}

// Inventory is an optional Pool capability: looking up a known member by
// name. Manual assembly uses it to learn whether a named node is
// backend-owned.
type Inventory interface {
	Lookup(name string) (Member, bool)
}

// Status is the connection state of a member.
type Status int

const (
	// StatusOffline means no command channel exists.
	StatusOffline Status = iota
	// StatusConnecting means a connect attempt is in flight.
	StatusConnecting
	// StatusOnline means the member accepts commands.
	StatusOnline
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOffline:
		return "offline"
	case StatusConnecting:
		return "connecting"
	case StatusOnline:
		return "online"
	default:
		return "unknown"
	}
}

// Connector establishes and tears down the command channel to a member.
type Connector interface {
	// Status reports the member's current connection state.
	Status(m Member) Status

	// Connect brings the member online and reports whether it ended up
	// online. Progress is written to log.
	Connect(ctx context.Context, m Member, log *logging.Logger) (bool, error)

	// Disconnect closes the member's command channel.
	Disconnect(ctx context.Context, m Member, log *logging.Logger) error
}
