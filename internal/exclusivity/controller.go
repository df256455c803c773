package exclusivity

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Iron-Ham/compound/internal/errors"
	"github.com/Iron-Ham/compound/internal/event"
	"github.com/Iron-Ham/compound/internal/host"
	"github.com/Iron-Ham/compound/internal/logging"
)

// Placeholder is the occupant put into a reserved slot. It never runs
// anything; it only names the compound worker holding the slot.
type Placeholder struct {
	owner string
}

// NewPlaceholder creates a placeholder for owner.
func NewPlaceholder(owner string) Placeholder { return Placeholder{owner: owner} }

// Owner returns the compound worker holding the slot.
func (p Placeholder) Owner() string { return p.owner }

func (p Placeholder) String() string { return "reserved for " + p.owner }

// Occupation describes one occupied member.
type Occupation struct {
	Member   string
	Owner    string
	Slots    int  // slots holding a placeholder
	Degraded bool // slot reservation failed or is unsupported
}

// Controller tracks which owner holds which member.
type Controller struct {
	mu       sync.Mutex
	registry host.Registry
	held     map[string]Occupation // member -> occupation
	bus      *event.Bus
	logger   *logging.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithBus publishes member.occupied and member.released events to bus.
func WithBus(bus *event.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithLogger sets the controller logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// New creates a Controller acting on registry. If registry also implements
// host.SlotReserver, slots are reserved as well.
func New(registry host.Registry, opts ...Option) *Controller {
	c := &Controller{
		registry: registry,
		held:     make(map[string]Occupation),
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Occupy takes member for owner. Host failures are logged and leave the
// occupation degraded; only ownership conflicts are returned.
func (c *Controller) Occupy(member, owner string) (Occupation, error) {
	if owner == "" {
		return Occupation{}, errors.NewValidationError("owner is required").WithField("owner")
	}

	c.mu.Lock()
	if existing, ok := c.held[member]; ok {
		c.mu.Unlock()
		if existing.Owner == owner {
			return existing, nil
		}
		return existing, fmt.Errorf("%w: %s is held by %s", errors.ErrAlreadyOccupied, member, existing.Owner)
	}
	occ := Occupation{Member: member, Owner: owner}
	c.held[member] = occ
	c.mu.Unlock()

	log := c.logger.WithMember(member).WithWorker(owner)

	if err := c.registry.SetAcceptingTasks(member, false); err != nil {
		log.Warn("could not stop member accepting tasks", "error", err)
		occ.Degraded = true
	}

	if reserver, ok := c.registry.(host.SlotReserver); ok {
		n, err := reserver.ReserveSlots(member, NewPlaceholder(owner))
		if err != nil {
			log.Warn("could not reserve member slots", "error", err)
			occ.Degraded = true
		}
		occ.Slots = n
	} else {
		log.Debug("host does not support slot reservation")
		occ.Degraded = true
	}

	c.mu.Lock()
	c.held[member] = occ
	c.mu.Unlock()

	log.Info("member occupied", "slots", occ.Slots, "degraded", occ.Degraded)
	c.bus.Publish(event.NewMemberOccupiedEvent(member, owner, occ.Slots, occ.Degraded))
	return occ, nil
}

// Release hands member back to the host scheduler on behalf of owner.
// Releasing a member that is not held, or that another owner holds, is a
// no-op. Host failures are returned as a CleanupError, but the member is no
// longer held either way.
func (c *Controller) Release(member, owner string) error {
	c.mu.Lock()
	occ, ok := c.held[member]
	if ok && occ.Owner != owner {
		c.mu.Unlock()
		c.logger.WithMember(member).WithWorker(owner).Warn("not releasing member held by another owner",
			"holder", occ.Owner)
		return nil
	}
	if ok {
		delete(c.held, member)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}

	var errs []error
	if reserver, ok := c.registry.(host.SlotReserver); ok {
		if err := reserver.FreeSlots(member); err != nil {
			errs = append(errs, fmt.Errorf("free slots: %w", err))
		}
	}
	if err := c.registry.SetAcceptingTasks(member, true); err != nil {
		errs = append(errs, fmt.Errorf("resume accepting tasks: %w", err))
	}

	c.logger.WithMember(member).WithWorker(occ.Owner).Info("member released", "errors", len(errs))
	c.bus.Publish(event.NewMemberReleasedEvent(member, occ.Owner))

	if len(errs) > 0 {
		return errors.NewCleanupError("release member", errors.Join(errs...)).
			WithMember(member).WithWorker(occ.Owner).WithAction("release")
	}
	return nil
}

// ReleaseAll releases every member held by owner and returns the joined
// failures.
func (c *Controller) ReleaseAll(owner string) error {
	var errs []error
	for _, member := range c.Members(owner) {
		if err := c.Release(member, owner); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Owner returns the owner holding member.
func (c *Controller) Owner(member string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	occ, ok := c.held[member]
	return occ.Owner, ok
}

// Occupation returns the occupation record for member.
func (c *Controller) Occupation(member string) (Occupation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	occ, ok := c.held[member]
	return occ, ok
}

// Members returns the members held by owner, sorted.
func (c *Controller) Members(owner string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	for member, occ := range c.held {
		if occ.Owner == owner {
			out = append(out, member)
		}
	}
	sort.Strings(out)
	return out
}
