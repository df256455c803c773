package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/compound/internal/errors"
	"github.com/Iron-Ham/compound/internal/logging"
)

// StaticConnector is a Connector for statically configured members. It
// does not open real channels; it tracks state so the lifecycle can be
// driven end to end from the CLI and from tests.
type StaticConnector struct {
	mu          sync.Mutex
	status      map[string]Status
	failing     map[string]bool
	connects    map[string]int
	disconnects map[string]int
	delay       time.Duration
}

// ConnectorOption configures a StaticConnector.
type ConnectorOption func(*StaticConnector)

// WithFailing makes every connect attempt to the named members fail.
func WithFailing(names ...string) ConnectorOption {
	return func(c *StaticConnector) {
		for _, n := range names {
			c.failing[n] = true
		}
	}
}

// WithConnectDelay makes each connect attempt take d.
func WithConnectDelay(d time.Duration) ConnectorOption {
	return func(c *StaticConnector) { c.delay = d }
}

// NewStaticConnector creates a connector with every member offline.
func NewStaticConnector(opts ...ConnectorOption) *StaticConnector {
	c := &StaticConnector{
		status:      make(map[string]Status),
		failing:     make(map[string]bool),
		connects:    make(map[string]int),
		disconnects: make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Connector = (*StaticConnector)(nil)

// Status reports the member's connection state.
func (c *StaticConnector) Status(m Member) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status[m.Name]
}

// SetStatus forces a member's state, e.g. to model a member that some
// other party is already connecting.
func (c *StaticConnector) SetStatus(name string, s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[name] = s
}

// Connect marks the member online unless it is configured to fail.
func (c *StaticConnector) Connect(ctx context.Context, m Member, log *logging.Logger) (bool, error) {
	c.mu.Lock()
	c.connects[m.Name]++
	c.status[m.Name] = StatusConnecting
	fail := c.failing[m.Name]
	delay := c.delay
	c.mu.Unlock()

	log.Info("connecting member", "member", m.Name, "root_dir", m.RootDir)

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.SetStatus(m.Name, StatusOffline)
			return false, fmt.Errorf("%w: connecting %s: %w", errors.ErrInterrupted, m.Name, ctx.Err())
		}
	}

	if fail {
		c.SetStatus(m.Name, StatusOffline)
		log.Warn("member did not come online", "member", m.Name)
		return false, nil
	}

	c.SetStatus(m.Name, StatusOnline)
	log.Info("member online", "member", m.Name)
	return true, nil
}

// Disconnect marks the member offline.
func (c *StaticConnector) Disconnect(ctx context.Context, m Member, log *logging.Logger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disconnects[m.Name]++
	c.status[m.Name] = StatusOffline
	log.Info("member disconnected", "member", m.Name)
	return nil
}

// Connects returns how many connect attempts the member received.
func (c *StaticConnector) Connects(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects[name]
}

// Disconnects returns how many disconnects the member received.
func (c *StaticConnector) Disconnects(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects[name]
}
