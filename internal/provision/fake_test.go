package provision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/compound/internal/backend"
	"github.com/Iron-Ham/compound/internal/composition"
)

// fakePool hands out freshly named members per selector. By default it
// grants exactly what was asked; grant and fail override that per selector.
type fakePool struct {
	mu           sync.Mutex
	grant        map[string]int
	fail         map[string]error
	owned        map[string]bool
	next         map[string]int
	requests     int
	handedOut    []string
	terminated   map[string]int
	deregistered map[string]int
}

func newFakePool() *fakePool {
	return &fakePool{
		grant:        make(map[string]int),
		fail:         make(map[string]error),
		owned:        make(map[string]bool),
		next:         make(map[string]int),
		terminated:   make(map[string]int),
		deregistered: make(map[string]int),
	}
}

func (f *fakePool) RequestResources(ctx context.Context, sel composition.Selector, count int) ([]backend.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests++
	key := sel.String()
	n := count
	if g, ok := f.grant[key]; ok {
		n = g
	}

	var out []backend.Member
	for range n {
		f.next[key]++
		name := fmt.Sprintf("%s-%d", key, f.next[key])
		out = append(out, backend.Member{Name: name, RootDir: "/srv/" + name, Slots: 1, Owned: f.owned[key]})
		f.handedOut = append(f.handedOut, name)
	}
	return out, f.fail[key]
}

func (f *fakePool) Terminate(ctx context.Context, m backend.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated[m.Name]++
	return nil
}

func (f *fakePool) Deregister(ctx context.Context, m backend.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deregistered[m.Name]++
	return nil
}

// releases returns how many times name went back to the backend.
func (f *fakePool) releases(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated[name] + f.deregistered[name]
}

func (f *fakePool) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakePool) members() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.handedOut...)
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
