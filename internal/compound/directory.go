package compound

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/compound/internal/errors"
)

// NamePrefix starts the name of every provisioned compound worker.
const NamePrefix = "Dynamic-compound-"

// Node is the resolved form of a host node: either Plain or Compound.
type Node interface {
	NodeName() string
	isNode()
}

// Plain is an ordinary worker node.
type Plain struct {
	Name string
}

// NodeName returns the node name.
func (p Plain) NodeName() string { return p.Name }
func (Plain) isNode()            {}

// Compound is a node backed by a compound worker.
type Compound struct {
	Worker *Worker
}

// NodeName returns the worker name.
func (c Compound) NodeName() string { return c.Worker.Name() }
func (Compound) isNode()            {}

// Directory tracks the compound workers currently registered.
type Directory struct {
	mu      sync.RWMutex
	workers map[string]*Worker
	counter atomic.Uint64
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{workers: make(map[string]*Worker)}
}

// NextName returns a fresh worker name from the monotonic counter.
func (d *Directory) NextName() string {
	return fmt.Sprintf("%s%d", NamePrefix, d.counter.Add(1))
}

// Add records w. Names must be unique.
func (d *Directory) Add(w *Worker) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.workers[w.Name()]; ok {
		return errors.NewAlreadyExistsError("compound worker", w.Name())
	}
	d.workers[w.Name()] = w
	return nil
}

// Remove forgets the named worker and reports whether it was present.
func (d *Directory) Remove(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.workers[name]
	delete(d.workers, name)
	return ok
}

// Get returns the named worker.
func (d *Directory) Get(name string) (*Worker, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	w, ok := d.workers[name]
	return w, ok
}

// Len returns the number of workers.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.workers)
}

// Names returns every worker name, sorted.
func (d *Directory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.workers))
	for name := range d.workers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Owner returns the worker whose registry holds the named member.
func (d *Directory) Owner(member string) (*Worker, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, w := range d.workers {
		if w.Registry().Contains(member) {
			return w, true
		}
	}
	return nil, false
}

// Resolve classifies a node name.
func (d *Directory) Resolve(name string) Node {
	if w, ok := d.Get(name); ok {
		return Compound{Worker: w}
	}
	return Plain{Name: name}
}
