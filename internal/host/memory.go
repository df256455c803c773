package host

import (
	"slices"
	"sort"
	"sync"

	"github.com/Iron-Ham/compound/internal/errors"
)

type nodeState struct {
	node       Node
	accepting  bool
	slots      []Occupant
	interrupts int
}

// Memory is an in-process Scheduler. It backs the CLI and the tests.
// It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	nodes map[string]*nodeState
}

// NewMemory creates an empty in-memory scheduler.
func NewMemory() *Memory {
	return &Memory{nodes: make(map[string]*nodeState)}
}

var _ Scheduler = (*Memory)(nil)

func (m *Memory) state(name string) (*nodeState, error) {
	st, ok := m.nodes[name]
	if !ok {
		return nil, errors.NewNotFoundError("node", name).WithCause(errors.ErrMemberNotFound)
	}
	return st, nil
}

// Node returns the node named name.
func (m *Memory) Node(name string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.nodes[name]
	if !ok {
		return Node{}, false
	}
	return st.node, true
}

// Nodes returns the names of every registered node, sorted.
func (m *Memory) Nodes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.nodes))
	for name := range m.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterNode adds a node that accepts work and has idle slots.
func (m *Memory) RegisterNode(n Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[n.Name]; exists {
		return errors.NewAlreadyExistsError("node", n.Name)
	}
	n.Labels = slices.Clone(n.Labels)
	m.nodes[n.Name] = &nodeState{
		node:      n,
		accepting: true,
		slots:     make([]Occupant, max(n.Slots, 1)),
	}
	return nil
}

// DeregisterNode removes a node.
func (m *Memory) DeregisterNode(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.state(name); err != nil {
		return err
	}
	delete(m.nodes, name)
	return nil
}

// SetAcceptingTasks toggles the accepting flag.
func (m *Memory) SetAcceptingTasks(name string, accepting bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.state(name)
	if err != nil {
		return err
	}
	st.accepting = accepting
	return nil
}

// AcceptingTasks reports the accepting flag.
func (m *Memory) AcceptingTasks(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, err := m.state(name)
	if err != nil {
		return false, err
	}
	return st.accepting, nil
}

// ReserveSlots puts occupant into every slot of the node.
func (m *Memory) ReserveSlots(name string, occupant Occupant) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.state(name)
	if err != nil {
		return 0, err
	}
	for i := range st.slots {
		st.slots[i] = occupant
	}
	return len(st.slots), nil
}

// FreeSlots clears and interrupts every slot of the node.
func (m *Memory) FreeSlots(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.state(name)
	if err != nil {
		return err
	}
	for i := range st.slots {
		st.slots[i] = nil
		st.interrupts++
	}
	return nil
}

// Occupants returns a copy of the node's slots.
func (m *Memory) Occupants(name string) ([]Occupant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, err := m.state(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(st.slots), nil
}

// Interrupts returns how many slot interrupts the node has received.
func (m *Memory) Interrupts(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if st, ok := m.nodes[name]; ok {
		return st.interrupts
	}
	return 0
}
