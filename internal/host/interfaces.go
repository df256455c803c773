package host

// Node is the host scheduler's record of one worker node.
type Node struct {
	Name    string
	Labels  []string
	RootDir string
	Slots   int // execution slots; 0 is treated as 1
}

// Registry is the part of the host scheduler that knows which nodes exist
// and whether each one accepts independent work.
type Registry interface {
	// Node returns the node named name.
	Node(name string) (Node, bool)

	// RegisterNode adds a node. Registering an existing name fails.
	RegisterNode(n Node) error

	// DeregisterNode removes a node. Removing an unknown name fails with a
	// NotFoundError.
	DeregisterNode(name string) error

	// SetAcceptingTasks toggles whether the scheduler may hand the node
	// unrelated work.
	SetAcceptingTasks(name string, accepting bool) error

	// AcceptingTasks reports the current flag.
	AcceptingTasks(name string) (bool, error)
}

// Occupant is whatever currently sits in an execution slot.
type Occupant interface {
	// Owner names the compound worker (or job) the occupant belongs to.
	Owner() string
}

// SlotReserver is an optional capability of a Registry: placing reservation
// occupants into a node's execution slots so the scheduler sees them busy.
// Hosts that do not implement it get "not accepting" exclusivity only.
type SlotReserver interface {
	// ReserveSlots puts occupant into every slot of the node, replacing
	// whatever was there, and returns the number of slots now reserved.
	ReserveSlots(name string, occupant Occupant) (int, error)

	// FreeSlots clears every slot of the node and interrupts it so the
	// scheduler re-evaluates it at once.
	FreeSlots(name string) error

	// Occupants returns the current occupant of each slot (nil = idle).
	Occupants(name string) ([]Occupant, error)
}

// Scheduler is a Registry that also supports slot reservation.
type Scheduler interface {
	Registry
	SlotReserver
}
