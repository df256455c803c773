// Package event defines lifecycle events for compound workers and the bus
// that carries them.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "fleet.provisioned", "member.released")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeProvisioned       = "fleet.provisioned"
	TypeProvisionFailed   = "fleet.provision_failed"
	TypeDeclined          = "fleet.declined"
	TypeLaunched          = "fleet.launched"
	TypeLaunchFailed      = "fleet.launch_failed"
	TypeTerminated        = "fleet.terminated"
	TypeMemberOccupied    = "member.occupied"
	TypeMemberReleased    = "member.released"
	TypeDispatchCompleted = "dispatch.completed"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Provisioning Events
// -----------------------------------------------------------------------------

// ProvisionedEvent is emitted when every role of a composition was filled
// and a compound worker has been assembled.
type ProvisionedEvent struct {
	baseEvent
	Composition string
	Worker      string
	Members     []string // all members, root first
}

// NewProvisionedEvent creates a ProvisionedEvent.
func NewProvisionedEvent(composition, worker string, members []string) ProvisionedEvent {
	return ProvisionedEvent{
		baseEvent:   newBaseEvent(TypeProvisioned),
		Composition: composition,
		Worker:      worker,
		Members:     members,
	}
}

// ProvisionFailedEvent is emitted after a failed provisioning attempt has
// been rolled back.
type ProvisionFailedEvent struct {
	baseEvent
	Composition string
	Worker      string
	Error       string
	RolledBack  []string // members returned to the backend
}

// NewProvisionFailedEvent creates a ProvisionFailedEvent.
func NewProvisionFailedEvent(composition, worker string, err error, rolledBack []string) ProvisionFailedEvent {
	e := ProvisionFailedEvent{
		baseEvent:   newBaseEvent(TypeProvisionFailed),
		Composition: composition,
		Worker:      worker,
		RolledBack:  rolledBack,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// DeclinedEvent is emitted when a demand is answered with "no work": nothing
// matches, the composition is cooling down, or the worker cap is reached.
type DeclinedEvent struct {
	baseEvent
	Demand      string
	Composition string // empty when nothing matched
	Reason      string
}

// NewDeclinedEvent creates a DeclinedEvent.
func NewDeclinedEvent(demand, composition, reason string) DeclinedEvent {
	return DeclinedEvent{
		baseEvent:   newBaseEvent(TypeDeclined),
		Demand:      demand,
		Composition: composition,
		Reason:      reason,
	}
}

// -----------------------------------------------------------------------------
// Launch Events
// -----------------------------------------------------------------------------

// LaunchedEvent is emitted once the root member of a compound worker is online.
type LaunchedEvent struct {
	baseEvent
	Worker  string
	Members int
}

// NewLaunchedEvent creates a LaunchedEvent.
func NewLaunchedEvent(worker string, members int) LaunchedEvent {
	return LaunchedEvent{
		baseEvent: newBaseEvent(TypeLaunched),
		Worker:    worker,
		Members:   members,
	}
}

// LaunchFailedEvent is emitted when one or more satellites did not come
// online and the root was left unconnected.
type LaunchFailedEvent struct {
	baseEvent
	Worker string
	Failed []string
}

// NewLaunchFailedEvent creates a LaunchFailedEvent.
func NewLaunchFailedEvent(worker string, failed []string) LaunchFailedEvent {
	return LaunchFailedEvent{
		baseEvent: newBaseEvent(TypeLaunchFailed),
		Worker:    worker,
		Failed:    failed,
	}
}

// TerminatedEvent is emitted when teardown of a compound worker finishes.
type TerminatedEvent struct {
	baseEvent
	Worker   string
	Members  int
	Failures int // per-member cleanup steps that failed and were logged
}

// NewTerminatedEvent creates a TerminatedEvent.
func NewTerminatedEvent(worker string, members, failures int) TerminatedEvent {
	return TerminatedEvent{
		baseEvent: newBaseEvent(TypeTerminated),
		Worker:    worker,
		Members:   members,
		Failures:  failures,
	}
}

// -----------------------------------------------------------------------------
// Member Events
// -----------------------------------------------------------------------------

// MemberOccupiedEvent is emitted when a member is taken over by a compound worker.
type MemberOccupiedEvent struct {
	baseEvent
	Member   string
	Owner    string
	Slots    int  // slots holding a placeholder
	Degraded bool // slot reservation failed or is unsupported; only "not accepting" holds
}

// NewMemberOccupiedEvent creates a MemberOccupiedEvent.
func NewMemberOccupiedEvent(member, owner string, slots int, degraded bool) MemberOccupiedEvent {
	return MemberOccupiedEvent{
		baseEvent: newBaseEvent(TypeMemberOccupied),
		Member:    member,
		Owner:     owner,
		Slots:     slots,
		Degraded:  degraded,
	}
}

// MemberReleasedEvent is emitted when a member is returned to general availability.
type MemberReleasedEvent struct {
	baseEvent
	Member string
	Owner  string
}

// NewMemberReleasedEvent creates a MemberReleasedEvent.
func NewMemberReleasedEvent(member, owner string) MemberReleasedEvent {
	return MemberReleasedEvent{
		baseEvent: newBaseEvent(TypeMemberReleased),
		Member:    member,
		Owner:     owner,
	}
}

// -----------------------------------------------------------------------------
// Dispatch Events
// -----------------------------------------------------------------------------

// DispatchCompletedEvent is emitted after a routed step ran on every matched member.
type DispatchCompletedEvent struct {
	baseEvent
	DispatchID string
	Worker     string // empty for plain workers
	Role       string
	Ordinal    int
	Members    []string // members the step ran on, in order
	Success    bool
}

// NewDispatchCompletedEvent creates a DispatchCompletedEvent.
func NewDispatchCompletedEvent(dispatchID, worker, role string, ordinal int, members []string, success bool) DispatchCompletedEvent {
	return DispatchCompletedEvent{
		baseEvent:  newBaseEvent(TypeDispatchCompleted),
		DispatchID: dispatchID,
		Worker:     worker,
		Role:       role,
		Ordinal:    ordinal,
		Members:    members,
		Success:    success,
	}
}
