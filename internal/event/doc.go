// Package event provides a pub-sub event bus for compound worker lifecycle
// notifications.
//
// Provisioning, launch, exclusivity, dispatch, and teardown publish events
// as they make progress so that observers (the CLI, tests, metrics shims)
// can follow a compound worker without the components knowing about them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Fleet lifecycle:
//   - [ProvisionedEvent], [ProvisionFailedEvent], [DeclinedEvent]
//   - [LaunchedEvent], [LaunchFailedEvent]
//   - [TerminatedEvent]
//
// Members:
//   - [MemberOccupiedEvent], [MemberReleasedEvent]
//
// Dispatch:
//   - [DispatchCompletedEvent]
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine, which during provisioning and launch is a worker
// pool goroutine, so handlers must be quick and must not block.
//
// # Basic Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//	bus.Subscribe(event.TypeLaunched, func(e event.Event) {
//	    launched := e.(event.LaunchedEvent)
//	    fmt.Println("online:", launched.Worker)
//	})
//
// A nil *Bus silently drops published events, so components can treat the
// bus as optional.
package event
