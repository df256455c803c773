// Package host describes the host scheduler a compound worker lives inside:
// the registry of nodes, the per-node "accepting work" flag, and, when the
// host offers it, reservation of execution slots.
//
// The scheduler itself is not implemented here. [Memory] is a small
// in-process stand-in used by the CLI and by tests.
//
// The node a unit of work runs on travels in its context; see [WithNode]
// and [NodeFromContext].
package host
