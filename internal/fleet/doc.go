// Package fleet wires the compound worker lifecycle together.
//
// A [Manager] is built from a config.Config. It owns the shared worker
// pool, the exclusivity controller and the directory of compound workers,
// and exposes the lifecycle as a handful of calls: Provision (or Acquire,
// which also launches), Dispatch, Finalize, and Assemble for workers built
// by hand from existing nodes.
package fleet
