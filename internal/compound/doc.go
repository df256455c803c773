// Package compound holds the data model of a compound worker: the member
// [Registry] mapping roles to ordered members, the [Worker] that owns one
// registry, and the [Directory] of workers currently known to the host.
//
// A registry is filled during assembly and then sealed. After sealing it is
// read-only and safe for concurrent readers. Ordinals are 1-based and follow
// insertion order within a role.
//
// [Directory.Resolve] turns a host node name into a [Node], which is either
// [Plain] or [Compound]. Dispatch switches on that variant once.
package compound
