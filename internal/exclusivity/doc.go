// Package exclusivity takes members of a compound worker away from the host
// scheduler and gives them back.
//
// Occupying a member turns off its "accepting tasks" flag and, when the host
// supports it, fills every execution slot with a [Placeholder] owned by the
// compound worker. The flag is the primary guarantee; slot reservation is
// best effort and its failure only marks the occupation as degraded.
//
// A member belongs to at most one owner at a time. Occupying a member that
// another owner holds fails with errors.ErrAlreadyOccupied; occupying it
// again for the same owner is a no-op.
package exclusivity
