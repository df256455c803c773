// Package teardown returns a compound worker's members to the backend.
//
// Teardown is best effort. Each member is released from exclusivity and
// then terminated (backend-owned) or deregistered (everything else); a
// failure on one member is logged and the rest are still attempted. The
// worker itself is removed from the host last. Nothing here returns an
// error: the [Report] records what happened.
package teardown
