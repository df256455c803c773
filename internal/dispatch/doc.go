// Package dispatch routes a unit of work to the members of a compound
// worker by role and ordinal.
//
// Ordinal 0 selects every member of the role; 1..N selects one. Work
// aimed at the ROOT role, at a role with no members, or at a node that is
// not a compound worker runs once on the current node with the ambient
// environment. Otherwise the step runs on each selected member in order,
// each with its own workspace and WORKSPACE override, and the results are
// combined with logical AND. A failing member does not stop the rest.
package dispatch
