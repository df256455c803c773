// Package composition defines role compositions: named templates that say
// which roles a compound worker has and how many backend members each role
// needs.
//
// A [Spec] is immutable once built. It has a demand [Selector] and an
// ordered list of [Entry] values, exactly one of which is the reserved
// [Root] role with a count of 1. A [Catalog] holds specs in configuration
// order and answers "which spec serves this demand": the first match wins.
//
// Role names are checked against a [Vocabulary]. A vocabulary is versioned
// and never mutated; a configuration reload produces a new version with
// [Vocabulary.Next], and components keep whichever version they were given.
package composition
