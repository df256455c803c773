// Package launch brings a compound worker online.
//
// Satellites are connected concurrently on the shared worker pool and each
// is occupied for the worker as soon as it is up. The root member is
// connected last, and only when every satellite came online, so a reachable
// compound worker always has all of its members reachable too.
package launch
