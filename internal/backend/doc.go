// Package backend describes the two external capabilities a compound
// worker is built from: the resource [Pool] that creates and destroys
// machines, and the [Connector] that opens a command channel to each one.
//
// [Static] and [StaticConnector] implement both over a fixed list of
// configured machines (see config.BackendConfig). They back the CLI and
// record every call so tests can assert on exactly-once rollback.
package backend
