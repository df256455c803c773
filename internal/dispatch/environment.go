package dispatch

import (
	"maps"
	"slices"
)

// WorkspaceVar names the workspace path variable.
const WorkspaceVar = "WORKSPACE"

// Environment is a base environment plus per-dispatch overrides. Values
// are never modified in place; With returns a new Environment.
type Environment struct {
	base      map[string]string
	overrides map[string]string
}

// NewEnvironment wraps base. The map is copied.
func NewEnvironment(base map[string]string) Environment {
	return Environment{base: maps.Clone(base)}
}

// With returns a copy of e with key overridden.
func (e Environment) With(key, value string) Environment {
	overrides := maps.Clone(e.overrides)
	if overrides == nil {
		overrides = make(map[string]string, 1)
	}
	overrides[key] = value
	return Environment{base: e.base, overrides: overrides}
}

// Get looks key up, overrides first.
func (e Environment) Get(key string) (string, bool) {
	if v, ok := e.overrides[key]; ok {
		return v, true
	}
	v, ok := e.base[key]
	return v, ok
}

// Overrides returns a copy of the overrides alone.
func (e Environment) Overrides() map[string]string {
	return maps.Clone(e.overrides)
}

// Map returns the merged environment.
func (e Environment) Map() map[string]string {
	out := make(map[string]string, len(e.base)+len(e.overrides))
	maps.Copy(out, e.base)
	maps.Copy(out, e.overrides)
	return out
}

// Environ renders the merged environment as sorted KEY=value pairs.
func (e Environment) Environ() []string {
	merged := e.Map()
	keys := slices.Sorted(maps.Keys(merged))
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + merged[k]
	}
	return out
}
