package compound

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Iron-Ham/compound/internal/backend"
	"github.com/Iron-Ham/compound/internal/composition"
	"github.com/Iron-Ham/compound/internal/errors"
)

// Registry maps roles to the ordered members of one compound worker.
type Registry struct {
	mu      sync.RWMutex
	roles   []composition.Role // first-seen order
	members map[composition.Role][]backend.Member
	index   map[string]composition.Role // member name -> role
	sealed  bool
}

// NewRegistry creates an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[composition.Role][]backend.Member),
		index:   make(map[string]composition.Role),
	}
}

// Add appends m to role. A member may appear in only one role, and the
// root role takes exactly one member.
func (r *Registry) Add(role composition.Role, m backend.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: adding %s", errors.ErrRegistrySealed, m.Name)
	}
	if existing, ok := r.index[m.Name]; ok {
		return fmt.Errorf("%w: %s already has role %s", errors.ErrDuplicateMember, m.Name, existing)
	}
	if role.IsRoot() && len(r.members[role]) > 0 {
		return fmt.Errorf("%w: %s would be a second root", errors.ErrRootCount, m.Name)
	}

	if _, seen := r.members[role]; !seen {
		r.roles = append(r.roles, role)
	}
	r.members[role] = append(r.members[role], m)
	r.index[m.Name] = role
	return nil
}

// Seal ends assembly. It fails if no root member was added.
func (r *Registry) Seal() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members[composition.Root]) != 1 {
		return errors.ErrMissingRoot
	}
	r.sealed = true
	return nil
}

// Sealed reports whether assembly has ended.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Root returns the root member.
func (r *Registry) Root() (backend.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rs := r.members[composition.Root]; len(rs) > 0 {
		return rs[0], true
	}
	return backend.Member{}, false
}

// Roles returns the roles in the order they were first added.
func (r *Registry) Roles() []composition.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.roles)
}

// Members returns the ordered members of role. Unknown roles are empty.
func (r *Registry) Members(role composition.Role) []backend.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.members[role])
}

// Satellites returns every non-root member, grouped by role in role order.
func (r *Registry) Satellites() []backend.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []backend.Member
	for _, role := range r.roles {
		if role.IsRoot() {
			continue
		}
		out = append(out, r.members[role]...)
	}
	return out
}

// All returns the root followed by the satellites.
func (r *Registry) All() []backend.Member {
	var out []backend.Member
	if root, ok := r.Root(); ok {
		out = append(out, root)
	}
	return append(out, r.Satellites()...)
}

// Lookup returns the role and 1-based ordinal of the named member.
func (r *Registry) Lookup(name string) (composition.Role, int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.index[name]
	if !ok {
		return "", 0, false
	}
	i := slices.IndexFunc(r.members[role], func(m backend.Member) bool { return m.Name == name })
	return role, i + 1, true
}

// Contains reports whether the named member belongs to the registry.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[name]
	return ok
}

// Len returns the total number of members, root included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}

// Clear drops every member. Teardown calls it once the members have been
// handed back.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.roles = nil
	r.members = make(map[composition.Role][]backend.Member)
	r.index = make(map[string]composition.Role)
}

// Names returns the names of members, in order.
func Names(members []backend.Member) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return names
}
