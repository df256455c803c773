package composition

import (
	"fmt"
	"slices"

	"github.com/Iron-Ham/compound/internal/errors"
)

// Entry asks the backend for Count members matching Selector, all tagged
// with Role.
type Entry struct {
	Role     Role
	Selector Selector
	Count    int
}

// Spec is a named, selectable role composition. It is immutable once built.
type Spec struct {
	name     string
	selector Selector
	entries  []Entry
	root     int // index of the Root entry
}

// NewSpec validates entries and builds a Spec. It fails with a
// ConfigurationError when the Root entry is missing or duplicated, when
// Root asks for more than one member, or when any count is below 1.
func NewSpec(name string, selector Selector, entries []Entry) (*Spec, error) {
	root := -1
	for i, e := range entries {
		field := fmt.Sprintf("entries[%d]", i)
		if e.Count < 1 {
			return nil, errors.NewConfigurationError(
				fmt.Sprintf("role %s asks for %d members", e.Role, e.Count), errors.ErrInvalidCount).
				WithComposition(name).WithField(field + ".count")
		}
		if !e.Role.IsRoot() {
			continue
		}
		if root >= 0 {
			return nil, errors.NewConfigurationError("more than one ROOT entry", errors.ErrRootCount).
				WithComposition(name).WithField(field)
		}
		if e.Count != 1 {
			return nil, errors.NewConfigurationError(
				fmt.Sprintf("ROOT entry asks for %d members", e.Count), errors.ErrRootCount).
				WithComposition(name).WithField(field + ".count")
		}
		root = i
	}
	if root < 0 {
		return nil, errors.NewConfigurationError("composition has no ROOT entry", errors.ErrMissingRoot).
			WithComposition(name)
	}

	return &Spec{
		name:     name,
		selector: selector,
		entries:  slices.Clone(entries),
		root:     root,
	}, nil
}

// Name returns the composition name.
func (s *Spec) Name() string { return s.name }

// Selector returns the demand selector.
func (s *Spec) Selector() Selector { return s.selector }

// Entries returns every entry in declaration order.
func (s *Spec) Entries() []Entry { return slices.Clone(s.entries) }

// RootEntry returns the Root entry.
func (s *Spec) RootEntry() Entry { return s.entries[s.root] }

// Roles returns the distinct roles in declaration order.
func (s *Spec) Roles() []Role {
	roles := make([]Role, 0, len(s.entries))
	for _, e := range s.entries {
		if !slices.Contains(roles, e.Role) {
			roles = append(roles, e.Role)
		}
	}
	return roles
}

// Size returns the total number of members the composition asks for.
func (s *Spec) Size() int {
	n := 0
	for _, e := range s.entries {
		n += e.Count
	}
	return n
}

// Matches reports whether s serves demand.
func (s *Spec) Matches(demand string) bool {
	return s.selector.Matches(demand)
}
