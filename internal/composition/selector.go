package composition

import (
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/compound/internal/errors"
)

// Selector matches demands and backend labels against a glob pattern.
// The zero Selector matches nothing.
type Selector struct {
	pattern string
	g       glob.Glob
}

// ParseSelector compiles pattern into a Selector.
func ParseSelector(pattern string) (Selector, error) {
	if pattern == "" {
		return Selector{}, errors.NewValidationError("selector must not be empty").
			WithCause(errors.ErrInvalidSelector)
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return Selector{}, errors.NewValidationError("selector does not compile").
			WithValue(pattern).
			WithCause(errors.Join(errors.ErrInvalidSelector, err))
	}
	return Selector{pattern: pattern, g: g}, nil
}

// MustSelector is like ParseSelector but panics on error. For tests and
// static tables.
func MustSelector(pattern string) Selector {
	s, err := ParseSelector(pattern)
	if err != nil {
		panic(err)
	}
	return s
}

// Matches reports whether value matches the selector.
func (s Selector) Matches(value string) bool {
	if s.g == nil {
		return false
	}
	return s.g.Match(value)
}

// MatchesAny reports whether any of labels matches the selector.
func (s Selector) MatchesAny(labels []string) bool {
	for _, l := range labels {
		if s.Matches(l) {
			return true
		}
	}
	return false
}

// String returns the source pattern.
func (s Selector) String() string { return s.pattern }
