package composition

import (
	"regexp"
	"slices"
	"strings"

	"github.com/Iron-Ham/compound/internal/errors"
)

// Role names a category of members within a compound worker.
type Role string

// Root is the reserved role of the single root member.
const Root Role = "ROOT"

// String returns the role name.
func (r Role) String() string { return string(r) }

// IsRoot reports whether r is the reserved root role.
func (r Role) IsRoot() bool { return r == Root }

var roleNameRegex = regexp.MustCompile(`^\w+$`)

// ValidRoleName reports whether name is a legal role name.
func ValidRoleName(name string) bool {
	return roleNameRegex.MatchString(name)
}

// Vocabulary is an immutable, versioned set of legal role names.
// Root is always present and always first.
type Vocabulary struct {
	version uint64
	roles   []Role
}

// NewVocabulary builds version 1 of a vocabulary from names. Duplicates are
// dropped; declaration order is kept.
func NewVocabulary(names []string) (*Vocabulary, error) {
	return newVocabulary(1, names)
}

func newVocabulary(version uint64, names []string) (*Vocabulary, error) {
	roles := []Role{Root}
	for _, name := range names {
		if !ValidRoleName(name) {
			return nil, errors.NewValidationError("role names must contain only letters, digits and underscores").
				WithField("roles").
				WithValue(name).
				WithCause(errors.ErrInvalidRole)
		}
		if slices.Contains(roles, Role(name)) {
			continue
		}
		roles = append(roles, Role(name))
	}
	return &Vocabulary{version: version, roles: roles}, nil
}

// Next returns a new vocabulary built from names with the version bumped.
// The receiver is left untouched.
func (v *Vocabulary) Next(names []string) (*Vocabulary, error) {
	return newVocabulary(v.version+1, names)
}

// Version returns the vocabulary version.
func (v *Vocabulary) Version() uint64 { return v.version }

// Roles returns the roles in declaration order, Root first.
func (v *Vocabulary) Roles() []Role {
	return slices.Clone(v.roles)
}

// Contains reports whether role is part of the vocabulary.
func (v *Vocabulary) Contains(role Role) bool {
	return slices.Contains(v.roles, role)
}

// Lookup validates name against the vocabulary.
func (v *Vocabulary) Lookup(name string) (Role, error) {
	role := Role(name)
	if !v.Contains(role) {
		return "", errors.NewValidationError("unknown role").
			WithField("role").
			WithValue(name).
			WithCause(errors.ErrInvalidRole)
	}
	return role, nil
}

// String renders the vocabulary as a comma-separated list.
func (v *Vocabulary) String() string {
	names := make([]string, len(v.roles))
	for i, r := range v.roles {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}
