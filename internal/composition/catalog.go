package composition

import (
	"fmt"
	"slices"

	"github.com/Iron-Ham/compound/internal/config"
	"github.com/Iron-Ham/compound/internal/errors"
)

// Catalog holds compositions in configuration order together with the
// vocabulary their roles were checked against.
type Catalog struct {
	vocabulary *Vocabulary
	specs      []*Spec
}

// NewCatalog builds a Catalog. Every entry role must be in vocabulary and
// spec names must be unique.
func NewCatalog(vocabulary *Vocabulary, specs ...*Spec) (*Catalog, error) {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if seen[s.Name()] {
			return nil, errors.NewConfigurationError("duplicate composition", errors.NewAlreadyExistsError("composition", s.Name())).
				WithComposition(s.Name())
		}
		seen[s.Name()] = true

		for i, e := range s.entries {
			if !vocabulary.Contains(e.Role) {
				return nil, errors.NewConfigurationError(
					fmt.Sprintf("role %q is not in vocabulary v%d", e.Role, vocabulary.Version()), errors.ErrInvalidRole).
					WithComposition(s.Name()).
					WithField(fmt.Sprintf("entries[%d].role", i))
			}
		}
	}
	return &Catalog{vocabulary: vocabulary, specs: slices.Clone(specs)}, nil
}

// FromConfig builds a vocabulary and catalog from the fleet configuration.
func FromConfig(fc config.FleetConfig) (*Catalog, error) {
	vocabulary, err := NewVocabulary(fc.Roles)
	if err != nil {
		return nil, err
	}
	return fromConfig(vocabulary, fc)
}

// Reload builds a catalog from fc against the next vocabulary version.
// The receiver is left untouched.
func (c *Catalog) Reload(fc config.FleetConfig) (*Catalog, error) {
	vocabulary, err := c.vocabulary.Next(fc.Roles)
	if err != nil {
		return nil, err
	}
	return fromConfig(vocabulary, fc)
}

func fromConfig(vocabulary *Vocabulary, fc config.FleetConfig) (*Catalog, error) {
	specs := make([]*Spec, 0, len(fc.Compositions))
	for _, cc := range fc.Compositions {
		selector, err := ParseSelector(cc.Selector)
		if err != nil {
			return nil, errors.NewConfigurationError("bad composition selector", err).
				WithComposition(cc.Name).WithField("selector")
		}

		entries := make([]Entry, 0, len(cc.Entries))
		for i, ec := range cc.Entries {
			role, err := vocabulary.Lookup(ec.Role)
			if err != nil {
				return nil, errors.NewConfigurationError("bad entry role", err).
					WithComposition(cc.Name).WithField(fmt.Sprintf("entries[%d].role", i))
			}
			sel, err := ParseSelector(ec.Selector)
			if err != nil {
				return nil, errors.NewConfigurationError("bad entry selector", err).
					WithComposition(cc.Name).WithField(fmt.Sprintf("entries[%d].selector", i))
			}
			entries = append(entries, Entry{Role: role, Selector: sel, Count: ec.Count})
		}

		spec, err := NewSpec(cc.Name, selector, entries)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return NewCatalog(vocabulary, specs...)
}

// Vocabulary returns the vocabulary the catalog was validated against.
func (c *Catalog) Vocabulary() *Vocabulary { return c.vocabulary }

// Specs returns the compositions in configuration order.
func (c *Catalog) Specs() []*Spec { return slices.Clone(c.specs) }

// Get returns the composition named name.
func (c *Catalog) Get(name string) (*Spec, bool) {
	for _, s := range c.specs {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Match returns the first composition whose selector matches demand.
func (c *Catalog) Match(demand string) (*Spec, bool) {
	for _, s := range c.specs {
		if s.Matches(demand) {
			return s, true
		}
	}
	return nil, false
}

// CanProvision reports whether any composition serves demand.
func (c *Catalog) CanProvision(demand string) bool {
	_, ok := c.Match(demand)
	return ok
}
