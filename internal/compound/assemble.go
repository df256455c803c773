package compound

import (
	"fmt"

	"github.com/Iron-Ham/compound/internal/backend"
	"github.com/Iron-Ham/compound/internal/composition"
	"github.com/Iron-Ham/compound/internal/errors"
	"github.com/Iron-Ham/compound/internal/host"
)

// Assignment places a named host node into a role.
type Assignment struct {
	Member string
	Role   composition.Role
}

// Assembler builds compound workers by hand from nodes the host already
// knows, instead of provisioning them.
type Assembler struct {
	directory  *Directory
	hosts      host.Registry
	inventory  backend.Inventory
	vocabulary *composition.Vocabulary
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithInventory lets the assembler learn which members the backend owns.
// Without it every member is treated as a plain registered node.
func WithInventory(inv backend.Inventory) AssemblerOption {
	return func(a *Assembler) { a.inventory = inv }
}

// WithVocabulary restricts assignments to the roles of v.
func WithVocabulary(v *composition.Vocabulary) AssemblerOption {
	return func(a *Assembler) { a.vocabulary = v }
}

// NewAssembler creates an Assembler.
func NewAssembler(directory *Directory, hosts host.Registry, opts ...AssemblerOption) *Assembler {
	a := &Assembler{directory: directory, hosts: hosts}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds a sealed worker named name. It does not add the worker to
// the directory; the caller does that once the members are occupied.
func (a *Assembler) Assemble(name string, assignments []Assignment, opts ...WorkerOption) (*Worker, error) {
	if _, exists := a.directory.Get(name); exists {
		return nil, errors.NewAlreadyExistsError("compound worker", name)
	}

	registry := NewRegistry()
	for i, as := range assignments {
		field := fmt.Sprintf("assignments[%d]", i)
		cfgErr := func(msg string, cause error) error {
			return errors.NewConfigurationError(msg, cause).WithComposition(name).WithField(field)
		}

		if a.vocabulary != nil && !a.vocabulary.Contains(as.Role) {
			return nil, cfgErr(fmt.Sprintf("role %q is not in vocabulary v%d", as.Role, a.vocabulary.Version()), errors.ErrInvalidRole)
		}
		if _, nested := a.directory.Get(as.Member); nested {
			return nil, cfgErr(fmt.Sprintf("member %s is itself a compound worker", as.Member), errors.ErrNestedCompound)
		}
		if owner, taken := a.directory.Owner(as.Member); taken {
			return nil, cfgErr(fmt.Sprintf("member %s belongs to %s", as.Member, owner.Name()), errors.ErrAlreadyOccupied)
		}

		m, err := a.member(as.Member)
		if err != nil {
			return nil, cfgErr(fmt.Sprintf("member %s", as.Member), err)
		}
		if err := registry.Add(as.Role, m); err != nil {
			return nil, cfgErr("assign member", err)
		}
	}

	if err := registry.Seal(); err != nil {
		return nil, errors.NewConfigurationError("no ROOT member assigned", err).WithComposition(name)
	}
	return NewWorker(name, registry, opts...)
}

func (a *Assembler) member(name string) (backend.Member, error) {
	node, ok := a.hosts.Node(name)
	if !ok {
		return backend.Member{}, errors.NewNotFoundError("node", name).WithCause(errors.ErrMemberNotFound)
	}
	m := backend.Member{
		Name:    node.Name,
		Labels:  node.Labels,
		RootDir: node.RootDir,
		Slots:   max(node.Slots, 1),
	}
	if a.inventory != nil {
		if known, ok := a.inventory.Lookup(name); ok {
			m.Owned = known.Owned
		}
	}
	return m, nil
}
