package dispatch

import "github.com/Iron-Ham/compound/internal/compound"

// Contributor supplies the variables describing a compound worker to jobs
// that run on it. It contributes nothing on plain nodes.
type Contributor struct {
	directory *compound.Directory
}

// NewContributor creates a Contributor over directory.
func NewContributor(directory *compound.Directory) *Contributor {
	return &Contributor{directory: directory}
}

// Environment returns the variables for node, or nil.
func (c *Contributor) Environment(node string) map[string]string {
	if n, ok := c.directory.Resolve(node).(compound.Compound); ok {
		return n.Worker.Environment()
	}
	return nil
}
