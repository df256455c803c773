package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/compound/internal/backend"
	"github.com/Iron-Ham/compound/internal/config"
	"github.com/Iron-Ham/compound/internal/errors"
	"github.com/Iron-Ham/compound/internal/logging"
)

// Provider prepares workspaces on members.
type Provider interface {
	PrepareWorkspace(ctx context.Context, m backend.Member, jobID string) (*Lease, error)
}

// Lease is a workspace held by one dispatch. Release it when done.
type Lease struct {
	Member string
	Path   string

	once    sync.Once
	release func()
}

// Release gives the path back. It is safe to call more than once.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		if l.release != nil {
			l.release()
		}
	})
}

// DirProvider creates workspace directories on a filesystem shared with
// the members, typically the OS filesystem.
type DirProvider struct {
	fs     afero.Fs
	cfg    config.WorkspaceConfig
	logger *logging.Logger

	mu     sync.Mutex
	leased map[string]bool // path -> in use
}

// Option configures a DirProvider.
type Option func(*DirProvider)

// WithFs replaces the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(p *DirProvider) { p.fs = fs }
}

// WithLogger sets the provider logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *DirProvider) { p.logger = logger }
}

// NewDirProvider creates a provider laying out workspaces per cfg.
func NewDirProvider(cfg config.WorkspaceConfig, opts ...Option) *DirProvider {
	p := &DirProvider{
		fs:     afero.NewOsFs(),
		cfg:    cfg,
		logger: logging.NopLogger(),
		leased: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ Provider = (*DirProvider)(nil)

// PrepareWorkspace leases and creates the workspace for jobID on m.
func (p *DirProvider) PrepareWorkspace(ctx context.Context, m backend.Member, jobID string) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := sanitize(jobID)
	if name == "" {
		return nil, errors.NewValidationError("job id is required").WithField("jobID").WithValue(jobID)
	}
	if m.RootDir == "" && !filepath.IsAbs(p.cfg.Dir) {
		return nil, errors.NewValidationError("member has no root directory").WithField("root_dir").WithValue(m.Name)
	}

	base := filepath.Join(p.cfg.ResolveDir(m.RootDir), name)
	path := p.lease(base)

	if err := p.fs.MkdirAll(path, 0o755); err != nil {
		p.unlease(path)
		return nil, fmt.Errorf("create workspace %s on %s: %w", path, m.Name, err)
	}

	p.logger.Debug("workspace leased", "member", m.Name, "path", path)
	return &Lease{
		Member:  m.Name,
		Path:    path,
		release: func() { p.unlease(path) },
	}, nil
}

// lease picks the first free path among base, base@2, base@3, ...
func (p *DirProvider) lease(base string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	path := base
	for i := 2; p.leased[path]; i++ {
		path = fmt.Sprintf("%s@%d", base, i)
	}
	p.leased[path] = true
	return path
}

func (p *DirProvider) unlease(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.leased, path)
}

// Leased returns the number of paths currently held.
func (p *DirProvider) Leased() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.leased)
}

// sanitize turns a job id such as "folder/job #12" into a single path
// element.
func sanitize(jobID string) string {
	jobID = strings.TrimSpace(jobID)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return '_'
		case r == ' ':
			return '-'
		default:
			return r
		}
	}, strings.Trim(jobID, "./"))
}
