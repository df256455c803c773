package compound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/compound/internal/composition"
)

func newTestWorker(t *testing.T, opts ...WorkerOption) *Worker {
	t.Helper()
	w, err := NewWorker("Dynamic-compound-1", newTestRegistry(t), opts...)
	require.NoError(t, err)
	return w
}

func TestNewWorker_RequiresSealedRegistry(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(composition.Root, member("a1"))
	_, err := NewWorker("w", r)
	assert.Error(t, err)
}

func TestWorker_RootPath(t *testing.T) {
	tests := []struct {
		name string
		opts []WorkerOption
		want string
	}{
		{"default suffix", nil, "/srv/a1/compound-root"},
		{"custom suffix", []WorkerOption{WithRootSuffix("fleet")}, "/srv/a1/fleet"},
		{"empty suffix keeps default", []WorkerOption{WithRootSuffix("")}, "/srv/a1/compound-root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorker(t, tt.opts...)
			if got := w.RootPath(); got != tt.want {
				t.Errorf("RootPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWorker_Node(t *testing.T) {
	w := newTestWorker(t, WithLabel("web"), WithComposition("web"))
	node := w.Node()
	assert.Equal(t, "Dynamic-compound-1", node.Name)
	assert.Equal(t, []string{"web"}, node.Labels)
	assert.Equal(t, "/srv/a1/compound-root", node.RootDir)
	assert.Equal(t, "web", w.Composition())
}

func TestWorker_Environment(t *testing.T) {
	w := newTestWorker(t)

	env := w.Environment()
	assert.Equal(t, map[string]string{
		"COMPOUND_NAME":     "Dynamic-compound-1",
		"COMPOUND_ROOT":     "a1",
		"COMPOUND_ROLES":    "db",
		"COMPOUND_DB_COUNT": "2",
		"COMPOUND_DB_1":     "b1",
		"COMPOUND_DB_2":     "b2",
	}, env)

	// Cached: later registry changes are not reflected, and callers get a copy.
	env["COMPOUND_NAME"] = "mutated"
	w.Registry().Clear()
	assert.Equal(t, "Dynamic-compound-1", w.Environment()["COMPOUND_NAME"])
	assert.Equal(t, "b2", w.Environment()["COMPOUND_DB_2"])
}

func TestWorker_BeginTermination(t *testing.T) {
	w := newTestWorker(t)
	assert.Equal(t, StateAssembled, w.State())

	assert.True(t, w.BeginTermination())
	assert.False(t, w.BeginTermination())

	w.SetState(StateTerminated)
	assert.False(t, w.BeginTermination())
	assert.Equal(t, "terminated", w.State().String())
}
