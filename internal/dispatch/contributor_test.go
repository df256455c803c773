package dispatch

import (
	"testing"

	"github.com/Iron-Ham/compound/internal/compound"
)

func TestContributor(t *testing.T) {
	dir := compound.NewDirectory()
	newWorker(t, dir, "w", 2)
	c := NewContributor(dir)

	env := c.Environment("w")
	tests := map[string]string{
		"COMPOUND_NAME":     "w",
		"COMPOUND_ROOT":     "w-a1",
		"COMPOUND_ROLES":    "db",
		"COMPOUND_DB_COUNT": "2",
		"COMPOUND_DB_1":     "w-b1",
		"COMPOUND_DB_2":     "w-b2",
	}
	for k, want := range tests {
		if got := env[k]; got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}

	if env := c.Environment("plain"); env != nil {
		t.Errorf("Environment(plain) = %v, want nil", env)
	}
}
