package internal

import (
	"bytes"
	"go/format"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// projectRoot returns the module root whether tests run from internal/ or
// from the root itself.
func projectRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if filepath.Base(wd) == "internal" {
		return filepath.Dir(wd)
	}
	return wd
}

// goFiles lists the .go files under dir, skipping hidden directories.
func goFiles(t *testing.T, dir string) []string {
	t.Helper()

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to walk directory %s: %v", dir, err)
	}
	return files
}

// TestGofmtCompliance fails for any source file gofmt would rewrite.
// If this test fails, run: gofmt -w ./internal/ ./cmd/
func TestGofmtCompliance(t *testing.T) {
	root := projectRoot(t)

	for _, dir := range []string{"internal", "cmd"} {
		t.Run(dir, func(t *testing.T) {
			for _, path := range goFiles(t, filepath.Join(root, dir)) {
				content, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("Failed to read %s: %v", path, err)
				}
				formatted, err := format.Source(content)
				if err != nil {
					t.Errorf("%s does not parse: %v", path, err)
					continue
				}
				if !bytes.Equal(content, formatted) {
					rel, _ := filepath.Rel(root, path)
					t.Errorf("%s is not gofmt'd", rel)
				}
			}
		})
	}
}

// TestPackageDocs checks that every package under internal/ has a package
// comment.
func TestPackageDocs(t *testing.T) {
	root := filepath.Join(projectRoot(t), "internal")

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", root, err)
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "cmd" {
			continue
		}
		dir := filepath.Join(root, e.Name())
		files, err := filepath.Glob(filepath.Join(dir, "*.go"))
		if err != nil {
			t.Fatalf("Failed to list %s: %v", dir, err)
		}
		documented := false
		for _, path := range files {
			if strings.HasSuffix(path, "_test.go") {
				continue
			}
			f, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.PackageClauseOnly|parser.ParseComments)
			if err != nil {
				t.Errorf("%s: %v", path, err)
				continue
			}
			documented = documented || f.Doc != nil
		}
		if !documented {
			t.Errorf("internal/%s has no package comment", e.Name())
		}
	}
}

// TestGolangciLintCompliance runs golangci-lint when it is installed.
func TestGolangciLintCompliance(t *testing.T) {
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		t.Skip("golangci-lint not found in PATH, skipping test")
	}

	cmd := exec.Command("golangci-lint", "run", "--allow-parallel-runners", "./...")
	cmd.Dir = projectRoot(t)
	// A per-test cache keeps restricted runners writable.
	cmd.Env = append(os.Environ(), "GOCACHE="+t.TempDir())
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Errorf("golangci-lint found issues:\n%s", output)
	}
}
