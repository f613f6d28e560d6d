// Package testutil provides utilities for testing pour in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Env is an isolated set of pour directories.
type Env struct {
	Root       string
	Prefix     string
	FormulaDir string
	CacheDir   string
	Home       string
}

// SetupTestEnv creates isolated directories for one test and points the
// POUR_* environment at them, so a test never touches a real prefix, the
// user's cache or a .pour.yaml in their home directory.
//
// Cleanup is handled by t.TempDir and t.Setenv.
func SetupTestEnv(t *testing.T) *Env {
	t.Helper()

	tmpDir := t.TempDir()
	env := &Env{
		Root:       tmpDir,
		Prefix:     filepath.Join(tmpDir, "prefix"),
		FormulaDir: filepath.Join(tmpDir, "formulas"),
		CacheDir:   filepath.Join(tmpDir, "cache"),
		Home:       filepath.Join(tmpDir, "home"),
	}

	t.Setenv("POUR_PREFIX", env.Prefix)
	t.Setenv("POUR_FORMULA_DIR", env.FormulaDir)
	t.Setenv("POUR_CACHE_DIR", env.CacheDir)
	t.Setenv("HOME", env.Home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(env.Home, ".config"))

	for _, dir := range []string{env.Prefix, env.FormulaDir, env.CacheDir, env.Home} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	return env
}

// WriteFormula writes a formula file into the environment's formula
// directory and returns its path.
func (e *Env) WriteFormula(t *testing.T, fileName, content string) string {
	t.Helper()
	path := filepath.Join(e.FormulaDir, fileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write formula %s: %v", fileName, err)
	}
	return path
}
