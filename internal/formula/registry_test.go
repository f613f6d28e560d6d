package formula

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFormula(t *testing.T, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
}

func TestRegistry_Load(t *testing.T) {
	dir := t.TempDir()
	writeFormula(t, dir, "tool.yaml", yamlFormula)

	reg := NewRegistry(dir)
	f, err := reg.Load(context.Background(), "tool")
	require.NoError(t, err)
	assert.Equal(t, "tool", f.Name)
	assert.Equal(t, filepath.Join(dir, "tool.yaml"), f.Source)
}

func TestRegistry_PrefersLua(t *testing.T) {
	dir := t.TempDir()
	writeFormula(t, dir, "tool.lua", luaFormula)
	writeFormula(t, dir, "tool.toml", "not toml at all [")

	f, err := NewRegistry(dir).Load(context.Background(), "tool")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tool.lua"), f.Source)
}

func TestRegistry_NotFound(t *testing.T) {
	_, err := NewRegistry(t.TempDir()).Load(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistry_RejectsUnsafeNames(t *testing.T) {
	reg := NewRegistry(t.TempDir())
	for _, name := range []string{"../tool", "Tool", "", "a/b"} {
		_, err := reg.Load(context.Background(), name)
		assert.ErrorContains(t, err, "invalid formula name", name)
	}
}

func TestRegistry_NameMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFormula(t, dir, "other.yaml", yamlFormula)

	_, err := NewRegistry(dir).Load(context.Background(), "other")
	assert.ErrorContains(t, err, `declares name "tool"`)
}

func TestRegistry_ParseErrorCarriesSource(t *testing.T) {
	dir := t.TempDir()
	writeFormula(t, dir, "tool.lua", "formula = {")

	_, err := NewRegistry(dir).Load(context.Background(), "tool")
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, filepath.Join(dir, "tool.lua"), perr.Source)
}

func TestRegistry_Names(t *testing.T) {
	dir := t.TempDir()
	writeFormula(t, dir, "b.yaml", "")
	writeFormula(t, dir, "a.lua", "")
	writeFormula(t, dir, "a.toml", "")
	writeFormula(t, dir, "README.md", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c.lua"), 0o755))

	names, err := NewRegistry(dir).Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}
