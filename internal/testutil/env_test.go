package testutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZebulonRouseFrantzich/pour/internal/testutil"
)

func TestSetupTestEnv(t *testing.T) {
	env := testutil.SetupTestEnv(t)

	vars := map[string]string{
		"POUR_PREFIX":      env.Prefix,
		"POUR_FORMULA_DIR": env.FormulaDir,
		"POUR_CACHE_DIR":   env.CacheDir,
		"HOME":             env.Home,
	}
	for name, want := range vars {
		if got := os.Getenv(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
		info, err := os.Stat(want)
		if err != nil {
			t.Errorf("directory %s not created: %v", want, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", want)
		}
	}
}

func TestSetupTestEnv_Isolation(t *testing.T) {
	var first string
	t.Run("first", func(t *testing.T) {
		first = testutil.SetupTestEnv(t).Root
	})
	t.Run("second", func(t *testing.T) {
		if testutil.SetupTestEnv(t).Root == first {
			t.Error("each test should get its own root")
		}
	})
}

func TestWriteFormula(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	path := env.WriteFormula(t, "changie.yaml", "name: changie\n")

	if path != filepath.Join(env.FormulaDir, "changie.yaml") {
		t.Errorf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "name: changie\n" {
		t.Errorf("unexpected content %q", data)
	}
}
