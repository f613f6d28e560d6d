package formula

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZebulonRouseFrantzich/pour/internal/logging"
)

// ErrNotFound is returned when no formula file exists for a name.
var ErrNotFound = errors.New("formula not found")

// Registry loads formulas from a directory of <name>.<ext> files.
type Registry struct {
	dir string
	log logging.Logger
}

// NewRegistry creates a registry rooted at dir.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, log: logging.Nop()}
}

// WithLogger sets the logger used while loading.
func (r *Registry) WithLogger(l logging.Logger) *Registry {
	if l != nil {
		r.log = l
	}
	return r
}

// Dir returns the registry directory.
func (r *Registry) Dir() string {
	return r.dir
}

// Load finds and parses the formula called name. The file's name field must
// match name.
func (r *Registry) Load(ctx context.Context, name string) (*Formula, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("invalid formula name %q", name)
	}

	for _, ext := range Extensions {
		path := filepath.Join(r.dir, name+ext)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat formula: %w", err)
		}

		r.log.Debug("loading formula", "name", name, "path", path)
		f, err := LoadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		if f.Name != name {
			return nil, fmt.Errorf("%s declares name %q, expected %q", path, f.Name, name)
		}
		return f, nil
	}

	return nil, fmt.Errorf("%w: %s (searched %s)", ErrNotFound, name, r.dir)
}

// Names lists the formula names available in the registry, sorted.
func (r *Registry) Names() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read formula dir: %w", err)
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := FormatFromPath(e.Name()); err != nil {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if ValidName(name) {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// LoadFile parses a single formula file, choosing the decoder by extension.
func LoadFile(ctx context.Context, path string) (*Formula, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open formula: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxFormulaSize+1))
	if err != nil {
		return nil, fmt.Errorf("read formula: %w", err)
	}

	f, err := Parse(ctx, format, data)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) && perr.Source == "" {
			perr.Source = path
		}
		return nil, err
	}
	f.Source = path
	return f, nil
}
