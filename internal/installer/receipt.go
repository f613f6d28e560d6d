package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Receipt records what one install wrote into the prefix.
type Receipt struct {
	Name        string    `yaml:"name"`
	Version     string    `yaml:"version,omitempty"`
	Platform    string    `yaml:"platform"`
	URL         string    `yaml:"url"`
	Checksum    string    `yaml:"checksum"`
	Signed      bool      `yaml:"signed,omitempty"`
	Files       []string  `yaml:"files"`
	InstalledAt time.Time `yaml:"installed_at"`
}

// Current reports whether the receipt already covers the given artifact
// and every file it lists is still on disk.
func (r *Receipt) Current(url, checksum string) bool {
	if r == nil || r.URL != url || !strings.EqualFold(r.Checksum, checksum) {
		return false
	}
	for _, f := range r.Files {
		if _, err := os.Stat(f); err != nil {
			return false
		}
	}
	return true
}

// ReceiptStore keeps one YAML receipt per package under <prefix>/receipts.
type ReceiptStore struct {
	dir string
}

// NewReceiptStore returns a store rooted at dir.
func NewReceiptStore(dir string) *ReceiptStore {
	return &ReceiptStore{dir: dir}
}

func (s *ReceiptStore) path(name string) string {
	return filepath.Join(s.dir, name+".yaml")
}

// Load returns the receipt for name, or nil when the package was never
// installed.
func (s *ReceiptStore) Load(name string) (*Receipt, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read receipt: %w", err)
	}

	var r Receipt
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse receipt %s: %w", s.path(name), err)
	}
	return &r, nil
}

// Save writes r atomically.
func (s *ReceiptStore) Save(r *Receipt) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create receipt dir: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	dest := s.path(r.Name)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write receipt: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename receipt: %w", err)
	}
	return nil
}

// List returns every receipt, sorted by package name. A missing receipt
// directory is an empty list.
func (s *ReceiptStore) List() ([]*Receipt, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read receipt dir: %w", err)
	}

	var receipts []*Receipt
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		r, err := s.Load(strings.TrimSuffix(e.Name(), ".yaml"))
		if err != nil {
			return nil, err
		}
		if r != nil {
			receipts = append(receipts, r)
		}
	}

	sort.Slice(receipts, func(i, j int) bool { return receipts[i].Name < receipts[j].Name })
	return receipts, nil
}
