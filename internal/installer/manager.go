// Package installer drives a package from formula to installed files:
// load, detect, resolve, download, verify, extract, install, record.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZebulonRouseFrantzich/pour/internal/fetch"
	"github.com/ZebulonRouseFrantzich/pour/internal/formula"
	"github.com/ZebulonRouseFrantzich/pour/internal/logging"
	"github.com/ZebulonRouseFrantzich/pour/internal/platform"
	"github.com/ZebulonRouseFrantzich/pour/internal/resolver"
	"github.com/ZebulonRouseFrantzich/pour/internal/transaction"
)

// DefaultJobs is how many packages InstallAll works on at once.
const DefaultJobs = 4

// Fetcher downloads artifacts and signatures.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
	FetchArtifact(ctx context.Context, rawURL string, sum formula.Checksum) ([]byte, error)
}

// Config holds configuration for the manager
type Config struct {
	// Prefix is the install root; bin, libexec, share and receipts live
	// under it.
	Prefix string
	// FormulaDir holds <name>.<ext> formula files.
	FormulaDir string
	// Jobs bounds InstallAll's parallelism. Zero means DefaultJobs.
	Jobs int

	Detector platform.Detector
	Fetcher  Fetcher
	Clock    Clock
	Logger   logging.Logger
}

// Options tune a single install run.
type Options struct {
	// Force reinstalls even when a current receipt exists.
	Force bool
	// SkipSignature ignores artifact signature URLs.
	SkipSignature bool
}

// Result describes one installed (or skipped) package.
type Result struct {
	Package  string
	Version  string
	Key      platform.Key
	Artifact formula.Artifact
	Files    []string
	// Size is the downloaded artifact size in bytes; zero when skipped.
	Size     int64
	Signed   bool
	Skipped  bool
	Duration time.Duration
}

// Manager orchestrates formula resolution, download, verification and
// installation into one prefix.
type Manager struct {
	prefix    string
	layout    resolver.Layout
	registry  *formula.Registry
	receipts  *ReceiptStore
	detector  platform.Detector
	fetcher   Fetcher
	extractor *fetch.Extractor
	clock     Clock
	jobs      int
	log       logging.Logger
}

// NewManager creates a new manager
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Prefix == "" {
		return nil, fmt.Errorf("prefix is required")
	}
	if cfg.FormulaDir == "" {
		return nil, fmt.Errorf("formula dir is required")
	}

	m := &Manager{
		prefix:    cfg.Prefix,
		layout:    resolver.NewLayout(cfg.Prefix),
		receipts:  NewReceiptStore(filepath.Join(cfg.Prefix, "receipts")),
		detector:  cfg.Detector,
		fetcher:   cfg.Fetcher,
		extractor: fetch.NewExtractor(),
		clock:     cfg.Clock,
		jobs:      cfg.Jobs,
		log:       cfg.Logger,
	}
	if m.log == nil {
		m.log = logging.Nop()
	}
	if m.detector == nil {
		m.detector = platform.NewDetector()
	}
	if m.fetcher == nil {
		m.fetcher = fetch.NewDownloader("", fetch.WithLogger(m.log))
	}
	if m.clock == nil {
		m.clock = systemClock{}
	}
	if m.jobs <= 0 {
		m.jobs = DefaultJobs
	}
	m.registry = formula.NewRegistry(cfg.FormulaDir).WithLogger(m.log)
	return m, nil
}

// Registry exposes the formula registry.
func (m *Manager) Registry() *formula.Registry {
	return m.registry
}

// Receipts exposes the prefix's receipt store.
func (m *Manager) Receipts() *ReceiptStore {
	return m.receipts
}

// Layout is where install actions write.
func (m *Manager) Layout() resolver.Layout {
	return m.layout
}

// HostKey probes the running host.
func (m *Manager) HostKey(ctx context.Context) (platform.Key, error) {
	info, err := m.detector.Detect(ctx)
	if err != nil {
		return platform.Key{}, fmt.Errorf("detect platform: %w", err)
	}
	m.log.Debug("detected platform", "platform", info.Key().String(), "process_arch", info.ArchRaw, "kernel_arch", info.KernelArch)
	return info.Key(), nil
}

// Resolve loads the named formula and picks its artifact for key. Nothing
// is downloaded.
func (m *Manager) Resolve(ctx context.Context, name string, key platform.Key) (*formula.Formula, formula.Artifact, error) {
	f, err := m.registry.Load(ctx, name)
	if err != nil {
		return nil, formula.Artifact{}, err
	}
	a, err := resolver.ResolveFormula(f, key)
	if err != nil {
		return f, formula.Artifact{}, err
	}
	return f, a, nil
}

// Install installs a single package for the probed host.
func (m *Manager) Install(ctx context.Context, name string, opts Options) (*Result, error) {
	results, err := m.InstallAll(ctx, []string{name}, opts)
	if len(results) == 0 {
		return nil, err
	}
	return results[0], err
}

// InstallAll installs names concurrently under the prefix lock. Packages
// are independent: one failing does not stop the others. Results are in
// argument order with nil for failed packages; the error joins each
// failure in argument order.
func (m *Manager) InstallAll(ctx context.Context, names []string, opts Options) ([]*Result, error) {
	key, err := m.HostKey(ctx)
	if err != nil {
		return nil, err
	}

	lock, err := transaction.AcquireLock(ctx, m.prefix)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			m.log.Warn("could not release prefix lock", "path", lock.Path(), "err", err)
		}
	}()

	results := make([]*Result, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(m.jobs)
	for i, name := range names {
		g.Go(func() error {
			res, err := m.installOne(ctx, name, key, opts)
			if err != nil {
				m.log.Error("install failed", "package", name, "err", err)
				errs[i] = fmt.Errorf("install %s: %w", name, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

func (m *Manager) installOne(ctx context.Context, name string, key platform.Key, opts Options) (*Result, error) {
	start := time.Now()

	// Resolve before anything touches the network.
	f, a, err := m.Resolve(ctx, name, key)
	if err != nil {
		return nil, err
	}
	res := &Result{Package: f.Name, Version: f.Version, Key: key, Artifact: a}

	if !opts.Force {
		prev, err := m.receipts.Load(f.Name)
		if err != nil {
			m.log.Warn("ignoring unreadable receipt", "package", f.Name, "err", err)
		} else if prev.Current(a.URL, a.Checksum.String()) {
			m.log.Info("already installed", "package", f.Name, "version", prev.Version)
			res.Files = prev.Files
			res.Signed = prev.Signed
			res.Skipped = true
			res.Duration = time.Since(start)
			return res, nil
		}
	}

	m.log.Info("downloading", "package", f.Name, "platform", key.String(), "url", a.URL)
	data, err := m.fetcher.FetchArtifact(ctx, a.URL, a.Checksum)
	if err != nil {
		return nil, err
	}

	if _, err := resolver.Verify(a, data); err != nil {
		return nil, err
	}
	res.Size = int64(len(data))

	if a.SignatureURL != "" && !opts.SkipSignature {
		sig, err := m.fetcher.Fetch(ctx, a.SignatureURL)
		if err != nil {
			return nil, fmt.Errorf("download signature: %w", err)
		}
		if err := resolver.VerifySignature(a, data, sig, f.PublicKey); err != nil {
			return nil, err
		}
		res.Signed = true
	}

	staging := filepath.Join(m.prefix, ".staging")
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	root, err := os.MkdirTemp(staging, f.Name+"-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(root)

	if err := m.extractor.Extract(data, fetch.ArtifactName(a.URL), root); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	files, err := resolver.Install(a, root, m.layout)
	res.Files = files
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		Name:        f.Name,
		Version:     f.Version,
		Platform:    key.String(),
		URL:         a.URL,
		Checksum:    a.Checksum.String(),
		Signed:      res.Signed,
		Files:       files,
		InstalledAt: m.clock.Now(),
	}
	if err := m.receipts.Save(receipt); err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	m.log.Info("installed", "package", f.Name, "version", f.Version, "files", len(files), "duration", res.Duration.String())
	return res, nil
}
