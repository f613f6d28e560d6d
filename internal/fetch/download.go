// Package fetch downloads release artifacts and unpacks them.
//
// Downloads retry transient failures (transport errors, 429 and 5xx) with
// exponential backoff; other HTTP statuses fail at once. Artifacts can be
// cached by their expected checksum so a repeated install does not hit the
// network. Extraction supports tar.gz, tar.zst, tar, zip and bare files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dustin/go-humanize"

	"github.com/ZebulonRouseFrantzich/pour/internal/formula"
	"github.com/ZebulonRouseFrantzich/pour/internal/logging"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 5 * time.Minute
	// DefaultRetries is the default number of retries after the first attempt
	DefaultRetries = 3
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "pour/1.0"
	// DefaultMaxSize caps a single download
	DefaultMaxSize = 1 << 30
)

// StatusError is a non-200 HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status code %d", e.URL, e.Code)
}

// Temporary reports whether retrying could help.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Downloader handles HTTP downloads with retry logic
type Downloader struct {
	client         *http.Client
	cacheDir       string
	userAgent      string
	retries        uint
	initialBackoff time.Duration
	maxSize        int64
	log            logging.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithRetries sets how many times a failed download is retried.
func WithRetries(n uint) Option {
	return func(d *Downloader) { d.retries = n }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.client = c }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(d *Downloader) {
		if l != nil {
			d.log = l
		}
	}
}

// WithInitialBackoff sets the first retry delay.
func WithInitialBackoff(delay time.Duration) Option {
	return func(d *Downloader) { d.initialBackoff = delay }
}

// WithMaxSize caps the size of a single download.
func WithMaxSize(n int64) Option {
	return func(d *Downloader) { d.maxSize = n }
}

// NewDownloader creates a new downloader. An empty cacheDir disables the
// artifact cache.
func NewDownloader(cacheDir string, opts ...Option) *Downloader {
	d := &Downloader{
		client: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Allow up to 10 redirects
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		cacheDir:       cacheDir,
		userAgent:      DefaultUserAgent,
		retries:        DefaultRetries,
		initialBackoff: time.Second,
		maxSize:        DefaultMaxSize,
		log:            logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch downloads rawURL into memory, retrying transient failures.
// file:// URLs are read from disk.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "file" {
		return d.readLocal(u.Path)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.initialBackoff

	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		data, err := d.fetchOnce(ctx, rawURL)
		if err == nil {
			return data, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return nil, backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		d.log.Warn("download attempt failed", "url", rawURL, "attempt", attempt, "err", err)
		return nil, err
	}

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(d.retries+1),
	)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}

	d.log.Debug("downloaded", "url", rawURL, "size", humanize.Bytes(uint64(len(data))), "attempts", attempt)
	return data, nil
}

// fetchOnce performs a single download attempt
func (d *Downloader) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	return d.readLimited(resp.Body)
}

func (d *Downloader) readLocal(p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open local artifact: %w", err)
	}
	defer f.Close()
	return d.readLimited(f)
}

func (d *Downloader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > d.maxSize {
		return nil, backoff.Permanent(fmt.Errorf("artifact exceeds %s limit", humanize.Bytes(uint64(d.maxSize))))
	}
	return data, nil
}

// FetchArtifact returns the artifact bytes, serving them from the cache when
// a cached copy still hashes to sum. Fresh downloads are cached as-is; the
// caller is responsible for verifying them before use.
func (d *Downloader) FetchArtifact(ctx context.Context, rawURL string, sum formula.Checksum) ([]byte, error) {
	cachePath := d.cachePath(rawURL, sum)

	if cachePath != "" && fileExists(cachePath) {
		data, err := os.ReadFile(cachePath)
		if err == nil {
			if actual, sumErr := sum.Sum(data); sumErr == nil && actual == sum.Hex {
				d.log.Debug("using cached artifact", "path", cachePath)
				return data, nil
			}
		}
		d.log.Warn("discarding stale cache entry", "path", cachePath)
		os.Remove(cachePath)
	}

	data, err := d.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if cachePath != "" {
		if err := writeFileAtomic(cachePath, data); err != nil {
			d.log.Warn("could not cache artifact", "path", cachePath, "err", err)
		}
	}
	return data, nil
}

// cachePath is cache/{algo}/{hex}/{filename}
func (d *Downloader) cachePath(rawURL string, sum formula.Checksum) string {
	if d.cacheDir == "" || sum.Hex == "" {
		return ""
	}
	name := "artifact"
	if u, err := url.Parse(rawURL); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		name = path.Base(u.Path)
	}
	return filepath.Join(d.cacheDir, string(sum.Algorithm), sum.Hex, name)
}

func writeFileAtomic(destPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	tmpPath := destPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not empty
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}
