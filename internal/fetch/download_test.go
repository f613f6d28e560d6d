package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/pour/internal/formula"
)

func newTestDownloader(cacheDir string, opts ...Option) *Downloader {
	opts = append([]Option{WithInitialBackoff(time.Millisecond)}, opts...)
	return NewDownloader(cacheDir, opts...)
}

func sumOf(data string) formula.Checksum {
	s := sha256.Sum256([]byte(data))
	return formula.Checksum{Algorithm: formula.SHA256, Hex: hex.EncodeToString(s[:])}
}

func TestDownloaderFetch(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    bool
	}{
		{
			name:       "successful_download",
			statusCode: http.StatusOK,
			body:       "test binary content",
			wantErr:    false,
		},
		{
			name:       "404_not_found",
			statusCode: http.StatusNotFound,
			body:       "not found",
			wantErr:    true,
		},
		{
			name:       "500_server_error",
			statusCode: http.StatusInternalServerError,
			body:       "server error",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("User-Agent") != DefaultUserAgent {
					t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
				}

				w.WriteHeader(tt.statusCode)
				if _, err := w.Write([]byte(tt.body)); err != nil {
					t.Errorf("failed to write response: %v", err)
				}
			}))
			defer server.Close()

			downloader := newTestDownloader("", WithRetries(1))

			data, err := downloader.Fetch(context.Background(), server.URL)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.Code != tt.statusCode {
					t.Errorf("expected StatusError %d, got %v", tt.statusCode, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(data) != tt.body {
				t.Errorf("content mismatch:\ngot:  %q\nwant: %q", string(data), tt.body)
			}
		})
	}
}

func TestDownloaderRetryLogic(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("success")); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	downloader := newTestDownloader("", WithRetries(3))

	data, err := downloader.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected success after retries, got error: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
	if string(data) != "success" {
		t.Errorf("unexpected content: %s", string(data))
	}
}

func TestDownloaderRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	downloader := newTestDownloader("", WithRetries(2))
	if _, err := downloader.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestDownloaderClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	downloader := newTestDownloader("", WithRetries(5))
	if _, err := downloader.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("4xx should not be retried, got %d attempts", attempts.Load())
	}
}

func TestDownloaderContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("too late")); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	downloader := newTestDownloader("")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := downloader.Fetch(ctx, server.URL)
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
	if !strings.Contains(err.Error(), "context") {
		t.Errorf("expected context error, got: %v", err)
	}
}

func TestDownloaderMaxSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(strings.Repeat("x", 64))); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	downloader := newTestDownloader("", WithMaxSize(16), WithRetries(3))
	_, err := downloader.Fetch(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("expected size limit error, got %v", err)
	}
}

func TestDownloaderFileURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.tar.gz")
	if err := os.WriteFile(path, []byte("local bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := newTestDownloader("").Fetch(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("fetch file url: %v", err)
	}
	if string(data) != "local bytes" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestDownloaderFetchArtifactCache(t *testing.T) {
	mockContent := "mock archive content for testing"
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(mockContent)); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	downloader := newTestDownloader(cacheDir)
	url := server.URL + "/changie_1.21.0_linux_amd64.tar.gz"
	sum := sumOf(mockContent)

	first, err := downloader.FetchArtifact(context.Background(), url, sum)
	if err != nil {
		t.Fatalf("first download failed: %v", err)
	}
	if string(first) != mockContent {
		t.Errorf("content mismatch:\ngot:  %q\nwant: %q", first, mockContent)
	}

	cached := filepath.Join(cacheDir, "sha256", sum.Hex, "changie_1.21.0_linux_amd64.tar.gz")
	if !fileExists(cached) {
		t.Fatalf("expected cache entry at %s", cached)
	}

	second, err := downloader.FetchArtifact(context.Background(), url, sum)
	if err != nil {
		t.Fatalf("second download failed: %v", err)
	}
	if string(second) != mockContent {
		t.Errorf("cached content mismatch: %q", second)
	}
	if requests.Load() != 1 {
		t.Errorf("cache was not used for second download, %d requests", requests.Load())
	}
}

func TestDownloaderFetchArtifactStaleCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "fresh")
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	sum := sumOf("fresh")
	stale := filepath.Join(cacheDir, "sha256", sum.Hex, "artifact")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("corrupted"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := newTestDownloader(cacheDir).FetchArtifact(context.Background(), server.URL, sum)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "fresh" {
		t.Errorf("stale cache entry was served: %q", data)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		setup    func() string
		expected bool
	}{
		{
			name: "existing_file",
			setup: func() string {
				path := filepath.Join(tmpDir, "exists.txt")
				if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
					t.Fatalf("failed to write file: %v", err)
				}
				return path
			},
			expected: true,
		},
		{
			name: "empty_file",
			setup: func() string {
				path := filepath.Join(tmpDir, "empty.txt")
				if err := os.WriteFile(path, []byte(""), 0644); err != nil {
					t.Fatalf("failed to write file: %v", err)
				}
				return path
			},
			expected: false,
		},
		{
			name: "directory",
			setup: func() string {
				path := filepath.Join(tmpDir, "dir")
				if err := os.MkdirAll(path, 0755); err != nil {
					t.Fatalf("failed to create directory: %v", err)
				}
				return path
			},
			expected: false,
		},
		{
			name: "non_existent",
			setup: func() string {
				return filepath.Join(tmpDir, "doesnotexist.txt")
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup()
			if got := fileExists(path); got != tt.expected {
				t.Errorf("fileExists(%s) = %v, want %v", path, got, tt.expected)
			}
		})
	}
}

func TestDownloaderRedirectHandling(t *testing.T) {
	redirectCount := 0
	finalContent := "final content after redirects"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if redirectCount < 3 {
			redirectCount++
			http.Redirect(w, r, fmt.Sprintf("/redirect-%d", redirectCount), http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(finalContent)); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	data, err := newTestDownloader("").Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("download with redirects failed: %v", err)
	}
	if string(data) != finalContent {
		t.Errorf("unexpected content after redirects: %s", string(data))
	}
	if redirectCount != 3 {
		t.Errorf("expected 3 redirects, got %d", redirectCount)
	}
}
