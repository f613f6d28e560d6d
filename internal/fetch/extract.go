package fetch

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/klauspost/compress/zstd"
)

// ArchiveFormat is how a downloaded artifact is unpacked.
type ArchiveFormat string

const (
	FormatTarGz  ArchiveFormat = "tar.gz"
	FormatTarZst ArchiveFormat = "tar.zst"
	FormatTar    ArchiveFormat = "tar"
	FormatZip    ArchiveFormat = "zip"
	// FormatRaw is a bare file, written to the root under its URL basename.
	FormatRaw ArchiveFormat = "raw"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	zipMagic  = []byte("PK\x03\x04")
)

// DetectFormat picks the archive format from the artifact name, falling
// back to the leading magic bytes when the name has no known suffix.
func DetectFormat(name string, data []byte) ArchiveFormat {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return FormatTarZst
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	}

	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return FormatTarGz
	case bytes.HasPrefix(data, zstdMagic):
		return FormatTarZst
	case bytes.HasPrefix(data, zipMagic):
		return FormatZip
	}
	return FormatRaw
}

// ArtifactName is the last path element of an artifact URL.
func ArtifactName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	return path.Base(u.Path)
}

// Extractor handles archive extraction
type Extractor struct{}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract unpacks data into destDir. name is the artifact file name and
// selects the format. Entries that would land outside destDir are an error.
func (e *Extractor) Extract(data []byte, name, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	switch DetectFormat(name, data) {
	case FormatTarGz:
		gzipReader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		return extractTar(tar.NewReader(gzipReader), destDir)

	case FormatTarZst:
		zstdReader, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("create zstd reader: %w", err)
		}
		defer zstdReader.Close()
		return extractTar(tar.NewReader(zstdReader), destDir)

	case FormatTar:
		return extractTar(tar.NewReader(bytes.NewReader(data)), destDir)

	case FormatZip:
		return extractZip(data, destDir)

	default:
		base := filepath.Base(name)
		if !filepath.IsLocal(base) {
			return fmt.Errorf("illegal file name: %s", name)
		}
		return writeEntry(filepath.Join(destDir, base), bytes.NewReader(data), 0o755)
	}
}

// entryPath maps an archive entry name to a path under destDir. Symlinks
// already extracted are resolved inside destDir, never past it.
func entryPath(destDir, name string) (string, error) {
	clean := filepath.FromSlash(name)
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("illegal file path: %s", name)
	}
	target, err := securejoin.SecureJoin(destDir, clean)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	return target, nil
}

// checkLinkTarget rejects absolute link targets and relative ones that climb
// out of the archive root.
func checkLinkTarget(name, linkname string) error {
	if filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return fmt.Errorf("illegal symlink %s -> %s", name, linkname)
	}
	resolved := filepath.Join(filepath.Dir(filepath.FromSlash(name)), filepath.FromSlash(linkname))
	if !filepath.IsLocal(resolved) {
		return fmt.Errorf("illegal symlink %s -> %s", name, linkname)
	}
	return nil
}

func extractTar(tarReader *tar.Reader, destDir string) error {
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := entryPath(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			perm := os.FileMode(header.Mode).Perm()
			if perm == 0 {
				perm = 0o644
			}
			if err := writeEntry(target, tarReader, perm); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := checkLinkTarget(header.Name, header.Linkname); err != nil {
				return err
			}
			if err := makeSymlink(header.Linkname, target); err != nil {
				return err
			}

		case tar.TypeLink:
			source, err := entryPath(destDir, header.Linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", target, err)
			}
			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("create hard link %s: %w", target, err)
			}

		default:
			// Skip other types (char devices, block devices, etc.)
			continue
		}
	}
}

func extractZip(data []byte, destDir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	for _, f := range zr.File {
		target, err := entryPath(destDir, f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case mode&os.ModeSymlink != 0:
			linkname, err := readZipEntry(f)
			if err != nil {
				return err
			}
			if err := checkLinkTarget(f.Name, string(linkname)); err != nil {
				return err
			}
			if err := makeSymlink(string(linkname), target); err != nil {
				return err
			}

		case mode.IsRegular():
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", f.Name, err)
			}
			perm := mode.Perm()
			if perm == 0 {
				perm = 0o644
			}
			err = writeEntry(target, rc, perm)
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}

	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	return outFile.Close()
}

func makeSymlink(linkname, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("create symlink %s: %w", target, err)
	}
	return nil
}
