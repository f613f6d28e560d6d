package resolver

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/ZebulonRouseFrantzich/pour/internal/formula"
)

// Layout is the set of directories install actions write into.
type Layout struct {
	Bin     string
	Libexec string
	Share   string
}

// NewLayout returns the conventional layout under prefix.
func NewLayout(prefix string) Layout {
	return Layout{
		Bin:     filepath.Join(prefix, "bin"),
		Libexec: filepath.Join(prefix, "libexec"),
		Share:   filepath.Join(prefix, "share"),
	}
}

func (l Layout) dirFor(kind formula.ActionKind) (string, os.FileMode, error) {
	switch kind {
	case formula.ActionBin:
		return l.Bin, 0o755, nil
	case formula.ActionLibexec:
		return l.Libexec, 0o755, nil
	case formula.ActionShare:
		return l.Share, 0o644, nil
	}
	return "", 0, fmt.Errorf("unknown install action kind %q", kind)
}

// Install runs the artifact's install actions in order against the
// extracted archive at root and returns the paths it wrote. It stops at
// the first failing action; later actions have no effect.
func Install(a formula.Artifact, root string, layout Layout) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("extracted root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("extracted root %s is not a directory", root)
	}

	installed := make([]string, 0, len(a.Install))
	for i, act := range a.Install {
		dest, err := runAction(act, root, layout)
		if err != nil {
			return installed, &InstallActionError{Index: i, Action: act, Path: act.Source, Err: err}
		}
		installed = append(installed, dest)
	}
	return installed, nil
}

func runAction(act formula.InstallAction, root string, layout Layout) (string, error) {
	destDir, mode, err := layout.dirFor(act.Kind)
	if err != nil {
		return "", err
	}

	// SecureJoin resolves symlinks inside root, so ".." or a link cannot
	// point the copy outside the archive.
	src, err := securejoin.SecureJoin(root, act.Source)
	if err != nil {
		return "", fmt.Errorf("resolve source: %w", err)
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("source missing from archive: %w", err)
	}
	if !srcInfo.Mode().IsRegular() {
		return "", fmt.Errorf("source is not a regular file: %w", fs.ErrInvalid)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", destDir, err)
	}

	dest := filepath.Join(destDir, act.DestName())
	if err := copyFileAtomic(src, dest, mode); err != nil {
		return "", err
	}
	return dest, nil
}

// copyFileAtomic writes src to a temp file beside dest and renames it into
// place so a reader never sees a partial file.
func copyFileAtomic(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanupNeeded := true
	defer func() {
		tmp.Close()
		if cleanupNeeded {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}

	cleanupNeeded = false
	return nil
}
