package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// requireGit skips tests that clone over the local file transport, which
// shells out to git-upload-pack.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// newRemote creates a repository holding one committed formula.
func newRemote(t *testing.T) (string, *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("cannot initialize git repo: %v", err)
	}
	commitFile(t, repo, dir, "changie.yaml", "name: changie\nversion: 1.20.0\n")
	return dir, repo
}

func commitFile(t *testing.T, repo *gogit.Repository, dir, name, content string) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("cannot create test file: %v", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := worktree.Add(name); err != nil {
		t.Fatalf("stage %s: %v", name, err)
	}
	hash, err := worktree.Commit("update "+name, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash.String()
}

func TestNewClient(t *testing.T) {
	repoPath := "/home/user/.config/pour/formulas"
	client := NewClient(repoPath)

	if client.Path() != repoPath {
		t.Errorf("Client.Path() = %q, want %q", client.Path(), repoPath)
	}
}

func TestClient_IsGitRepo(t *testing.T) {
	ctx := context.Background()

	ok, err := NewClient(t.TempDir()).IsGitRepo(ctx)
	if err != nil || ok {
		t.Errorf("IsGitRepo(empty dir) = %v, %v; want false, nil", ok, err)
	}

	remote, _ := newRemote(t)
	ok, err = NewClient(remote).IsGitRepo(ctx)
	if err != nil || !ok {
		t.Errorf("IsGitRepo(repo) = %v, %v; want true, nil", ok, err)
	}
}

func TestClient_CloneAndPull(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	remote, remoteRepo := newRemote(t)

	tapDir := filepath.Join(t.TempDir(), "formulas")
	client := NewClient(tapDir)
	if err := client.Clone(ctx, remote); err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tapDir, "changie.yaml")); err != nil {
		t.Fatalf("formula not checked out: %v", err)
	}

	updated, err := client.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if updated {
		t.Error("Pull() reported an update with nothing new upstream")
	}

	want := commitFile(t, remoteRepo, remote, "changie.yaml", "name: changie\nversion: 1.21.0\n")

	updated, err = client.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if !updated {
		t.Error("Pull() did not report the new commit")
	}

	head, err := client.HeadCommit(ctx)
	if err != nil {
		t.Fatalf("HeadCommit() error = %v", err)
	}
	if head != want {
		t.Errorf("HeadCommit() = %s, want %s", head, want)
	}

	data, _ := os.ReadFile(filepath.Join(tapDir, "changie.yaml"))
	if string(data) != "name: changie\nversion: 1.21.0\n" {
		t.Errorf("formula not updated: %q", data)
	}
}

func TestClient_CloneRejectsNonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "local.lua"), []byte("formula = {}"), 0644); err != nil {
		t.Fatal(err)
	}

	err := NewClient(dir).Clone(context.Background(), "https://example.com/tap.git")
	if !errors.Is(err, ErrDirNotEmpty) {
		t.Errorf("Clone() error = %v, want ErrDirNotEmpty", err)
	}

	if err := NewClient(t.TempDir()).Clone(context.Background(), ""); !errors.Is(err, ErrEmptyRemote) {
		t.Errorf("Clone(\"\") error = %v, want ErrEmptyRemote", err)
	}
}

func TestClient_PullOutsideRepo(t *testing.T) {
	_, err := NewClient(t.TempDir()).Pull(context.Background())
	if !errors.Is(err, ErrNotAGitRepo) {
		t.Errorf("Pull() error = %v, want ErrNotAGitRepo", err)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(t.TempDir())
	if err := client.Clone(ctx, "https://example.com/tap.git"); err == nil {
		t.Error("Clone() with cancelled context should fail")
	}
	if _, err := client.Pull(ctx); err == nil {
		t.Error("Pull() with cancelled context should fail")
	}
	if _, err := client.HeadCommit(ctx); err == nil {
		t.Error("HeadCommit() with cancelled context should fail")
	}
}
