// Package git keeps a formula directory in sync with a git remote (a "tap").
package git

import (
	"context"
	"errors"
	"fmt"
	"os"

	gogit "github.com/go-git/go-git/v5"
)

// Common Git errors
var (
	ErrNotAGitRepo  = errors.New("not a git repository")
	ErrInvalidRepo  = errors.New("invalid git repository")
	ErrDirNotEmpty  = errors.New("directory exists and is not empty")
	ErrEmptyRemote  = errors.New("remote url cannot be empty")
	ErrDetachedHead = errors.New("tap is not on a branch")
)

// Tap is the interface for formula tap operations.
type Tap interface {
	Clone(ctx context.Context, url string) error
	Pull(ctx context.Context) (bool, error)
	HeadCommit(ctx context.Context) (string, error)
	IsGitRepo(ctx context.Context) (bool, error)
}

// Client implements Tap with go-git.
type Client struct {
	repoPath string
}

// NewClient creates a new client for the tap checked out at repoPath.
func NewClient(repoPath string) *Client {
	return &Client{
		repoPath: repoPath,
	}
}

// Path is the checkout directory.
func (c *Client) Path() string {
	return c.repoPath
}

// Clone checks out url into the client's directory. The directory must be
// missing or empty.
func (c *Client) Clone(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if url == "" {
		return ErrEmptyRemote
	}

	entries, err := os.ReadDir(c.repoPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read tap dir: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s", ErrDirNotEmpty, c.repoPath)
	}

	_, err = gogit.PlainCloneContext(ctx, c.repoPath, false, &gogit.CloneOptions{
		URL:          url,
		SingleBranch: true,
	})
	if err != nil {
		return fmt.Errorf("clone %s: %w", url, err)
	}
	return nil
}

// Pull fast-forwards the tap from origin. It reports whether HEAD moved.
func (c *Client) Pull(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context cancelled: %w", err)
	}

	repo, err := c.open()
	if err != nil {
		return false, err
	}

	head, err := repo.Head()
	if err != nil {
		return false, fmt.Errorf("get HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return false, ErrDetachedHead
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("get worktree: %w", err)
	}

	err = worktree.PullContext(ctx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: head.Name(),
		SingleBranch:  true,
	})
	if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pull: %w", err)
	}
	return true, nil
}

// HeadCommit returns the commit hash of HEAD.
func (c *Client) HeadCommit(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	repo, err := c.open()
	if err != nil {
		return "", err
	}

	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}

	return ref.Hash().String(), nil
}

// IsGitRepo checks if the path is a valid git repository.
// Returns (true, nil) if valid, (false, nil) if not exists, (false, err) if corrupted.
func (c *Client) IsGitRepo(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context cancelled: %w", err)
	}

	_, err := gogit.PlainOpen(c.repoPath)
	if err == gogit.ErrRepositoryNotExists {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrInvalidRepo, err.Error())
	}
	return true, nil
}

func (c *Client) open() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpen(c.repoPath)
	if err == gogit.ErrRepositoryNotExists {
		return nil, fmt.Errorf("%w: %s", ErrNotAGitRepo, c.repoPath)
	}
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return repo, nil
}
