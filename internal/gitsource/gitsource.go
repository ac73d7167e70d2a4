// Package gitsource syncs the content tree from a git repository before
// a build. A checkout that already exists is pulled; anything else is a
// fresh clone.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/ddingpy/shelfbuilder/internal/config"
	"github.com/ddingpy/shelfbuilder/internal/logfields"
)

// Client syncs one configured content source.
type Client struct {
	src *config.SourceConfig
}

func NewClient(src *config.SourceConfig) *Client {
	return &Client{src: src}
}

// SyncResult describes the checkout after a sync attempt.
type SyncResult struct {
	Path     string
	Commit   string
	UpToDate bool
	Stale    bool // the sync failed but an earlier checkout remains usable
}

// Sync brings dir up to date with the configured source. When dir holds
// a previous checkout and the pull fails, the result carries Stale=true
// alongside the error so callers can keep building from the old content.
func (c *Client) Sync(ctx context.Context, dir string) (*SyncResult, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return c.update(ctx, dir)
	}
	return c.clone(ctx, dir)
}

func (c *Client) clone(ctx context.Context, dir string) (*SyncResult, error) {
	slog.Info("Cloning content source",
		logfields.URL(c.src.URL),
		slog.String("branch", c.src.Branch),
		logfields.Path(dir))

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear checkout dir: %w", err)
	}

	opts := &git.CloneOptions{URL: c.src.URL}
	if c.src.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(c.src.Branch)
		opts.SingleBranch = true
	}
	auth, err := authMethod(c.src.Auth)
	if err != nil {
		return nil, err
	}
	opts.Auth = auth

	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		return nil, classify("clone", c.src.URL, err)
	}

	res := &SyncResult{Path: dir, Commit: headCommit(repo)}
	slog.Info("Content source cloned",
		logfields.URL(c.src.URL),
		slog.String("commit", shortCommit(res.Commit)))
	return res, nil
}

func (c *Client) update(ctx context.Context, dir string) (*SyncResult, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		slog.Warn("Existing checkout unreadable, recloning", logfields.Path(dir), logfields.Error(err))
		return c.clone(ctx, dir)
	}

	res := &SyncResult{Path: dir, Commit: headCommit(repo)}

	worktree, err := repo.Worktree()
	if err != nil {
		res.Stale = true
		return res, fmt.Errorf("open worktree: %w", err)
	}

	opts := &git.PullOptions{RemoteName: "origin", SingleBranch: true}
	if c.src.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(c.src.Branch)
	}
	auth, err := authMethod(c.src.Auth)
	if err != nil {
		res.Stale = true
		return res, err
	}
	opts.Auth = auth

	err = worktree.PullContext(ctx, opts)
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		res.UpToDate = true
		slog.Debug("Content source already up to date", logfields.URL(c.src.URL))
	case err != nil:
		res.Stale = true
		return res, classify("pull", c.src.URL, err)
	default:
		res.Commit = headCommit(repo)
		slog.Info("Content source updated",
			logfields.URL(c.src.URL),
			slog.String("commit", shortCommit(res.Commit)))
	}
	return res, nil
}

// authMethod maps the configured auth block onto a go-git transport.
func authMethod(auth *config.AuthConfig) (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil
	}
	switch auth.Type {
	case "", "none":
		return nil, nil

	case "ssh":
		keyPath := auth.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		keys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
		if err != nil {
			return nil, fmt.Errorf("load ssh key %s: %w", keyPath, err)
		}
		return keys, nil

	case "token":
		if auth.Token == "" {
			return nil, fmt.Errorf("token auth requires a token")
		}
		// Forges accept any username when the password is a token.
		return &http.BasicAuth{Username: "token", Password: auth.Token}, nil

	case "basic":
		if auth.Username == "" || auth.Password == "" {
			return nil, fmt.Errorf("basic auth requires username and password")
		}
		return &http.BasicAuth{Username: auth.Username, Password: auth.Password}, nil

	default:
		return nil, fmt.Errorf("unsupported auth type %q", auth.Type)
	}
}

func headCommit(repo *git.Repository) string {
	ref, err := repo.Head()
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}

func shortCommit(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
