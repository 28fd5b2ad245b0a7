// Package gitmeta provides Git awareness for the indexer: HEAD lookup,
// changed-file diffs between two commits, and the persisted index
// metadata file.
package gitmeta

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Changes is a HEAD-to-HEAD diff summary.
type Changes struct {
	Added    []string
	Modified []string
	Deleted  []string
}

// Empty reports whether the diff carries no paths.
func (c *Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Git wraps the workspace repository. All paths returned are absolute.
type Git struct {
	root   string
	logger *slog.Logger
}

// New returns a Git handle, or nil when the workspace is not a
// repository. A nil handle is valid: callers fall back to full scans.
func New(root string, logger *slog.Logger) *Git {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return nil
	}
	return &Git{root: root, logger: logger}
}

// HeadPath returns the path of the HEAD file, for the HEAD-change
// watcher.
func (g *Git) HeadPath() string {
	return filepath.Join(g.root, ".git", "HEAD")
}

// Head returns the current commit hash.
func (g *Git) Head(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ChangedFiles diffs two commits and buckets paths into added, modified,
// and deleted. Renames count as delete + add.
func (g *Git) ChangedFiles(ctx context.Context, fromHash, toHash string) (*Changes, error) {
	out, err := g.run(ctx, "diff", "--name-status", "-M", fromHash, toHash)
	if err != nil {
		return nil, fmt.Errorf("git diff %s..%s: %w", fromHash, toHash, err)
	}

	changes := &Changes{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := fields[0]
		abs := func(rel string) string { return filepath.Join(g.root, rel) }

		switch {
		case strings.HasPrefix(status, "A"):
			changes.Added = append(changes.Added, abs(fields[1]))
		case strings.HasPrefix(status, "M"):
			changes.Modified = append(changes.Modified, abs(fields[1]))
		case strings.HasPrefix(status, "D"):
			changes.Deleted = append(changes.Deleted, abs(fields[1]))
		case strings.HasPrefix(status, "R") && len(fields) >= 3:
			changes.Deleted = append(changes.Deleted, abs(fields[1]))
			changes.Added = append(changes.Added, abs(fields[2]))
		}
	}
	return changes, nil
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
