// Package scan discovers indexable files with a bounded-concurrency
// directory walk, glob exclusions, and folder-hash early exit.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxFileSize is the indexing size cap; oversized files are
// skipped.
const DefaultMaxFileSize = 1 << 20 // 1 MB

// DefaultConcurrency bounds concurrent directory reads.
const DefaultConcurrency = 50

// builtinIgnoreDirs are always skipped regardless of user patterns.
var builtinIgnoreDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".hg":          true,
	".svn":         true,
}

// Options configures a workspace scan.
type Options struct {
	// ExcludePatterns are user globs (doublestar syntax, dot files
	// included) matched against workspace-relative slash paths.
	ExcludePatterns []string

	// Extensions is the indexable extension set (lowercase, with dot).
	Extensions map[string]bool

	// MaxFileSize caps file size in bytes; 0 means DefaultMaxFileSize.
	MaxFileSize int64

	// Concurrency bounds parallel directory reads; 0 means
	// DefaultConcurrency.
	Concurrency int

	// RespectGitignore honors the workspace root .gitignore.
	RespectGitignore bool

	// CacheDirName is the cache directory to skip (e.g. ".smart-index").
	CacheDirName string

	// UseFolderHashing enables the early-exit on unchanged directories.
	UseFolderHashing bool

	// PriorFolderHashes are the persisted signatures from the last scan.
	PriorFolderHashes map[string]string
}

// Result is a completed scan.
type Result struct {
	// Files are the discovered indexable files (absolute paths).
	Files []string

	// FolderHashes are the fresh directory signatures to persist.
	FolderHashes map[string]string

	// SkippedDirs counts subtrees pruned by folder-hash early exit.
	SkippedDirs int
}

// Scanner walks a workspace.
type Scanner struct {
	logger *slog.Logger
}

// NewScanner creates a scanner.
func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// Scan walks rootPath and returns the indexable files. Directory reads
// run in parallel under a semaphore; results are collected under a
// mutex. Ordering of Files is unspecified.
func (s *Scanner) Scan(ctx context.Context, rootPath string, opts Options) (*Result, error) {
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = DefaultConcurrency
	}

	for _, pattern := range opts.ExcludePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}

	var gitIgnore *ignore.GitIgnore
	if opts.RespectGitignore {
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(rootPath, ".gitignore")); err == nil {
			gitIgnore = gi
		}
	}

	result := &Result{FolderHashes: make(map[string]string)}
	var mu sync.Mutex

	sem := semaphore.NewWeighted(int64(opts.Concurrency))
	g, gctx := errgroup.WithContext(ctx)

	var walkDir func(dir string)
	walkDir = func(dir string) {
		if err := sem.Acquire(gctx, 1); err != nil {
			return
		}
		entries, err := os.ReadDir(dir)
		sem.Release(1)
		if err != nil {
			s.logger.Warn("failed to read directory", "dir", dir, "error", err)
			return
		}

		relDir, err := filepath.Rel(rootPath, dir)
		if err != nil {
			relDir = dir
		}
		relDir = filepath.ToSlash(relDir)

		if opts.UseFolderHashing {
			hash := hashChildren(entries)
			mu.Lock()
			result.FolderHashes[relDir] = hash
			prior := opts.PriorFolderHashes[relDir]
			if prior != "" && prior == hash {
				result.SkippedDirs++
				mu.Unlock()
				return
			}
			mu.Unlock()
		}

		for _, entry := range entries {
			select {
			case <-gctx.Done():
				return
			default:
			}

			name := entry.Name()
			path := filepath.Join(dir, name)
			relPath := filepath.ToSlash(name)
			if relDir != "." {
				relPath = relDir + "/" + name
			}

			if entry.IsDir() {
				if builtinIgnoreDirs[name] || (opts.CacheDirName != "" && name == opts.CacheDirName) {
					continue
				}
				if s.excluded(relPath+"/", opts.ExcludePatterns, gitIgnore) || s.excluded(relPath, opts.ExcludePatterns, gitIgnore) {
					continue
				}
				sub := path
				g.Go(func() error {
					walkDir(sub)
					return nil
				})
				continue
			}

			ext := strings.ToLower(filepath.Ext(name))
			if len(opts.Extensions) > 0 && !opts.Extensions[ext] {
				continue
			}
			if s.excluded(relPath, opts.ExcludePatterns, gitIgnore) {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.Size() > opts.MaxFileSize {
				s.logger.Debug("skipping oversized file", "file", path, "size", info.Size())
				continue
			}

			mu.Lock()
			result.Files = append(result.Files, path)
			mu.Unlock()
		}
	}

	g.Go(func() error {
		walkDir(rootPath)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug("scan complete",
		"root", rootPath,
		"files", len(result.Files),
		"skipped_dirs", result.SkippedDirs)

	return result, nil
}

// excluded applies the user glob pipeline and gitignore rules.
func (s *Scanner) excluded(relPath string, patterns []string, gitIgnore *ignore.GitIgnore) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, strings.TrimSuffix(relPath, "/")); matched {
			return true
		}
	}
	if gitIgnore != nil && gitIgnore.MatchesPath(relPath) {
		return true
	}
	return false
}
