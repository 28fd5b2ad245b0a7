package lsp

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/symbolscope/symbolscope/pkg/indexer"
)

// configFileName is the optional workspace config; initialization
// options from the client win over it.
const configFileName = ".symbolscope.yaml"

// Options are the enumerated initialization options.
type Options struct {
	CacheDirectory        string   `json:"cacheDirectory" yaml:"cacheDirectory"`
	EnableGitIntegration  *bool    `json:"enableGitIntegration" yaml:"enableGitIntegration"`
	ExcludePatterns       []string `json:"excludePatterns" yaml:"excludePatterns"`
	MaxIndexedFileSize    int64    `json:"maxIndexedFileSize" yaml:"maxIndexedFileSize"`
	MaxConcurrentWorkers  int      `json:"maxConcurrentWorkers" yaml:"maxConcurrentWorkers"`
	MaxConcurrentIndexJobs int     `json:"maxConcurrentIndexJobs" yaml:"maxConcurrentIndexJobs"`
	EnableBackgroundIndex *bool    `json:"enableBackgroundIndex" yaml:"enableBackgroundIndex"`

	TextIndexing struct {
		Enabled bool `json:"enabled" yaml:"enabled"`
	} `json:"textIndexing" yaml:"textIndexing"`

	StaticIndex struct {
		Enabled bool   `json:"enabled" yaml:"enabled"`
		Path    string `json:"path" yaml:"path"`
	} `json:"staticIndex" yaml:"staticIndex"`

	Indexing struct {
		UseFolderHashing bool `json:"useFolderHashing" yaml:"useFolderHashing"`
		BatchSize        int  `json:"batchSize" yaml:"batchSize"`
	} `json:"indexing" yaml:"indexing"`
}

// loadOptions merges the workspace config file with the client's
// initialization options. Invalid input falls back to defaults with a
// warning — a bad config must not block startup.
func loadOptions(workspaceRoot string, raw json.RawMessage, logger *slog.Logger) Options {
	var opts Options

	if data, err := os.ReadFile(filepath.Join(workspaceRoot, configFileName)); err == nil {
		if err := yaml.Unmarshal(data, &opts); err != nil {
			logger.Warn("invalid workspace config, using defaults", "file", configFileName, "error", err)
			opts = Options{}
		}
	}

	if len(raw) > 0 {
		client := opts
		if err := json.Unmarshal(raw, &client); err != nil {
			logger.Warn("invalid initialization options, using defaults", "error", err)
			opts = Options{}
		} else {
			opts = client
		}
	}

	return opts
}

// indexerConfig converts the options into the engine config.
func (o Options) indexerConfig(workspaceRoot string) indexer.Config {
	config := indexer.Config{
		WorkspaceRoot:         workspaceRoot,
		CacheDirName:          o.CacheDirectory,
		EnableGitIntegration:  boolOr(o.EnableGitIntegration, true),
		ExcludePatterns:       o.ExcludePatterns,
		MaxIndexedFileSize:    o.MaxIndexedFileSize,
		MaxConcurrentWorkers:  o.MaxConcurrentWorkers,
		EnableBackgroundIndex: boolOr(o.EnableBackgroundIndex, true),
		TextIndexingEnabled:   o.TextIndexing.Enabled,
		StaticIndexEnabled:    o.StaticIndex.Enabled,
		StaticIndexPath:       o.StaticIndex.Path,
		UseFolderHashing:      o.Indexing.UseFolderHashing,
		BatchSize:             o.Indexing.BatchSize,
	}
	if config.MaxConcurrentWorkers == 0 {
		config.MaxConcurrentWorkers = o.MaxConcurrentIndexJobs
	}
	return config
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
