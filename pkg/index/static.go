package index

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/symbolscope/symbolscope/pkg/extractor"
)

// staticIndexFile is the on-disk shape of a pre-built index: a flat list
// of extraction records plus a format version.
type staticIndexFile struct {
	Version int                    `json:"version"`
	Records []extractor.FileRecord `json:"records"`
}

// LoadStatic reads a pre-built read-only index from disk and returns it
// as an Inverted tier. Records with a stale shard version are skipped,
// matching the shard store's treatment.
func LoadStatic(path string, logger *slog.Logger) (*Inverted, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read static index %s: %w", path, err)
	}

	var file staticIndexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse static index %s: %w", path, err)
	}

	tier := NewInverted()
	skipped := 0
	for i := range file.Records {
		record := &file.Records[i]
		if record.ShardVersion != extractor.ShardVersion {
			skipped++
			continue
		}
		tier.Apply(record)
	}

	logger.Info("static index loaded",
		"path", path,
		"files", tier.Len(),
		"stale_skipped", skipped)

	return tier, nil
}
