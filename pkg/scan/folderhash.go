package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
)

// hashChildren computes a directory's signature over the sorted
// (name, mtime, size) tuples of its direct children.
//
// A matching signature from the previous scan means no direct child was
// added, removed, or touched, so the subtree can be skipped. Signatures
// are stored per directory, not rolled up: an edit deeper in the tree
// does not change an ancestor's signature, so the watcher clears the
// stored hashes of the changed directory and its ancestors.
func hashChildren(entries []fs.DirEntry) string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			// An unstattable child must not produce a stable hash.
			lines = append(lines, entry.Name()+"\x00?\x00?")
			continue
		}
		lines = append(lines, fmt.Sprintf("%s\x00%d\x00%d", entry.Name(), info.ModTime().UnixNano(), info.Size()))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
