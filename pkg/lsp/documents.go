package lsp

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/symbolscope/symbolscope/pkg/index"
)

// documentStore holds open-document buffers. It backs the handlers'
// DocumentSource: while a file is open, its buffer supersedes the disk.
//
// Within one edit stream the last change wins; the server applies
// changes synchronously on didChange before any handler runs, which
// gives read-your-writes.
type documentStore struct {
	mu   sync.RWMutex
	docs map[string][]byte // normalized path → content
	open map[string]bool
}

func newDocumentStore() *documentStore {
	return &documentStore{
		docs: make(map[string][]byte, 16),
		open: make(map[string]bool, 16),
	}
}

// Content implements handlers.DocumentSource.
func (ds *documentStore) Content(uri string) ([]byte, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	content, ok := ds.docs[index.NormPath(uri)]
	return content, ok
}

// OpenFiles implements handlers.DocumentSource.
func (ds *documentStore) OpenFiles() map[string]bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	out := make(map[string]bool, len(ds.open))
	for k := range ds.open {
		out[k] = true
	}
	return out
}

func (ds *documentStore) Open(path string, content []byte) {
	key := index.NormPath(path)
	ds.mu.Lock()
	ds.docs[key] = content
	ds.open[key] = true
	ds.mu.Unlock()
}

func (ds *documentStore) Close(path string) {
	key := index.NormPath(path)
	ds.mu.Lock()
	delete(ds.docs, key)
	delete(ds.open, key)
	ds.mu.Unlock()
}

// Apply applies content changes in order and returns the new buffer.
// A change without a range replaces the whole document.
func (ds *documentStore) Apply(path string, changes []TextDocumentContentChangeEvent) ([]byte, error) {
	key := index.NormPath(path)
	ds.mu.Lock()
	defer ds.mu.Unlock()

	content, ok := ds.docs[key]
	if !ok {
		return nil, fmt.Errorf("document not open: %s", path)
	}

	for _, change := range changes {
		if change.Range == nil {
			content = []byte(change.Text)
			continue
		}
		start, err := offsetOf(content, change.Range.Start)
		if err != nil {
			return nil, err
		}
		end, err := offsetOf(content, change.Range.End)
		if err != nil {
			return nil, err
		}
		if start > end || end > len(content) {
			return nil, fmt.Errorf("invalid change range %d..%d", start, end)
		}
		next := make([]byte, 0, len(content)-(end-start)+len(change.Text))
		next = append(next, content[:start]...)
		next = append(next, change.Text...)
		next = append(next, content[end:]...)
		content = next
	}

	ds.docs[key] = content
	return content, nil
}

// offsetOf converts an LSP position to a byte offset. Columns are
// interpreted as byte columns; for the overwhelmingly ASCII identifier
// edits this server cares about the distinction from UTF-16 does not
// bite, and positions beyond a line clamp to its end.
func offsetOf(content []byte, pos Position) (int, error) {
	offset := 0
	line := uint32(0)
	for line < pos.Line {
		idx := bytes.IndexByte(content[offset:], '\n')
		if idx < 0 {
			return len(content), nil
		}
		offset += idx + 1
		line++
	}

	lineEnd := offset
	for lineEnd < len(content) && content[lineEnd] != '\n' {
		lineEnd++
	}
	col := int(pos.Character)
	if offset+col > lineEnd {
		return lineEnd, nil
	}
	return offset + col, nil
}
