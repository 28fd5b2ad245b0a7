package handlers

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/index"
	"github.com/symbolscope/symbolscope/pkg/util"
)

// deadCodeDebounce delays the per-file analysis after a save; another
// save within the window cancels and restarts it.
const deadCodeDebounce = 5 * time.Second

// yieldEvery is the analysis chunk size between scheduler yields.
const yieldEvery = 25

// entryPointPattern whitelists files whose exports are reachable from
// outside the workspace: entry modules and test files.
var entryPointPattern = regexp.MustCompile(`(?i)(^|[/\\])(main|index)\.[^/\\]+$|\.(spec|test)\.[^/\\]+$`)

// DeadCodeConfidence grades how certain the analyzer is.
type DeadCodeConfidence string

const (
	DeadHigh   DeadCodeConfidence = "high"
	DeadMedium DeadCodeConfidence = "medium"
	DeadLow    DeadCodeConfidence = "low"
)

// DeadCodeCandidate is one export with no observed use.
type DeadCodeCandidate struct {
	Name       string               `json:"name"`
	Kind       extractor.SymbolKind `json:"kind"`
	Location   Location             `json:"location"`
	Confidence DeadCodeConfidence   `json:"confidence"`
	Reason     string               `json:"reason"`
}

// DeadCodeReport is a workspace-wide sweep result.
type DeadCodeReport struct {
	Candidates    []DeadCodeCandidate `json:"candidates"`
	AnalyzedFiles int                 `json:"analyzedFiles"`
	TotalExports  int                 `json:"totalExports"`
	DurationMs    int64               `json:"duration"`
	Cancelled     bool                `json:"cancelled,omitempty"`
}

// DeadCodeOptions scope a workspace sweep.
type DeadCodeOptions struct {
	ScopeURI        string
	ExcludePatterns []string
	IncludeTests    bool
}

// DiagnosticsFunc publishes per-file results (the LSP layer turns them
// into Hint diagnostics with the unnecessary tag).
type DiagnosticsFunc func(uri string, candidates []DeadCodeCandidate)

// DeadCodeAnalyzer cross-references exports against the reverse index.
// Per-file analysis is debounced and cancellable; workspace sweeps are
// progress-reported and yield to the scheduler between chunks.
type DeadCodeAnalyzer struct {
	h      *Handlers
	logger *slog.Logger

	onDiagnostics DiagnosticsFunc

	mu             sync.Mutex
	debounceTimers map[string]*time.Timer
	fileTokens     map[string]*util.CancellationToken
}

// NewDeadCodeAnalyzer creates the analyzer.
func NewDeadCodeAnalyzer(h *Handlers, logger *slog.Logger) *DeadCodeAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadCodeAnalyzer{
		h:              h,
		logger:         logger,
		debounceTimers: make(map[string]*time.Timer),
		fileTokens:     make(map[string]*util.CancellationToken),
	}
}

// SetDiagnosticsFunc installs the publish hook.
func (d *DeadCodeAnalyzer) SetDiagnosticsFunc(fn DiagnosticsFunc) {
	d.onDiagnostics = fn
}

// ScheduleFile queues the passive on-save analysis: debounce, cancel the
// previous run, yield, analyze, publish.
func (d *DeadCodeAnalyzer) ScheduleFile(uri string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.debounceTimers[uri]; ok {
		timer.Stop()
	}
	if token, ok := d.fileTokens[uri]; ok {
		token.Cancel()
	}

	token := util.NewCancellationToken()
	d.fileTokens[uri] = token
	d.debounceTimers[uri] = time.AfterFunc(deadCodeDebounce, func() {
		runtime.Gosched()

		candidates, cancelled := d.AnalyzeFile(token, uri)
		if cancelled {
			// No diagnostics for a cancelled run.
			return
		}
		if d.onDiagnostics != nil {
			d.onDiagnostics(uri, candidates)
		}

		d.mu.Lock()
		delete(d.debounceTimers, uri)
		delete(d.fileTokens, uri)
		d.mu.Unlock()
	})
}

// CancelAll stops pending timers and cancels running analyses.
func (d *DeadCodeAnalyzer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, timer := range d.debounceTimers {
		timer.Stop()
	}
	for _, token := range d.fileTokens {
		token.Cancel()
	}
	d.debounceTimers = make(map[string]*time.Timer)
	d.fileTokens = make(map[string]*util.CancellationToken)
}

// AnalyzeFile checks every exported definition of one file against the
// reverse index. The second return reports cancellation.
func (d *DeadCodeAnalyzer) AnalyzeFile(token *util.CancellationToken, uri string) ([]DeadCodeCandidate, bool) {
	record, ok := d.h.merged.Record(uri)
	if !ok || record.IsSkipped {
		return nil, false
	}
	if entryPointPattern.MatchString(uri) {
		return nil, false
	}

	normSelf := index.NormPath(uri)
	var candidates []DeadCodeCandidate

	for i := range record.Symbols {
		if token.IsCancelled() {
			return nil, true
		}
		if i > 0 && i%yieldEvery == 0 {
			runtime.Gosched()
		}

		sym := &record.Symbols[i]
		if !sym.IsExported || !sym.IsDefinition {
			continue
		}
		if isEntryPointExport(sym) {
			continue
		}

		if candidate := d.checkSymbol(sym, normSelf); candidate != nil {
			candidates = append(candidates, *candidate)
		}
	}
	return candidates, token.IsCancelled()
}

// checkSymbol is the monotone core: any qualifying reference removes the
// symbol from the candidate set.
func (d *DeadCodeAnalyzer) checkSymbol(sym *extractor.Symbol, normSelf string) *DeadCodeCandidate {
	referring := d.h.merged.ReferringFiles(sym.Name)
	for file := range referring {
		if file != normSelf {
			return nil // referenced from another file
		}
	}

	// Only same-file entries (or none): a non-local same-file use keeps
	// the symbol alive.
	importOnly := false
	if len(referring) > 0 {
		sameFileAlive := false
		allImports := true
		for _, ref := range d.h.merged.FindReferencesByName(sym.Name) {
			if index.NormPath(ref.Location.URI) != normSelf {
				continue
			}
			if !ref.IsImport {
				allImports = false
			}
			if !ref.IsLocal && !ref.IsImport {
				sameFileAlive = true
				break
			}
		}
		if sameFileAlive {
			return nil
		}
		importOnly = allImports
	}

	confidence := DeadHigh
	reason := "no references found in the workspace"
	switch {
	case importOnly && len(referring) > 0:
		confidence = DeadMedium
		reason = "imported but never used"
	case hasFrameworkMetadata(sym):
		// Framework wiring (selectors, DI) can reference this outside
		// the symbol graph.
		confidence = DeadLow
		reason = "no references found, but framework metadata present"
	}

	return &DeadCodeCandidate{
		Name:       sym.Name,
		Kind:       sym.Kind,
		Location:   symbolLocation(sym),
		Confidence: confidence,
		Reason:     reason,
	}
}

// AnalyzeWorkspace sweeps every indexed file under the scope root.
func (d *DeadCodeAnalyzer) AnalyzeWorkspace(ctx context.Context, token *util.CancellationToken, opts DeadCodeOptions, progress func(processed, total int)) *DeadCodeReport {
	start := time.Now()
	report := &DeadCodeReport{}

	uris := d.h.store.AllURIs()
	scope := index.NormPath(opts.ScopeURI)

	var files []string
	for _, uri := range uris {
		if scope != "" && !strings.HasPrefix(index.NormPath(uri), scope) {
			continue
		}
		if !opts.IncludeTests && isTestFile(uri) {
			continue
		}
		if excludedByPatterns(uri, opts.ExcludePatterns) {
			continue
		}
		files = append(files, uri)
	}

	for i, uri := range files {
		if token.IsCancelled() {
			report.Cancelled = true
			break
		}
		select {
		case <-ctx.Done():
			report.Cancelled = true
		default:
		}
		if report.Cancelled {
			break
		}

		if record, ok := d.h.merged.Record(uri); ok {
			for j := range record.Symbols {
				if record.Symbols[j].IsExported && record.Symbols[j].IsDefinition {
					report.TotalExports++
				}
			}
		}

		candidates, cancelled := d.AnalyzeFile(token, uri)
		if cancelled {
			report.Cancelled = true
			break
		}
		report.Candidates = append(report.Candidates, candidates...)
		report.AnalyzedFiles++

		if progress != nil {
			progress(i+1, len(files))
		}
		if i%yieldEvery == 0 {
			runtime.Gosched()
		}
	}

	report.DurationMs = time.Since(start).Milliseconds()
	return report
}

// isEntryPointExport whitelists conventional entry exports.
func isEntryPointExport(sym *extractor.Symbol) bool {
	switch sym.Name {
	case "main", "default", "bootstrap":
		return true
	}
	return false
}

func hasFrameworkMetadata(sym *extractor.Symbol) bool {
	return len(sym.Metadata) > 0
}

func isTestFile(uri string) bool {
	base := strings.ToLower(filepath.Base(uri))
	return strings.Contains(base, ".spec.") || strings.Contains(base, ".test.")
}

func excludedByPatterns(uri string, patterns []string) bool {
	slashed := filepath.ToSlash(uri)
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, slashed); matched {
			return true
		}
	}
	return false
}
