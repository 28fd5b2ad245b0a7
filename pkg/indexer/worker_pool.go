package indexer

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/parser"
	"github.com/symbolscope/symbolscope/pkg/parser/queries"
	"github.com/symbolscope/symbolscope/pkg/textindex"
	"github.com/symbolscope/symbolscope/pkg/util"
)

// FileJob is one file handed to the pool. Content may be preloaded (open
// documents); when nil the worker reads from disk.
type FileJob struct {
	URI     string
	Content []byte
	JobID   int
}

// FileResult is a completed extraction.
type FileResult struct {
	URI    string
	Record *extractor.FileRecord
	JobID  int

	// Deleted marks files that vanished between discovery and read
	// (ENOENT is a deletion, not an error).
	Deleted bool
}

// WorkerPool runs extraction jobs on a bounded set of goroutines.
//
// Each worker owns its own Extractor so string interning stays
// goroutine-local. Result ordering is not guaranteed. Cancellation is
// cooperative: workers poll the token between jobs; in-flight results
// are still delivered and the consumer discards them.
type WorkerPool struct {
	numWorkers  int
	jobs        chan FileJob
	results     chan FileResult
	wg          sync.WaitGroup
	logger      *slog.Logger
	cancel      *util.CancellationToken
	textIndexer *textindex.Indexer

	parserManager *parser.ParserManager
	queryManager  *queries.QueryManager

	started    atomic.Bool
	jobsClosed atomic.Bool

	jobsSubmitted atomic.Int64
	jobsProcessed atomic.Int64
	jobsSkipped   atomic.Int64
}

// NewWorkerPool creates a pool. numWorkers <= 0 selects the default of 4.
func NewWorkerPool(numWorkers int, pm *parser.ParserManager, qm *queries.QueryManager, ti *textindex.Indexer, cancel *util.CancellationToken, logger *slog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &WorkerPool{
		numWorkers:    numWorkers,
		jobs:          make(chan FileJob, numWorkers*2),
		results:       make(chan FileResult, numWorkers),
		logger:        logger,
		cancel:        cancel,
		textIndexer:   ti,
		parserManager: pm,
		queryManager:  qm,
	}
}

// Start spawns the workers. Must be called before Submit.
func (wp *WorkerPool) Start() {
	if !wp.started.CompareAndSwap(false, true) {
		wp.logger.Warn("worker pool already started")
		return
	}

	wp.logger.Debug("starting worker pool", "workers", wp.numWorkers)

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	// Per-worker extractor: interner state is never shared.
	ex := extractor.NewExtractor(wp.parserManager, wp.queryManager, wp.logger)

	for job := range wp.jobs {
		if wp.cancel.IsCancelled() {
			// Drain without processing so Submit never blocks forever.
			wp.jobsSkipped.Add(1)
			continue
		}
		wp.processJob(ex, id, job)
	}
}

func (wp *WorkerPool) processJob(ex *extractor.Extractor, workerID int, job FileJob) {
	content := job.Content
	if content == nil {
		data, err := os.ReadFile(job.URI)
		if err != nil {
			if os.IsNotExist(err) {
				wp.jobsProcessed.Add(1)
				wp.results <- FileResult{URI: job.URI, JobID: job.JobID, Deleted: true}
				return
			}
			wp.jobsProcessed.Add(1)
			wp.results <- FileResult{
				URI:    job.URI,
				JobID:  job.JobID,
				Record: extractor.SkippedRecord(job.URI, "", fmt.Sprintf("read error: %v", err)),
			}
			return
		}
		content = data
	}

	var record *extractor.FileRecord
	if parser.DetectLanguage(job.URI) != parser.LanguageUnknown {
		rec, err := ex.ExtractFile(job.URI, content)
		if err != nil {
			rec = extractor.SkippedRecord(job.URI, extractor.ContentHash(content), fmt.Sprintf("extraction error: %v", err))
		}
		record = rec
	} else if wp.textIndexer != nil && textindex.Supported(job.URI) {
		record = wp.textIndexer.ExtractFile(job.URI, content)
	} else {
		record = extractor.SkippedRecord(job.URI, extractor.ContentHash(content), "unsupported language")
	}

	wp.jobsProcessed.Add(1)
	wp.results <- FileResult{URI: job.URI, Record: record, JobID: job.JobID}
}

// Submit enqueues a job, blocking when the pool is saturated
// (back-pressure). Returns an error once cancelled.
func (wp *WorkerPool) Submit(job FileJob) error {
	if wp.cancel.IsCancelled() {
		return fmt.Errorf("worker pool cancelled")
	}
	wp.jobsSubmitted.Add(1)
	wp.jobs <- job
	return nil
}

// Results is the consumer side of the pool.
func (wp *WorkerPool) Results() <-chan FileResult {
	return wp.results
}

// FinishSubmitting closes the jobs channel so workers exit when it
// drains. Idempotent.
func (wp *WorkerPool) FinishSubmitting() {
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
	}
}

// Wait blocks until every worker has exited, then closes the results
// channel. Call after FinishSubmitting.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
	close(wp.results)
}

// Stats returns pool counters.
func (wp *WorkerPool) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:    wp.numWorkers,
		JobsSubmitted: wp.jobsSubmitted.Load(),
		JobsProcessed: wp.jobsProcessed.Load(),
		JobsSkipped:   wp.jobsSkipped.Load(),
	}
}

// WorkerPoolStats contains pool counters.
type WorkerPoolStats struct {
	NumWorkers    int
	JobsSubmitted int64
	JobsProcessed int64
	JobsSkipped   int64
}
