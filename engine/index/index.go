// Package index implements the batch indexing pipeline: normalize raw
// lexicon rows, embed them, and upsert them into the vector collection.
// Rows fail individually; the batch continues and reports failures at the
// end. The collection is fully reset before any worker starts.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/puxianlab/pxlex/engine/domain"
	"github.com/puxianlab/pxlex/engine/semantic"
	"github.com/puxianlab/pxlex/pkg/fn"
	"github.com/puxianlab/pxlex/pkg/metrics"
)

// Embedder produces embedding vectors for entry texts.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the collection surface the pipeline writes to.
type Store interface {
	ResetCollection(ctx context.Context) error
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// Options configures a Runner.
type Options struct {
	// Workers bounds the embedding/upsert concurrency.
	Workers int
	// RowLimit caps how many rows are indexed; 0 indexes all rows.
	RowLimit int
	// Retry governs retryable embedding failures.
	Retry fn.RetryOpts
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	retry := fn.DefaultRetry
	retry.InitialWait = 500 * time.Millisecond
	retry.RetryIf = domain.IsRetryable
	return Options{
		Workers: 4,
		Retry:   retry,
	}
}

// Runner runs batch indexing over raw rows.
type Runner struct {
	embed  Embedder
	store  Store
	opts   Options
	logger *slog.Logger
}

// New creates a Runner.
func New(embed Embedder, store Store, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Retry.RetryIf == nil {
		opts.Retry.RetryIf = domain.IsRetryable
	}
	return &Runner{embed: embed, store: store, opts: opts, logger: logger}
}

// Report summarizes one indexing run. Partial success is acceptable:
// Errors holds every rejected row.
type Report struct {
	Total   int
	Indexed int
	Errors  []*domain.RowError
}

// job is one entry flowing through the parallel phase.
type job struct {
	entry domain.LexiconEntry
	line  int
}

// Run resets the collection, then indexes rows with a bounded worker pool.
// The returned error is non-nil only for run-fatal failures (collection
// lifecycle, cancellation); per-row failures land in the Report.
func (r *Runner) Run(ctx context.Context, rows []domain.RawRow) (Report, error) {
	if err := r.store.ResetCollection(ctx); err != nil {
		return Report{}, err
	}

	if r.opts.RowLimit > 0 && len(rows) > r.opts.RowLimit {
		rows = rows[:r.opts.RowLimit]
	}
	report := Report{Total: len(rows)}

	// Normalization is sequential: duplicate-headword disambiguators
	// depend on row order, and keeping them deterministic keeps IDs stable
	// across runs.
	jobs := make([]job, 0, len(rows))
	seen := make(map[string]int)
	for _, row := range rows {
		entry, err := domain.Normalize(row)
		if err != nil {
			report.Errors = append(report.Errors, asRowError(row, err))
			metrics.EntriesFailed.WithLabelValues("normalize").Inc()
			continue
		}
		entry.ID = domain.EntryID(entry.Word, seen[entry.Word])
		seen[entry.Word]++
		jobs = append(jobs, job{entry: entry, line: row.Line})
	}

	stage := r.stage()
	results := fn.ParMapResult(jobs, r.opts.Workers, func(j job) fn.Result[string] {
		return stage(ctx, j)
	})

	for i, res := range results {
		if _, err := res.Unwrap(); err != nil {
			report.Errors = append(report.Errors, &domain.RowError{
				Line: jobs[i].line,
				Word: jobs[i].entry.Word,
				Err:  err,
			})
			continue
		}
		report.Indexed++
	}

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("index: run canceled: %w", err)
	}
	if err := fatalError(report.Errors); err != nil {
		return report, err
	}

	r.logger.Info("index run done",
		"total", report.Total,
		"indexed", report.Indexed,
		"failed", len(report.Errors),
	)
	return report, nil
}

// stage builds the per-entry embed→upsert stage. Embedding failures never
// produce a partial upsert: the record is written only after its vector
// arrives and passes the dimension check.
func (r *Runner) stage() fn.Stage[job, string] {
	embed := fn.RetryStage(r.opts.Retry, fn.TracedStage("index.embed",
		func(ctx context.Context, j job) fn.Result[semantic.VectorRecord] {
			start := time.Now()
			vec, err := r.embed.Embed(ctx, domain.EmbeddingInput(j.entry))
			metrics.EmbedDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.EntriesFailed.WithLabelValues("embed").Inc()
				return fn.Err[semantic.VectorRecord](err)
			}
			return fn.Ok(semantic.VectorRecord{ID: j.entry.ID, Embedding: vec, Entry: j.entry})
		}))

	store := fn.TracedStage("index.upsert",
		func(ctx context.Context, rec semantic.VectorRecord) fn.Result[string] {
			if err := r.store.Upsert(ctx, []semantic.VectorRecord{rec}); err != nil {
				metrics.EntriesFailed.WithLabelValues("upsert").Inc()
				return fn.Err[string](err)
			}
			metrics.EntriesIndexed.Inc()
			return fn.Ok(rec.ID)
		})

	return fn.Then(embed, store)
}

func asRowError(row domain.RawRow, err error) *domain.RowError {
	var re *domain.RowError
	if errors.As(err, &re) {
		return re
	}
	return &domain.RowError{Line: row.Line, Word: row.Word, Err: err}
}

// fatalError picks out failures that indicate an inconsistent collection
// state or an unreachable store; those abort the run instead of being
// reported per row, since every remaining row would fail the same way.
func fatalError(errs []*domain.RowError) error {
	for _, e := range errs {
		if errors.Is(e, domain.ErrCollectionLifecycle) || errors.Is(e, domain.ErrStoreUnavailable) {
			return fmt.Errorf("index: %w", e)
		}
	}
	return nil
}
