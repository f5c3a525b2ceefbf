// Package ingest orchestrates the full ingestion cycle: scan the docs
// directory, load tables, generate Q&A chunks in two phases, and rebuild the
// index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/releaselens/releaselens/pkg/chunkgen"
	"github.com/releaselens/releaselens/pkg/eventstream"
	"github.com/releaselens/releaselens/pkg/genai"
	"github.com/releaselens/releaselens/pkg/index"
	"github.com/releaselens/releaselens/pkg/tabular"
)

// ErrAlreadyRunning is returned when a run is triggered while another is in
// flight. The trigger is dropped, not queued.
var ErrAlreadyRunning = errors.New("ingestion already running")

// Failure policies for per-table Phase-1 errors.
const (
	PolicySkip  = "skip"
	PolicyAbort = "abort"
)

// Result summarizes one completed ingestion run.
type Result struct {
	RunID    string
	Tables   int
	Chunks   int
	Failures []string
	Duration time.Duration
}

// Runner executes ingestion cycles, at most one at a time.
type Runner struct {
	docsDir   string
	index     *index.Index
	call      genai.CallFunc
	publisher eventstream.Publisher
	policy    string
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
	last    *Result
}

// Config holds configuration for the Runner.
type Config struct {
	// DocsDir is the directory scanned for source files.
	DocsDir string

	// OnTableFailure is PolicySkip or PolicyAbort. Defaults to PolicySkip.
	OnTableFailure string
}

// NewRunner creates an ingestion runner.
func NewRunner(cfg Config, ix *index.Index, call genai.CallFunc, publisher eventstream.Publisher, logger *zap.Logger) (*Runner, error) {
	if cfg.DocsDir == "" {
		return nil, fmt.Errorf("docs directory is required")
	}

	policy := cfg.OnTableFailure
	switch policy {
	case "":
		policy = PolicySkip
	case PolicySkip, PolicyAbort:
	default:
		return nil, fmt.Errorf("unknown on_table_failure policy: %s", policy)
	}

	return &Runner{
		docsDir:   cfg.DocsDir,
		index:     ix,
		call:      call,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
	}, nil
}

// Running reports whether a run is currently in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// LastResult returns the most recent completed run, or nil.
func (r *Runner) LastResult() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// acquire takes the single-flight gate. Returns false when a run is already
// in flight.
func (r *Runner) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	return true
}

func (r *Runner) release() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// Run executes one ingestion cycle synchronously. A second call while one is
// in flight returns ErrAlreadyRunning immediately.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if !r.acquire() {
		return nil, ErrAlreadyRunning
	}
	defer r.release()

	return r.execute(ctx, uuid.New().String())
}

// Start begins an ingestion cycle in the background and returns its run ID.
// ctx must outlive the run; request-scoped contexts don't belong here.
func (r *Runner) Start(ctx context.Context) (string, error) {
	if !r.acquire() {
		return "", ErrAlreadyRunning
	}

	runID := uuid.New().String()
	go func() {
		defer r.release()
		// errors are logged and published inside execute
		_, _ = r.execute(ctx, runID)
	}()

	return runID, nil
}

func (r *Runner) execute(ctx context.Context, runID string) (*Result, error) {
	started := time.Now()

	r.logger.Info("ingestion started",
		zap.String("run_id", runID),
		zap.String("docs_dir", r.docsDir),
	)
	r.publish(ctx, &eventstream.IngestEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeIngestStarted,
		RunID:         runID,
		EmittedAt:     time.Now().UTC(),
	})

	result, err := r.run(ctx, runID, started)
	if err != nil {
		r.logger.Error("ingestion failed",
			zap.String("run_id", runID),
			zap.Error(err),
		)
		r.publish(ctx, &eventstream.IngestEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeIngestFailed,
			RunID:         runID,
			EmittedAt:     time.Now().UTC(),
			DurationMs:    time.Since(started).Milliseconds(),
			Error:         err.Error(),
		})
		return nil, err
	}

	r.mu.Lock()
	r.last = result
	r.mu.Unlock()

	r.logger.Info("ingestion completed",
		zap.String("run_id", runID),
		zap.Int("tables", result.Tables),
		zap.Int("chunks", result.Chunks),
		zap.Int("failures", len(result.Failures)),
		zap.Duration("duration", result.Duration),
	)
	r.publish(ctx, &eventstream.IngestEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeIngestCompleted,
		RunID:         runID,
		EmittedAt:     time.Now().UTC(),
		Tables:        result.Tables,
		Chunks:        result.Chunks,
		Failures:      result.Failures,
		DurationMs:    result.Duration.Milliseconds(),
	})

	return result, nil
}

func (r *Runner) run(ctx context.Context, runID string, started time.Time) (*Result, error) {
	sources, err := tabular.ScanDir(r.docsDir)
	if err != nil {
		return nil, fmt.Errorf("scanning docs dir: %w", err)
	}

	var (
		tables   []*tabular.Table
		chunks   []chunkgen.Chunk
		failures []string
	)

	for _, src := range sources {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		table, err := tabular.Load(src.Path, src.Release, src.DocType)
		if err != nil {
			failures = append(failures, fmt.Sprintf("load %s: %v", src.Path, err))
			r.logger.Warn("skipping unloadable source",
				zap.String("path", src.Path),
				zap.Error(err),
			)
			continue
		}

		tableChunks, err := chunkgen.GenerateTable(ctx, r.call, table)
		if err != nil {
			if r.policy == PolicyAbort {
				return nil, fmt.Errorf("table %s: %w", table.Source, err)
			}
			failures = append(failures, fmt.Sprintf("generate %s: %v", table.Source, err))
			r.logger.Warn("skipping table after generation failure",
				zap.String("source", table.Source),
				zap.Error(err),
			)
			continue
		}

		tables = append(tables, table)
		chunks = append(chunks, tableChunks...)
	}

	if len(tables) > 0 {
		comparisonChunks, err := chunkgen.GenerateComparison(ctx, r.call, tables)
		if err != nil {
			// Phase 2 failing loses only the comparison chunks.
			failures = append(failures, fmt.Sprintf("cross-release: %v", err))
			r.logger.Warn("cross-release generation failed", zap.Error(err))
		} else {
			chunks = append(chunks, comparisonChunks...)
		}
	}

	if err := r.index.Replace(ctx, chunks); err != nil {
		return nil, fmt.Errorf("rebuilding index: %w", err)
	}

	return &Result{
		RunID:    runID,
		Tables:   len(tables),
		Chunks:   len(chunks),
		Failures: failures,
		Duration: time.Since(started),
	}, nil
}

func (r *Runner) publish(ctx context.Context, event *eventstream.IngestEvent) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishIngest(ctx, event); err != nil {
		// Event delivery is best effort; an unreachable broker must not
		// fail ingestion.
		r.logger.Warn("publishing ingest event failed",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}
