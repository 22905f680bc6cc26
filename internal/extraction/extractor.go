package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kakusu/internal/checkpoint"
	"github.com/hyperjump/kakusu/internal/metrics"
	"github.com/hyperjump/kakusu/internal/models"
	"github.com/hyperjump/kakusu/internal/recognizer"
)

// DefaultCheckpointEvery is how many chunks may pass between checkpoint writes.
const DefaultCheckpointEvery = 10

// ProgressFunc receives the chunks done this run, the chunks planned this run and done/total.
type ProgressFunc func(done, total int, fraction float64)

// Result describes one extraction run.
type Result struct {
	RunID string
	// State is the accumulated progress, including chunks processed by earlier runs.
	State *models.Progress
	// Processed counts chunks handled in this run, failed ones included.
	Processed int
	// Planned is how many chunks this run set out to process.
	Planned int
	// Total is the number of chunks in the document.
	Total  int
	Failed int
}

// Done reports whether every chunk of the document has been processed.
func (r Result) Done() bool {
	return r.State != nil && r.State.ProcessedChunks >= r.Total
}

// Extractor drives a recognizer over chunks, accumulating entities and checkpointing progress.
type Extractor struct {
	recognizer recognizer.Recognizer
	store      checkpoint.Store
	every      int
	workers    int
	logger     *zap.Logger
	metrics    *metrics.Metrics
	progress   ProgressFunc
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a logger for per-chunk and checkpoint events.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records chunk and checkpoint counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Extractor) { e.progress = fn }
}

// WithCheckpointEvery sets the checkpoint cadence in chunks. Values below 1 are ignored.
func WithCheckpointEvery(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.every = n
		}
	}
}

// WithWorkers recognizes up to n chunks concurrently. Results are still merged, checkpointed and
// reported in chunk order.
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewExtractor returns an extractor using r and persisting to store. store may be nil.
func NewExtractor(r recognizer.Recognizer, store checkpoint.Store, opts ...Option) *Extractor {
	e := &Extractor{
		recognizer: r,
		store:      store,
		every:      DefaultCheckpointEvery,
		workers:    1,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CoverageLimit returns how many of total chunks one run may process: floor(total * percent / 100).
// percent is clamped to [0, 100].
func CoverageLimit(total int, percent float64) int {
	if percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return total
	}
	return int(float64(total) * percent / 100)
}

// Resume loads the checkpoint and processes up to CoverageLimit(len(chunks), percent) chunks
// from where the last run stopped. An unreadable checkpoint is logged and treated as no progress.
func (e *Extractor) Resume(ctx context.Context, chunks []models.Chunk, percent float64) (Result, error) {
	state := models.NewProgress()
	if e.store != nil {
		loaded, err := e.store.Load(ctx)
		if err != nil {
			e.metrics.Checkpoint(err)
			e.logger.Warn("checkpoint unreadable, starting from zero", zap.Error(err))
		} else {
			state = loaded
		}
	}
	if state.ProcessedChunks < 0 || state.ProcessedChunks > len(chunks) {
		e.logger.Warn("checkpoint does not fit the document, starting from zero",
			zap.Int("processed", state.ProcessedChunks), zap.Int("total", len(chunks)))
		state = models.NewProgress()
	}
	if state.ProcessedChunks > 0 {
		e.logger.Info("resuming extraction", zap.Int("processed", state.ProcessedChunks), zap.Int("total", len(chunks)))
	}
	return e.Run(ctx, chunks, state, CoverageLimit(len(chunks), percent))
}

type chunkOutcome struct {
	spans []models.Span
	err   error
	took  time.Duration
}

// Run processes chunks [state.ProcessedChunks, state.ProcessedChunks+limit), clamped to the
// document, merging entities into state. Per-chunk recognition errors are logged and the chunk
// is skipped. On cancellation progress so far is checkpointed and ctx.Err() returned with the result.
// A negative ProcessedChunks is treated as zero.
func (e *Extractor) Run(ctx context.Context, chunks []models.Chunk, state *models.Progress, limit int) (Result, error) {
	if state == nil {
		state = models.NewProgress()
	}
	if state.ProcessedChunks < 0 {
		state.ProcessedChunks = 0
	}
	start := state.ProcessedChunks
	end := start + limit
	if limit < 0 || end > len(chunks) {
		end = len(chunks)
	}
	if start > end {
		end = start
	}
	res := Result{RunID: uuid.NewString(), State: state, Planned: end - start, Total: len(chunks)}
	log := e.logger.With(zap.String("run_id", res.RunID))
	log.Debug("extraction started", zap.Int("start", start), zap.Int("end", end), zap.Int("total", res.Total))

	for next := start; next < end; {
		if err := ctx.Err(); err != nil {
			return e.interrupted(log, res, err)
		}
		window := min(e.workers, end-next)
		outcomes, err := e.recognizeWindow(ctx, chunks[next:next+window])
		if err != nil {
			return e.interrupted(log, res, err)
		}
		for i, out := range outcomes {
			idx := next + i
			if out.err != nil && ctx.Err() != nil {
				return e.interrupted(log, res, ctx.Err())
			}
			e.apply(log, &res, idx, out)
			if (idx+1)%e.every == 0 || idx == end-1 {
				e.save(ctx, log, state)
			}
			e.report(res.Processed, res.Planned)
		}
		next += window
	}

	e.report(res.Planned, res.Planned)
	log.Info("extraction finished",
		zap.Int("processed", res.Processed),
		zap.Int("failed", res.Failed),
		zap.Int("people", state.Entities.Len(models.People)),
		zap.Int("companies", state.Entities.Len(models.Companies)),
		zap.Bool("complete", res.Done()))
	return res, nil
}

func (e *Extractor) recognizeWindow(ctx context.Context, window []models.Chunk) ([]chunkOutcome, error) {
	outcomes := make([]chunkOutcome, len(window))
	if len(window) == 1 {
		outcomes[0] = e.recognize(ctx, window[0])
		return outcomes, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range window {
		g.Go(func() error {
			outcomes[i] = e.recognize(gctx, ch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (e *Extractor) recognize(ctx context.Context, ch models.Chunk) chunkOutcome {
	began := time.Now()
	spans, err := e.recognizer.Recognize(ctx, ch.Text)
	return chunkOutcome{spans: spans, err: err, took: time.Since(began)}
}

func (e *Extractor) apply(log *zap.Logger, res *Result, idx int, out chunkOutcome) {
	res.Processed++
	res.State.ProcessedChunks = idx + 1
	e.metrics.ChunkProcessed(out.took)
	if out.err != nil {
		res.Failed++
		e.metrics.ChunkFailed()
		log.Warn("chunk recognition failed, skipping", zap.Int("chunk", idx), zap.Error(out.err))
		return
	}
	for _, span := range out.spans {
		cat, ok := recognizer.Classify(span.Label)
		if !ok {
			continue
		}
		if res.State.Entities.Add(cat, span.Text) {
			e.metrics.EntityAdded(cat)
		}
	}
	log.Debug("chunk processed", zap.Int("chunk", idx), zap.Int("spans", len(out.spans)))
}

func (e *Extractor) save(ctx context.Context, log *zap.Logger, state *models.Progress) {
	if e.store == nil {
		return
	}
	// A cancelled ctx must not prevent the final write.
	err := e.store.Save(context.WithoutCancel(ctx), state)
	e.metrics.Checkpoint(err)
	if err != nil {
		log.Warn("checkpoint write failed, continuing in memory",
			zap.Int("processed", state.ProcessedChunks), zap.Error(err))
		return
	}
	log.Debug("checkpoint written", zap.Int("processed", state.ProcessedChunks))
}

func (e *Extractor) report(done, total int) {
	if e.progress == nil {
		return
	}
	fraction := 1.0
	if total > 0 {
		fraction = float64(done) / float64(total)
	}
	e.progress(done, total, fraction)
}

func (e *Extractor) interrupted(log *zap.Logger, res Result, err error) (Result, error) {
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return res, err
	}
	log.Info("extraction interrupted", zap.Int("processed", res.State.ProcessedChunks), zap.Error(err))
	e.save(context.Background(), log, res.State)
	return res, err
}
