package etl

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/animalworks/animal-etl/pkg/animal"
	"github.com/animalworks/animal-etl/pkg/logging"
)

// ErrLoadIncomplete is returned by Run when every stage finished but one or
// more batches exhausted their retries. The stats still describe the whole
// run; callers use this to exit non-zero.
var ErrLoadIncomplete = errors.New("one or more batches failed to load")

// Phase is the pipeline's lifecycle state. Transitions only move forward:
// idle → extracting → flushing → finalized. During extracting, transform
// and load are interleaved per record.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseExtracting Phase = "extracting"
	PhaseFlushing   Phase = "flushing"
	PhaseFinalized  Phase = "finalized"
)

// Config holds the pipeline's run parameters, fixed at start.
type Config struct {
	// BatchSize is the number of records per destination submission.
	BatchSize int

	// DryRun assembles and counts batches without submitting them.
	DryRun bool

	// StrictTimestamps fails records with unparseable birth timestamps
	// instead of keeping them with an unknown marker.
	StrictTimestamps bool
}

// Pipeline orchestrates extract → transform → load record-by-record, so the
// full record set is never materialized.
type Pipeline struct {
	cfg         Config
	source      SourceClient
	sink        Submitter
	transformer *Transformer
	logger      zerolog.Logger
	stats       *Stats
	runID       string
	phase       Phase
}

// New creates a pipeline moving records from source to sink. In dry-run
// mode the sink is replaced by a counting no-op, so no submission ever
// reaches the destination.
func New(cfg Config, source SourceClient, sink Submitter) *Pipeline {
	runID := uuid.NewString()
	logger := logging.NewLogger("pipeline").With().Str("run_id", runID).Logger()

	if cfg.DryRun {
		sink = &dryRunSubmitter{logger: logger}
	}

	return &Pipeline{
		cfg:         cfg,
		source:      source,
		sink:        sink,
		transformer: NewTransformer(cfg.StrictTimestamps),
		logger:      logger,
		stats:       NewStats(),
		runID:       runID,
		phase:       PhaseIdle,
	}
}

// RunID returns the unique identifier attached to this run's log events.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Phase returns the pipeline's current lifecycle state.
func (p *Pipeline) Phase() Phase {
	return p.phase
}

// Stats returns the run counters. Read them after Run returns.
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

// Run executes the pipeline to completion. It returns the final stats
// together with an *ExtractionFailedError when the run aborted, or
// ErrLoadIncomplete when it finished with failed batches. Per-record
// validation failures never surface as errors.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	p.stats.Start()
	p.setPhase(PhaseExtracting)
	p.logger.Info().
		Int("batch_size", p.cfg.BatchSize).
		Bool("dry_run", p.cfg.DryRun).
		Msg("Pipeline started")

	extractor := NewExtractor(p.source)
	loader := NewLoader(p.sink, p.cfg.BatchSize)

	it := extractor.Animals(ctx)
	for it.Next() {
		p.stats.IncExtracted()

		record := it.Record()
		canonical, err := p.transformer.Transform(record)
		if err != nil {
			p.stats.IncTransformFailed()
			recordFailuresTotal.WithLabelValues("transform").Inc()

			var vErr *ValidationError
			if errors.As(err, &vErr) {
				p.logger.Error().
					Int("animal_id", vErr.AnimalID).
					Str("field", vErr.Field).
					Str("reason", vErr.Reason).
					Msg("Record failed validation; dropped")
			} else {
				p.logger.Error().Err(err).Msg("Record transformation failed; dropped")
			}
			continue
		}
		p.stats.IncTransformed()

		if err := loader.Add(ctx, canonical); err != nil {
			return p.finalize(it, loader, err)
		}
	}

	if err := it.Err(); err != nil {
		// Incomplete record set: do not flush, abort the run
		return p.finalize(it, loader, err)
	}

	p.setPhase(PhaseFlushing)
	if err := loader.Flush(ctx); err != nil {
		return p.finalize(it, loader, err)
	}

	var runErr error
	if loader.Result().FailedBatches > 0 {
		runErr = ErrLoadIncomplete
	}
	return p.finalize(it, loader, runErr)
}

// finalize folds the loader outcome into the stats and emits the summary.
func (p *Pipeline) finalize(it *Iterator, loader *Loader, runErr error) (*Stats, error) {
	p.stats.SetPages(it.Pages())
	p.stats.RecordLoadResult(loader.Result())
	p.stats.Finish()
	p.setPhase(PhaseFinalized)
	runDurationSeconds.Observe(p.stats.Duration().Seconds())

	event := p.logger.Info()
	if runErr != nil {
		event = p.logger.Error().Err(runErr)
	}
	event.
		Object("stats", p.stats).
		Bool("dry_run", p.cfg.DryRun).
		Msg("Pipeline finished")

	return p.stats, runErr
}

func (p *Pipeline) setPhase(next Phase) {
	p.logger.Debug().
		Str("from", string(p.phase)).
		Str("to", string(next)).
		Msg("Phase transition")
	p.phase = next
}

// dryRunSubmitter counts batches without submitting them, so dry-run stats
// report the same loaded counts as a live run over identical input.
type dryRunSubmitter struct {
	logger zerolog.Logger
}

func (d *dryRunSubmitter) SubmitBatch(ctx context.Context, batch []animal.Animal) error {
	d.logger.Info().
		Int("size", len(batch)).
		Msg("Dry run: batch assembled, submission skipped")
	return nil
}
