package etl

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/animalworks/animal-etl/pkg/animal"
	"github.com/animalworks/animal-etl/pkg/logging"
)

// DefaultBatchSize is the destination's per-request record limit.
const DefaultBatchSize = 100

// Submitter delivers one assembled batch to the destination. The pipeline
// swaps in a counting no-op in dry-run mode, so the loader itself is
// mode-independent.
type Submitter interface {
	SubmitBatch(ctx context.Context, batch []animal.Animal) error
}

// LoadResult is the aggregate outcome of the load stage.
type LoadResult struct {
	// Loaded is the number of records in successfully submitted batches.
	Loaded int

	// Failed is the number of records in batches that exhausted retries.
	Failed int

	// Batches is the number of successfully submitted batches.
	Batches int

	// FailedBatches is the number of batches that exhausted retries.
	FailedBatches int
}

// Loader partitions canonical records into order-preserving batches and
// submits each as one call. A failed batch marks all of its records failed
// and the run continues; there is no partial-batch retry or splitting.
type Loader struct {
	submitter Submitter
	batchSize int
	logger    zerolog.Logger

	pending  []animal.Animal
	batchSeq int
	result   LoadResult
}

// NewLoader creates a loader that submits every batchSize records.
func NewLoader(submitter Submitter, batchSize int) *Loader {
	if batchSize <= 0 || batchSize > DefaultBatchSize {
		batchSize = DefaultBatchSize
	}
	return &Loader{
		submitter: submitter,
		batchSize: batchSize,
		logger:    logging.NewLogger("loader"),
	}
}

// Add buffers one record, submitting the batch once it is full. The only
// error returned is context cancellation; batch failures are absorbed into
// the result.
func (l *Loader) Add(ctx context.Context, a animal.Animal) error {
	l.pending = append(l.pending, a)
	if len(l.pending) >= l.batchSize {
		return l.submit(ctx)
	}
	return nil
}

// Flush submits the trailing partial batch, if any.
func (l *Loader) Flush(ctx context.Context) error {
	if len(l.pending) == 0 {
		return nil
	}
	return l.submit(ctx)
}

// Result returns the aggregate outcome so far.
func (l *Loader) Result() LoadResult {
	return l.result
}

func (l *Loader) submit(ctx context.Context) error {
	batch := l.pending
	l.pending = nil
	l.batchSeq++

	err := l.submitter.SubmitBatch(ctx, batch)
	if err != nil {
		// Cancellation aborts the run; anything else fails only this batch
		if ctx.Err() != nil {
			return err
		}

		l.result.Failed += len(batch)
		l.result.FailedBatches++
		recordFailuresTotal.WithLabelValues("load").Add(float64(len(batch)))
		batchesTotal.WithLabelValues("failed").Inc()

		l.logger.Error().
			Err(err).
			Int("batch", l.batchSeq).
			Int("size", len(batch)).
			Msg("Batch submission failed; continuing with next batch")
		return nil
	}

	l.result.Loaded += len(batch)
	l.result.Batches++
	recordsTotal.WithLabelValues("loaded").Add(float64(len(batch)))
	batchesTotal.WithLabelValues("submitted").Inc()

	l.logger.Info().
		Int("batch", l.batchSeq).
		Int("size", len(batch)).
		Msg("Batch submitted")
	return nil
}
