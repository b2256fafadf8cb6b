// Package etl implements the animal pipeline: paginated extraction with
// detail enrichment, per-record transformation with validation, and batched
// loading with coarse-grained batch failure.
package etl

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/animalworks/animal-etl/pkg/animal"
	"github.com/animalworks/animal-etl/pkg/logging"
)

// SourceClient is the slice of the API client the extractor needs.
type SourceClient interface {
	GetAnimalsPage(ctx context.Context, page int) (*animal.Page, error)
	GetAnimalDetail(ctx context.Context, id int) (*animal.Detail, error)
}

// Extractor walks the source API's pagination and enriches every list item
// through the detail endpoint.
type Extractor struct {
	source SourceClient
	logger zerolog.Logger
}

// NewExtractor creates an extractor over the given source.
func NewExtractor(source SourceClient) *Extractor {
	return &Extractor{
		source: source,
		logger: logging.NewLogger("extractor"),
	}
}

// Animals returns a lazy iterator over the full record set. The traversal
// is finite and not restartable: a fresh iterator re-queries from page one.
//
//	it := extractor.Animals(ctx)
//	for it.Next() {
//	    rec := it.Record()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
func (e *Extractor) Animals(ctx context.Context) *Iterator {
	return &Iterator{
		extractor: e,
		ctx:       ctx,
		nextPage:  1,
	}
}

// Iterator yields one enriched animal.Detail per Next call, fetching list
// pages on demand.
type Iterator struct {
	extractor *Extractor
	ctx       context.Context

	nextPage   int
	totalPages int
	started    bool
	finished   bool

	buf     []animal.Summary
	current animal.Detail

	pages   int
	records int
	err     error
}

// Next advances to the next record. It returns false when the traversal is
// complete or has failed; check Err afterwards.
func (it *Iterator) Next() bool {
	if it.finished {
		return false
	}

	for len(it.buf) == 0 {
		if it.started && it.nextPage > it.totalPages {
			it.finished = true
			it.extractor.logger.Info().
				Int("pages", it.pages).
				Int("records", it.records).
				Msg("Extraction complete")
			return false
		}

		page, err := it.extractor.source.GetAnimalsPage(it.ctx, it.nextPage)
		if err != nil {
			it.fail(err)
			return false
		}

		it.started = true
		it.totalPages = page.TotalPages
		it.pages++
		pagesTotal.Inc()

		if len(page.Items) == 0 {
			// The source reported more pages than it can deliver; stopping
			// beats looping on empty pages forever.
			if it.nextPage < it.totalPages {
				it.extractor.logger.Warn().
					Int("page", it.nextPage).
					Int("total_pages", it.totalPages).
					Msg("Empty page before reported total; terminating early")
			}
			it.finished = true
			return false
		}

		it.extractor.logger.Debug().
			Int("page", it.nextPage).
			Int("total_pages", it.totalPages).
			Int("items", len(page.Items)).
			Msg("Page fetched")

		it.buf = page.Items
		it.nextPage++
	}

	summary := it.buf[0]
	it.buf = it.buf[1:]

	detail, err := it.extractor.source.GetAnimalDetail(it.ctx, summary.ID)
	if err != nil {
		it.fail(err)
		return false
	}

	it.current = *detail
	it.records++
	recordsTotal.WithLabelValues("extracted").Inc()
	return true
}

// Record returns the record produced by the last successful Next call.
func (it *Iterator) Record() animal.Detail {
	return it.current
}

// Err returns the fatal extraction failure, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Pages returns the number of pages successfully fetched so far.
func (it *Iterator) Pages() int {
	return it.pages
}

// Records returns the number of records emitted so far.
func (it *Iterator) Records() int {
	return it.records
}

func (it *Iterator) fail(err error) {
	it.finished = true
	it.err = &ExtractionFailedError{
		PagesFetched: it.pages,
		Records:      it.records,
		Err:          err,
	}
	it.extractor.logger.Error().
		Err(err).
		Int("pages_fetched", it.pages).
		Int("records", it.records).
		Msg("Extraction aborted")
}
