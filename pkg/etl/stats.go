package etl

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Stats holds the running counters for one pipeline run. The pipeline is the
// single writer; atomics keep a prefetching extractor from ever racing the
// counters.
type Stats struct {
	extracted       atomic.Int64
	transformed     atomic.Int64
	transformFailed atomic.Int64
	loaded          atomic.Int64
	loadFailed      atomic.Int64
	batches         atomic.Int64
	failedBatches   atomic.Int64
	pages           atomic.Int64

	startTime time.Time
	endTime   time.Time
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{}
}

// Start records the run start time.
func (s *Stats) Start() {
	s.startTime = time.Now()
}

// Finish records the run end time.
func (s *Stats) Finish() {
	s.endTime = time.Now()
}

// IncExtracted counts one record emitted by the extractor.
func (s *Stats) IncExtracted() { s.extracted.Add(1) }

// IncTransformed counts one record that passed transformation.
func (s *Stats) IncTransformed() { s.transformed.Add(1) }

// IncTransformFailed counts one record dropped by validation.
func (s *Stats) IncTransformFailed() { s.transformFailed.Add(1) }

// SetPages records the number of source pages fetched.
func (s *Stats) SetPages(n int) { s.pages.Store(int64(n)) }

// RecordLoadResult folds the loader's aggregate outcome into the counters.
func (s *Stats) RecordLoadResult(r LoadResult) {
	s.loaded.Store(int64(r.Loaded))
	s.loadFailed.Store(int64(r.Failed))
	s.batches.Store(int64(r.Batches))
	s.failedBatches.Store(int64(r.FailedBatches))
}

// Extracted returns the number of records emitted by the extractor.
func (s *Stats) Extracted() int64 { return s.extracted.Load() }

// Transformed returns the number of records that passed transformation.
func (s *Stats) Transformed() int64 { return s.transformed.Load() }

// TransformFailed returns the number of records dropped by validation.
func (s *Stats) TransformFailed() int64 { return s.transformFailed.Load() }

// Loaded returns the number of records accepted by the destination.
func (s *Stats) Loaded() int64 { return s.loaded.Load() }

// LoadFailed returns the number of records in failed batches.
func (s *Stats) LoadFailed() int64 { return s.loadFailed.Load() }

// Batches returns the number of batches submitted successfully.
func (s *Stats) Batches() int64 { return s.batches.Load() }

// FailedBatches returns the number of batches that exhausted retries.
func (s *Stats) FailedBatches() int64 { return s.failedBatches.Load() }

// Pages returns the number of source pages fetched.
func (s *Stats) Pages() int64 { return s.pages.Load() }

// Duration returns the wall-clock run duration, or 0 while running.
func (s *Stats) Duration() time.Duration {
	if s.startTime.IsZero() || s.endTime.IsZero() {
		return 0
	}
	return s.endTime.Sub(s.startTime)
}

// SuccessRate returns loaded/extracted as a percentage.
func (s *Stats) SuccessRate() float64 {
	extracted := s.Extracted()
	if extracted == 0 {
		return 0
	}
	return float64(s.Loaded()) / float64(extracted) * 100
}

// statsJSON is the JSON representation of Stats.
type statsJSON struct {
	Extracted       int64   `json:"extracted"`
	Transformed     int64   `json:"transformed"`
	TransformFailed int64   `json:"transform_failed"`
	Loaded          int64   `json:"loaded"`
	LoadFailed      int64   `json:"load_failed"`
	Batches         int64   `json:"batches"`
	FailedBatches   int64   `json:"failed_batches"`
	Pages           int64   `json:"pages"`
	DurationSeconds float64 `json:"duration_seconds"`
	SuccessRate     float64 `json:"success_rate"`
}

// MarshalJSON implements json.Marshaler.
func (s *Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(statsJSON{
		Extracted:       s.Extracted(),
		Transformed:     s.Transformed(),
		TransformFailed: s.TransformFailed(),
		Loaded:          s.Loaded(),
		LoadFailed:      s.LoadFailed(),
		Batches:         s.Batches(),
		FailedBatches:   s.FailedBatches(),
		Pages:           s.Pages(),
		DurationSeconds: s.Duration().Seconds(),
		SuccessRate:     s.SuccessRate(),
	})
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler so the final
// summary event carries every counter as a structured field.
func (s *Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("extracted", s.Extracted()).
		Int64("transformed", s.Transformed()).
		Int64("transform_failed", s.TransformFailed()).
		Int64("loaded", s.Loaded()).
		Int64("load_failed", s.LoadFailed()).
		Int64("batches", s.Batches()).
		Int64("failed_batches", s.FailedBatches()).
		Int64("pages", s.Pages()).
		Dur("duration", s.Duration()).
		Float64("success_rate", s.SuccessRate())
}
