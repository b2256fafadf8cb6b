package etl

import "fmt"

// ValidationError reports a record that cannot be transformed into the
// destination schema. It fails only that record, never the run.
type ValidationError struct {
	// AnimalID is the source record's identifier (0 when unknown).
	AnimalID int

	// Field names the offending field.
	Field string

	// Reason describes what was wrong with the value.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for animal %d: field %q: %s",
		e.AnimalID, e.Field, e.Reason)
}

// ExtractionFailedError reports a fatal extraction failure: a page or detail
// fetch exhausted its retries, so the record set is incomplete and the run
// must abort. It carries how far the traversal got.
type ExtractionFailedError struct {
	// PagesFetched is the number of pages successfully retrieved.
	PagesFetched int

	// Records is the number of records emitted before the failure.
	Records int

	// Err is the underlying fetch failure.
	Err error
}

// Error implements the error interface.
func (e *ExtractionFailedError) Error() string {
	return fmt.Sprintf("extraction failed after %d pages (%d records): %v",
		e.PagesFetched, e.Records, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ExtractionFailedError) Unwrap() error {
	return e.Err
}
