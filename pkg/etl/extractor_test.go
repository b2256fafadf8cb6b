package etl

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/animalworks/animal-etl/pkg/animal"
)

// fakeSource serves canned pages and details, with per-page and per-record
// failure injection.
type fakeSource struct {
	pages      [][]animal.Summary
	totalPages int

	pageErrs   map[int]error
	detailErrs map[int]error

	pageCalls   []int
	detailCalls []int
}

func (f *fakeSource) GetAnimalsPage(ctx context.Context, page int) (*animal.Page, error) {
	f.pageCalls = append(f.pageCalls, page)
	if err := f.pageErrs[page]; err != nil {
		return nil, err
	}
	total := f.totalPages
	if total == 0 {
		total = len(f.pages)
	}
	var items []animal.Summary
	if page-1 < len(f.pages) {
		items = f.pages[page-1]
	}
	return &animal.Page{Page: page, TotalPages: total, Items: items}, nil
}

func (f *fakeSource) GetAnimalDetail(ctx context.Context, id int) (*animal.Detail, error) {
	f.detailCalls = append(f.detailCalls, id)
	if err := f.detailErrs[id]; err != nil {
		return nil, err
	}
	return &animal.Detail{ID: id, Name: fmt.Sprintf("animal-%d", id)}, nil
}

func summaries(ids ...int) []animal.Summary {
	out := make([]animal.Summary, len(ids))
	for i, id := range ids {
		out[i] = animal.Summary{ID: id, Name: fmt.Sprintf("animal-%d", id)}
	}
	return out
}

func collect(t *testing.T, it *Iterator) []int {
	t.Helper()
	var ids []int
	for it.Next() {
		ids = append(ids, it.Record().ID)
	}
	return ids
}

func TestIterator_EmitsAllRecordsInPageOrder(t *testing.T) {
	source := &fakeSource{
		pages: [][]animal.Summary{
			summaries(1, 2, 3),
			summaries(4, 5, 6),
		},
	}

	it := NewExtractor(source).Animals(context.Background())
	ids := collect(t, it)

	if err := it.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	expected := []int{1, 2, 3, 4, 5, 6}
	if len(ids) != len(expected) {
		t.Fatalf("Emitted %d records, want %d", len(ids), len(expected))
	}
	for i, id := range expected {
		if ids[i] != id {
			t.Errorf("Record %d = id %d, want %d (page-then-item order)", i, ids[i], id)
		}
	}
	if it.Pages() != 2 {
		t.Errorf("Pages() = %d, want 2", it.Pages())
	}
}

func TestIterator_SinglePage(t *testing.T) {
	source := &fakeSource{pages: [][]animal.Summary{summaries(7)}}

	it := NewExtractor(source).Animals(context.Background())
	ids := collect(t, it)

	if len(ids) != 1 || ids[0] != 7 {
		t.Errorf("ids = %v, want [7]", ids)
	}
	if len(source.pageCalls) != 1 {
		t.Errorf("Fetched pages %v, want just page 1", source.pageCalls)
	}
}

func TestIterator_EmptyPageBeforeTotalShortCircuits(t *testing.T) {
	source := &fakeSource{
		pages: [][]animal.Summary{
			summaries(1, 2),
			nil, // empty page while total_pages reports 4
		},
		totalPages: 4,
	}

	it := NewExtractor(source).Animals(context.Background())
	ids := collect(t, it)

	if err := it.Err(); err != nil {
		t.Fatalf("Short-circuit termination is not an error, got %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Emitted %d records, want 2", len(ids))
	}
	if len(source.pageCalls) != 2 {
		t.Errorf("Fetched pages %v, want to stop after the empty page", source.pageCalls)
	}
}

func TestIterator_PageFetchFailureAbortsExtraction(t *testing.T) {
	fetchErr := errors.New("retry attempts exhausted")
	source := &fakeSource{
		pages: [][]animal.Summary{
			summaries(1, 2),
			summaries(3, 4),
		},
		pageErrs: map[int]error{2: fetchErr},
	}

	it := NewExtractor(source).Animals(context.Background())
	ids := collect(t, it)

	var extErr *ExtractionFailedError
	if !errors.As(it.Err(), &extErr) {
		t.Fatalf("Err() = %v, want ExtractionFailedError", it.Err())
	}
	if !errors.Is(extErr, fetchErr) {
		t.Error("ExtractionFailedError should wrap the fetch failure")
	}
	if extErr.PagesFetched != 1 {
		t.Errorf("PagesFetched = %d, want 1", extErr.PagesFetched)
	}
	if extErr.Records != 2 || len(ids) != 2 {
		t.Errorf("Records = %d (emitted %d), want 2", extErr.Records, len(ids))
	}
	if it.Next() {
		t.Error("Next() after failure must keep returning false")
	}
}

func TestIterator_DetailFetchFailureAbortsExtraction(t *testing.T) {
	detailErr := errors.New("retry attempts exhausted")
	source := &fakeSource{
		pages:      [][]animal.Summary{summaries(1, 2, 3)},
		detailErrs: map[int]error{2: detailErr},
	}

	it := NewExtractor(source).Animals(context.Background())
	ids := collect(t, it)

	if len(ids) != 1 {
		t.Errorf("Emitted %v, want only record 1 before the failure", ids)
	}
	var extErr *ExtractionFailedError
	if !errors.As(it.Err(), &extErr) {
		t.Fatalf("Err() = %v, want ExtractionFailedError", it.Err())
	}
	if extErr.Records != 1 {
		t.Errorf("Records = %d, want 1", extErr.Records)
	}
}

func TestIterator_NotRestartable(t *testing.T) {
	source := &fakeSource{pages: [][]animal.Summary{summaries(1)}}
	extractor := NewExtractor(source)

	first := extractor.Animals(context.Background())
	collect(t, first)
	if first.Next() {
		t.Error("Exhausted iterator must not restart")
	}

	// A fresh traversal re-queries from page one
	second := extractor.Animals(context.Background())
	if ids := collect(t, second); len(ids) != 1 {
		t.Errorf("Fresh iterator emitted %v, want [1]", ids)
	}
	if source.pageCalls[len(source.pageCalls)-1] != 1 {
		t.Errorf("Fresh traversal should start at page 1, calls: %v", source.pageCalls)
	}
}
