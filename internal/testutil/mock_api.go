// Package testutil provides a configurable mock Animal API server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/animalworks/animal-etl/pkg/animal"
)

// MockAnimalAPI is a mock source+destination Animal API backed by httptest.
// It serves the paginated list endpoint, the detail endpoint, and the home
// endpoint, and records everything submitted to it.
type MockAnimalAPI struct {
	server *httptest.Server
	mu     sync.Mutex

	pageSize int
	animals  []animal.Summary
	details  map[int]string // raw JSON per animal id

	handlers map[string]http.HandlerFunc
	failures map[string]*failurePlan

	// Tracking
	RequestCount     int
	SubmittedBatches [][]animal.Animal
}

// failurePlan makes the next Remaining requests to a path return Status.
type failurePlan struct {
	Status    int
	Remaining int
}

// NewMockAnimalAPI creates a mock server with the given page size.
func NewMockAnimalAPI(pageSize int) *MockAnimalAPI {
	if pageSize <= 0 {
		pageSize = 20
	}
	mock := &MockAnimalAPI{
		pageSize: pageSize,
		details:  make(map[int]string),
		handlers: make(map[string]http.HandlerFunc),
		failures: make(map[string]*failurePlan),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.route))
	return mock
}

// URL returns the mock server base URL.
func (m *MockAnimalAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAnimalAPI) Close() {
	m.server.Close()
}

// AddAnimal registers one animal. detailJSON is served verbatim from the
// detail endpoint, so tests control the exact wire shape.
func (m *MockAnimalAPI) AddAnimal(id int, name, detailJSON string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.animals = append(m.animals, animal.Summary{ID: id, Name: name})
	m.details[id] = detailJSON
}

// SetHandler overrides the handler for a specific path.
func (m *MockAnimalAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// FailNext makes the next count requests to path return status.
func (m *MockAnimalAPI) FailNext(path string, status, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = &failurePlan{Status: status, Remaining: count}
}

// Requests returns the total number of requests served.
func (m *MockAnimalAPI) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// Batches returns a copy of all batches accepted by the home endpoint.
func (m *MockAnimalAPI) Batches() [][]animal.Animal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]animal.Animal, len(m.SubmittedBatches))
	copy(out, m.SubmittedBatches)
	return out
}

func (m *MockAnimalAPI) route(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++

	if plan, ok := m.failures[r.URL.Path]; ok && plan.Remaining != 0 {
		plan.Remaining--
		status := plan.Status
		m.mu.Unlock()
		http.Error(w, http.StatusText(status), status)
		return
	}

	if handler, ok := m.handlers[r.URL.Path]; ok {
		m.mu.Unlock()
		handler(w, r)
		return
	}
	m.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/animals/v1/animals":
		m.serveListPage(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/animals/v1/animals/"):
		m.serveDetail(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/animals/v1/home":
		m.serveHome(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockAnimalAPI) serveListPage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	totalPages := (len(m.animals) + m.pageSize - 1) / m.pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	start := (page - 1) * m.pageSize
	end := start + m.pageSize
	if start > len(m.animals) {
		start = len(m.animals)
	}
	if end > len(m.animals) {
		end = len(m.animals)
	}

	items := m.animals[start:end]
	if items == nil {
		items = []animal.Summary{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(animal.Page{
		Page:       page,
		TotalPages: totalPages,
		Items:      items,
	})
}

func (m *MockAnimalAPI) serveDetail(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/animals/v1/animals/")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "bad animal id", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	detail, ok := m.details[id]
	m.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, detail)
}

func (m *MockAnimalAPI) serveHome(w http.ResponseWriter, r *http.Request) {
	var batch []animal.Animal
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "invalid batch payload", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.SubmittedBatches = append(m.SubmittedBatches, batch)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"message": "Helped %d animals reach their home"}`, len(batch))
}
