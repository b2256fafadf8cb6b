package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/animalworks/animal-etl/internal/testutil"
	"github.com/animalworks/animal-etl/pkg/cache"
	"github.com/animalworks/animal-etl/pkg/client"
	"github.com/animalworks/animal-etl/pkg/etl"
)

// setupRedis starts a Redis container for cache integration tests.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	// testcontainers panics (rather than returning an error) when no Docker
	// host can be found; convert that into the same skip path.
	container, err := func() (c testcontainers.Container, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("docker unavailable: %v", r)
			}
		}()
		return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if err != nil {
		t.Skipf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// newAPIClient builds a client against the mock server with fast backoff so
// retry scenarios finish quickly.
func newAPIClient(t *testing.T, mock *testutil.MockAnimalAPI, maxRetries int) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig(mock.URL())
	cfg.Retry.MaxRetries = maxRetries
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 5 * time.Millisecond

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

// populate seeds the mock with n animals; invalid IDs get an empty name so
// they fail validation during transform.
func populate(mock *testutil.MockAnimalAPI, n int, invalid map[int]bool) {
	for id := 1; id <= n; id++ {
		name := fmt.Sprintf("Animal-%d", id)
		if invalid[id] {
			name = ""
		}
		detail := fmt.Sprintf(
			`{"id": %d, "name": %q, "friends": "Ada,Tango", "born_at": 1620129600000}`,
			id, name)
		mock.AddAnimal(id, name, detail)
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	mock := testutil.NewMockAnimalAPI(3)
	defer mock.Close()
	populate(mock, 6, map[int]bool{4: true})

	c := newAPIClient(t, mock, 3)
	pipeline := etl.New(etl.Config{BatchSize: 4}, c, c)

	stats, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := stats.Extracted(); got != 6 {
		t.Errorf("Extracted = %d, want 6", got)
	}
	if got := stats.Transformed(); got != 5 {
		t.Errorf("Transformed = %d, want 5", got)
	}
	if got := stats.TransformFailed(); got != 1 {
		t.Errorf("TransformFailed = %d, want 1", got)
	}
	if got := stats.Loaded(); got != 5 {
		t.Errorf("Loaded = %d, want 5", got)
	}
	if got := stats.Pages(); got != 2 {
		t.Errorf("Pages = %d, want 2", got)
	}

	batches := mock.Batches()
	if len(batches) != 2 {
		t.Fatalf("destination received %d batches, want 2", len(batches))
	}
	if len(batches[0]) != 4 || len(batches[1]) != 1 {
		t.Errorf("batch sizes = [%d, %d], want [4, 1]", len(batches[0]), len(batches[1]))
	}

	var ids []int
	for _, batch := range batches {
		for _, a := range batch {
			ids = append(ids, a.ID)
		}
	}
	want := []int{1, 2, 3, 5, 6}
	if len(ids) != len(want) {
		t.Fatalf("loaded IDs = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("loaded IDs = %v, want %v", ids, want)
		}
	}
}

func TestPipelineRetriesTransientListFailures(t *testing.T) {
	mock := testutil.NewMockAnimalAPI(5)
	defer mock.Close()
	populate(mock, 5, nil)

	// Two failures, then success: within the retry budget of 3.
	mock.FailNext("/animals/v1/animals", 503, 2)

	c := newAPIClient(t, mock, 3)
	pipeline := etl.New(etl.Config{BatchSize: 100}, c, c)

	stats, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed despite transient errors: %v", err)
	}
	if got := stats.Loaded(); got != 5 {
		t.Errorf("Loaded = %d, want 5", got)
	}
}

func TestPipelineFailedBatchDoesNotAbortRun(t *testing.T) {
	mock := testutil.NewMockAnimalAPI(10)
	defer mock.Close()
	populate(mock, 8, nil)

	// With max-retries 3 each batch submission makes up to 4 attempts.
	// Exactly 4 failures exhaust the first batch; the second succeeds.
	mock.FailNext("/animals/v1/home", 500, 4)

	c := newAPIClient(t, mock, 3)
	pipeline := etl.New(etl.Config{BatchSize: 4}, c, c)

	stats, err := pipeline.Run(context.Background())
	if !errors.Is(err, etl.ErrLoadIncomplete) {
		t.Fatalf("Run error = %v, want ErrLoadIncomplete", err)
	}

	if got := stats.LoadFailed(); got != 4 {
		t.Errorf("LoadFailed = %d, want 4", got)
	}
	if got := stats.Loaded(); got != 4 {
		t.Errorf("Loaded = %d, want 4", got)
	}
	if got := stats.FailedBatches(); got != 1 {
		t.Errorf("FailedBatches = %d, want 1", got)
	}
	if got := stats.Batches(); got != 1 {
		t.Errorf("Batches = %d, want 1", got)
	}

	if batches := mock.Batches(); len(batches) != 1 {
		t.Errorf("destination accepted %d batches, want 1", len(batches))
	}
}

func TestPipelineAbortsWhenExtractionExhausted(t *testing.T) {
	mock := testutil.NewMockAnimalAPI(5)
	defer mock.Close()
	populate(mock, 5, nil)

	// Persistent server errors exhaust the list fetch entirely.
	mock.FailNext("/animals/v1/animals", 500, -1)

	c := newAPIClient(t, mock, 2)
	pipeline := etl.New(etl.Config{BatchSize: 100}, c, c)

	stats, err := pipeline.Run(context.Background())

	var extractErr *etl.ExtractionFailedError
	if !errors.As(err, &extractErr) {
		t.Fatalf("Run error = %v, want ExtractionFailedError", err)
	}
	if got := stats.Loaded(); got != 0 {
		t.Errorf("Loaded = %d, want 0 (no flush after extraction failure)", got)
	}
	if batches := mock.Batches(); len(batches) != 0 {
		t.Errorf("destination accepted %d batches, want 0", len(batches))
	}
	// max-retries 2 means 3 attempts on the first page fetch.
	if got := mock.Requests(); got != 3 {
		t.Errorf("mock served %d requests, want 3", got)
	}
}

func TestPipelineDryRunSubmitsNothing(t *testing.T) {
	mock := testutil.NewMockAnimalAPI(5)
	defer mock.Close()
	populate(mock, 5, nil)

	c := newAPIClient(t, mock, 3)
	pipeline := etl.New(etl.Config{BatchSize: 2, DryRun: true}, c, c)

	stats, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := stats.Loaded(); got != 5 {
		t.Errorf("Loaded = %d, want 5 (dry run counts as loaded)", got)
	}
	if got := stats.Batches(); got != 3 {
		t.Errorf("Batches = %d, want 3", got)
	}
	if batches := mock.Batches(); len(batches) != 0 {
		t.Errorf("dry run submitted %d batches to the destination, want 0", len(batches))
	}
}

func TestPipelineDetailCacheSkipsRefetch(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAnimalAPI(5)
	defer mock.Close()
	populate(mock, 5, nil)

	cfg := client.DefaultConfig(mock.URL())
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Cache = cache.NewManager(redisClient)
	cfg.CacheTTL = time.Hour

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()

	// First run fills the cache: 1 list page + 5 details + 1 batch.
	if _, err := etl.New(etl.Config{BatchSize: 100}, c, c).Run(ctx); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	firstTotal := mock.Requests()
	if firstTotal != 7 {
		t.Fatalf("first run served %d requests, want 7", firstTotal)
	}

	// Second run serves details from Redis: only the page and the batch
	// hit the API.
	if _, err := etl.New(etl.Config{BatchSize: 100}, c, c).Run(ctx); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if delta := mock.Requests() - firstTotal; delta != 2 {
		t.Errorf("second run served %d API requests, want 2 (details cached)", delta)
	}
}
