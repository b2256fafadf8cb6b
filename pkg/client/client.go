// Package client provides the Animal API HTTP client with retry, error
// classification, and optional detail-response caching.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/animalworks/animal-etl/pkg/animal"
	"github.com/animalworks/animal-etl/pkg/cache"
)

// Animal API endpoints.
const (
	animalsPath = "/animals/v1/animals"
	homePath    = "/animals/v1/home"
)

// MaxBatchRecords is the destination's hard limit on records per submission.
const MaxBatchRecords = 100

// maxErrorBodyBytes bounds how much of an error response body is kept for
// error messages.
const maxErrorBodyBytes = 512

// Prometheus metrics for Animal API operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animal_api_requests_total",
		Help: "Total Animal API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "animal_api_request_duration_seconds",
		Help:    "Animal API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animal_api_errors_total",
		Help: "Total Animal API errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Animal API, e.g. "http://localhost:3123"
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// PageSize requested from the list endpoint (0 = server default)
	PageSize int

	// Retry/backoff policy; Timeout bounds each individual attempt
	Retry RetryConfig

	// Cache is an optional detail-response cache (nil disables caching)
	Cache *cache.Manager

	// CacheTTL is how long cached detail responses stay fresh
	CacheTTL time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "animal-etl/1.0",
		Retry:     DefaultRetryConfig(),
		CacheTTL:  time.Hour,
	}
}

// Client is the Animal API client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new Animal API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.UserAgent == "" {
		cfg.UserAgent = "animal-etl/1.0"
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.InitialBackoff <= 0 {
		cfg.Retry.InitialBackoff = time.Second
	}
	if cfg.Retry.MaxBackoff <= 0 {
		cfg.Retry.MaxBackoff = 60 * time.Second
	}
	if cfg.Retry.BackoffMultiplier <= 0 {
		cfg.Retry.BackoffMultiplier = 2.0
	}

	logger := log.With().Str("component", "animal-client").Logger()

	return &Client{
		// Per-attempt deadlines come from the retry executor's context,
		// so the http.Client itself carries no timeout.
		httpClient: &http.Client{},
		config:     cfg,
		logger:     logger,
	}, nil
}

// GetAnimalsPage fetches one page of the animal list endpoint.
func (c *Client) GetAnimalsPage(ctx context.Context, page int) (*animal.Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if c.config.PageSize > 0 {
		query.Set("per_page", strconv.Itoa(c.config.PageSize))
	}

	var result animal.Page
	if err := c.getJSON(ctx, "list_page", animalsPath, query, &result); err != nil {
		return nil, err
	}

	if result.Page < 1 || result.TotalPages < 1 {
		return nil, fmt.Errorf("invalid pagination metadata: page=%d total_pages=%d",
			result.Page, result.TotalPages)
	}

	return &result, nil
}

// GetAnimalDetail fetches the detail record for one animal. When a cache is
// configured, fresh cached responses short-circuit the request; cache errors
// degrade to a direct fetch.
func (c *Client) GetAnimalDetail(ctx context.Context, id int) (*animal.Detail, error) {
	path := fmt.Sprintf("%s/%d", animalsPath, id)
	key := cache.Key{AnimalID: id}

	if c.config.Cache != nil {
		entry, err := c.config.Cache.Get(ctx, key)
		switch {
		case err == nil:
			var detail animal.Detail
			if jsonErr := json.Unmarshal(entry.Data, &detail); jsonErr == nil {
				c.logger.Debug().
					Int("animal_id", id).
					Dur("ttl", entry.TTL()).
					Msg("Detail cache hit")
				return &detail, nil
			}
			// Corrupt entry: drop it and fetch
			_ = c.config.Cache.Delete(ctx, key)
		case err != cache.ErrCacheMiss:
			c.logger.Warn().Err(err).Int("animal_id", id).Msg("Cache get error")
		}
	}

	body, err := c.getRaw(ctx, "detail", path, nil)
	if err != nil {
		return nil, err
	}

	var detail animal.Detail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("parse animal %d detail: %w", id, err)
	}

	if c.config.Cache != nil {
		if err := c.config.Cache.Set(ctx, key, body, c.config.CacheTTL); err != nil {
			c.logger.Warn().Err(err).Int("animal_id", id).Msg("Failed to cache detail response")
		}
	}

	return &detail, nil
}

// SubmitBatch POSTs up to MaxBatchRecords canonical animals to the home
// endpoint as one JSON array.
func (c *Client) SubmitBatch(ctx context.Context, batch []animal.Animal) error {
	if len(batch) == 0 {
		return nil
	}
	if len(batch) > MaxBatchRecords {
		return fmt.Errorf("%w: %d records (max %d)", ErrBatchTooLarge, len(batch), MaxBatchRecords)
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	return retryWithBackoff(ctx, c.logger, c.config.Retry, "submit_batch", func(ctx context.Context) error {
		return c.doOnce(ctx, http.MethodPost, homePath, c.config.BaseURL+homePath, payload, nil)
	})
}

// getJSON performs a retried GET and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, out any) error {
	body, err := c.getRaw(ctx, operation, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

// getRaw performs a retried GET and returns the raw response body.
func (c *Client) getRaw(ctx context.Context, operation, path string, query url.Values) ([]byte, error) {
	fullURL := c.config.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var body []byte
	err := retryWithBackoff(ctx, c.logger, c.config.Retry, operation, func(ctx context.Context) error {
		return c.doOnce(ctx, http.MethodGet, path, fullURL, nil, &body)
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// doOnce performs a single HTTP attempt. HTTP failures are returned as
// *APIError carrying the classification the retry executor acts on; any 2xx
// is success.
func (c *Client) doOnce(ctx context.Context, method, endpoint, fullURL string, payload []byte, out *[]byte) error {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    strings.TrimSpace(resp.Status + " " + string(snippet)),
		}
	}

	if out != nil {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return fmt.Errorf("read %s response: %w", endpoint, err)
		}
		*out = data
	}

	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
