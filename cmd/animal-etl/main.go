// Command animal-etl moves animal records from the source Animal API to the
// home endpoint: paginated extraction, per-record transformation, batched
// loading.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/animalworks/animal-etl/pkg/cache"
	"github.com/animalworks/animal-etl/pkg/client"
	"github.com/animalworks/animal-etl/pkg/etl"
	"github.com/animalworks/animal-etl/pkg/logging"
)

func main() {
	// Environment defaults may come from a local .env file
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options is the flag surface, pre-populated from the environment.
type options struct {
	baseURL          string
	batchSize        int
	pageSize         int
	maxRetries       int
	timeout          time.Duration
	dryRun           bool
	strictTimestamps bool
	logLevel         string
	pretty           bool
	redisAddr        string
	cacheTTL         time.Duration
	metricsAddr      string
}

func defaultOptions() options {
	return options{
		baseURL:     getEnv("API_BASE_URL", "http://localhost:3123"),
		batchSize:   getEnvInt("BATCH_SIZE", 100),
		pageSize:    getEnvInt("DEFAULT_PAGE_SIZE", 0),
		maxRetries:  getEnvInt("MAX_RETRIES", 3),
		timeout:     getEnvDuration("TIMEOUT", 30*time.Second),
		logLevel:    getEnv("LOG_LEVEL", "info"),
		redisAddr:   getEnv("REDIS_ADDR", ""),
		cacheTTL:    getEnvDuration("CACHE_TTL", time.Hour),
		metricsAddr: getEnv("METRICS_ADDR", ""),
	}
}

func newRootCmd() *cobra.Command {
	opts := defaultOptions()

	cmd := &cobra.Command{
		Use:   "animal-etl",
		Short: "Move animals from the source API to the home endpoint",
		Long: `animal-etl extracts every animal from the paginated source API,
normalizes each record (friend list, birth timestamp), and submits the
results to the home endpoint in batches. Exit status is non-zero when
extraction aborts or any batch fails to load.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.baseURL, "base-url", opts.baseURL, "Base URL of the Animal API")
	flags.IntVar(&opts.batchSize, "batch-size", opts.batchSize, "Records per destination submission (max 100)")
	flags.IntVar(&opts.pageSize, "page-size", opts.pageSize, "Items requested per list page (0 = server default)")
	flags.IntVar(&opts.maxRetries, "max-retries", opts.maxRetries, "Retries per network operation after the initial attempt")
	flags.DurationVar(&opts.timeout, "timeout", opts.timeout, "Timeout per request attempt")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Extract and transform without submitting to the destination")
	flags.BoolVar(&opts.strictTimestamps, "strict-timestamps", false, "Fail records with unparseable birth timestamps instead of dropping the value")
	flags.StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.pretty, "pretty", false, "Human-readable console logs instead of JSON")
	flags.StringVar(&opts.redisAddr, "redis-addr", opts.redisAddr, "Redis address for the detail-response cache (empty disables caching)")
	flags.DurationVar(&opts.cacheTTL, "cache-ttl", opts.cacheTTL, "How long cached detail responses stay fresh")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", opts.metricsAddr, "Listen address for /metrics during the run (empty disables)")

	return cmd
}

func run(ctx context.Context, opts options) error {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(opts.logLevel),
		Pretty: opts.pretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := client.DefaultConfig(opts.baseURL)
	cfg.PageSize = opts.pageSize
	cfg.Retry.MaxRetries = opts.maxRetries
	cfg.Retry.Timeout = opts.timeout
	cfg.CacheTTL = opts.cacheTTL

	if opts.redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", opts.redisAddr, err)
		}
		defer redisClient.Close()
		cfg.Cache = cache.NewManager(redisClient)
		logger.Info().Str("redis_addr", opts.redisAddr).Msg("Detail cache enabled")
	}

	if opts.metricsAddr != "" {
		go serveMetrics(opts.metricsAddr)
		logger.Info().Str("metrics_addr", opts.metricsAddr).Msg("Metrics endpoint enabled")
	}

	apiClient, err := client.New(cfg)
	if err != nil {
		return fmt.Errorf("create API client: %w", err)
	}

	pipeline := etl.New(etl.Config{
		BatchSize:        opts.batchSize,
		DryRun:           opts.dryRun,
		StrictTimestamps: opts.strictTimestamps,
	}, apiClient, apiClient)

	logger.Info().
		Str("base_url", opts.baseURL).
		Int("batch_size", opts.batchSize).
		Int("max_retries", opts.maxRetries).
		Dur("timeout", opts.timeout).
		Bool("dry_run", opts.dryRun).
		Str("run_id", pipeline.RunID()).
		Msg("Starting animal ETL")

	if _, err := pipeline.Run(ctx); err != nil {
		return err
	}
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	// Best effort: a dead metrics listener must not fail the run
	_ = http.ListenAndServe(addr, mux)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var parsed int
		if _, err := fmt.Sscanf(value, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
