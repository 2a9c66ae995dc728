// cmd/verifier/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"paystub-verify/internal/common/config"
	"paystub-verify/internal/common/database"
	"paystub-verify/internal/common/logger"
	"paystub-verify/internal/common/observability"
	"paystub-verify/internal/common/retry"
	"paystub-verify/internal/orchestrator"
	epd "paystub-verify/internal/workers/verification/extract-paystub-data"
	nex "paystub-verify/internal/workers/verification/normalize-extraction"
	pv "paystub-verify/internal/workers/verification/persist-verdict"
	vad "paystub-verify/internal/workers/verification/verify-application-data"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting paystub verifier...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Build the verification pipeline ---
	extractor := epd.NewHandler(
		&epd.Config{
			CacheTTL:        time.Duration(cfg.Verification.CacheTTL) * time.Second,
			DownloadTimeout: time.Duration(cfg.OCR.DownloadTimeout) * time.Millisecond,
		},
		rdb.Client,
		epd.NewGeminiClient(cfg.OCR, log),
		log,
	)
	normalizer := nex.NewHandler(log)
	verifier := vad.NewHandler(
		&vad.Config{SimilarityThreshold: cfg.Verification.SimilarityThreshold},
		log,
	)
	store := pv.NewStore(pg.DB, log)

	orch := orchestrator.New(
		extractor, normalizer, verifier, store,
		retry.Policy{
			MaxAttempts:    cfg.OCR.MaxRetries,
			InitialBackoff: time.Duration(cfg.OCR.BackoffInitial) * time.Millisecond,
		},
		obs,
		log,
	)

	// --- Metrics and pprof endpoint ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
		zapLog.Info("metrics server listening", zap.String("addr", cfg.App.MetricsAddr))
		if err := http.ListenAndServe(cfg.App.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	// --- Poll loop over pending documents ---
	pollInterval := time.Duration(cfg.Verification.PollInterval) * time.Millisecond
	done := make(chan struct{})
	go func() {
		defer close(done)
		runPendingDocuments(ctx, cfg, orch, store, log)

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runPendingDocuments(ctx, cfg, orch, store, log)
			}
		}
	}()

	zapLog.Info("Paystub verifier started",
		zap.Duration("pollInterval", pollInterval),
		zap.Int("batchSize", cfg.Verification.BatchSize),
	)

	// --- Graceful shutdown ---
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	zapLog.Info("Shutdown signal received, stopping...")
	cancel()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		zapLog.Warn("poll loop did not stop within grace period")
	}
	zapLog.Info("Paystub verifier stopped")
}

func runPendingDocuments(ctx context.Context, cfg *config.Config, orch *orchestrator.Orchestrator,
	store *pv.Store, log logger.Logger) {

	docs, err := store.ListPendingDocuments(ctx, cfg.Verification.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			log.Error("failed to list pending documents", map[string]interface{}{"error": err})
		}
		return
	}

	for _, doc := range docs {
		if ctx.Err() != nil {
			return
		}

		app, err := store.GetApplication(ctx, doc.ApplicationID)
		if err != nil {
			log.Error("failed to load application for document", map[string]interface{}{
				"documentId":    doc.ID,
				"applicationId": doc.ApplicationID,
				"error":         err,
			})
			continue
		}

		if _, err := orch.Run(ctx, *app, doc, nil); err != nil && ctx.Err() == nil {
			log.Error("verification run failed to persist", map[string]interface{}{
				"documentId": doc.ID,
				"error":      err,
			})
		}
	}
}
