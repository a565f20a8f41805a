package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/copyless-dev/copyless/internal/config"
	"github.com/copyless-dev/copyless/internal/corpus"
	dbRedis "github.com/copyless-dev/copyless/internal/db/redis"
	"github.com/copyless-dev/copyless/internal/domain"
	"github.com/copyless-dev/copyless/internal/index/lexical"
	"github.com/copyless-dev/copyless/internal/index/semantic"
	logpkg "github.com/copyless-dev/copyless/internal/logger"
	"github.com/copyless-dev/copyless/internal/metrics"
	"github.com/copyless-dev/copyless/internal/repository/embcache"
	chiTransport "github.com/copyless-dev/copyless/internal/transport/chi"
	openaiEmb "github.com/copyless-dev/copyless/internal/transport/openai"
	checkuc "github.com/copyless-dev/copyless/internal/usecase/check"
	healthuc "github.com/copyless-dev/copyless/internal/usecase/health"
	"github.com/copyless-dev/copyless/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting copyless API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("corpus_path", cfg.Corpus.Path),
		zap.String("granularity", cfg.Corpus.Granularity),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterCheckMetrics()

	ctx := context.Background()

	// Optional embedding cache store
	var cacheStore *dbRedis.Store
	if len(cfg.Cache.Addrs) > 0 {
		cacheStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cacheStore.Close()

		if err := cacheStore.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Embedder chain: OpenAI -> Cached
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})
	var embedder domain.Embedder = base
	if cacheStore != nil {
		embedder = embcache.New(base, cacheStore, metrics.EmbeddingCacheTotal, logger)
	}
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cached", cacheStore != nil),
	)

	// Load the corpus and build both indices. A missing corpus degrades
	// the service instead of crashing it: the server still answers, checks
	// fail fast, health reports the corpus as failing.
	checkSvc := buildCheckService(ctx, cfg, embedder, logger)

	var cachePinger healthuc.CachePinger
	if cacheStore != nil {
		cachePinger = cacheStore
	}
	healthSvc := healthuc.New(checkSvc, base, cachePinger)

	server := chiTransport.NewServer(checkSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildCheckService loads the corpus, builds the lexical and semantic
// indices, and assembles the detection engine. Corpus load failure yields a
// degraded service; semantic index build failure is fatal because it means
// the embedding provider rejected the whole corpus.
func buildCheckService(
	ctx context.Context,
	cfg config.Config,
	embedder domain.Embedder,
	logger *zap.Logger,
) *checkuc.Service {
	store, err := corpus.Load(cfg.Corpus.Path, corpus.Granularity(cfg.Corpus.Granularity))
	if err != nil {
		logger.Error("Corpus unavailable, starting degraded", zap.Error(err))
		return checkuc.NewUnavailable(err)
	}
	logger.Info("Corpus loaded", zap.Int("documents", store.Len()))

	buildStart := time.Now()
	lexIdx := lexical.New(lexical.Config{
		Permutations: cfg.Lexical.Permutations,
		Threshold:    cfg.Lexical.Threshold,
		ShingleSize:  cfg.Lexical.ShingleSize,
		TopK:         cfg.Lexical.TopK,
	}, store.Documents())
	logger.Info("Lexical index built", zap.Duration("took", time.Since(buildStart)))

	buildStart = time.Now()
	semIdx, err := semantic.Build(ctx, semantic.Config{
		TopK:       cfg.Semantic.TopK,
		Curve:      semantic.Curve(cfg.Semantic.ScoreCurve),
		CurveScale: cfg.Semantic.CurveScale,
	}, store.Documents(), embedder)
	if err != nil {
		logger.Fatal("Failed to build semantic index", zap.Error(err))
	}
	logger.Info("Semantic index built", zap.Duration("took", time.Since(buildStart)))

	policy := checkuc.Policy{
		WeightLexical:  cfg.Scoring.WeightLexical,
		WeightSemantic: cfg.Scoring.WeightSemantic,
		Aggregate:      checkuc.Aggregate(cfg.Scoring.Aggregate),
		TopN:           cfg.Scoring.TopN,
	}

	return checkuc.New(store, lexIdx, semIdx, policy, cfg.Check.MinInputChars)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
