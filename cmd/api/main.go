package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"noshow-prediction-api/classifier"
	"noshow-prediction-api/config"
	"noshow-prediction-api/dataset"
	"noshow-prediction-api/handlers"
	"noshow-prediction-api/logging"
	"noshow-prediction-api/metrics"
	"noshow-prediction-api/middleware"
	"noshow-prediction-api/pipeline"
	"noshow-prediction-api/services"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database (postgres source only)
	var db *gorm.DB
	if cfg.Dataset.Source == dataset.SourcePostgres {
		db, err = gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get sql db handle")
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		defer sqlDB.Close()
	}

	// Load the appointment dataset once; it is read-only afterwards.
	store, err := dataset.Load(ctx, cfg.Dataset, db)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.Dataset.Source).Msg("failed to load dataset")
	}
	metrics.DatasetRecords.Set(float64(store.Len()))
	log.Info().
		Str("source", cfg.Dataset.Source).
		Int("records", store.Len()).
		Int("clinics", len(store.Clinics())).
		Str("fingerprint", store.Fingerprint()).
		Msg("dataset loaded")

	encoder, err := pipeline.NewEncoder(cfg.Model.EncoderOrder, cfg.Model.VocabularyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build clinic encoder")
	}

	// A missing artifact is not fatal: requests answer 503 until it appears.
	forests := classifier.NewProvider(cfg.Model.Path)
	if _, err := forests.Model(ctx); err != nil {
		log.Warn().Err(err).Str("path", cfg.Model.Path).Msg("model artifact not loaded, will retry on demand")
	}

	cache, err := services.NewCacheService(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, running without result cache")
	}
	defer cache.Close()

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(time.Hour)
			}
		}
	}()

	router := handlers.NewRouter(handlers.RouterDeps{
		Config:   cfg,
		Logger:   logger,
		Pipeline: pipeline.New(store, encoder, forests.Pipeline()),
		Cache:    cache,
		Runs:     services.NewRunFeed(cache, cfg.Redis.Channel),
		Limiter:  limiter,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		log.Info().Str("addr", srv.Addr).Str("encoder", encoder.Name()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
