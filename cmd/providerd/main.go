package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"provider_core/internal/config"
	"provider_core/internal/logging"
	"provider_core/internal/models"
	"provider_core/internal/provider"
	"provider_core/internal/queue"
	"provider_core/internal/resilience"
	"provider_core/internal/resolver"
	"provider_core/internal/storage"
)

func main() {
	// .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New("providerd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage layer.
	db, err := storage.NewDB(storage.DBConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	encryptor, err := storage.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("Failed to initialize encryption: %v", err)
	}

	repo := db.NewProviderRepository(encryptor)

	// Redis backs the rate limiter window and, optionally, the usage queue.
	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	defer redisClient.Close()

	// Usage pipeline: queue into worker into Postgres, optional S3 archive.
	queueCfg := queue.DefaultConfig("usage")
	queueCfg.UseRedis = cfg.UsageQueue.UseRedis
	queueCfg.RedisAddr = cfg.Redis.Address
	queueCfg.RedisPassword = cfg.Redis.Password
	queueCfg.RedisDB = cfg.Redis.DB
	queueCfg.BatchSize = cfg.UsageQueue.BatchSize
	queueCfg.BatchTimeout = cfg.UsageQueue.BatchTimeout
	queueCfg.MaxRetries = cfg.UsageQueue.MaxRetries
	queueCfg.RetryBackoff = cfg.UsageQueue.RetryBackoff

	usageQueue, usageDLQ, err := queue.New(queueCfg)
	if err != nil {
		log.Fatalf("Failed to build usage queue: %v", err)
	}

	var archiver *logging.UsageArchiver
	if cfg.Archiver.Enabled {
		archiver, err = logging.NewUsageArchiver(ctx, logging.ArchiverConfig{
			Bucket:        cfg.Archiver.S3Bucket,
			Region:        cfg.Archiver.S3Region,
			Prefix:        cfg.Archiver.S3Prefix,
			PodName:       cfg.Archiver.PodName,
			FlushSize:     cfg.Archiver.FlushSize,
			FlushInterval: cfg.Archiver.FlushInterval,
		})
		if err != nil {
			log.Fatalf("Failed to build usage archiver: %v", err)
		}
		archiver.Start(ctx)
	}

	var worker *storage.UsageQueueWorker
	if archiver != nil {
		worker = storage.NewUsageQueueWorker(usageQueue, usageDLQ, repo, archiver, queueCfg)
	} else {
		worker = storage.NewUsageQueueWorker(usageQueue, usageDLQ, repo, nil, queueCfg)
	}
	worker.Start(ctx)

	// Resolution and resilience.
	cache := storage.NewProviderCache(cfg.Cache.ProviderCacheSize, cfg.Cache.ProviderCacheTTL)
	resolution := resolver.NewService(repo, cache)

	manager := resilience.NewManager(
		resilience.BreakerConfig{
			FailureThreshold: cfg.Resilience.FailureThreshold,
			RecoveryTimeout:  cfg.Resilience.RecoveryTimeout,
			SuccessThreshold: cfg.Resilience.SuccessThreshold,
			HalfOpenMaxCalls: cfg.Resilience.HalfOpenMaxCalls,
		},
		resilience.LimiterConfig{
			MaxConcurrentRequests: cfg.Resilience.MaxConcurrentRequests,
			MaxRPM:                cfg.Resilience.MaxRPM,
		},
		redisClient,
	)

	prober := provider.NewHealthProber(cfg.HealthCheck.ProbeTimeout)
	service := provider.NewService(repo, resolution, manager, prober, worker)

	// Startup credential pass: a rotated encryption key clears and
	// re-detects instead of serving rows that no longer decrypt.
	if err := service.VerifyCredentials(ctx); err != nil {
		log.Fatalf("Failed to verify stored credentials: %v", err)
	}

	detected, err := service.DetectProviders(ctx)
	if err != nil {
		log.Fatalf("Failed to detect providers: %v", err)
	}
	logger.WithField("detected", detected).Info("environment provider scan complete")

	if cfg.HealthCheck.Enabled {
		checker := startHealthChecker(ctx, cfg, repo, prober)
		defer checker.Stop()
	}

	logger.Info("provider core running")

	// Wait for interrupt signal to gracefully shut down.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := worker.Stop(); err != nil {
		logger.WithError(err).Error("usage worker shutdown failed")
	}
	if archiver != nil {
		if err := archiver.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("usage archiver shutdown failed")
		}
	}

	logger.Info("provider core exited")
}

// startHealthChecker registers every provider type currently in use and
// launches the background loop. Each probe picks the first active provider
// of the type, authenticates with its stored key, and records the
// observation in provider_health.
func startHealthChecker(ctx context.Context, cfg *config.Config, repo *storage.ProviderRepository, prober *provider.HealthProber) *resilience.HealthChecker {
	statusLog := logging.New("health-status")

	probe := func(ctx context.Context, t models.ProviderType) (time.Duration, error) {
		providers, err := repo.ListActive(ctx)
		if err != nil {
			return 0, err
		}

		for _, p := range providers {
			if p.ProviderType != t {
				continue
			}

			// An undecryptable key still yields a reachability probe.
			apiKey, err := repo.DecryptAPIKey(p)
			if err != nil {
				apiKey = ""
			}

			h := prober.Probe(ctx, p, apiKey)
			if err := repo.RecordHealth(ctx, h); err != nil {
				statusLog.WithError(err).Warn("failed to record health observation")
			}

			latency := time.Duration(h.ResponseTimeMS) * time.Millisecond
			if h.Status == models.HealthStatusUnhealthy {
				return latency, errors.New(h.ErrorMessage)
			}
			return latency, nil
		}

		return 0, fmt.Errorf("no active provider of type %s", t)
	}

	checker := resilience.NewHealthChecker(resilience.HealthCheckerConfig{
		Interval:        cfg.HealthCheck.Interval,
		DegradedLatency: cfg.HealthCheck.DegradedLatency,
		ProbeTimeout:    cfg.HealthCheck.ProbeTimeout,
	}, probe, func(t models.ProviderType, from, to models.HealthStatus) {
		statusLog.WithField("provider_type", t).
			WithField("from", from).
			WithField("to", to).
			Warn("provider type health changed")
	})

	active, err := repo.ListActive(ctx)
	if err != nil {
		statusLog.WithError(err).Error("failed to list providers for health checks")
	}
	for _, p := range active {
		checker.Register(p.ProviderType)
	}

	checker.Start(ctx)
	return checker
}
