package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the provider subsystem.
type Config struct {
	HTTPPort    string
	Database    DatabaseConfig
	Encryption  EncryptionConfig
	Cache       CacheConfig
	Redis       RedisConfig
	UsageQueue  UsageQueueConfig
	Resilience  ResilienceConfig
	HealthCheck HealthCheckConfig
	Archiver    ArchiverConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// EncryptionConfig holds credential-at-rest settings.
type EncryptionConfig struct {
	// Key is raw base64 key material or a passphrase; empty selects an
	// ephemeral key and survives neither restarts nor replicas.
	Key string
}

// CacheConfig holds resolution-cache settings
type CacheConfig struct {
	ProviderCacheSize int
	ProviderCacheTTL  time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// UsageQueueConfig holds usage-pipeline settings
type UsageQueueConfig struct {
	UseRedis     bool
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// ResilienceConfig holds circuit breaker and rate limiter tuning
type ResilienceConfig struct {
	FailureThreshold      int
	RecoveryTimeout       time.Duration
	SuccessThreshold      int
	HalfOpenMaxCalls      int
	MaxConcurrentRequests int
	MaxRPM                int
}

// HealthCheckConfig holds background checker settings
type HealthCheckConfig struct {
	Enabled         bool
	Interval        time.Duration
	DegradedLatency time.Duration
	ProbeTimeout    time.Duration
}

// ArchiverConfig holds configuration for the S3-based usage archive
type ArchiverConfig struct {
	Enabled       bool          // Whether to export usage records to S3
	FlushSize     int           // Flush after this many records
	FlushInterval time.Duration // Flush after this duration
	S3Bucket      string        // S3 bucket name
	S3Region      string        // AWS region
	S3Prefix      string        // Prefix for S3 keys (e.g., "usage/")
	PodName       string        // Pod identifier for multi-pod deployments
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val == "true" || val == "1"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort: getEnvString("HTTP_PORT", "8080"),
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Encryption: EncryptionConfig{
			Key: getEnvString("LLM_ENCRYPTION_KEY", ""),
		},
		Cache: CacheConfig{
			ProviderCacheSize: getEnvInt("CACHE_PROVIDER_SIZE", 1000),
			ProviderCacheTTL:  getEnvDuration("CACHE_PROVIDER_TTL", 300*time.Second),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		UsageQueue: UsageQueueConfig{
			UseRedis:     getEnvBool("USAGE_QUEUE_USE_REDIS", false),
			BatchSize:    getEnvInt("USAGE_QUEUE_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("USAGE_QUEUE_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("USAGE_QUEUE_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("USAGE_QUEUE_RETRY_BACKOFF", 1*time.Second),
		},
		Resilience: ResilienceConfig{
			FailureThreshold:      getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
			RecoveryTimeout:       getEnvDuration("BREAKER_RECOVERY_TIMEOUT", 60*time.Second),
			SuccessThreshold:      getEnvInt("BREAKER_SUCCESS_THRESHOLD", 2),
			HalfOpenMaxCalls:      getEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 3),
			MaxConcurrentRequests: getEnvInt("RATELIMIT_MAX_CONCURRENT", 0),
			MaxRPM:                getEnvInt("RATELIMIT_MAX_RPM", 0),
		},
		HealthCheck: HealthCheckConfig{
			Enabled:         getEnvBool("HEALTH_CHECK_ENABLED", true),
			Interval:        getEnvDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
			DegradedLatency: getEnvDuration("HEALTH_CHECK_DEGRADED_LATENCY", 2000*time.Millisecond),
			ProbeTimeout:    getEnvDuration("HEALTH_CHECK_PROBE_TIMEOUT", 5*time.Second),
		},
		Archiver: ArchiverConfig{
			Enabled:       getEnvBool("USAGE_ARCHIVE_ENABLED", false),
			FlushSize:     getEnvInt("USAGE_ARCHIVE_FLUSH_SIZE", 500),
			FlushInterval: getEnvDuration("USAGE_ARCHIVE_FLUSH_INTERVAL", 1*time.Minute),
			S3Bucket:      getEnvString("USAGE_ARCHIVE_S3_BUCKET", ""),
			S3Region:      getEnvString("USAGE_ARCHIVE_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("USAGE_ARCHIVE_S3_PREFIX", "usage/"),
			PodName:       getEnvString("POD_NAME", "providerd-0"),
		},
	}

	return cfg, nil
}
