package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "chatrelay.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
// CHATRELAY_CONFIG overrides the YAML path.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("CHATRELAY_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CHATRELAY_PORT")
	setString(&cfg.Server.CORSOrigin, "CHATRELAY_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "CHATRELAY_REQUEST_TIMEOUT")
	setInt64(&cfg.Server.MaxBodyBytes, "CHATRELAY_MAX_BODY_BYTES")
	setBool(&cfg.Server.SecureCookies, "CHATRELAY_SECURE_COOKIES")

	setString(&cfg.Generation.URL, "GENERATION_URL")
	setDuration(&cfg.Generation.Timeout, "GENERATION_TIMEOUT")
	setString(&cfg.Generation.Delimiter, "GENERATION_DELIMITER")

	// Object store (MINIO_* names match the deployment's docker-compose)
	setString(&cfg.ObjectStore.Backend, "OBJECT_STORE_BACKEND")
	setString(&cfg.ObjectStore.Endpoint, "MINIO_URL")
	setString(&cfg.ObjectStore.AccessKey, "MINIO_USER")
	setString(&cfg.ObjectStore.SecretKey, "MINIO_PASSWORD")
	setString(&cfg.ObjectStore.Bucket, "OBJECT_STORE_BUCKET")
	setString(&cfg.ObjectStore.Region, "OBJECT_STORE_REGION")
	setBool(&cfg.ObjectStore.CreateBucket, "OBJECT_STORE_CREATE_BUCKET")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.HistoryBucket, "NATS_HISTORY_BUCKET")

	setInt64(&cfg.Cache.L1MaxSizeMB, "CHATRELAY_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.HistoryTTL, "CHATRELAY_HISTORY_TTL")

	setString(&cfg.Logging.Level, "CHATRELAY_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CHATRELAY_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CHATRELAY_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "CHATRELAY_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CHATRELAY_BREAKER_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "CHATRELAY_RATE_RPS")
	setInt(&cfg.Rate.Burst, "CHATRELAY_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "CHATRELAY_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "CHATRELAY_RATE_MAX_IDLE_TIME")

	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Generation.URL == "" {
		return errors.New("generation.url is required")
	}
	if cfg.ObjectStore.Bucket == "" {
		return errors.New("object_store.bucket is required")
	}
	switch cfg.ObjectStore.Backend {
	case BackendMinIO:
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object_store.endpoint is required for the minio backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("object_store.backend %q is not supported", cfg.ObjectStore.Backend)
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.RequestsPerSecond <= 0 {
		return errors.New("rate.requests_per_second must be > 0")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Rate.CleanupInterval <= 0 {
		return errors.New("rate.cleanup_interval must be > 0")
	}
	if cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
