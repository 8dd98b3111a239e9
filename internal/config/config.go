// Package config provides hierarchical configuration loading for chatrelay.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Object store backends.
const (
	BackendMinIO  = "minio"
	BackendMemory = "memory"
)

// Config holds all runtime configuration for the chatrelay service.
type Config struct {
	Server      Server      `yaml:"server"`
	Generation  Generation  `yaml:"generation"`
	ObjectStore ObjectStore `yaml:"object_store"`
	NATS        NATS        `yaml:"nats"`
	Cache       Cache       `yaml:"cache"`
	Logging     Logging     `yaml:"logging"`
	Breaker     Breaker     `yaml:"breaker"`
	Rate        Rate        `yaml:"rate"`
	Telemetry   Telemetry   `yaml:"telemetry"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port           string        `yaml:"port"`
	CORSOrigin     string        `yaml:"cors_origin"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	SecureCookies  bool          `yaml:"secure_cookies"` // set when served over HTTPS
}

// Generation holds the text-generation service settings.
type Generation struct {
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`
	Delimiter string        `yaml:"delimiter"` // marker between echoed prompt and reply
}

// ObjectStore holds the S3-compatible store used for conversation logs.
type ObjectStore struct {
	Backend      string `yaml:"backend"` // "minio" | "memory"
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	CreateBucket bool   `yaml:"create_bucket"`
}

// NATS holds NATS JetStream configuration. An empty URL disables NATS.
type NATS struct {
	URL           string `yaml:"url"`
	HistoryBucket string `yaml:"history_bucket"`
}

// Cache holds the conversation history cache settings.
type Cache struct {
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	HistoryTTL  time.Duration `yaml:"history_ttl"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration for the generation client.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Rate holds rate limiter configuration.
type Rate struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	MaxIdleTime       time.Duration `yaml:"max_idle_time"`
}

// Telemetry holds OpenTelemetry export configuration.
type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"` // empty = no export
}

// Defaults returns a Config with values suitable for local and demo use.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:           "7860",
			CORSOrigin:     "*",
			RequestTimeout: 150 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		Generation: Generation{
			URL:       "http://127.0.0.1:8000",
			Timeout:   120 * time.Second,
			Delimiter: "<|assistant|>",
		},
		ObjectStore: ObjectStore{
			Backend:   BackendMinIO,
			Endpoint:  "http://minio:9000",
			AccessKey: "your-access-key",
			SecretKey: "your-secret-key",
			Bucket:    "production",
			Region:    "us-east-1",
		},
		NATS: NATS{
			HistoryBucket: "CHATRELAY_HISTORY",
		},
		Cache: Cache{
			L1MaxSizeMB: 64,
			HistoryTTL:  24 * time.Hour,
		},
		Logging: Logging{
			Level:   "info",
			Service: "chatrelay",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Rate: Rate{
			RequestsPerSecond: 5,
			Burst:             20,
			CleanupInterval:   5 * time.Minute,
			MaxIdleTime:       10 * time.Minute,
		},
	}
}
