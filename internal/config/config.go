// Package config provides configuration structures and validation for the application.
// It handles environment-based configuration for the HTTP API, the upstream scan and
// reward services, polling limits, snapshot persistence backends and Kafka.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	PersistenceFile     = "file"
	PersistenceMongo    = "mongo"
	PersistencePostgres = "postgres"
)

// Config holds the complete application configuration with settings for all components.
// It is validated once during application startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Upstream    UpstreamConfig
	Polling     PollingConfig
	Validation  ValidationConfig
	Image       ImageConfig
	Persistence PersistenceConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	WorkerPool  WorkerPoolConfig
	Auth        AuthConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
	MaxUploadBytes  int64         // Largest accepted image upload
}

// UpstreamConfig contains the endpoints of the scan and reward services
type UpstreamConfig struct {
	UploadURL         string
	ScanURL           string
	ScanVerifyURL     string
	PointsGenerateURL string
	PointsVerifyURL   string // transaction id is appended as a path segment
	Timeout           time.Duration
	MaxResponseBytes  int64
}

// PollingConfig contains interval and ceiling for both verification loops
type PollingConfig struct {
	OCRInterval    time.Duration
	OCRTimeout     time.Duration
	PointsInterval time.Duration
	PointsTimeout  time.Duration
}

// ValidationConfig selects the OCR payload rule set
type ValidationConfig struct {
	Mode string // strict or lenient
}

// ImageConfig contains the image normalizer budget
type ImageConfig struct {
	MaxBytes     int
	MaxDimension int
	JPEGQuality  int
	MinQuality   int
}

// PersistenceConfig selects where the entry snapshot is kept
type PersistenceConfig struct {
	Backend      string // file, mongo or postgres
	SnapshotFile string
	SaveTimeout  time.Duration
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Enabled           bool
	Brokers           string
	EntryEventsTopic  string
	SubmissionTopic   string // empty disables Kafka intake
	NumPartitions     int    // Number of partitions for topics
	ReplicationFactor int    // Replication factor for topics
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Topic for Dead Letter Queue
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of concurrently running pipelines
}

// AuthConfig seeds the reward system bearer token
type AuthConfig struct {
	Token string
}

// validate performs validation of all configuration values. Backend specific
// sections are only checked when that backend is selected.
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}
	if c.Server.MaxUploadBytes <= 0 {
		validationErrors = append(validationErrors, "SERVER_MAX_UPLOAD_BYTES must be greater than 0")
	}

	// Validate Upstream config
	for _, u := range []struct{ key, value string }{
		{"UPSTREAM_UPLOAD_URL", c.Upstream.UploadURL},
		{"UPSTREAM_SCAN_URL", c.Upstream.ScanURL},
		{"UPSTREAM_SCAN_VERIFY_URL", c.Upstream.ScanVerifyURL},
		{"UPSTREAM_POINTS_GENERATE_URL", c.Upstream.PointsGenerateURL},
		{"UPSTREAM_POINTS_VERIFY_URL", c.Upstream.PointsVerifyURL},
	} {
		if u.value == "" {
			validationErrors = append(validationErrors, u.key+" is required")
		}
	}
	if c.Upstream.Timeout <= 0 {
		validationErrors = append(validationErrors, "UPSTREAM_TIMEOUT must be greater than 0")
	}
	if c.Upstream.MaxResponseBytes <= 0 {
		validationErrors = append(validationErrors, "UPSTREAM_MAX_RESPONSE_BYTES must be greater than 0")
	}

	// Validate Polling config
	if c.Polling.OCRInterval <= 0 {
		validationErrors = append(validationErrors, "OCR_POLL_INTERVAL must be greater than 0")
	}
	if c.Polling.OCRTimeout <= c.Polling.OCRInterval {
		validationErrors = append(validationErrors, "OCR_POLL_TIMEOUT must be greater than OCR_POLL_INTERVAL")
	}
	if c.Polling.PointsInterval <= 0 {
		validationErrors = append(validationErrors, "POINTS_POLL_INTERVAL must be greater than 0")
	}
	if c.Polling.PointsTimeout <= c.Polling.PointsInterval {
		validationErrors = append(validationErrors, "POINTS_POLL_TIMEOUT must be greater than POINTS_POLL_INTERVAL")
	}

	// Validate Validation config
	switch strings.ToLower(c.Validation.Mode) {
	case "strict", "lenient":
	default:
		validationErrors = append(validationErrors, "VALIDATION_MODE must be strict or lenient")
	}

	// Validate Image config
	if c.Image.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "IMAGE_MAX_BYTES must be greater than 0")
	}
	if c.Image.MaxDimension <= 0 {
		validationErrors = append(validationErrors, "IMAGE_MAX_DIMENSION must be greater than 0")
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		validationErrors = append(validationErrors, "IMAGE_JPEG_QUALITY must be between 1 and 100")
	}
	if c.Image.MinQuality < 1 || c.Image.MinQuality > c.Image.JPEGQuality {
		validationErrors = append(validationErrors, "IMAGE_MIN_JPEG_QUALITY must be between 1 and IMAGE_JPEG_QUALITY")
	}

	// Validate Persistence config and the selected backend
	if c.Persistence.SaveTimeout <= 0 {
		validationErrors = append(validationErrors, "PERSISTENCE_SAVE_TIMEOUT must be greater than 0")
	}
	switch c.Persistence.Backend {
	case PersistenceFile:
		if c.Persistence.SnapshotFile == "" {
			validationErrors = append(validationErrors, "SNAPSHOT_FILE is required")
		}
	case PersistencePostgres:
		validationErrors = append(validationErrors, c.Postgres.validate()...)
	case PersistenceMongo:
		validationErrors = append(validationErrors, c.MongoDB.validate()...)
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("PERSISTENCE_BACKEND %q is not one of file, mongo, postgres", c.Persistence.Backend))
	}

	// Validate Kafka config
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
		}
		if c.Kafka.EntryEventsTopic == "" {
			validationErrors = append(validationErrors, "KAFKA_ENTRY_EVENTS_TOPIC is required")
		}
		if c.Kafka.SubmissionTopic != "" && c.Kafka.ConsumerGroup == "" {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
		}
		if c.Kafka.MinBytes <= 0 {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
		}
		if c.Kafka.MaxBytes <= 0 {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
		}
		if c.Kafka.MaxWait <= 0 {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
		}
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}

func (c *PostgresConfig) validate() []string {
	var validationErrors []string
	if c.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}
	return validationErrors
}

func (c *MongoDBConfig) validate() []string {
	var validationErrors []string
	if c.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}
	return validationErrors
}
