// Package config loads and validates the settings shared by the api gateway and the
// document processor. Every component receives the section it needs at construction.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config groups the settings of every subsystem
type Config struct {
	Application    ApplicationConfig
	Logging        LoggingConfig
	Server         ServerConfig
	Kafka          KafkaConfig
	Postgres       PostgresConfig
	MongoDB        MongoDBConfig
	Outbox         OutboxConfig
	WorkerPool     WorkerPoolConfig
	Reconciliation ReconciliationConfig
	Classifier     ClassifierConfig
	Ledger         LedgerConfig
	OCR            OCRConfig
	Extraction     ExtractionConfig
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
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxUploadSize   int64 // Bytes accepted by the scan endpoint
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	DocumentTopic     string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
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

// OutboxConfig controls delivery of ledger side effects
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// ReconciliationConfig holds the matching thresholds and the in-flight guard lifetime
type ReconciliationConfig struct {
	AutoReconcileThreshold float64       // Confidence at or above which an invoice is reconciled automatically
	ReviewThreshold        float64       // Confidence above which an invoice goes to review
	AmountTolerance        float64       // Relative amount difference a candidate must stay under
	DateWindow             time.Duration // Maximum distance between invoice and transaction dates
	LockTTL                time.Duration // Must outlive a ledger fetch plus the database writes, or a second caller can take the claim
}

// ClassifierConfig configures cost center classification
type ClassifierConfig struct {
	DefaultCostCenter string // Empty disables the default fallback
	SeedPath          string
}

// LedgerConfig configures the external ledger client. An empty BaseURL disables matching.
type LedgerConfig struct {
	BaseURL         string
	TenantID        string
	APIToken        string
	Timeout         time.Duration
	RateLimit       float64 // Requests per second
	RateBurst       int
	BreakerFailures int
	BreakerReset    time.Duration
}

// Enabled reports whether ledger credentials are configured
func (c LedgerConfig) Enabled() bool {
	return c.BaseURL != ""
}

// OCRConfig configures the OCR collaborator. An empty Endpoint disables the scan endpoint.
type OCRConfig struct {
	Endpoint string
	APIKey   string
	Enhance  bool
	Timeout  time.Duration
}

// Enabled reports whether an OCR endpoint is configured
func (c OCRConfig) Enabled() bool {
	return c.Endpoint != ""
}

// ExtractionConfig configures entity extraction defaults
type ExtractionConfig struct {
	DefaultCurrency string
}

// validate reports every invalid setting at once
func (c *Config) validate() error {
	var validationErrors []string

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
	if c.Server.MaxUploadSize <= 0 {
		validationErrors = append(validationErrors, "SERVER_MAX_UPLOAD_SIZE must be greater than 0")
	}

	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.DocumentTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DOCUMENT_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
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
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}

	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	r := c.Reconciliation
	if r.AutoReconcileThreshold <= 0 || r.AutoReconcileThreshold > 1 {
		validationErrors = append(validationErrors, "RECONCILIATION_AUTO_THRESHOLD must be in (0, 1]")
	}
	if r.ReviewThreshold < 0 || r.ReviewThreshold >= r.AutoReconcileThreshold {
		validationErrors = append(validationErrors, "RECONCILIATION_REVIEW_THRESHOLD must be in [0, RECONCILIATION_AUTO_THRESHOLD)")
	}
	if r.AmountTolerance <= 0 || r.AmountTolerance >= 1 {
		validationErrors = append(validationErrors, "RECONCILIATION_AMOUNT_TOLERANCE must be in (0, 1)")
	}
	if r.DateWindow <= 0 {
		validationErrors = append(validationErrors, "RECONCILIATION_DATE_WINDOW must be greater than 0")
	}
	if r.LockTTL <= 0 {
		validationErrors = append(validationErrors, "RECONCILIATION_LOCK_TTL must be greater than 0")
	} else if c.Ledger.Timeout > 0 && r.LockTTL <= c.Ledger.Timeout {
		validationErrors = append(validationErrors, "RECONCILIATION_LOCK_TTL must be greater than LEDGER_TIMEOUT")
	}

	if c.Ledger.Enabled() {
		if c.Ledger.Timeout <= 0 {
			validationErrors = append(validationErrors, "LEDGER_TIMEOUT must be greater than 0")
		}
		if c.Ledger.RateLimit <= 0 {
			validationErrors = append(validationErrors, "LEDGER_RATE_LIMIT must be greater than 0")
		}
		if c.Ledger.BreakerFailures <= 0 {
			validationErrors = append(validationErrors, "LEDGER_BREAKER_FAILURES must be greater than 0")
		}
	}

	if c.OCR.Enabled() && c.OCR.APIKey == "" {
		validationErrors = append(validationErrors, "OCR_API_KEY is required when OCR_ENDPOINT is set")
	}

	if len(c.Extraction.DefaultCurrency) != 3 {
		validationErrors = append(validationErrors, "DEFAULT_CURRENCY must be a 3-letter code")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
