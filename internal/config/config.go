package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// DefaultMaxBodyBytes caps a submitted assessment.
	DefaultMaxBodyBytes = 10 << 20
)

// Encryption modes accepted by the object store.
const (
	EncryptionAES256 = "AES256"
	EncryptionKMS    = "aws:kms"
)

// Completion policies for the worker's status aggregation.
const (
	CompletionPolicyAll       = "all"
	CompletionPolicyExecutive = "executive"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Worker     WorkerConfig     `yaml:"worker"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Generation GenerationConfig `yaml:"generation"`
	Storage    StorageConfig    `yaml:"storage"`
	Reports    ReportsConfig    `yaml:"reports"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int    `yaml:"prefetch_count"`
	Tag           string `yaml:"tag"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	WorkDir           string        `yaml:"work_dir"`
	CompletionPolicy  string        `yaml:"completion_policy"`
}

// JobsConfig locates the job store table
type JobsConfig struct {
	Table string `yaml:"table"`
}

// GenerationConfig holds settings for the text generation service
type GenerationConfig struct {
	Region      string        `yaml:"region"`
	ModelID     string        `yaml:"model_id"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   TokenLimits   `yaml:"max_tokens"`
	Disabled    bool          `yaml:"disabled"`
}

// TokenLimits caps the response size per report kind
type TokenLimits struct {
	Executive  int `yaml:"executive"`
	Technical  int `yaml:"technical"`
	Compliance int `yaml:"compliance"`
}

// StorageConfig holds object storage settings
type StorageConfig struct {
	Region     string           `yaml:"region"`
	Bucket     string           `yaml:"bucket"`
	Prefix     string           `yaml:"prefix"`
	Encryption EncryptionConfig `yaml:"encryption"`
	PresignTTL time.Duration    `yaml:"presign_ttl"`
}

// EncryptionConfig holds server-side encryption settings for uploads
type EncryptionConfig struct {
	Mode     string `yaml:"mode"`
	KMSKeyID string `yaml:"kms_key_id"`
}

// ReportsConfig holds report production settings
type ReportsConfig struct {
	ForceCompliance *bool          `yaml:"force_compliance"`
	Branding        BrandingConfig `yaml:"branding"`
}

// BrandingConfig is printed on title pages and footers
type BrandingConfig struct {
	Company string `yaml:"company"`
	Tool    string `yaml:"tool"`
	Email   string `yaml:"email"`
	Phone   string `yaml:"phone"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads and parses the configuration file, then applies defaults and
// environment overrides.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	config.ApplyEnv()

	return &config, nil
}

// ApplyDefaults fills every unset field that has a documented default.
func (c *Config) ApplyDefaults() {
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if c.Generation.Region == "" {
		c.Generation.Region = DefaultRegion
	}
	if c.Generation.ModelID == "" {
		c.Generation.ModelID = DefaultModelID
	}
	if c.Generation.Timeout <= 0 {
		c.Generation.Timeout = 5 * time.Minute
	}
	if c.Generation.Temperature == 0 {
		c.Generation.Temperature = 0.3
	}
	if c.Generation.MaxTokens.Executive == 0 {
		c.Generation.MaxTokens.Executive = 16000
	}
	if c.Generation.MaxTokens.Technical == 0 {
		c.Generation.MaxTokens.Technical = 25000
	}
	if c.Generation.MaxTokens.Compliance == 0 {
		c.Generation.MaxTokens.Compliance = 20000
	}

	if c.Storage.Region == "" {
		c.Storage.Region = DefaultRegion
	}
	if c.Storage.Prefix == "" {
		c.Storage.Prefix = "reports/"
	}
	if c.Storage.Encryption.Mode == "" {
		c.Storage.Encryption.Mode = EncryptionAES256
	}
	if c.Storage.PresignTTL <= 0 {
		c.Storage.PresignTTL = time.Hour
	}

	if c.Jobs.Table == "" {
		c.Jobs.Table = "report_jobs"
	}

	if c.Worker.CompletionPolicy == "" {
		c.Worker.CompletionPolicy = CompletionPolicyAll
	}
	if c.Worker.HeartbeatInterval <= 0 {
		c.Worker.HeartbeatInterval = 30 * time.Second
	}
	if c.Worker.WorkDir == "" {
		c.Worker.WorkDir = os.TempDir()
	}

	if c.Reports.ForceCompliance == nil {
		force := true
		c.Reports.ForceCompliance = &force
	}
	if c.Reports.Branding.Company == "" {
		c.Reports.Branding = BrandingConfig{
			Company: "Cloud202",
			Tool:    "Qubitz",
			Email:   "hello@cloud202.com",
			Phone:   "+44 7792 565738",
		}
	}
}

// ComplianceForced reports whether the compliance gate is overridden.
func (r ReportsConfig) ComplianceForced() bool {
	return r.ForceCompliance == nil || *r.ForceCompliance
}

// ValidateAPIConfig checks the settings the coordinator needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateInfra(); err != nil {
		return err
	}

	if c.Storage.PresignTTL <= 0 {
		return fmt.Errorf("storage presign_ttl must be greater than 0")
	}

	return nil
}

// ValidateWorkerConfig checks the settings the worker needs
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateInfra(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	switch c.Worker.CompletionPolicy {
	case CompletionPolicyAll, CompletionPolicyExecutive:
	default:
		return fmt.Errorf("invalid worker completion_policy: %q", c.Worker.CompletionPolicy)
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}

	switch c.Storage.Encryption.Mode {
	case EncryptionAES256:
	case EncryptionKMS:
		if c.Storage.Encryption.KMSKeyID == "" {
			return fmt.Errorf("storage encryption kms_key_id is required for %s", EncryptionKMS)
		}
	default:
		return fmt.Errorf("invalid storage encryption mode: %q", c.Storage.Encryption.Mode)
	}

	if c.Metrics.Enabled && (c.Metrics.Port < MinPort || c.Metrics.Port > MaxPort) {
		return fmt.Errorf("invalid metrics port: %d (must be between %d and %d)", c.Metrics.Port, MinPort, MaxPort)
	}

	return nil
}

// validateInfra checks the job store and queue settings shared by both services.
func (c *Config) validateInfra() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if !tableNamePattern.MatchString(c.Jobs.Table) {
		return fmt.Errorf("invalid jobs table name: %q", c.Jobs.Table)
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}
