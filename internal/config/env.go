package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// DefaultRegion is used for both generation and storage when nothing is set.
	DefaultRegion = "eu-west-2"
	// DefaultModelID is the generation model used when nothing is set.
	DefaultModelID = "anthropic.claude-3-7-sonnet-20250219-v1:0"
)

// ApplyEnv overlays environment variables onto the loaded configuration.
// Environment always wins over the file.
func (c *Config) ApplyEnv() {
	if region := GetEnv("AWS_REGION", ""); region != "" {
		c.Storage.Region = region
		c.Generation.Region = region
	}
	c.Generation.Region = GetEnv("BEDROCK_REGION", c.Generation.Region)
	c.Generation.ModelID = GetEnv("BEDROCK_MODEL_ID", c.Generation.ModelID)
	c.Generation.Timeout = GetDurationEnv("GENERATION_TIMEOUT", c.Generation.Timeout)

	c.Storage.Bucket = GetEnv("REPORT_BUCKET", c.Storage.Bucket)
	c.Storage.Prefix = GetEnv("REPORT_PREFIX", c.Storage.Prefix)
	c.Storage.Encryption.Mode = GetEnv("SSE_MODE", c.Storage.Encryption.Mode)
	c.Storage.Encryption.KMSKeyID = GetEnv("SSE_KMS_KEY_ID", c.Storage.Encryption.KMSKeyID)
	if ttl := GetIntEnv("PRESIGN_TTL_SEC", 0); ttl > 0 {
		c.Storage.PresignTTL = time.Duration(ttl) * time.Second
	}

	c.Jobs.Table = GetEnv("JOBS_TABLE", c.Jobs.Table)

	if queue := GetEnv("WORKER_QUEUE", ""); queue != "" {
		c.RabbitMQ.Queue.Name = queue
		c.RabbitMQ.RoutingKey = queue
	}
}

// GetEnv returns the environment variable value or a default.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetIntEnv returns an integer environment variable or a default.
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// GetDurationEnv returns a duration environment variable or a default.
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
