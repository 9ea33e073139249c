// Package config loads the service configuration from defaults, an optional
// YAML file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	EngineMemory   = "memory"
	EngineDynamoDB = "dynamodb"
)

// StoreConfig selects and tunes the storage engine
type StoreConfig struct {
	Engine      string `yaml:"engine" validate:"oneof=memory dynamodb"`
	Consistency string `yaml:"consistency" validate:"oneof=ONE LOCAL_QUORUM"`
	// TombstoneKinds lists the element types deleted by tombstone instead of
	// removal.
	TombstoneKinds     []string      `yaml:"tombstone_kinds" validate:"dive,oneof=ACTIVITY PATHWAY INTERACTIVE COMPONENT FEEDBACK SCENARIO"`
	CreateTable        bool          `yaml:"create_table"`
	CreateTableTimeout time.Duration `yaml:"create_table_timeout"`
}

// BreakerConfig tunes the circuit breaker in front of the engine
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold" validate:"gte=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests"`
}

// Config holds all application configuration
type Config struct {
	Environment string `yaml:"environment" validate:"required,oneof=development staging production"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`
	ServiceName string `yaml:"service_name" validate:"required"`

	// AWS configuration
	AWSRegion        string `yaml:"aws_region" validate:"required"`
	TableName        string `yaml:"table_name" validate:"required"`
	DynamoDBEndpoint string `yaml:"dynamodb_endpoint"`

	Store   StoreConfig   `yaml:"store"`
	Breaker BreakerConfig `yaml:"breaker"`

	// Observability
	EnableMetrics    bool   `yaml:"enable_metrics"`
	MetricsNamespace string `yaml:"metrics_namespace" validate:"required_if=EnableMetrics true"`
	EnableTracing    bool   `yaml:"enable_tracing"`
	OTLPEndpoint     string `yaml:"otlp_endpoint" validate:"required_if=EnableTracing true"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		ServiceName: "coursegraph",
		AWSRegion:   "us-west-2",
		TableName:   "coursegraph",
		Store: StoreConfig{
			Engine:             EngineDynamoDB,
			Consistency:        "LOCAL_QUORUM",
			TombstoneKinds:     []string{"ACTIVITY"},
			CreateTableTimeout: 2 * time.Minute,
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			MaxRequests:      5,
			Interval:         30 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 0.8,
			MinRequests:      5,
		},
		MetricsNamespace: "coursegraph",
		OTLPEndpoint:     "localhost:4317",
	}
}

// Load builds the configuration. path names an optional YAML file; an empty
// path skips it. Environment variables override both.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnvironmentVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnvironmentVariables() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.ServiceName = getEnv("SERVICE_NAME", c.ServiceName)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.TableName = getEnv("TABLE_NAME", c.TableName)
	c.DynamoDBEndpoint = getEnv("DYNAMODB_ENDPOINT", c.DynamoDBEndpoint)

	c.Store.Engine = strings.ToLower(getEnv("STORE_ENGINE", c.Store.Engine))
	c.Store.Consistency = strings.ToUpper(getEnv("STORE_CONSISTENCY", c.Store.Consistency))
	c.Store.TombstoneKinds = getEnvList("STORE_TOMBSTONE_KINDS", c.Store.TombstoneKinds)
	c.Store.CreateTable = getEnvBool("STORE_CREATE_TABLE", c.Store.CreateTable)
	c.Store.CreateTableTimeout = getEnvDuration("STORE_CREATE_TABLE_TIMEOUT", c.Store.CreateTableTimeout)

	c.Breaker.Enabled = getEnvBool("BREAKER_ENABLED", c.Breaker.Enabled)
	c.Breaker.MaxRequests = uint32(getEnvInt("BREAKER_MAX_REQUESTS", int(c.Breaker.MaxRequests)))
	c.Breaker.Interval = getEnvDuration("BREAKER_INTERVAL", c.Breaker.Interval)
	c.Breaker.Timeout = getEnvDuration("BREAKER_TIMEOUT", c.Breaker.Timeout)
	c.Breaker.FailureThreshold = getEnvFloat("BREAKER_FAILURE_THRESHOLD", c.Breaker.FailureThreshold)
	c.Breaker.MinRequests = uint32(getEnvInt("BREAKER_MIN_REQUESTS", int(c.Breaker.MinRequests)))

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.MetricsNamespace = getEnv("METRICS_NAMESPACE", c.MetricsNamespace)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.OTLPEndpoint)
}

// Validate checks the configuration against its validation tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			messages := make([]string, 0, len(fieldErrors))
			for _, fe := range fieldErrors {
				messages = append(messages, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList reads a comma-separated list. An empty entry list clears it.
func getEnvList(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
