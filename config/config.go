// Package config provides environment-variable configuration loading
// and validation for objectdb services: a store backend, queue,
// coordinator, inventory engine, metrics collector, and the process's
// own HTTP/service identity.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/evalgo-org/objectdb/store"
)

// EnvConfig provides utilities for loading configuration from environment variables
type EnvConfig struct {
	prefix string // Optional prefix for all environment variables
}

// NewEnvConfig creates a new environment configuration loader
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{
		prefix: prefix,
	}
}

// GetString retrieves a string value from environment with optional default
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		return value
	}
	return defaultValue
}

// MustGetString retrieves a required string value from environment or panics
func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	return value
}

// GetInt retrieves an integer value from environment with optional default
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// MustGetInt retrieves a required integer value from environment or panics
func (ec *EnvConfig) MustGetInt(key string) int {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		panic(fmt.Sprintf("environment variable %s is not a valid integer: %v", fullKey, err))
	}
	return intValue
}

// GetBool retrieves a boolean value from environment with optional default
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional default
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a comma-separated string slice from environment
func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// buildKey builds the full environment variable key with optional prefix
func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// ServerConfig contains the process's own HTTP listener configuration,
// used for the Prometheus exposition endpoint and any admin routes.
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Debug           bool
}

// LoadServerConfig loads server configuration from environment
func LoadServerConfig(prefix string) ServerConfig {
	env := NewEnvConfig(prefix)
	return ServerConfig{
		Port:            env.GetInt("PORT", 8080),
		Host:            env.GetString("HOST", "0.0.0.0"),
		ReadTimeout:     env.GetDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    env.GetDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: env.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Debug:           env.GetBool("DEBUG", false),
	}
}

// StoreConfig selects and configures the blob store backend.
type StoreConfig struct {
	Backend        string // "memory" or "s3"
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKeyID  string
	S3SecretKey    string
	S3UsePathStyle bool
}

// LoadStoreConfig loads store backend configuration from environment
func LoadStoreConfig(prefix string) StoreConfig {
	env := NewEnvConfig(prefix)
	return StoreConfig{
		Backend:        env.GetString("BACKEND", "memory"),
		S3Bucket:       env.GetString("S3_BUCKET", ""),
		S3Region:       env.GetString("S3_REGION", "us-east-1"),
		S3Endpoint:     env.GetString("S3_ENDPOINT", ""),
		S3AccessKeyID:  env.GetString("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:    env.GetString("S3_SECRET_ACCESS_KEY", ""),
		S3UsePathStyle: env.GetBool("S3_USE_PATH_STYLE", false),
	}
}

// S3Config builds a store.S3Config from these settings, for callers
// constructing a store.S3Store directly from loaded configuration.
func (sc StoreConfig) S3Config() store.S3Config {
	return store.S3Config{
		Bucket:          sc.S3Bucket,
		Region:          sc.S3Region,
		Endpoint:        sc.S3Endpoint,
		AccessKeyID:     sc.S3AccessKeyID,
		SecretAccessKey: sc.S3SecretKey,
		UsePathStyle:    sc.S3UsePathStyle,
	}
}

// QueueConfig configures the durable work queue's timing and failure
// handling, mirroring queue.Config's fields.
type QueueConfig struct {
	LockTTL           time.Duration
	OrderingLockTTL   time.Duration
	VisibilityTimeout time.Duration
	PollBatchSize     int
	RecoveryInterval  time.Duration
	TicketBatchSize   int
	HeartbeatTTL      time.Duration
	OrderingGuarantee bool
	FailureStrategy   string
	MaxAttempts       int
}

// LoadQueueConfig loads queue configuration from environment
func LoadQueueConfig(prefix string) QueueConfig {
	env := NewEnvConfig(prefix)
	return QueueConfig{
		LockTTL:           env.GetDuration("LOCK_TTL", 5*time.Second),
		OrderingLockTTL:   env.GetDuration("ORDERING_LOCK_TTL", 250*time.Millisecond),
		VisibilityTimeout: env.GetDuration("VISIBILITY_TIMEOUT", 30*time.Second),
		PollBatchSize:     env.GetInt("POLL_BATCH_SIZE", 50),
		RecoveryInterval:  env.GetDuration("RECOVERY_INTERVAL", 10*time.Second),
		TicketBatchSize:   env.GetInt("TICKET_BATCH_SIZE", 20),
		HeartbeatTTL:      env.GetDuration("HEARTBEAT_TTL", 30*time.Second),
		OrderingGuarantee: env.GetBool("ORDERING_GUARANTEE", false),
		FailureStrategy:   env.GetString("FAILURE_STRATEGY", "retry"),
		MaxAttempts:       env.GetInt("MAX_ATTEMPTS", 5),
	}
}

// CoordinatorConfig configures leader election and cold-start timing,
// mirroring coordinator.Config's fields.
type CoordinatorConfig struct {
	Name                   string
	WorkerID               string
	LeaseTTL               time.Duration
	RenewInterval          time.Duration
	HeartbeatTTL           time.Duration
	ColdStartEnabled       bool
	ColdStartPhaseDuration time.Duration
}

// LoadCoordinatorConfig loads coordinator configuration from environment.
// WorkerID defaults to the process hostname when unset, so replicas
// started from the same image still get distinct candidate identities.
func LoadCoordinatorConfig(prefix string) CoordinatorConfig {
	env := NewEnvConfig(prefix)
	hostname, _ := os.Hostname()
	return CoordinatorConfig{
		Name:                   env.GetString("NAME", "default"),
		WorkerID:               env.GetString("WORKER_ID", hostname),
		LeaseTTL:               env.GetDuration("LEASE_TTL", 10*time.Second),
		RenewInterval:          env.GetDuration("RENEW_INTERVAL", 5*time.Second),
		HeartbeatTTL:           env.GetDuration("HEARTBEAT_TTL", 30*time.Second),
		ColdStartEnabled:       env.GetBool("COLD_START_ENABLED", false),
		ColdStartPhaseDuration: env.GetDuration("COLD_START_PHASE_DURATION", 30*time.Second),
	}
}

// InventoryConfig configures the snapshot engine's sync lease timing
// and global schedule.
type InventoryConfig struct {
	LockTTL        time.Duration
	LockTimeout    time.Duration
	GlobalSchedule string
	RunOnStart     bool
	TimeZone       string
}

// LoadInventoryConfig loads inventory configuration from environment
func LoadInventoryConfig(prefix string) InventoryConfig {
	env := NewEnvConfig(prefix)
	return InventoryConfig{
		LockTTL:        env.GetDuration("LOCK_TTL", 2*time.Minute),
		LockTimeout:    env.GetDuration("LOCK_TIMEOUT", 0),
		GlobalSchedule: env.GetString("GLOBAL_SCHEDULE", ""),
		RunOnStart:     env.GetBool("RUN_ON_START", false),
		TimeZone:       env.GetString("TIMEZONE", "UTC"),
	}
}

// MetricsConfig configures the metrics collector's buffering,
// retention, and exposition.
type MetricsConfig struct {
	FlushInterval time.Duration
	RetentionDays int
	BufferLimit   int
	ExposePath    string
}

// LoadMetricsConfig loads metrics configuration from environment
func LoadMetricsConfig(prefix string) MetricsConfig {
	env := NewEnvConfig(prefix)
	return MetricsConfig{
		FlushInterval: env.GetDuration("FLUSH_INTERVAL", 30*time.Second),
		RetentionDays: env.GetInt("RETENTION_DAYS", 30),
		BufferLimit:   env.GetInt("BUFFER_LIMIT", 1000),
		ExposePath:    env.GetString("EXPOSE_PATH", "/metrics"),
	}
}

// ServiceConfig contains common service identity configuration
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
	LogLevel    string
	LogFormat   string
}

// LoadServiceConfig loads service configuration from environment
func LoadServiceConfig(prefix string) ServiceConfig {
	env := NewEnvConfig(prefix)
	return ServiceConfig{
		Name:        env.GetString("NAME", ""),
		Version:     env.GetString("VERSION", "0.0.1"),
		Environment: env.GetString("ENVIRONMENT", "development"),
		LogLevel:    env.GetString("LOG_LEVEL", "info"),
		LogFormat:   env.GetString("LOG_FORMAT", "text"),
	}
}

// Validator provides configuration validation utilities
type Validator struct {
	errors []string
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{
		errors: make([]string, 0),
	}
}

// RequireString validates that a string field is not empty
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequireInt validates that an integer field is within range
func (v *Validator) RequireInt(field string, value, min, max int) {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %d and %d", field, min, max))
	}
}

// RequirePositiveInt validates that an integer field is positive
func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

// RequireURL validates that a string is a valid URL
func (v *Validator) RequireURL(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		v.errors = append(v.errors, fmt.Sprintf("%s must be a valid URL (http:// or https://)", field))
	}
}

// RequireOneOf validates that a value is one of the allowed options
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// IsValid returns true if there are no validation errors
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []string {
	return v.errors
}

// ErrorString returns all validation errors as a single string
func (v *Validator) ErrorString() string {
	if len(v.errors) == 0 {
		return ""
	}
	return strings.Join(v.errors, "; ")
}

// Validate runs validation and returns error if invalid
func (v *Validator) Validate() error {
	if !v.IsValid() {
		return fmt.Errorf("configuration validation failed: %s", v.ErrorString())
	}
	return nil
}

// ConfigLoader provides a fluent interface for loading configuration
type ConfigLoader struct {
	prefix string
	env    *EnvConfig
}

// NewConfigLoader creates a new configuration loader
func NewConfigLoader(prefix string) *ConfigLoader {
	return &ConfigLoader{
		prefix: prefix,
		env:    NewEnvConfig(prefix),
	}
}

// LoadAll loads every component's configuration under this loader's prefix.
func (cl *ConfigLoader) LoadAll() (*AllConfig, error) {
	config := &AllConfig{
		Server:      LoadServerConfig(cl.prefix),
		Store:       LoadStoreConfig(cl.prefix + "_STORE"),
		Queue:       LoadQueueConfig(cl.prefix + "_QUEUE"),
		Coordinator: LoadCoordinatorConfig(cl.prefix + "_COORDINATOR"),
		Inventory:   LoadInventoryConfig(cl.prefix + "_INVENTORY"),
		Metrics:     LoadMetricsConfig(cl.prefix + "_METRICS"),
		Service:     LoadServiceConfig(cl.prefix),
	}

	if err := cl.validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validate validates the loaded configuration
func (cl *ConfigLoader) validate(config *AllConfig) error {
	validator := NewValidator()

	validator.RequireString("Service.Name", config.Service.Name)
	validator.RequireOneOf("Service.Environment", config.Service.Environment,
		[]string{"development", "staging", "production"})
	validator.RequireOneOf("Service.LogLevel", config.Service.LogLevel,
		[]string{"debug", "info", "warn", "error"})
	validator.RequireOneOf("Store.Backend", config.Store.Backend, []string{"memory", "s3"})
	if config.Store.Backend == "s3" {
		validator.RequireString("Store.S3Bucket", config.Store.S3Bucket)
	}

	validator.RequirePositiveInt("Server.Port", config.Server.Port)

	return validator.Validate()
}

// AllConfig contains every component's loaded configuration.
type AllConfig struct {
	Server      ServerConfig
	Store       StoreConfig
	Queue       QueueConfig
	Coordinator CoordinatorConfig
	Inventory   InventoryConfig
	Metrics     MetricsConfig
	Service     ServiceConfig
}
