package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg := LoadServerConfig("APP")
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.False(t, cfg.Debug)
}

func TestLoadServerConfigFromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_DEBUG", "true")

	cfg := LoadServerConfig("APP")
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
}

func TestLoadStoreConfigDefaultsToMemory(t *testing.T) {
	cfg := LoadStoreConfig("APP_STORE")
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, "us-east-1", cfg.S3Region)
}

func TestLoadStoreConfigS3Config(t *testing.T) {
	t.Setenv("APP_STORE_BACKEND", "s3")
	t.Setenv("APP_STORE_S3_BUCKET", "snapshots")
	t.Setenv("APP_STORE_S3_USE_PATH_STYLE", "true")

	cfg := LoadStoreConfig("APP_STORE")
	assert.Equal(t, "s3", cfg.Backend)

	s3cfg := cfg.S3Config()
	assert.Equal(t, "snapshots", s3cfg.Bucket)
	assert.True(t, s3cfg.UsePathStyle)
}

func TestLoadQueueConfigDefaults(t *testing.T) {
	cfg := LoadQueueConfig("APP_QUEUE")
	assert.Equal(t, "retry", cfg.FailureStrategy)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.False(t, cfg.OrderingGuarantee)
}

func TestLoadCoordinatorConfigWorkerIDFallsBackToHostname(t *testing.T) {
	cfg := LoadCoordinatorConfig("APP_COORD")
	assert.NotEmpty(t, cfg.WorkerID)
}

func TestLoadCoordinatorConfigWorkerIDFromEnv(t *testing.T) {
	t.Setenv("APP_COORD_WORKER_ID", "worker-7")
	cfg := LoadCoordinatorConfig("APP_COORD")
	assert.Equal(t, "worker-7", cfg.WorkerID)
}

func TestLoadInventoryConfigDefaults(t *testing.T) {
	cfg := LoadInventoryConfig("APP_INV")
	assert.Equal(t, "UTC", cfg.TimeZone)
	assert.False(t, cfg.RunOnStart)
	assert.Empty(t, cfg.GlobalSchedule)
}

func TestLoadMetricsConfigDefaults(t *testing.T) {
	cfg := LoadMetricsConfig("APP_METRICS")
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, "/metrics", cfg.ExposePath)
}

func TestConfigLoaderLoadAllSucceedsWithRequiredFields(t *testing.T) {
	t.Setenv("APP_NAME", "objectdb-service")

	loader := NewConfigLoader("APP")
	all, err := loader.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, "objectdb-service", all.Service.Name)
	assert.Equal(t, "memory", all.Store.Backend)
}

func TestConfigLoaderLoadAllFailsWhenServiceNameMissing(t *testing.T) {
	loader := NewConfigLoader("NOPE")
	_, err := loader.LoadAll()
	assert.Error(t, err)
}

func TestConfigLoaderLoadAllFailsWhenS3BackendMissingBucket(t *testing.T) {
	t.Setenv("APP2_NAME", "objectdb-service")
	t.Setenv("APP2_STORE_BACKEND", "s3")

	loader := NewConfigLoader("APP2")
	_, err := loader.LoadAll()
	assert.Error(t, err)
}

func TestValidatorAccumulatesMultipleErrors(t *testing.T) {
	v := NewValidator()
	v.RequireString("Name", "")
	v.RequirePositiveInt("Port", -1)
	v.RequireOneOf("Level", "trace", []string{"debug", "info"})

	assert.False(t, v.IsValid())
	assert.Len(t, v.Errors(), 3)
	require.Error(t, v.Validate())
}
