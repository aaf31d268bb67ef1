package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Plantit/internal/mq"
	"github.com/shaiso/Plantit/internal/repo"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(lookupMap(nil))
	require.NoError(t, err)

	assert.Equal(t, []string{ReporterConsole}, cfg.Reporter.Backends)
	assert.Equal(t, mq.DefaultURL, cfg.Reporter.RabbitMQURL)
	assert.Equal(t, repo.DefaultDSN, cfg.Reporter.DBURL)
	assert.Empty(t, cfg.Reporter.JobID)

	assert.Equal(t, StoreTerrain, cfg.Store.Backend)
	assert.Equal(t, DefaultTerrainURL, cfg.Store.TerrainURL)
	assert.Equal(t, DefaultS3Bucket, cfg.Store.S3Bucket)
	assert.False(t, cfg.Store.S3UseSSL)

	assert.Equal(t, RuntimeDocker, cfg.Exec.Runtime)
	assert.Equal(t, DefaultDockerBin, cfg.Exec.DockerBin)
	assert.Equal(t, 0, cfg.Exec.MaxParallel)
	assert.Equal(t, DefaultCloneDepth, cfg.Exec.CloneDepth)
	assert.Equal(t, DefaultCloneTimeout, cfg.Exec.CloneTimeout)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoadFrom_Environment(t *testing.T) {
	cfg, err := LoadFrom(lookupMap(map[string]string{
		"PLANTIT_REPORTER":      " REST , amqp ",
		"PLANTIT_API_URL":       "https://plantit.example.org/apis/v1/",
		"PLANTIT_JOB_ID":        "job-1",
		"PLANTIT_API_TOKEN":     "secret",
		"PLANTIT_STORE":         "s3",
		"PLANTIT_S3_ACCESS_KEY": "minio",
		"PLANTIT_S3_SECRET_KEY": "minio123",
		"PLANTIT_S3_USE_SSL":    "true",
		"TERRAIN_TOKEN":         "tok",
		"PLANTIT_RUNTIME":       "local",
		"PLANTIT_MAX_PARALLEL":  "3",
		"PLANTIT_CLONE_DEPTH":   "0",
		"PLANTIT_CLONE_TIMEOUT": "90s",
		"PLANTIT_METRICS_ADDR":  ":9100",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{ReporterREST, ReporterAMQP}, cfg.Reporter.Backends)
	assert.True(t, cfg.Reporter.Has(ReporterAMQP))
	assert.False(t, cfg.Reporter.Has(ReporterConsole))
	assert.Equal(t, "job-1", cfg.Reporter.JobID)
	assert.Equal(t, "secret", cfg.Reporter.APIToken)

	assert.Equal(t, StoreS3, cfg.Store.Backend)
	assert.True(t, cfg.Store.S3UseSSL)
	assert.Equal(t, "tok", cfg.Store.TerrainToken)

	assert.Equal(t, RuntimeLocal, cfg.Exec.Runtime)
	assert.Equal(t, 3, cfg.Exec.MaxParallel)
	assert.Equal(t, 0, cfg.Exec.CloneDepth)
	assert.Equal(t, 90*time.Second, cfg.Exec.CloneTimeout)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
}

func TestLoadFrom_ParseErrors(t *testing.T) {
	_, err := LoadFrom(lookupMap(map[string]string{
		"PLANTIT_S3_USE_SSL":    "maybe",
		"PLANTIT_MAX_PARALLEL":  "many",
		"PLANTIT_CLONE_TIMEOUT": "soon",
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "PLANTIT_S3_USE_SSL")
	assert.Contains(t, err.Error(), "PLANTIT_MAX_PARALLEL")
	assert.Contains(t, err.Error(), "PLANTIT_CLONE_TIMEOUT")
}

func TestLoadFrom_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown reporter", map[string]string{"PLANTIT_REPORTER": "console,slack"}, "PLANTIT_REPORTER"},
		{"rest without url", map[string]string{"PLANTIT_REPORTER": "rest"}, "PLANTIT_API_URL"},
		{"s3 without keys", map[string]string{"PLANTIT_STORE": "s3"}, "PLANTIT_S3_ACCESS_KEY"},
		{"unknown store", map[string]string{"PLANTIT_STORE": "ftp"}, "PLANTIT_STORE"},
		{"unknown runtime", map[string]string{"PLANTIT_RUNTIME": "podman"}, "PLANTIT_RUNTIME"},
		{"negative parallel", map[string]string{"PLANTIT_MAX_PARALLEL": "-1"}, "PLANTIT_MAX_PARALLEL"},
		{"negative depth", map[string]string{"PLANTIT_CLONE_DEPTH": "-2"}, "PLANTIT_CLONE_DEPTH"},
		{"zero timeout", map[string]string{"PLANTIT_CLONE_TIMEOUT": "0s"}, "PLANTIT_CLONE_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(lookupMap(tt.env))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_ProcessEnvironment(t *testing.T) {
	t.Setenv("PLANTIT_RUNTIME", "local")
	t.Setenv("PLANTIT_JOB_ID", "job-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, RuntimeLocal, cfg.Exec.Runtime)
	assert.Equal(t, "job-env", cfg.Reporter.JobID)
}

func TestConfig_SetReporters(t *testing.T) {
	cfg, err := LoadFrom(lookupMap(nil))
	require.NoError(t, err)

	cfg.SetReporters("console,,postgres")
	assert.Equal(t, []string{ReporterConsole, ReporterPostgres}, cfg.Reporter.Backends)
	require.NoError(t, cfg.Validate())

	cfg.SetReporters(" ")
	assert.Error(t, cfg.Validate())
}
