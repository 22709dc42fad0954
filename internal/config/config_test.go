package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env file here

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, BackendFile, cfg.Artifact.Backend)
	assert.Equal(t, DispatchLocal, cfg.Dispatch.Mode)
	assert.Equal(t, 30*time.Minute, cfg.QueryTimeout)
	assert.Zero(t, cfg.Reaper.StaleAfter)
	assert.True(t, cfg.Enabled(ServiceHTTP))
	assert.True(t, cfg.Enabled(ServiceWorker))
}

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVICES", "worker")
	t.Setenv("DATASOURCES", "prod=pgx:postgres://u:p@db:5432/mine?sslmode=disable;archive=sqlite:/data/archive.db")
	t.Setenv("ARTIFACT_BACKEND", "s3")
	t.Setenv("ARTIFACT_S3_BUCKET", "reports")
	t.Setenv("DISPATCH_MODE", "nats")
	t.Setenv("REAPER_STALE_AFTER", "2h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Enabled(ServiceHTTP))
	assert.True(t, cfg.Enabled(ServiceWorker))
	assert.Equal(t, "reports", cfg.Artifact.S3Bucket)
	assert.Equal(t, 2*time.Hour, cfg.Reaper.StaleAfter)

	sources, err := cfg.ParseDataSources()
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, DataSource{Name: "prod", Driver: "pgx", DSN: "postgres://u:p@db:5432/mine?sslmode=disable"}, sources[0])
	assert.Equal(t, DataSource{Name: "archive", Driver: "sqlite", DSN: "/data/archive.db"}, sources[1])
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Services: []string{"http"},
			Artifact: ArtifactConfig{Backend: BackendFile, Dir: "artifacts"},
			Dispatch: DispatchConfig{Mode: DispatchLocal},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown service", func(c *Config) { c.Services = []string{"cron"} }, "unknown service"},
		{"unknown backend", func(c *Config) { c.Artifact.Backend = "gcs" }, "unknown artifact backend"},
		{"s3 without bucket", func(c *Config) { c.Artifact.Backend = BackendS3 }, "ARTIFACT_S3_BUCKET"},
		{"unknown dispatch", func(c *Config) { c.Dispatch.Mode = "kafka" }, "unknown dispatch mode"},
		{"reaper without interval", func(c *Config) { c.Reaper.StaleAfter = time.Hour }, "REAPER_INTERVAL"},
		{"reaper with unbounded queries", func(c *Config) {
			c.Reaper.StaleAfter = time.Minute
			c.Reaper.Interval = time.Minute
		}, "bounded QUERY_TIMEOUT"},
		{"reaper longer than query timeout", func(c *Config) {
			c.Reaper.StaleAfter = time.Hour
			c.Reaper.Interval = time.Minute
			c.QueryTimeout = 30 * time.Minute
		}, ""},
		{"reaper shorter than query timeout", func(c *Config) {
			c.Reaper.StaleAfter = 10 * time.Minute
			c.Reaper.Interval = time.Minute
			c.QueryTimeout = 30 * time.Minute
		}, "must exceed QUERY_TIMEOUT"},
		{"bad datasource", func(c *Config) { c.DataSources = []string{"prod"} }, "expected name=driver:dsn"},
		{"duplicate datasource", func(c *Config) {
			c.DataSources = []string{"prod=sqlite:a.db", "prod=sqlite:b.db"}
		}, "declared twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
