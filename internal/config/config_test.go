package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, BackendMemory, cfg.Events.Backend)
	assert.Equal(t, 500*time.Millisecond, cfg.Validation.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Validation.QuietPeriod)
	assert.Equal(t, 60*time.Second, cfg.Validation.FallbackCeiling)
	assert.Equal(t, []string{"Validating", "Verifying", "Updating"}, cfg.Validation.Keywords)
	assert.Equal(t, 15*time.Second, cfg.Activation.AttemptTimeout)
	assert.Equal(t, []string{"explorer.exe", "conhost.exe", "powershell.exe"}, cfg.Resolver.IgnoreImages)
	assert.Equal(t, 4, cfg.Workers.PoolSize)
	assert.False(t, cfg.UsesRedis())
	assert.Equal(t, "127.0.0.1:8080", cfg.GetHTTPAddr())
	assert.Equal(t, "127.0.0.1:9090", cfg.GetGRPCAddr())
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_ListenAddresses(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LAUNCHORCH_HTTP_HOST", "0.0.0.0")
	t.Setenv("LAUNCHORCH_GRPC_HOST", "::1")
	t.Setenv("LAUNCHORCH_ALLOWED_ORIGINS", "http://localhost:3000,https://dash.lan")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.GetHTTPAddr())
	assert.Equal(t, "[::1]:9090", cfg.GetGRPCAddr())
	assert.Equal(t, []string{"http://localhost:3000", "https://dash.lan"}, cfg.AllowedOrigins)
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LAUNCHORCH_HTTP_PORT", "9000")
	t.Setenv("LAUNCHORCH_EVENTS", "redis")
	t.Setenv("LAUNCHORCH_VALIDATION_KEYWORDS", "Validating,Patching")
	t.Setenv("LAUNCHORCH_VALIDATION_QUIET", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, []string{"Validating", "Patching"}, cfg.Validation.Keywords)
	assert.Equal(t, 2*time.Second, cfg.Validation.QuietPeriod)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "launchorch.env")
	require.NoError(t, os.WriteFile(path, []byte("LAUNCHORCH_GRPC_PORT=9191\nLAUNCHORCH_SIMULATE=true\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("LAUNCHORCH_GRPC_PORT")
		os.Unsetenv("LAUNCHORCH_SIMULATE")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.GRPCPort)
	assert.True(t, cfg.Simulate)
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid log level")
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	chdir(t, t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "bad http port", mutate: func(c *Config) { c.HTTPPort = 0 }, wantErr: "invalid HTTP port"},
		{name: "bad grpc port", mutate: func(c *Config) { c.GRPCPort = 70000 }, wantErr: "invalid gRPC port"},
		{name: "bare origin", mutate: func(c *Config) { c.AllowedOrigins = []string{"localhost:3000"} }, wantErr: "invalid allowed origin"},
		{name: "unknown store", mutate: func(c *Config) { c.Store.Backend = "sqlite" }, wantErr: "unsupported store backend"},
		{name: "unknown events", mutate: func(c *Config) { c.Events.Backend = "kafka" }, wantErr: "unsupported events backend"},
		{name: "file store without files", mutate: func(c *Config) { c.Store.RunsFile = "" }, wantErr: "file store"},
		{
			name: "redis without address",
			mutate: func(c *Config) {
				c.Store.Backend = BackendRedis
				c.Redis.Addr = ""
			},
			wantErr: "redis address",
		},
		{name: "zero poll", mutate: func(c *Config) { c.Resolver.PollInterval = 0 }, wantErr: "resolver poll interval"},
		{
			name:    "quiet period past ceiling",
			mutate:  func(c *Config) { c.Validation.QuietPeriod = 2 * time.Minute },
			wantErr: "fallback ceiling",
		},
		{name: "no keywords", mutate: func(c *Config) { c.Validation.Keywords = nil }, wantErr: "keyword"},
		{name: "blank keyword", mutate: func(c *Config) { c.Validation.Keywords = []string{" "} }, wantErr: "keywords"},
		{name: "no workers", mutate: func(c *Config) { c.Workers.PoolSize = 0 }, wantErr: "worker pool size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

// chdir switches the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
