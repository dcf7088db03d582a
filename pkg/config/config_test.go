package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so no ghbrowse.yaml is found.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "https://api.github.com", cfg.GitHub.BaseURL)
	assert.Equal(t, "ghbrowse/1.0", cfg.GitHub.UserAgent)
	assert.Equal(t, 10.0, cfg.GitHub.RequestsPerSecond)
	assert.Equal(t, 30*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, 1, cfg.GitHub.MaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.Search.Cooldown)
	assert.Equal(t, 11, cfg.Search.VisibleRows)
	assert.Equal(t, 100, cfg.Search.PageSize)
	assert.Equal(t, 20, cfg.Search.BatchSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoad_Env(t *testing.T) {
	inTempDir(t)
	t.Setenv("GHUB_USERNAME", "octocat")
	t.Setenv("GHUB_TOKEN", "secret")
	t.Setenv("GHUB_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("GHUB_LOG_LEVEL", "debug")
	t.Setenv("GHUB_SEARCH_COOLDOWN", "5m")
	t.Setenv("GHUB_SEARCH_BATCH_SIZE", "7")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "octocat", cfg.GitHub.Username)
	assert.Equal(t, "secret", cfg.GitHub.Token)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5*time.Minute, cfg.Search.Cooldown)
	assert.Equal(t, 7, cfg.Search.BatchSize)
}

func TestLoad_File(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "custom.yaml")
	content := `
github:
  username: fromfile
  requests_per_second: 2.5
search:
  visible_rows: 20
log:
  pretty: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "fromfile", cfg.GitHub.Username)
	assert.Equal(t, 2.5, cfg.GitHub.RequestsPerSecond)
	assert.Equal(t, 20, cfg.Search.VisibleRows)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_DefaultFileInWorkingDirectory(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ghbrowse.yaml"), []byte("server:\n  addr: \":9090\"\n"), 0o644))

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "ghbrowse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("github:\n  username: fromfile\n"), 0o644))
	t.Setenv("GHUB_USERNAME", "fromenv")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.GitHub.Username)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := inTempDir(t)

	_, err := Load(viper.New(), filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			GitHub: GitHubConfig{UserAgent: "ua", MaxAttempts: 1},
			Search: SearchConfig{PageSize: 100, BatchSize: 20, VisibleRows: 11, Cooldown: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no user agent", mutate: func(c *Config) { c.GitHub.UserAgent = "" }, wantErr: "user_agent"},
		{name: "negative rate", mutate: func(c *Config) { c.GitHub.RequestsPerSecond = -1 }, wantErr: "requests_per_second"},
		{name: "zero attempts", mutate: func(c *Config) { c.GitHub.MaxAttempts = 0 }, wantErr: "max_attempts"},
		{name: "page size too large", mutate: func(c *Config) { c.Search.PageSize = 101 }, wantErr: "page_size"},
		{name: "zero batch", mutate: func(c *Config) { c.Search.BatchSize = 0 }, wantErr: "batch_size"},
		{name: "zero rows", mutate: func(c *Config) { c.Search.VisibleRows = 0 }, wantErr: "visible_rows"},
		{name: "negative cooldown", mutate: func(c *Config) { c.Search.Cooldown = -time.Second }, wantErr: "cooldown"},
		{name: "zero cooldown", mutate: func(c *Config) { c.Search.Cooldown = 0 }, wantErr: "cooldown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
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
