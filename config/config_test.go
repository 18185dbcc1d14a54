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
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Room.GracePeriod)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, 71, cfg.Judge.LanguageID)
	assert.Len(t, cfg.Provider.Slugs, 7)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
room:
  grace_period: 30s
judge:
  workers: 2
kafka:
  brokers: ["k1:9092", "k2:9092"]
log:
  format: json
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JUDGE_WORKERS", "4")
	t.Setenv("ROOM_GRACE_PERIOD", "5")
	t.Setenv("PROBLEM_SLUGS", "two-sum, fizz-buzz")
	t.Setenv("SERVER_READ_HEADER_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, 5*time.Second, cfg.Room.GracePeriod)
	assert.Equal(t, 4, cfg.Judge.Workers)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"two-sum", "fizz-buzz"}, cfg.Provider.Slugs)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched sections keep their defaults
	assert.Equal(t, "codebattle.matches", cfg.Kafka.Topic)
}

func TestLoad_PortOverridesAddr(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "8123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8123", cfg.Server.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "does-not-exist.yaml")

	_, err := Load()
	assert.ErrorContains(t, err, "read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero grace", mutate: func(c *Config) { c.Room.GracePeriod = 0 }, wantErr: "grace period"},
		{name: "no workers", mutate: func(c *Config) { c.Judge.Workers = 0 }, wantErr: "judge workers"},
		{name: "no judge url", mutate: func(c *Config) { c.Judge.URL = "" }, wantErr: "judge url"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("D_GO", "1m30s")
	t.Setenv("D_SECS", "20")
	t.Setenv("D_BAD", "soon")

	assert.Equal(t, 90*time.Second, getEnvAsDuration("D_GO", time.Second))
	assert.Equal(t, 20*time.Second, getEnvAsDuration("D_SECS", time.Second))
	assert.Equal(t, time.Second, getEnvAsDuration("D_BAD", time.Second))
	assert.Equal(t, time.Second, getEnvAsDuration("D_UNSET", time.Second))
}
