package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/carbonwise/internal/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "carbonwise.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return configPath
}

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"CARBONWISE_CONFIG", "CARBONWISE_LOG", "CARBONWISE_LOG_PATH", "CARBONWISE_KWH_EUR",
		"CARBONWISE_COUNTRY_ISO", "CODECARBON_COUNTRY_ISO_CODE", "CARBONWISE_LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	configPath := writeConfig(t, `
log_path = "/tmp/carbon/runs.jsonl"
kwh_eur = 0.31
country_iso = "fr"
log_level = "info"

[meter]
sources = ["rapl", "cpu"]
interval = "500ms"

[store]
enabled = true
db_path = "/tmp/carbon/runs.db"
`)
	t.Setenv("CARBONWISE_CONFIG", configPath)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/carbon/runs.jsonl", cfg.LogPath)
	assert.InDelta(t, 0.31, cfg.Price, 1e-12)
	assert.Equal(t, "FR", cfg.CountryISO)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"rapl", "cpu"}, cfg.Meter.Sources)
	assert.Equal(t, 500*time.Millisecond, cfg.Meter.Interval)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, "/tmp/carbon/runs.db", cfg.Store.DBPath)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := config.Load(nil, config.WithConfigFile(""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultLogPath, cfg.LogPath)
	assert.InDelta(t, config.DefaultPrice, cfg.Price, 1e-12)
	assert.Empty(t, cfg.CountryISO)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, []string{"rapl", "nvml", "cpu"}, cfg.Meter.Sources)
	assert.Equal(t, config.DefaultInterval, cfg.Meter.Interval)
	assert.InDelta(t, config.DefaultCPUPMax, cfg.Meter.CPU.PMax, 1e-12)
	assert.False(t, cfg.Store.Enabled)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("CARBONWISE_LOG", "env_runs.jsonl")
	t.Setenv("CARBONWISE_KWH_EUR", "0.4")
	t.Setenv("CODECARBON_COUNTRY_ISO_CODE", "ie")

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "env_runs.jsonl", cfg.LogPath)
	assert.InDelta(t, 0.4, cfg.Price, 1e-12)
	assert.Equal(t, "IE", cfg.CountryISO)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	clearEnv(t)
	t.Setenv("CARBONWISE_CONFIG", writeConfig(t, "This is not a valid TOML file\n"))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("CARBONWISE_CONFIG", writeConfig(t, `log_level = "invalid"`+"\n"))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid log level")
}

func TestInvalidMeterSource(t *testing.T) {
	clearEnv(t)
	t.Setenv("CARBONWISE_CONFIG", writeConfig(t, "[meter]\nsources = [\"tpu\"]\n"))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown meter source: tpu")
}

func TestNegativePriceRejected(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("CARBONWISE_KWH_EUR", "-1")

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid price per kWh")
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("CARBONWISE_KWH_EUR", "0.4")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log", config.DefaultLogPath, "")
	flags.Float64("kwh-eur", config.DefaultPrice, "")
	flags.Bool("debug", false, "")
	require.NoError(t, flags.Parse([]string{"--kwh-eur", "0.12", "--log", "flag.jsonl", "--debug"}))

	cfg, err := config.Load(flags)
	require.NoError(t, err)

	assert.InDelta(t, 0.12, cfg.Price, 1e-12)
	assert.Equal(t, "flag.jsonl", cfg.LogPath)
	assert.Equal(t, "debug", cfg.LogLevel, "debug flag raises the log level")
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
