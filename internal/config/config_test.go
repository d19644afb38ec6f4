package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lacphcli/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "http", cfg.Fetch.Source)
				assert.Equal(t, 4, cfg.Fetch.Concurrency)
				assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
				assert.Equal(t, "memory", cfg.Store.Driver)
				assert.Equal(t, 60, cfg.Series.ActiveWindowDays)
				assert.Equal(t, 50, cfg.Series.ActiveMinDays)
				assert.Equal(t, ":8080", cfg.Server.Addr)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "prometheus", cfg.Telemetry.MetricExporter)
			},
		},
		{
			name: "file overrides defaults",
			file: `
fetch:
  source: dir
  cache_dir: /tmp/bulletins
store:
  driver: sqlite
  file: /tmp/reports.db
series:
  active_window_days: 30
  active_min_days: 20
server:
  read_timeout: 5s
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "dir", cfg.Fetch.Source)
				assert.Equal(t, "/tmp/bulletins", cfg.Fetch.CacheDir)
				assert.Equal(t, "sqlite", cfg.Store.Driver)
				assert.Equal(t, "/tmp/reports.db", cfg.Store.File)
				assert.Equal(t, 30, cfg.Series.ActiveWindowDays)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout, "unset keys keep their default")
			},
		},
		{
			name: "env overrides file",
			env: map[string]string{
				"LACPH_STORE_DRIVER":             "memory",
				"LACPH_LOGGING_LEVEL":            "debug",
				"LACPH_FETCH_RPS":                "0.5",
				"LACPH_SERVER_ADDR":              "127.0.0.1:9000",
				"LACPH_RULES_FILE":               "/etc/lacph/rules.yaml",
				"LACPH_PATHS_DATA_DIR":           "/var/lib/lacph",
				"LACPH_TELEMETRY_TRACE_EXPORTER": "stdout",
			},
			file: `
store:
  driver: sqlite
logging:
  level: warn
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "memory", cfg.Store.Driver)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, 0.5, cfg.Fetch.RPS)
				assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
				assert.Equal(t, "/etc/lacph/rules.yaml", cfg.Rules.File)
				assert.Equal(t, "/var/lib/lacph", cfg.Paths.DataDir)
				assert.Equal(t, "stdout", cfg.Telemetry.TraceExporter)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			cfg, err := Load(path)
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "unknown key", file: "fetch:\n  sorce: dir\n"},
		{name: "bad yaml", file: "fetch: [\n"},
		{name: "bad source", env: map[string]string{"LACPH_FETCH_SOURCE": "ftp"}},
		{name: "bad store driver", file: "store:\n  driver: postgres\n"},
		{name: "bad number", env: map[string]string{"LACPH_FETCH_CONCURRENCY": "many"}},
		{name: "zero concurrency", file: "fetch:\n  concurrency: 0\n"},
		{name: "min days above window", file: "series:\n  active_window_days: 10\n  active_min_days: 11\n"},
		{name: "log file required", file: "logging:\n  output: file\n  file_path: \"\"\n"},
		{name: "http source without url", file: "fetch:\n  base_url: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig), "got %v", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLayout(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = dir

	p := cfg.Layout()
	assert.Equal(t, filepath.Join(dir, "bulletins"), p.CacheDir)
	assert.Equal(t, filepath.Join(dir, "reports.db"), p.StoreFile)
	assert.Equal(t, filepath.Join(dir, "snapshots", "reports-v1.json"), p.SnapshotPath("v1"))
	assert.Equal(t, filepath.Join(dir, "bulletins", "2020-04-13.txt"),
		p.BulletinPath(time.Date(2020, 4, 13, 0, 0, 0, 0, time.UTC)))

	require.NoError(t, p.EnsureDirectories())
	for _, d := range []string{p.CacheDir, p.ExportDir, p.SnapshotDir} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	cfg.Fetch.CacheDir = filepath.Join(dir, "elsewhere")
	cfg.Store.File = filepath.Join(dir, "db", "r.db")
	p = cfg.Layout()
	assert.Equal(t, cfg.Fetch.CacheDir, p.CacheDir)
	assert.Equal(t, cfg.Store.File, p.StoreFile)
}

func TestLayoutResolvesRelativeDataDir(t *testing.T) {
	cfg := Default()
	p := cfg.Layout()
	assert.True(t, filepath.IsAbs(p.DataDir))
}
