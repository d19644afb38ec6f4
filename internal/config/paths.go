package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PathsConfig roots every on-disk artifact.
type PathsConfig struct {
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
}

// Paths contains the resolved application paths
type Paths struct {
	DataDir     string
	CacheDir    string
	ExportDir   string
	SnapshotDir string
	StoreFile   string
}

// Layout resolves the data layout under DataDir. An explicit fetch cache
// directory or store file wins over the derived ones.
func (c *Config) Layout() *Paths {
	dataDir := c.Paths.DataDir
	if !filepath.IsAbs(dataDir) {
		if abs, err := filepath.Abs(dataDir); err == nil {
			dataDir = abs
		}
	}

	p := &Paths{
		DataDir:     dataDir,
		CacheDir:    filepath.Join(dataDir, "bulletins"),
		ExportDir:   filepath.Join(dataDir, "exports"),
		SnapshotDir: filepath.Join(dataDir, "snapshots"),
		StoreFile:   filepath.Join(dataDir, "reports.db"),
	}
	if c.Fetch.CacheDir != "" {
		p.CacheDir = c.Fetch.CacheDir
	}
	if c.Store.File != "" {
		p.StoreFile = c.Store.File
	}
	return p
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.CacheDir, p.ExportDir, p.SnapshotDir, filepath.Dir(p.StoreFile)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// BulletinPath is where the bulletin text of date is cached.
func (p *Paths) BulletinPath(date time.Time) string {
	return filepath.Join(p.CacheDir, date.Format("2006-01-02")+".txt")
}

// SnapshotPath names the report snapshot of a rule version.
func (p *Paths) SnapshotPath(version string) string {
	return filepath.Join(p.SnapshotDir, "reports-"+version+".json")
}

// LogPathResolution logs the resolved layout at debug level.
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("resolved data paths",
		slog.String("data_dir", p.DataDir),
		slog.String("cache_dir", p.CacheDir),
		slog.String("export_dir", p.ExportDir),
		slog.String("snapshot_dir", p.SnapshotDir),
		slog.String("store_file", p.StoreFile))
}
