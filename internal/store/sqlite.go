package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteStore persists reports in a SQLite database.
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLite opens and migrates a report store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.NewStorageError("open sqlite db", err).WithContext("path", cleanPath)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.NewStorageError("ping sqlite db", err).WithContext("path", cleanPath)
	}

	s := &SQLiteStore{sqlDB: sqlDB}
	if err := s.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore) runMigrations() error {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		body, err := fs.ReadFile(migrationFS, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.sqlDB.Exec(string(body)); err != nil {
			return apperrors.NewStorageError("apply migration", err).WithContext("migration", name)
		}
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, date domain.Date, version string) (*domain.DailyReport, bool, error) {
	if s == nil || s.sqlDB == nil {
		return nil, false, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT payload_json FROM daily_reports WHERE report_date = ? AND rule_version = ?`,
		date.String(), version,
	)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, apperrors.NewStorageError("get report", err).WithContext("date", date.String())
	}

	report, err := decodeReport(payload)
	if err != nil {
		return nil, false, err
	}
	return report, true, nil
}

// Put implements Store. The table is append-only: an existing row for the
// same date and version is left in place.
func (s *SQLiteStore) Put(ctx context.Context, report *domain.DailyReport) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := validateReport(report); err != nil {
		return err
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", report.Date, err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO daily_reports (report_date, rule_version, payload_json, stored_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(report_date, rule_version) DO NOTHING`,
		report.Date.String(),
		report.RuleVersion,
		payload,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return apperrors.NewStorageError("put report", err).WithContext("date", report.Date.String())
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, version string) ([]*domain.DailyReport, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT payload_json FROM daily_reports WHERE rule_version = ? ORDER BY report_date`,
		version,
	)
	if err != nil {
		return nil, apperrors.NewStorageError("list reports", err).WithContext("version", version)
	}
	defer rows.Close()

	var out []*domain.DailyReport
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, apperrors.NewStorageError("scan report", err)
		}
		report, err := decodeReport(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate reports", err)
	}
	return out, nil
}

// Versions lists the rule versions with at least one stored report.
func (s *SQLiteStore) Versions(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT DISTINCT rule_version FROM daily_reports ORDER BY rule_version`)
	if err != nil {
		return nil, apperrors.NewStorageError("list versions", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, apperrors.NewStorageError("scan version", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func decodeReport(payload []byte) (*domain.DailyReport, error) {
	var report domain.DailyReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, apperrors.NewStorageError("decode report", err)
	}
	return &report, nil
}
