package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

// Snapshot is the full report history of one rule version.
type Snapshot struct {
	RuleVersion string                `json:"rule_version"`
	CreatedAt   time.Time             `json:"created_at"`
	Reports     []*domain.DailyReport `json:"reports"`
}

// WriteSnapshot writes every report of version held by s to path. The file
// is replaced atomically.
func WriteSnapshot(ctx context.Context, s Store, version, path string) error {
	reports, err := s.List(ctx, version)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}

	data, err := json.MarshalIndent(Snapshot{
		RuleVersion: version,
		CreatedAt:   time.Now().UTC(),
		Reports:     reports,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("create snapshot directory", err).WithContext("path", path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.json")
	if err != nil {
		return apperrors.NewStorageError("create snapshot file", err).WithContext("path", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.NewStorageError("write snapshot", err).WithContext("path", path)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStorageError("close snapshot", err).WithContext("path", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.NewStorageError("replace snapshot", err).WithContext("path", path)
	}
	return nil
}

// ReadSnapshot loads a snapshot file and puts every report into s. Reports
// keep the rule version they were parsed under.
func ReadSnapshot(ctx context.Context, s Store, path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("read snapshot", err).WithContext("path", path)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, apperrors.NewStorageError("decode snapshot", err).WithContext("path", path)
	}
	for _, r := range snap.Reports {
		if err := s.Put(ctx, r); err != nil {
			return nil, fmt.Errorf("load snapshot report: %w", err)
		}
	}
	domain.SortReports(snap.Reports)
	return &snap, nil
}
