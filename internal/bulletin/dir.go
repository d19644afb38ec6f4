package bulletin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

// DirFetcher reads bulletins cached as <date>.txt or <date>.html files.
// Text files win over HTML for the same date.
type DirFetcher struct {
	dir string
}

// NewDirFetcher creates a fetcher over dir.
func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{dir: dir}
}

// Fetch reads the cached bulletin of date.
func (f *DirFetcher) Fetch(_ context.Context, date domain.Date) (*Bulletin, error) {
	txt := filepath.Join(f.dir, date.String()+".txt")
	data, err := os.ReadFile(txt)
	if err == nil {
		return &Bulletin{Date: date, Text: string(data), Source: "dir", Location: txt}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewStorageError("read cached bulletin", err).WithContext("path", txt)
	}

	html := filepath.Join(f.dir, date.String()+".html")
	data, err = os.ReadFile(html)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(date)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("read cached bulletin", err).WithContext("path", html)
	}
	text, err := HTMLToText(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewParsingError("converting bulletin HTML", err).WithContext("path", html)
	}
	return &Bulletin{Date: date, Text: text, Source: "dir", Location: html}, nil
}

// Store writes the bulletin text as <date>.txt, replacing any previous copy.
func (f *DirFetcher) Store(b *Bulletin) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return apperrors.NewStorageError("create bulletin cache", err).WithContext("path", f.dir)
	}
	tmp, err := os.CreateTemp(f.dir, ".bulletin-*")
	if err != nil {
		return apperrors.NewStorageError("create temp bulletin", err).WithContext("path", f.dir)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(b.Text); err != nil {
		tmp.Close()
		return apperrors.NewStorageError("write bulletin", err).WithContext("path", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStorageError("close bulletin", err).WithContext("path", tmp.Name())
	}
	dst := filepath.Join(f.dir, b.Date.String()+".txt")
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return apperrors.NewStorageError("rename bulletin", err).WithContext("path", dst)
	}
	return nil
}

// Dates lists the cached dates in ascending order. A missing directory has
// no dates.
func (f *DirFetcher) Dates(context.Context) ([]domain.Date, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("list bulletin cache", err).WithContext("path", f.dir)
	}

	seen := map[domain.Date]bool{}
	var out []domain.Date
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".txt" && ext != ".html" {
			continue
		}
		d, err := domain.ParseDate(strings.TrimSuffix(name, ext))
		if err != nil || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sortDates(out)
	return out, nil
}

// CachedFetcher serves bulletins from a cache directory and falls back to an
// origin fetcher, storing what it downloads.
type CachedFetcher struct {
	cache  *DirFetcher
	origin Fetcher
	logger *slog.Logger
}

// NewCachedFetcher wraps origin with a cache directory.
func NewCachedFetcher(cache *DirFetcher, origin Fetcher, logger *slog.Logger) *CachedFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedFetcher{
		cache:  cache,
		origin: origin,
		logger: logger.With(slog.String("component", "cached_fetcher")),
	}
}

// Fetch returns the cached bulletin of date, downloading it on a miss. A
// failure to write the cache is logged and does not fail the fetch.
func (f *CachedFetcher) Fetch(ctx context.Context, date domain.Date) (*Bulletin, error) {
	b, err := f.cache.Fetch(ctx, date)
	if err == nil {
		return b, nil
	}
	if !apperrors.IsType(err, apperrors.ErrTypeNotFound) {
		return nil, err
	}

	b, err = f.origin.Fetch(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", date, err)
	}
	if err := f.cache.Store(b); err != nil {
		f.logger.WarnContext(ctx, "bulletin not cached",
			slog.String("date", date.String()),
			slog.String("error", err.Error()))
	}
	return b, nil
}

// Dates lists the dates of the origin when it can enumerate them, else the
// cached dates.
func (f *CachedFetcher) Dates(ctx context.Context) ([]domain.Date, error) {
	if l, ok := f.origin.(Lister); ok {
		return l.Dates(ctx)
	}
	return f.cache.Dates(ctx)
}
