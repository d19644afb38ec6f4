package bulletin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

const (
	DefaultUserAgent = "lacph/1.0"
	DefaultTimeout   = 30 * time.Second
)

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	// BaseURL is the announcement detail page; the id is passed as "prid".
	BaseURL   string
	Timeout   time.Duration
	RPS       float64
	Burst     int
	UserAgent string
}

// HTTPFetcher downloads bulletins from the department site by announcement
// id. Requests share one rate limiter across goroutines.
type HTTPFetcher struct {
	client    *http.Client
	baseURL   string
	index     Index
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
}

// NewHTTPFetcher creates a fetcher resolving dates through index.
func NewHTTPFetcher(index Index, opts HTTPOptions, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		baseURL:   opts.BaseURL,
		index:     index,
		limiter:   rate.NewLimiter(limit, opts.Burst),
		userAgent: opts.UserAgent,
		logger:    logger.With(slog.String("component", "http_fetcher")),
	}
}

// Fetch downloads and converts the bulletin of date.
func (f *HTTPFetcher) Fetch(ctx context.Context, date domain.Date) (*Bulletin, error) {
	id, ok := f.index.ID(date)
	if !ok {
		return nil, notFound(date)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	u, err := f.announcementURL(id)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError("fetching bulletin", err).WithContext("url", u)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil).
			WithContext("url", u).
			WithContext("date", date.String())
	}

	text, err := HTMLToText(resp.Body)
	if err != nil {
		return nil, apperrors.NewParsingError("converting bulletin HTML", err).WithContext("url", u)
	}

	f.logger.DebugContext(ctx, "bulletin fetched",
		slog.String("date", date.String()),
		slog.String("id", id),
		slog.Duration("elapsed", time.Since(start)))
	return &Bulletin{Date: date, Text: text, Source: "http", Location: u}, nil
}

// Dates lists the dates with a known announcement id.
func (f *HTTPFetcher) Dates(ctx context.Context) ([]domain.Date, error) {
	return f.index.Dates(ctx)
}

func (f *HTTPFetcher) announcementURL(id string) (string, error) {
	base, err := url.Parse(f.baseURL)
	if err != nil {
		return "", apperrors.NewConfigError("invalid bulletin base URL", err)
	}
	q := base.Query()
	q.Set("prid", id)
	base.RawQuery = q.Encode()
	return base.String(), nil
}
