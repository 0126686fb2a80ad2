// Package ingest turns raw inputs (literal text, files, URLs, fragment
// streams) into the items the detection engine analyzes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"argus/core"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Fetch limit defaults. Remote scripts are expected to be small; anything
// past the body cap is a misconfigured target, not a script.
const (
	DefaultFetchTimeout  = 30 * time.Second
	DefaultRatePerSecond = 5
	DefaultMaxBodyBytes  = 10 * 1024 * 1024
)

var (
	// ErrBodyTooLarge is returned when a fetched body exceeds the configured cap.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrEmptyBody is returned when a source yields no content at all.
	ErrEmptyBody = errors.New("source yielded no content")
)

// FetcherConfig holds configuration for a Fetcher.
type FetcherConfig struct {
	Timeout       time.Duration
	RatePerSecond int
	MaxBodyBytes  int64
	Logger        *zap.SugaredLogger
}

// Fetcher acquires script content from remote URLs with a client-side rate
// limit so batch scans do not hammer a single host.
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxBytes int64
	logger   *zap.SugaredLogger
}

// NewFetcher creates a Fetcher. A nil config uses the defaults.
func NewFetcher(cfg *FetcherConfig) *Fetcher {
	if cfg == nil {
		cfg = &FetcherConfig{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	return &Fetcher{
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond),
		maxBytes: cfg.MaxBodyBytes,
		logger:   cfg.Logger,
	}
}

// FetchURL downloads the content at url and returns it as an input item whose
// source is the URL itself.
func (f *Fetcher) FetchURL(ctx context.Context, url string) (core.InputItem, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return core.InputItem{}, fmt.Errorf("rate limit wait aborted: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return core.InputItem{}, fmt.Errorf("invalid url %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return core.InputItem{}, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.InputItem{}, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	// Read one byte past the cap so an exactly-at-limit body still passes.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return core.InputItem{}, fmt.Errorf("failed to read body from %s: %w", url, err)
	}
	if int64(len(body)) > f.maxBytes {
		return core.InputItem{}, fmt.Errorf("%w: %s", ErrBodyTooLarge, url)
	}
	if len(body) == 0 {
		return core.InputItem{}, fmt.Errorf("%w: %s", ErrEmptyBody, url)
	}

	f.logger.Debugw("Fetched remote script", "url", url, "bytes", len(body))
	return core.InputItem{Source: url, Content: string(body)}, nil
}

// ItemFromText wraps literal script text as an input item.
func ItemFromText(source, text string) core.InputItem {
	return core.InputItem{Source: source, Content: text}
}

// ItemFromFile reads a local file as an input item whose source is the path.
func ItemFromFile(path string) (core.InputItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.InputItem{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return core.InputItem{}, fmt.Errorf("%w: %s", ErrEmptyBody, path)
	}
	return core.InputItem{Source: path, Content: string(data)}, nil
}

// IsURL reports whether target names a remote source rather than a file path.
func IsURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}
