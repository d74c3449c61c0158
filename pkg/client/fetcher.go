// Package client implements the resilient fetch pipeline: classified
// failures, retry with bounded exponential backoff, and request suppression
// backed by the cache store.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/artie-scraper/artie/pkg/cache"
)

// Suppression marker layout in the cache store's suppress region. A marker's
// presence, not its value, blocks the corresponding request class until the
// marker's TTL lapses; there is no half-open probe.
const (
	// ForbiddenMarkerKey is the global marker written after an
	// access-forbidden response.
	ForbiddenMarkerKey = "forbidden"

	// ForbiddenMarkerTTL is how long the global forbidden marker stays open.
	ForbiddenMarkerTTL = 300 * time.Second

	// QuotaMarkerPrefix prefixes per-caller quota markers
	// (key: quota:<caller>).
	QuotaMarkerPrefix = "quota:"

	// QuotaMarkerTTL is how long a per-caller quota marker stays open.
	QuotaMarkerTTL = 600 * time.Second
)

// Defaults for the fetch pipeline.
const (
	DefaultMaxRetries = 3
	DefaultTimeout    = 30 * time.Second
	DefaultUserAgent  = "artie-scraper/2.0"

	// maxErrorBodySnippet bounds how much of an error response body is
	// carried into error messages.
	maxErrorBodySnippet = 200
)

// StatusClassifier maps an HTTP status code to a taxonomy kind. The concrete
// numeric codes are a protocol detail owned by the service adapter, not by
// this package.
type StatusClassifier func(statusCode int) ErrorKind

// DefaultClassifier covers the generic HTTP status classes. Service adapters
// supply their own table where the upstream deviates.
func DefaultClassifier(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusBadRequest:
		return KindBadRequest
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return KindAccessForbidden
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode == http.StatusTooManyRequests:
		return KindQuotaExceeded
	case statusCode >= 500:
		return KindServiceUnavailable
	default:
		return KindUnknown
	}
}

// Config holds the fetch pipeline configuration.
type Config struct {
	// Store backs the suppression markers. Required.
	Store *cache.Store

	// Classify maps status codes to taxonomy kinds. Defaults to
	// DefaultClassifier.
	Classify StatusClassifier

	// MaxRetries is the number of extra attempts after the first.
	MaxRetries int

	// Timeout bounds each individual network attempt.
	Timeout time.Duration

	// UserAgent identifies the scraper to the upstream service.
	UserAgent string

	Logger zerolog.Logger
}

// Fetcher performs retrying, suppression-aware network retrievals. All
// failures surface as *Error carrying exactly one taxonomy kind.
type Fetcher struct {
	httpClient *http.Client
	store      *cache.Store
	classify   StatusClassifier
	maxRetries int
	timeout    time.Duration
	userAgent  string
	logger     zerolog.Logger
	sleep      sleepFunc
}

// NewFetcher creates a fetch pipeline with a pooled HTTP client.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.Store == nil {
		panic("fetcher requires a cache store")
	}
	if cfg.Classify == nil {
		cfg.Classify = DefaultClassifier
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Fetcher{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		store:      cfg.Store,
		classify:   cfg.Classify,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
		userAgent:  cfg.UserAgent,
		logger:     cfg.Logger,
		sleep:      sleepWithContext,
	}
}

// SetHTTPClient replaces the underlying HTTP client (for testing).
func (f *Fetcher) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}

// setSleep replaces the backoff sleep. Tests only.
func (f *Fetcher) setSleep(sleep sleepFunc) {
	f.sleep = sleep
}

// MaxRetries returns the configured retry budget.
func (f *Fetcher) MaxRetries() int {
	return f.maxRetries
}

// Fetch retrieves url and returns the raw payload bytes, or a *Error with
// exactly one taxonomy kind. The global forbidden suppression marker is
// checked before any network I/O; while it is open no transport call is
// issued. Network and service-unavailable failures retry with exponential
// backoff (min(2^attempt, 10) seconds) up to the configured budget.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	// Circuit breaker: read and short-circuit before any I/O.
	if _, err := f.store.Get(cache.RegionSuppress, ForbiddenMarkerKey); err == nil {
		suppressedTotal.WithLabelValues(ForbiddenMarkerKey).Inc()
		requestsTotal.WithLabelValues("suppressed").Inc()
		f.logger.Warn().Str("url", url).Msg("Skipping request, forbidden marker is open")
		return nil, newError(KindAccessForbidden, 0,
			"recent access-forbidden response, suppressing further requests")
	}

	var payload []byte
	err := retryLoop(ctx, f.maxRetries, f.sleep, f.logger, func() error {
		body, err := f.attempt(ctx, url)
		if err != nil {
			return err
		}
		payload = body
		return nil
	})
	if err != nil {
		kind := KindOf(err)
		errorsTotal.WithLabelValues(string(kind)).Inc()
		requestsTotal.WithLabelValues(string(kind)).Inc()
		return nil, err
	}

	requestsTotal.WithLabelValues("success").Inc()
	return payload, nil
}

// attempt performs one network call and classifies its outcome.
func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, wrapError(KindBadRequest, "building request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, wrapError(KindNetwork, fmt.Sprintf("request to %s failed", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, f.classifyStatus(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError(KindNetwork, "reading response body", err)
	}
	if len(body) == 0 {
		return nil, newError(KindMalformed, resp.StatusCode, "empty response body")
	}
	return body, nil
}

// classifyStatus maps an error response to a taxonomy kind and applies the
// forbidden side effect.
func (f *Fetcher) classifyStatus(resp *http.Response) *Error {
	kind := f.classify(resp.StatusCode)

	snippet := ""
	if body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySnippet)); err == nil && len(body) > 0 {
		snippet = string(body)
	}

	message := resp.Status
	if snippet != "" {
		message = fmt.Sprintf("%s: %s", resp.Status, snippet)
	}

	if kind == KindAccessForbidden {
		// Open the breaker. Subsequent fetches fail fast until the
		// marker's TTL lapses.
		if err := f.store.Set(cache.RegionSuppress, ForbiddenMarkerKey, true, ForbiddenMarkerTTL); err != nil {
			f.logger.Error().Err(err).Msg("Failed to write forbidden suppression marker")
		}
		f.logger.Error().
			Int("status", resp.StatusCode).
			Dur("suppress_for", ForbiddenMarkerTTL).
			Msg("Access forbidden, opening suppression marker")
	} else {
		f.logger.Warn().
			Int("status", resp.StatusCode).
			Str("kind", string(kind)).
			Msg("Request error")
	}

	return newError(kind, resp.StatusCode, message)
}

// ClearForbiddenMarker closes the global forbidden breaker early. Returns
// true iff a marker was open.
func (f *Fetcher) ClearForbiddenMarker() bool {
	return f.store.Invalidate(cache.RegionSuppress, ForbiddenMarkerKey)
}
