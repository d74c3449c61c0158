// Package remote wraps remote operations with cache-keyed memoization over
// the fetch pipeline.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/artie-scraper/artie/pkg/cache"
	"github.com/artie-scraper/artie/pkg/client"
)

// Endpoint builds the request URL for a named operation and its arguments.
// The concrete URL and parameter scheme belong to the service adapter.
type Endpoint func(op string, args map[string]string) (string, error)

// Config holds the accessor configuration.
type Config struct {
	// Store backs memoization and the per-caller quota markers. Required.
	Store *cache.Store

	// Fetcher performs network retrievals on cache miss. Required.
	Fetcher *client.Fetcher

	// Endpoint builds operation URLs. Required.
	Endpoint Endpoint

	// Caller identifies the account making requests; quota suppression is
	// keyed by it.
	Caller string

	// TTLs overrides the remote-response region default per operation
	// name. Operations without an override use the region default.
	TTLs map[string]time.Duration

	Logger zerolog.Logger
}

// Accessor memoizes structured remote operations in the remote-response
// region. Misses fall through to the fetch pipeline; results are cached
// with an operation-appropriate TTL.
//
// Concurrent misses on the same key may each fetch and each write; the
// cache is last-write-wins, not single-flight. That keeps cancellation and
// failure handling trivial at the cost of occasional duplicate fetches.
type Accessor struct {
	store    *cache.Store
	fetcher  *client.Fetcher
	endpoint Endpoint
	caller   string
	ttls     map[string]time.Duration
	logger   zerolog.Logger
}

// NewAccessor creates a cached remote accessor.
func NewAccessor(cfg Config) *Accessor {
	if cfg.Store == nil || cfg.Fetcher == nil || cfg.Endpoint == nil {
		panic("accessor requires store, fetcher, and endpoint")
	}
	return &Accessor{
		store:    cfg.Store,
		fetcher:  cfg.Fetcher,
		endpoint: cfg.Endpoint,
		caller:   cfg.Caller,
		ttls:     cfg.TTLs,
		logger:   cfg.Logger,
	}
}

// quotaMarkerKey is the per-caller suppression marker key.
func (a *Accessor) quotaMarkerKey() string {
	return client.QuotaMarkerPrefix + a.caller
}

// Call performs the named operation, returning the cached document when the
// derived key is unexpired and fetching otherwise. At most one network
// fetch happens per unique (operation, arguments) pair per TTL window,
// except under concurrent misses (see type doc).
func (a *Accessor) Call(ctx context.Context, op string, args map[string]string) (*client.Document, error) {
	key := cache.DeriveKey(op, args)

	if cached, err := a.store.Get(cache.RegionRemote, key); err == nil {
		if doc, ok := a.decodeCached(cached); ok {
			a.logger.Debug().Str("operation", op).Msg("Serving cached response")
			return doc, nil
		}
		// A cached value that no longer decodes is dropped and refetched.
		a.store.Invalidate(cache.RegionRemote, key)
	}

	// The quota marker guards only the miss path: warm entries keep
	// being served while the window is open, since answering them costs
	// no network activity.
	if _, err := a.store.Get(cache.RegionSuppress, a.quotaMarkerKey()); err == nil {
		a.logger.Warn().
			Str("operation", op).
			Str("caller", a.caller).
			Msg("Skipping fetch, quota marker is open")
		return nil, &client.Error{
			Kind:    client.KindQuotaExceeded,
			Message: "quota recently exceeded, suppressing further calls",
		}
	}

	url, err := a.endpoint(op, args)
	if err != nil {
		return nil, &client.Error{
			Kind:    client.KindBadRequest,
			Message: fmt.Sprintf("building %s url", op),
			Err:     err,
		}
	}

	body, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		a.noteQuota(op, err)
		return nil, err
	}

	doc, err := client.ParseDocument(body)
	if err != nil {
		a.noteQuota(op, err)
		return nil, err
	}

	if err := a.store.Set(cache.RegionRemote, key, doc, a.ttlFor(op)); err != nil {
		a.logger.Warn().Err(err).Str("operation", op).Msg("Failed to cache response")
	}
	return doc, nil
}

// CallRaw fetches url through the pipeline without caching. Used for media
// payloads, which are written straight to their destination files rather
// than held in the response cache.
func (a *Accessor) CallRaw(ctx context.Context, url string) ([]byte, error) {
	if _, err := a.store.Get(cache.RegionSuppress, a.quotaMarkerKey()); err == nil {
		return nil, &client.Error{
			Kind:    client.KindQuotaExceeded,
			Message: "quota recently exceeded, suppressing further calls",
		}
	}

	body, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		a.noteQuota("media", err)
		return nil, err
	}
	return body, nil
}

// noteQuota writes the per-caller quota marker when a call failed on quota,
// so subsequent calls from this caller fail fast even for different
// arguments.
func (a *Accessor) noteQuota(op string, err error) {
	if client.KindOf(err) != client.KindQuotaExceeded {
		return
	}
	markerErr := a.store.Set(cache.RegionSuppress, a.quotaMarkerKey(), true, client.QuotaMarkerTTL)
	if markerErr != nil {
		a.logger.Error().Err(markerErr).Msg("Failed to write quota suppression marker")
		return
	}
	a.logger.Error().
		Str("operation", op).
		Str("caller", a.caller).
		Dur("suppress_for", client.QuotaMarkerTTL).
		Msg("Quota exceeded, opening per-caller suppression marker")
}

// ClearQuotaMarker closes this caller's quota marker early. Returns true
// iff a marker was open.
func (a *Accessor) ClearQuotaMarker() bool {
	return a.store.Invalidate(cache.RegionSuppress, a.quotaMarkerKey())
}

// ttlFor returns the operation's cache TTL, or zero to use the region
// default.
func (a *Accessor) ttlFor(op string) time.Duration {
	return a.ttls[op]
}

// decodeCached normalizes a cached value back into a document. Values
// reloaded from disk come back as raw JSON and are re-decoded on first use.
func (a *Accessor) decodeCached(v any) (*client.Document, bool) {
	switch val := v.(type) {
	case *client.Document:
		return val, true
	case json.RawMessage:
		var doc client.Document
		if err := json.Unmarshal(val, &doc); err != nil {
			return nil, false
		}
		return &doc, true
	default:
		return nil, false
	}
}
