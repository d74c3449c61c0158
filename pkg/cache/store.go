package cache

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Region names used by the scraper.
const (
	// RegionTransient holds short-lived process state.
	RegionTransient = "transient"

	// RegionRemote holds parsed remote API responses. This is the only
	// region persisted across runs.
	RegionRemote = "remote-response"

	// RegionFileProbe holds file-system probe results.
	RegionFileProbe = "file-probe"

	// RegionSuppress holds request suppression markers. The mere presence
	// of a key in this region blocks a class of requests.
	RegionSuppress = "suppress"
)

// Default TTLs per region.
const (
	DefaultTransientTTL = 24 * time.Hour
	DefaultRemoteTTL    = 1 * time.Hour
	DefaultFileProbeTTL = 5 * time.Minute
	DefaultSuppressTTL  = 5 * time.Minute
)

var (
	// ErrCacheMiss indicates the requested key was not found or expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrUnknownRegion indicates the named region was not configured.
	ErrUnknownRegion = errors.New("unknown cache region")
)

// RegionConfig configures one cache region.
type RegionConfig struct {
	// MaxEntries caps the region size. Exceeding it on Set evicts the
	// oldest-inserted entries until the cap holds again.
	MaxEntries int

	// DefaultTTL applies when Set is called with a zero TTL.
	DefaultTTL time.Duration
}

// DefaultRegions returns the scraper's standard region layout.
func DefaultRegions() map[string]RegionConfig {
	return map[string]RegionConfig{
		RegionTransient: {MaxEntries: 1000, DefaultTTL: DefaultTransientTTL},
		RegionRemote:    {MaxEntries: 500, DefaultTTL: DefaultRemoteTTL},
		RegionFileProbe: {MaxEntries: 200, DefaultTTL: DefaultFileProbeTTL},
		RegionSuppress:  {MaxEntries: 100, DefaultTTL: DefaultSuppressTTL},
	}
}

// region is one named partition of the store.
type region struct {
	mu      sync.Mutex
	entries map[string]*Entry
	config  RegionConfig
}

// Store is a region-partitioned TTL cache. All mutating operations on a
// single region are atomic with respect to each other; there is no
// cross-region transactionality.
type Store struct {
	regions map[string]*region
	dir     string
	logger  zerolog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	errors    atomic.Int64

	// now is swappable for tests.
	now func() time.Time
}

// NewStore creates a store with the given region layout. The cache directory
// is only used by SaveToDisk/LoadFromDisk and may be empty when persistence
// is not wanted.
func NewStore(regions map[string]RegionConfig, opts ...StoreOption) *Store {
	if len(regions) == 0 {
		panic("cache store requires at least one region")
	}

	s := &Store{
		regions: make(map[string]*region, len(regions)),
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for name, cfg := range regions {
		if cfg.MaxEntries <= 0 {
			panic(fmt.Sprintf("region %q: MaxEntries must be positive", name))
		}
		s.regions[name] = &region{
			entries: make(map[string]*Entry),
			config:  cfg,
		}
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCacheDir sets the directory used for region persistence.
func WithCacheDir(dir string) StoreOption {
	return func(s *Store) { s.dir = dir }
}

// WithLogger sets the store's logger.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// withNow overrides the store clock. Tests only.
func withNow(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// Get retrieves the value for key in the named region.
// An entry found expired is removed and counted as a miss, not a hit.
// Reads do not refresh entry positions and repeated reads of an unexpired
// key return the identical value.
func (s *Store) Get(regionName, key string) (any, error) {
	r, ok := s.regions[regionName]
	if !ok {
		s.errors.Add(1)
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegion, regionName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		s.misses.Add(1)
		cacheMisses.WithLabelValues(regionName).Inc()
		return nil, ErrCacheMiss
	}

	if entry.IsExpiredAt(s.now()) {
		delete(r.entries, key)
		s.misses.Add(1)
		s.evictions.Add(1)
		cacheMisses.WithLabelValues(regionName).Inc()
		cacheEvictions.WithLabelValues(regionName, "expired").Inc()
		return nil, ErrCacheMiss
	}

	s.hits.Add(1)
	cacheHits.WithLabelValues(regionName).Inc()
	return entry.Value, nil
}

// Set stores value under key in the named region. A zero ttl uses the
// region's default. After insertion the region is purged of expired entries
// and, if still over its cap, trimmed oldest-inserted first.
func (s *Store) Set(regionName, key string, value any, ttl time.Duration) error {
	r, ok := s.regions[regionName]
	if !ok {
		s.errors.Add(1)
		return fmt.Errorf("%w: %s", ErrUnknownRegion, regionName)
	}

	if ttl <= 0 {
		ttl = r.config.DefaultTTL
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := s.now()
	r.entries[key] = &Entry{
		Value:     value,
		Key:       key,
		CreatedAt: now,
		TTL:       ttl,
	}

	s.purgeExpiredLocked(regionName, r, now)
	s.enforceCapLocked(regionName, r)
	cacheEntries.WithLabelValues(regionName).Set(float64(len(r.entries)))
	return nil
}

// purgeExpiredLocked removes all expired entries. Caller holds r.mu.
func (s *Store) purgeExpiredLocked(regionName string, r *region, now time.Time) {
	removed := 0
	for key, entry := range r.entries {
		if entry.IsExpiredAt(now) {
			delete(r.entries, key)
			removed++
		}
	}
	if removed > 0 {
		s.evictions.Add(int64(removed))
		cacheEvictions.WithLabelValues(regionName, "expired").Add(float64(removed))
		s.logger.Debug().
			Str("region", regionName).
			Int("removed", removed).
			Msg("Purged expired cache entries")
	}
}

// enforceCapLocked evicts oldest-inserted entries until the region cap
// holds. Caller holds r.mu.
func (s *Store) enforceCapLocked(regionName string, r *region) {
	excess := len(r.entries) - r.config.MaxEntries
	if excess <= 0 {
		return
	}

	oldest := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		oldest = append(oldest, entry)
	}
	sort.Slice(oldest, func(i, j int) bool {
		return oldest[i].CreatedAt.Before(oldest[j].CreatedAt)
	})

	for _, entry := range oldest[:excess] {
		delete(r.entries, entry.Key)
	}
	s.evictions.Add(int64(excess))
	cacheEvictions.WithLabelValues(regionName, "capacity").Add(float64(excess))
	s.logger.Debug().
		Str("region", regionName).
		Int("evicted", excess).
		Msg("Evicted entries to enforce region cap")
}

// Invalidate removes key from the named region. It returns true iff an
// entry existed and was removed.
func (s *Store) Invalidate(regionName, key string) bool {
	r, ok := s.regions[regionName]
	if !ok {
		s.errors.Add(1)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; !ok {
		return false
	}
	delete(r.entries, key)
	cacheEntries.WithLabelValues(regionName).Set(float64(len(r.entries)))
	return true
}

// Clear empties the named region, or every region when regionName is empty.
func (s *Store) Clear(regionName string) error {
	if regionName == "" {
		for name, r := range s.regions {
			r.mu.Lock()
			r.entries = make(map[string]*Entry)
			r.mu.Unlock()
			cacheEntries.WithLabelValues(name).Set(0)
		}
		s.logger.Info().Msg("Cleared all cache regions")
		return nil
	}

	r, ok := s.regions[regionName]
	if !ok {
		s.errors.Add(1)
		return fmt.Errorf("%w: %s", ErrUnknownRegion, regionName)
	}
	r.mu.Lock()
	r.entries = make(map[string]*Entry)
	r.mu.Unlock()
	cacheEntries.WithLabelValues(regionName).Set(0)
	s.logger.Info().Str("region", regionName).Msg("Cleared cache region")
	return nil
}

// Len returns the current entry count of the named region.
func (s *Store) Len(regionName string) int {
	r, ok := s.regions[regionName]
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stats is a point-in-time snapshot of the store's monotonic counters.
// Counter values are for observability only.
type Stats struct {
	Hits           int64          `json:"hits"`
	Misses         int64          `json:"misses"`
	Evictions      int64          `json:"evictions"`
	Errors         int64          `json:"errors"`
	TotalRequests  int64          `json:"total_requests"`
	HitRatePercent float64        `json:"hit_rate_percent"`
	SizePerRegion  map[string]int `json:"size_per_region"`
}

// Stats returns a snapshot of the store counters and region sizes.
func (s *Store) Stats() Stats {
	st := Stats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Evictions:     s.evictions.Load(),
		Errors:        s.errors.Load(),
		SizePerRegion: make(map[string]int, len(s.regions)),
	}
	st.TotalRequests = st.Hits + st.Misses
	if st.TotalRequests > 0 {
		st.HitRatePercent = float64(st.Hits) / float64(st.TotalRequests) * 100
	}
	for name := range s.regions {
		st.SizePerRegion[name] = s.Len(name)
	}
	return st
}
