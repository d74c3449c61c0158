package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// persistedEntry is the on-disk form of an Entry. Values are kept as raw
// JSON so a reloaded region can hold payloads whose concrete Go type is
// unknown at load time; consumers re-decode on first use.
type persistedEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	TTL       time.Duration   `json:"ttl"`
}

// regionFile returns the persistence path for a region.
func (s *Store) regionFile(regionName string) string {
	return filepath.Join(s.dir, regionName+"_cache.json")
}

// SaveToDisk serializes the named region's non-expired entries to the cache
// directory. Entries whose values cannot be marshaled are skipped.
func (s *Store) SaveToDisk(regionName string) error {
	r, ok := s.regions[regionName]
	if !ok {
		s.errors.Add(1)
		return fmt.Errorf("%w: %s", ErrUnknownRegion, regionName)
	}
	if s.dir == "" {
		return fmt.Errorf("cache store has no cache directory configured")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.errors.Add(1)
		cachePersistErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("create cache directory: %w", err)
	}

	now := s.now()

	r.mu.Lock()
	valid := make([]persistedEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.IsExpiredAt(now) {
			continue
		}
		raw, err := json.Marshal(entry.Value)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("region", regionName).
				Str("key", entry.Key).
				Msg("Skipping unmarshalable cache entry on save")
			continue
		}
		valid = append(valid, persistedEntry{
			Key:       entry.Key,
			Value:     raw,
			CreatedAt: entry.CreatedAt,
			TTL:       entry.TTL,
		})
	}
	r.mu.Unlock()

	data, err := json.Marshal(valid)
	if err != nil {
		s.errors.Add(1)
		cachePersistErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal %s cache: %w", regionName, err)
	}

	if err := os.WriteFile(s.regionFile(regionName), data, 0o644); err != nil {
		s.errors.Add(1)
		cachePersistErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("write %s cache: %w", regionName, err)
	}

	s.logger.Info().
		Str("region", regionName).
		Int("entries", len(valid)).
		Msg("Saved cache region to disk")
	return nil
}

// LoadFromDisk restores the named region from the cache directory. Entries
// found expired at load time are dropped silently. A missing cache file is
// not an error.
func (s *Store) LoadFromDisk(regionName string) error {
	r, ok := s.regions[regionName]
	if !ok {
		s.errors.Add(1)
		return fmt.Errorf("%w: %s", ErrUnknownRegion, regionName)
	}
	if s.dir == "" {
		return fmt.Errorf("cache store has no cache directory configured")
	}

	data, err := os.ReadFile(s.regionFile(regionName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		s.errors.Add(1)
		cachePersistErrors.WithLabelValues("load").Inc()
		return fmt.Errorf("read %s cache: %w", regionName, err)
	}

	var persisted []persistedEntry
	if err := json.Unmarshal(data, &persisted); err != nil {
		s.errors.Add(1)
		cachePersistErrors.WithLabelValues("load").Inc()
		return fmt.Errorf("parse %s cache: %w", regionName, err)
	}

	now := s.now()
	loaded := 0

	r.mu.Lock()
	for _, p := range persisted {
		entry := &Entry{
			Value:     p.Value,
			Key:       p.Key,
			CreatedAt: p.CreatedAt,
			TTL:       p.TTL,
		}
		if entry.IsExpiredAt(now) {
			continue
		}
		r.entries[p.Key] = entry
		loaded++
	}
	s.enforceCapLocked(regionName, r)
	cacheEntries.WithLabelValues(regionName).Set(float64(len(r.entries)))
	r.mu.Unlock()

	s.logger.Info().
		Str("region", regionName).
		Int("entries", loaded).
		Msg("Loaded cache region from disk")
	return nil
}
