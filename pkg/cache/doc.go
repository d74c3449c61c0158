// Package cache provides the in-process TTL cache backing the scraping core.
//
// The store is partitioned into named regions, each with its own default TTL
// and maximum entry count. Expiry and size enforcement happen synchronously
// inside Set; there is no background sweeper.
//
// # Regions
//
// The scraper uses four regions:
//
//   - transient: short-lived process state (24h default TTL, 1000 entries)
//   - remote-response: parsed API responses, persisted across runs (1h, 500)
//   - file-probe: file-system probe results (5m, 200)
//   - suppress: request suppression markers whose presence, not value,
//     blocks a class of requests until the marker expires (5m, 100)
//
// # Basic Usage
//
//	store := cache.NewStore(cache.DefaultRegions())
//
//	store.Set(cache.RegionRemote, key, doc, 0) // 0 = region default TTL
//	val, err := store.Get(cache.RegionRemote, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from the network
//	}
//
// # Eviction
//
// Regions evict by insertion recency only: when a Set pushes a region over
// its cap, the entries with the oldest CreatedAt are removed first. Reads
// never refresh an entry's position.
//
// # Persistence
//
// SaveToDisk and LoadFromDisk serialize a single region to a JSON file under
// the store's cache directory. Only non-expired entries are written, and
// entries found expired at load time are dropped silently. The scraper uses
// this for the remote-response region to warm the cache across runs.
package cache
