// Package cache provides the response cache used by the proxy pipeline.
//
// The cache is split in two layers. A Backend stores opaque byte values
// under string keys with a per-entry time-to-live and a maximum entry
// count. Three backends are provided:
//
//   - MemoryBackend: an in-process map with FIFO ordering, for transient traffic
//   - SQLiteBackend: a durable single-file store (modernc or mattn driver)
//   - RedisBackend: a networked store shared between proxy instances
//
// A Store sits on top of a Backend and deals in response snapshots. It only
// stores successful (2xx) responses and encodes them with CBOR, optionally
// compressed with zstd.
//
// # Eviction
//
// Every backend bounds its size by evicting the oldest-stored entries first.
// This is a FIFO bound, not LRU: reads never change an entry's position.
// Overwriting a key counts as a fresh store and moves it to the back.
//
// # Expiry
//
// An entry is valid while now < storedAt + ttl. Expired entries are treated
// as absent on read and removed opportunistically; Sweep removes the rest
// and the Janitor runs Sweep on a cron schedule.
//
// # Keys
//
// Keys are the verbatim method and absolute target URL. Query parameters are
// not reordered, so requests that differ only in parameter order are cached
// separately.
package cache
