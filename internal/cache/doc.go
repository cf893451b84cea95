// Package cache provides in-memory LRU caches for immutable blocks.
//
// [LRUBlockCache] is a single byte-bounded LRU. [ShardedLRUBlockCache] splits
// the capacity over independent shards, selected by hashing the key, for
// read paths with many concurrent callers. Both optionally charge cached bytes
// against a resource.Controller memory budget.
//
// Keys carry the blob path and the store generation, so caches can be shared by
// readers of different generations of the same location.
package cache
