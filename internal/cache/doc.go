// Package cache provides the fixed-capacity LRU used for resident raster
// blocks.
//
// Unlike a byte-budgeted cache, capacity is counted in entries: a managed
// raster holds at most N block buffers regardless of block size. Eviction is
// strict LRU over both reads and writes, and evicted entries are handed back
// to the caller rather than dropped, because a dirty block must be written
// back to storage before its buffer is released.
package cache
