// Package cache defines the disk-backed store that keeps fetched danmaku XML
// documents as StoragePath/<key>.xml files. The directory listing is the only
// catalog and the file modification time is the only freshness signal. Writes
// go through a temp file + rename so concurrent lookups see either the old or
// the new document. Policy decides validity (age < TTL), expiry (age > TTL)
// and when the soft entry-count threshold asks for an eviction sweep.
package cache
