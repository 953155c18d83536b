package models

import "time"

// CacheEntry describes one stored response without its payload.
type CacheEntry struct {
	QueryHash string    `json:"query_hash"`
	Query     string    `json:"query"`
	Size      int64     `json:"size"`
	Hits      int64     `json:"hits"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
