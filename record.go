// Package catso holds the shared types of the photo skill backend: the cached
// image record and the error kinds surfaced by its components.
package catso

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultStaleAfter is the default maximum age of a cache record.
const DefaultStaleAfter = time.Hour

// ImagePair is a small/large pair of re-hosted image URLs.
// Large is never empty; when no large variant exists it repeats Small.
type ImagePair struct {
	Small string `json:"small"`
	Large string `json:"large"`
}

// CacheRecord is the single JSON object persisted by the cache manager.
type CacheRecord struct {
	// Timestamp is the write time in epoch milliseconds.
	Timestamp int64       `json:"timestamp"`
	Category  string      `json:"category,omitempty"`
	Images    []ImagePair `json:"images"`
}

// NewCacheRecord creates a record stamped with now.
func NewCacheRecord(now time.Time, category string, images []ImagePair) *CacheRecord {
	return &CacheRecord{
		Timestamp: now.UnixMilli(),
		Category:  category,
		Images:    images,
	}
}

// WrittenAt returns the record timestamp as a time.
func (r *CacheRecord) WrittenAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Age returns how long ago the record was written, relative to now.
func (r *CacheRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.WrittenAt())
}

// Stale reports whether the record is older than staleAfter.
// A record exactly staleAfter old is still fresh.
func (r *CacheRecord) Stale(now time.Time, staleAfter time.Duration) bool {
	return r.Age(now) > staleAfter
}

// MarshalRecord encodes a record as JSON.
func MarshalRecord(r *CacheRecord) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding cache record: %w", err)
	}
	return data, nil
}

// UnmarshalRecord decodes a record and validates its shape.
func UnmarshalRecord(data []byte) (*CacheRecord, error) {
	var r CacheRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding cache record: %w", err)
	}
	if r.Timestamp <= 0 {
		return nil, fmt.Errorf("cache record has no timestamp")
	}
	if len(r.Images) == 0 {
		return nil, fmt.Errorf("cache record has no images")
	}
	for i, img := range r.Images {
		if img.Small == "" || img.Large == "" {
			return nil, fmt.Errorf("cache record image %d is incomplete", i)
		}
	}
	return &r, nil
}
