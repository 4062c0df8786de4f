// Package backend provides object storage abstractions for the cache record
// and the re-hosted images.
package backend

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the backend.
var ErrNotFound = errors.New("not found")

// Backend defines the interface for object storage backends.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Write stores data at the given key, overwriting any existing object.
	Write(ctx context.Context, key string, r io.Reader, opts ...WriteOption) error

	// Read retrieves data at the given key.
	// Returns ErrNotFound if the key does not exist.
	// The caller must close the returned ReadCloser.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes data at the given key.
	// Returns nil if the key does not exist (idempotent).
	Delete(ctx context.Context, key string) error

	// URL returns the public URL an object at key is reachable at.
	URL(key string) string
}

// WriteOptions holds per-object write settings.
type WriteOptions struct {
	ContentType string
	PublicRead  bool
}

// WriteOption configures a single Write call.
type WriteOption func(*WriteOptions)

// WithContentType sets the stored content type.
func WithContentType(contentType string) WriteOption {
	return func(o *WriteOptions) {
		o.ContentType = contentType
	}
}

// WithPublicRead marks the object as readable by anyone.
// Backends without access control ignore it.
func WithPublicRead() WriteOption {
	return func(o *WriteOptions) {
		o.PublicRead = true
	}
}

// ApplyWriteOptions folds opts into a WriteOptions value.
func ApplyWriteOptions(opts ...WriteOption) WriteOptions {
	var o WriteOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// joinURL appends an object key to a base URL, escaping each path segment.
func joinURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(segments, "/")
}

// KeyForURL reverses b.URL, returning the key a public URL was built from.
// It reports false when u is not under the backend's base URL.
func KeyForURL(b Backend, u string) (string, bool) {
	rest, ok := strings.CutPrefix(u, b.URL(""))
	if !ok || rest == "" {
		return "", false
	}
	segments := strings.Split(rest, "/")
	for i, s := range segments {
		unescaped, err := url.PathUnescape(s)
		if err != nil {
			return "", false
		}
		segments[i] = unescaped
	}
	return strings.Join(segments, "/"), true
}
