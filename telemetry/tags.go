// Package telemetry provides invocation tagging for structured logging and metrics.
package telemetry

import (
	"context"
)

type contextKey string

const (
	// invocationTagsKey is the context key for the invocation tags holder.
	invocationTagsKey contextKey = "invocation_tags"
	// targetKey is the context key naming the upstream target of outbound calls.
	targetKey contextKey = "upstream_target"
)

// CacheResult represents the outcome of a cache lookup.
type CacheResult string

const (
	CacheHit   CacheResult = "hit"
	CacheMiss  CacheResult = "miss"
	CacheStale CacheResult = "stale"
	CacheNA    CacheResult = "na"
)

// InvocationTags holds mutable invocation metadata that handlers set for logging.
type InvocationTags struct {
	RequestType string
	Intent      string
	CacheResult CacheResult
}

// InjectTags returns a context carrying an empty InvocationTags.
// Call this once per invocation before routing.
func InjectTags(ctx context.Context) context.Context {
	tags := &InvocationTags{CacheResult: CacheNA}
	return context.WithValue(ctx, invocationTagsKey, tags)
}

// GetTags retrieves the invocation tags from context.
// Returns nil when InjectTags was not called.
func GetTags(ctx context.Context) *InvocationTags {
	if tags, ok := ctx.Value(invocationTagsKey).(*InvocationTags); ok {
		return tags
	}
	return nil
}

// SetRequestType sets the request type tag.
func SetRequestType(ctx context.Context, requestType string) {
	if tags := GetTags(ctx); tags != nil {
		tags.RequestType = requestType
	}
}

// SetIntent sets the intent name tag.
func SetIntent(ctx context.Context, intent string) {
	if tags := GetTags(ctx); tags != nil {
		tags.Intent = intent
	}
}

// SetCacheResult sets the cache result tag.
func SetCacheResult(ctx context.Context, result CacheResult) {
	if tags := GetTags(ctx); tags != nil {
		tags.CacheResult = result
	}
}

// TargetFromContext returns the upstream target stored by WithTarget.
func TargetFromContext(ctx context.Context) string {
	if t, ok := ctx.Value(targetKey).(string); ok {
		return t
	}
	return ""
}

// WithTarget labels outbound requests made with ctx, overriding the
// transport's default target (e.g. "token" vs "posts").
func WithTarget(ctx context.Context, target string) context.Context {
	return context.WithValue(ctx, targetKey, target)
}
