// Package cache keeps the single JSON record of re-hosted image pairs and
// rebuilds it from the upstream when it is missing or stale.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/wolfeidau/catso"
	"github.com/wolfeidau/catso/backend"
	"github.com/wolfeidau/catso/reddit"
	"github.com/wolfeidau/catso/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultKey is the object key of the cache record.
	DefaultKey = "cache.json"

	// DefaultPostCount is how many top posts a refresh turns into images.
	DefaultPostCount = 3

	// DefaultCategory is the upstream category images come from.
	DefaultCategory = "cats"
)

// Result reports how GetImages was served.
type Result = telemetry.CacheResult

const (
	Hit   = telemetry.CacheHit
	Miss  = telemetry.CacheMiss
	Stale = telemetry.CacheStale
)

// Fetcher returns the top posts of a category.
type Fetcher interface {
	FetchTopPosts(ctx context.Context, category string, count int) ([]reddit.Post, error)
}

// Rehoster copies an image into owned storage and returns its public URL.
type Rehoster interface {
	Rehost(ctx context.Context, sourceURL string) (string, error)
}

// Config holds cache manager configuration.
type Config struct {
	// Category is used when GetImages is called with an empty category.
	Category string

	// PostCount is the number of posts fetched per refresh.
	PostCount int

	// StaleAfter is the maximum age of a record before it is rebuilt.
	StaleAfter time.Duration

	// Key is the object key of the record in the backend.
	Key string

	// PruneImages deletes the images of a replaced record once the new
	// record is written. Images still referenced are kept.
	PruneImages bool

	// Logger for cache events.
	Logger *slog.Logger
}

// Manager serves image pairs from the cache record, refreshing it on demand.
type Manager struct {
	config   Config
	backend  backend.Backend
	fetcher  Fetcher
	rehoster Rehoster
	logger   *slog.Logger
	now      func() time.Time
	flight   refreshGroup
}

// NewManager creates a cache manager.
func NewManager(b backend.Backend, f Fetcher, r Rehoster, cfg Config) *Manager {
	if cfg.Category == "" {
		cfg.Category = DefaultCategory
	}
	if cfg.PostCount <= 0 {
		cfg.PostCount = DefaultPostCount
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = catso.DefaultStaleAfter
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{
		config:   cfg,
		backend:  b,
		fetcher:  f,
		rehoster: r,
		logger:   cfg.Logger.With("component", "cache"),
		now:      time.Now,
	}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

// GetImages returns the cached image pairs for category, refreshing the
// record synchronously when it is absent, unreadable, for another category,
// or stale. Fresh records are returned unmodified.
func (m *Manager) GetImages(ctx context.Context, category string) ([]catso.ImagePair, Result, error) {
	if category == "" {
		category = m.config.Category
	}

	result := m.lookup(ctx, category)
	telemetry.SetCacheResult(ctx, result.state)
	telemetry.RecordCacheLookup(ctx, result.state)

	if result.state == Hit {
		m.logger.Debug("cache hit", "category", category, "age", result.age)
		return result.record.Images, Hit, nil
	}

	m.logger.Info("refreshing cache", "category", category, "reason", string(result.state))
	images, err := m.Refresh(ctx, category)
	if err != nil {
		return nil, result.state, err
	}
	return images, result.state, nil
}

type lookupResult struct {
	state  Result
	record *catso.CacheRecord
	age    time.Duration
}

func (m *Manager) lookup(ctx context.Context, category string) lookupResult {
	rec, err := m.Read(ctx)
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			m.logger.Warn("cache record unreadable, treating as miss", "key", m.config.Key, "error", err)
		}
		return lookupResult{state: Miss}
	}

	if rec.Category != "" && rec.Category != category {
		return lookupResult{state: Miss, record: rec}
	}

	now := m.now()
	if rec.Stale(now, m.config.StaleAfter) {
		return lookupResult{state: Stale, record: rec, age: rec.Age(now)}
	}
	return lookupResult{state: Hit, record: rec, age: rec.Age(now)}
}

// Read loads and validates the stored record. It returns backend.ErrNotFound
// when no record has been written.
func (m *Manager) Read(ctx context.Context) (*catso.CacheRecord, error) {
	rc, err := m.backend.Read(ctx, m.config.Key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading cache record: %w", err)
	}
	return catso.UnmarshalRecord(data)
}

// Purge deletes the stored record so the next lookup refreshes.
func (m *Manager) Purge(ctx context.Context) error {
	if err := m.backend.Delete(ctx, m.config.Key); err != nil {
		return fmt.Errorf("deleting cache record: %w", err)
	}
	m.logger.Info("cache record purged", "key", m.config.Key)
	return nil
}

// Refresh rebuilds the record for category from the upstream's top posts and
// overwrites the stored one. Nothing is written unless every post was
// re-hosted. Concurrent refreshes of the same category share one run.
func (m *Manager) Refresh(ctx context.Context, category string) ([]catso.ImagePair, error) {
	if category == "" {
		category = m.config.Category
	}

	images, shared, err := m.flight.do(ctx, category, func(ctx context.Context) ([]catso.ImagePair, error) {
		return m.refresh(ctx, category)
	})
	if shared {
		m.logger.Debug("joined in-flight refresh", "category", category)
	}
	return images, err
}

func (m *Manager) refresh(ctx context.Context, category string) ([]catso.ImagePair, error) {
	start := time.Now()

	var prior *catso.CacheRecord
	if m.config.PruneImages {
		prior, _ = m.Read(ctx)
	}

	images, err := m.build(ctx, category)
	if err == nil {
		err = m.write(ctx, category, images)
	}
	telemetry.RecordRefresh(ctx, telemetry.Outcome(err), time.Since(start))

	if err != nil {
		m.logger.Error("cache refresh failed", "category", category, "error", err)
		return nil, err
	}

	m.logger.Info("cache refreshed", "category", category, "images", len(images), "duration", time.Since(start))
	if prior != nil {
		m.prune(ctx, prior, images)
	}
	return images, nil
}

// prune deletes objects referenced by prior but not by current. Failures are
// logged; the new record is already in place.
func (m *Manager) prune(ctx context.Context, prior *catso.CacheRecord, current []catso.ImagePair) {
	keep := make(map[string]struct{}, 2*len(current))
	for _, img := range current {
		keep[img.Small] = struct{}{}
		keep[img.Large] = struct{}{}
	}

	deleted := make(map[string]struct{})
	for _, img := range prior.Images {
		for _, u := range []string{img.Small, img.Large} {
			if _, ok := keep[u]; ok {
				continue
			}
			key, ok := backend.KeyForURL(m.backend, u)
			if !ok || key == m.config.Key {
				continue
			}
			if _, ok := deleted[key]; ok {
				continue
			}
			deleted[key] = struct{}{}
			if err := m.backend.Delete(ctx, key); err != nil && !errors.Is(err, backend.ErrNotFound) {
				m.logger.Warn("pruning image", "key", key, "error", err)
			}
		}
	}
	if len(deleted) > 0 {
		m.logger.Debug("pruned images", "count", len(deleted))
	}
}

func (m *Manager) build(ctx context.Context, category string) ([]catso.ImagePair, error) {
	posts, err := m.fetcher.FetchTopPosts(ctx, category, m.config.PostCount)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("%w: no posts in %s", catso.ErrNoImageAvailable, category)
	}

	images := make([]catso.ImagePair, len(posts))
	g, gctx := errgroup.WithContext(ctx)
	for i, post := range posts {
		g.Go(func() error {
			pair, err := m.rehostPost(gctx, post)
			if err != nil {
				return fmt.Errorf("post %s: %w", post.ID, err)
			}
			images[i] = pair
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return images, nil
}

func (m *Manager) rehostPost(ctx context.Context, post reddit.Post) (catso.ImagePair, error) {
	variants, err := reddit.SelectVariants(post)
	if err != nil {
		return catso.ImagePair{}, err
	}

	small, err := m.rehoster.Rehost(ctx, variants.Small)
	if err != nil {
		return catso.ImagePair{}, err
	}
	if variants.Same() {
		return catso.ImagePair{Small: small, Large: small}, nil
	}

	large, err := m.rehoster.Rehost(ctx, variants.Large)
	if err != nil {
		return catso.ImagePair{}, err
	}
	return catso.ImagePair{Small: small, Large: large}, nil
}

func (m *Manager) write(ctx context.Context, category string, images []catso.ImagePair) error {
	data, err := catso.MarshalRecord(catso.NewCacheRecord(m.now(), category, images))
	if err != nil {
		return err
	}
	if err := m.backend.Write(ctx, m.config.Key, bytes.NewReader(data), backend.WithContentType("application/json")); err != nil {
		return fmt.Errorf("%w: writing cache record: %w", catso.ErrUploadFailed, err)
	}
	return nil
}
