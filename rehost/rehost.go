// Package rehost copies remote images into owned object storage so responses
// never link to third-party hosts.
package rehost

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/wolfeidau/catso"
	"github.com/wolfeidau/catso/backend"
	"github.com/wolfeidau/catso/telemetry"
)

const (
	// DefaultMaxSize bounds a single downloaded image.
	DefaultMaxSize = 20 << 20

	// DefaultTimeout is the default timeout for image downloads.
	DefaultTimeout = 30 * time.Second

	contentType = "image/jpeg"
)

// Rehoster downloads an image and uploads it under a fresh key.
type Rehoster struct {
	backend backend.Backend
	client  *http.Client
	prefix  string
	maxSize int64
	now     func() time.Time
	intn    func(n int) int
	logger  *slog.Logger
}

// Option configures a Rehoster.
type Option func(*Rehoster)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Rehoster) {
		r.client = client
	}
}

// WithPrefix sets the key prefix for uploaded images, e.g. "images/".
func WithPrefix(prefix string) Option {
	return func(r *Rehoster) {
		r.prefix = prefix
	}
}

// WithMaxSize sets the largest image accepted, in bytes.
func WithMaxSize(n int64) Option {
	return func(r *Rehoster) {
		r.maxSize = n
	}
}

// WithClock sets the time source used for keys.
func WithClock(now func() time.Time) Option {
	return func(r *Rehoster) {
		r.now = now
	}
}

// WithRandom sets the source of the key suffix. intn must return a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(r *Rehoster) {
		r.intn = intn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rehoster) {
		r.logger = logger
	}
}

// New creates a Rehoster writing to b.
func New(b backend.Backend, opts ...Option) *Rehoster {
	r := &Rehoster{
		backend: b,
		client: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: telemetry.NewInstrumentedTransport(nil, "image"),
		},
		maxSize: DefaultMaxSize,
		now:     time.Now,
		intn:    rand.IntN,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rehost downloads sourceURL, stores it as a public JPEG and returns the
// stored object's public URL.
func (r *Rehoster) Rehost(ctx context.Context, sourceURL string) (string, error) {
	data, err := r.download(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", catso.ErrDownloadFailed, err)
	}

	key := r.Key()
	err = r.backend.Write(ctx, key, bytes.NewReader(data),
		backend.WithContentType(contentType),
		backend.WithPublicRead(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", catso.ErrUploadFailed, key, err)
	}

	u := r.backend.URL(key)
	r.logger.Debug("rehosted image", "source", sourceURL, "key", key, "size", len(data))
	return u, nil
}

// Key returns a new object key of the form <prefix><unix millis><0..999>.jpg.
// Keys are unique with high probability; a collision overwrites.
func (r *Rehoster) Key() string {
	ms := r.now().UnixMilli()
	return r.prefix + strconv.FormatInt(ms, 10) + strconv.Itoa(r.intn(1000)) + ".jpg"
}

func (r *Rehoster) download(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", sourceURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: status %d", sourceURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sourceURL, err)
	}
	if int64(len(data)) > r.maxSize {
		return nil, fmt.Errorf("image %s exceeds %d bytes", sourceURL, r.maxSize)
	}

	return data, nil
}
