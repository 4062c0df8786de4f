package rehost

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/catso"
	"github.com/wolfeidau/catso/backend"
)

type recordingBackend struct {
	backend.Backend
	opts     backend.WriteOptions
	writeErr error
	writes   int
}

func (b *recordingBackend) Write(ctx context.Context, key string, r io.Reader, opts ...backend.WriteOption) error {
	b.writes++
	b.opts = backend.ApplyWriteOptions(opts...)
	if b.writeErr != nil {
		return b.writeErr
	}
	return b.Backend.Write(ctx, key, r, opts...)
}

func newTestRehoster(t *testing.T, opts ...Option) (*Rehoster, *recordingBackend) {
	t.Helper()

	fs, err := backend.NewFilesystem(t.TempDir(), "https://cdn.example.com")
	require.NoError(t, err)

	rb := &recordingBackend{Backend: fs}
	base := []Option{
		WithPrefix("images/"),
		WithClock(func() time.Time { return time.UnixMilli(1700000000123) }),
		WithRandom(func(int) int { return 42 }),
	}
	return New(rb, append(base, opts...)...), rb
}

func imageServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRehost(t *testing.T) {
	srv := imageServer(t, http.StatusOK, "jpeg-bytes")
	r, rb := newTestRehoster(t)

	got, err := r.Rehost(context.Background(), srv.URL+"/a.jpg")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/images/170000000012342.jpg", got)

	require.Equal(t, "image/jpeg", rb.opts.ContentType)
	require.True(t, rb.opts.PublicRead)

	rc, err := rb.Read(context.Background(), "images/170000000012342.jpg")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "jpeg-bytes", string(data))
}

func TestRehostDownloadFailed(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		opts   []Option
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "server error", status: http.StatusBadGateway},
		{name: "too large", status: http.StatusOK, body: "0123456789", opts: []Option{WithMaxSize(5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := imageServer(t, tt.status, tt.body)
			r, rb := newTestRehoster(t, tt.opts...)

			_, err := r.Rehost(context.Background(), srv.URL)
			require.ErrorIs(t, err, catso.ErrDownloadFailed)
			require.Zero(t, rb.writes)
		})
	}
}

func TestRehostTransportError(t *testing.T) {
	srv := imageServer(t, http.StatusOK, "x")
	srv.Close()

	r, _ := newTestRehoster(t)
	_, err := r.Rehost(context.Background(), srv.URL)
	require.ErrorIs(t, err, catso.ErrDownloadFailed)
}

func TestRehostUploadFailed(t *testing.T) {
	srv := imageServer(t, http.StatusOK, "jpeg-bytes")
	r, rb := newTestRehoster(t)
	rb.writeErr = errors.New("access denied")

	_, err := r.Rehost(context.Background(), srv.URL)
	require.ErrorIs(t, err, catso.ErrUploadFailed)
	require.NotErrorIs(t, err, catso.ErrDownloadFailed)
}

func TestKey(t *testing.T) {
	r := New(nil,
		WithClock(func() time.Time { return time.UnixMilli(5) }),
		WithRandom(func(n int) int { return n - 1 }),
	)
	require.Equal(t, "5999.jpg", r.Key())

	r = New(nil)
	require.Regexp(t, `^\d+\d{1,3}\.jpg$`, r.Key())
}
