package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/catso"
)

type fakeReddit struct {
	*httptest.Server
	tokenCalls   atomic.Int32
	listingCalls atomic.Int32
	tokenStatus  int
	listingBody  string
}

func newFakeReddit(t *testing.T, posts int) *fakeReddit {
	t.Helper()

	f := &fakeReddit{tokenStatus: http.StatusOK, listingBody: listingJSON(posts)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		id, secret, ok := r.BasicAuth()
		if !ok || id != "client-id" || secret != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.UserAgent() != "catso-test/1.0" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":86400}`))
	})
	mux.HandleFunc("GET /r/{category}/top/.json", func(w http.ResponseWriter, r *http.Request) {
		f.listingCalls.Add(1)
		if r.Header.Get("Authorization") != "bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("count") != "0" || r.PathValue("category") != "cats" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.listingBody))
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func listingJSON(n int) string {
	listing := Listing{Kind: "Listing"}
	for i := range n {
		listing.Data.Children = append(listing.Data.Children, Child{
			Kind: "t3",
			Data: Post{
				ID:    fmt.Sprintf("p%d", i),
				Title: fmt.Sprintf("cat %d", i),
				Preview: &Preview{Images: []PreviewImage{{
					Resolutions: []Resolution{
						{URL: fmt.Sprintf("https://preview.redd.it/%d.jpg?width=108&amp;s=a", i), Width: 108, Height: 72},
						{URL: fmt.Sprintf("https://preview.redd.it/%d.jpg?width=960&amp;s=b", i), Width: 960, Height: 640},
					},
				}}},
			},
		})
	}
	data, _ := json.Marshal(listing)
	return string(data)
}

func newTestUpstream(f *fakeReddit, opts ...UpstreamOption) *Upstream {
	base := []UpstreamOption{
		WithAPIURL(f.URL),
		WithTokenURL(f.URL + "/api/v1/access_token"),
		WithClientCredentials("client-id", "client-secret"),
		WithUserAgent("catso-test/1.0"),
	}
	return NewUpstream(append(base, opts...)...)
}

func TestFetchTopPosts(t *testing.T) {
	f := newFakeReddit(t, 5)
	u := newTestUpstream(f)

	posts, err := u.FetchTopPosts(context.Background(), "cats", 3)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	require.Equal(t, "p0", posts[0].ID)
	require.Equal(t, "p2", posts[2].ID)
	require.Len(t, posts[0].Resolutions(), 2)

	require.EqualValues(t, 1, f.tokenCalls.Load())
	require.EqualValues(t, 1, f.listingCalls.Load())
}

func TestFetchTopPosts_FewerThanCount(t *testing.T) {
	f := newFakeReddit(t, 2)

	posts, err := newTestUpstream(f).FetchTopPosts(context.Background(), "cats", 3)
	require.NoError(t, err)
	require.Len(t, posts, 2)
}

func TestFetchTopPosts_CredentialsInTokenURL(t *testing.T) {
	f := newFakeReddit(t, 1)
	tokenURL := strings.Replace(f.URL, "http://", "http://client-id:client-secret@", 1) + "/api/v1/access_token"

	u := NewUpstream(
		WithAPIURL(f.URL),
		WithTokenURL(tokenURL),
		WithUserAgent("catso-test/1.0"),
	)
	require.Equal(t, f.URL+"/api/v1/access_token", u.tokenURL)

	posts, err := u.FetchTopPosts(context.Background(), "cats", 3)
	require.NoError(t, err)
	require.Len(t, posts, 1)
}

func TestFetchTopPosts_AuthenticationFailed(t *testing.T) {
	tests := []struct {
		name string
		opts []UpstreamOption
		set  func(f *fakeReddit)
	}{
		{
			name: "bad credentials",
			opts: []UpstreamOption{WithClientCredentials("client-id", "wrong")},
		},
		{
			name: "token endpoint error",
			set:  func(f *fakeReddit) { f.tokenStatus = http.StatusInternalServerError },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeReddit(t, 3)
			if tt.set != nil {
				tt.set(f)
			}

			_, err := newTestUpstream(f, tt.opts...).FetchTopPosts(context.Background(), "cats", 3)
			require.ErrorIs(t, err, catso.ErrAuthenticationFailed)
			require.Zero(t, f.listingCalls.Load())
		})
	}
}

func TestFetchTopPosts_UnparseableTokenResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	u := NewUpstream(WithAPIURL(srv.URL), WithTokenURL(srv.URL), WithClientCredentials("a", "b"))
	_, err := u.FetchTopPosts(context.Background(), "cats", 3)
	require.ErrorIs(t, err, catso.ErrAuthenticationFailed)
}

func TestFetchTopPosts_UpstreamFetchFailed(t *testing.T) {
	tests := []struct {
		name     string
		category string
		body     string
	}{
		{name: "bad status", category: "dogs"},
		{name: "bad body", category: "cats", body: `{"data":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeReddit(t, 3)
			if tt.body != "" {
				f.listingBody = tt.body
			}

			_, err := newTestUpstream(f).FetchTopPosts(context.Background(), tt.category, 3)
			require.ErrorIs(t, err, catso.ErrUpstreamFetchFailed)
			require.NotErrorIs(t, err, catso.ErrAuthenticationFailed)
		})
	}
}

func TestFetchTopPosts_InvalidCount(t *testing.T) {
	f := newFakeReddit(t, 3)

	_, err := newTestUpstream(f).FetchTopPosts(context.Background(), "cats", 0)
	require.ErrorIs(t, err, catso.ErrUpstreamFetchFailed)
	require.Zero(t, f.tokenCalls.Load())
}

func TestUserAgentTransport(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.UserAgent()
	}))
	defer srv.Close()

	client := &http.Client{Transport: &userAgentTransport{userAgent: "catso-test/2.0"}}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "catso-test/2.0", got)
}
