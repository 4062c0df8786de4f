// Package reddit fetches top posts from Reddit's OAuth API and chooses
// preview renditions for them.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfeidau/catso"
	"github.com/wolfeidau/catso/telemetry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultTokenURL is Reddit's OAuth2 token endpoint.
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	// DefaultAPIURL is Reddit's OAuth API host.
	DefaultAPIURL = "https://oauth.reddit.com"

	// DefaultUserAgent identifies the skill; Reddit throttles generic agents.
	DefaultUserAgent = "catso-skill/1.0"

	// DefaultTimeout is the default timeout for upstream requests.
	DefaultTimeout = 30 * time.Second

	// maxListingSize bounds the listing response body.
	maxListingSize = 8 << 20
)

// Upstream fetches top posts from Reddit using an application-only token.
type Upstream struct {
	apiURL       string
	tokenURL     string
	clientID     string
	clientSecret string
	userAgent    string
	client       *http.Client
	logger       *slog.Logger
}

// UpstreamOption configures an Upstream.
type UpstreamOption func(*Upstream)

// WithAPIURL sets the API base URL.
func WithAPIURL(u string) UpstreamOption {
	return func(up *Upstream) {
		up.apiURL = strings.TrimSuffix(u, "/")
	}
}

// WithTokenURL sets the token endpoint. Client credentials embedded as
// user:password@ in the URL are used when none are set explicitly.
func WithTokenURL(u string) UpstreamOption {
	return func(up *Upstream) {
		up.tokenURL = u
	}
}

// WithClientCredentials sets the OAuth2 client id and secret.
func WithClientCredentials(id, secret string) UpstreamOption {
	return func(up *Upstream) {
		up.clientID = id
		up.clientSecret = secret
	}
}

// WithUserAgent sets the User-Agent sent on every request.
func WithUserAgent(ua string) UpstreamOption {
	return func(up *Upstream) {
		up.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client. Its transport is wrapped to add
// the User-Agent header.
func WithHTTPClient(client *http.Client) UpstreamOption {
	return func(up *Upstream) {
		up.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) UpstreamOption {
	return func(up *Upstream) {
		up.logger = logger
	}
}

// NewUpstream creates a new Reddit client.
func NewUpstream(opts ...UpstreamOption) *Upstream {
	u := &Upstream{
		apiURL:    DefaultAPIURL,
		tokenURL:  DefaultTokenURL,
		userAgent: DefaultUserAgent,
		client: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: telemetry.NewInstrumentedTransport(nil, "reddit"),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}

	u.tokenURL = u.splitTokenURL(u.tokenURL)

	client := *u.client
	client.Transport = &userAgentTransport{base: client.Transport, userAgent: u.userAgent}
	u.client = &client

	return u
}

// splitTokenURL moves user:password@ credentials out of the token URL.
func (u *Upstream) splitTokenURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	if u.clientID == "" {
		u.clientID = parsed.User.Username()
		u.clientSecret, _ = parsed.User.Password()
	}
	parsed.User = nil
	return parsed.String()
}

// Token exchanges the client credentials for a bearer token.
func (u *Upstream) Token(ctx context.Context) (*oauth2.Token, error) {
	cfg := clientcredentials.Config{
		ClientID:     u.clientID,
		ClientSecret: u.clientSecret,
		TokenURL:     u.tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, u.client)
	tok, err := cfg.Token(telemetry.WithTarget(ctx, "token"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", catso.ErrAuthenticationFailed, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: token endpoint returned no access token", catso.ErrAuthenticationFailed)
	}
	return tok, nil
}

// FetchTopPosts returns the first count top posts of category. A failure at
// either the token exchange or the listing aborts the fetch; there is no retry.
func (u *Upstream) FetchTopPosts(ctx context.Context, category string, count int) ([]Post, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: count must be positive, got %d", catso.ErrUpstreamFetchFailed, count)
	}

	tok, err := u.Token(ctx)
	if err != nil {
		return nil, err
	}

	listing, err := u.fetchListing(ctx, tok, category)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", catso.ErrUpstreamFetchFailed, err)
	}

	posts := make([]Post, 0, count)
	for _, child := range listing.Data.Children {
		if len(posts) == count {
			break
		}
		posts = append(posts, child.Data)
	}

	u.logger.Debug("fetched top posts", "category", category, "count", len(posts))
	return posts, nil
}

func (u *Upstream) fetchListing(ctx context.Context, tok *oauth2.Token, category string) (*Listing, error) {
	// Always page one: count=0 with no "after" cursor.
	reqURL := fmt.Sprintf("%s/r/%s/top/.json?count=0", u.apiURL, url.PathEscape(category))

	req, err := http.NewRequestWithContext(telemetry.WithTarget(ctx, "posts"), http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "bearer "+tok.AccessToken)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, string(body))
	}

	var listing Listing
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListingSize)).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}

	return &listing, nil
}

// userAgentTransport sets the User-Agent header on outgoing requests.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.userAgent == "" {
		return base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return base.RoundTrip(req)
}
