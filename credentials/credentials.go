// Package credentials decrypts the skill's secrets once per process and keeps
// the plaintext values for the lifetime of the Store.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/wolfeidau/catso"
	"github.com/wolfeidau/catso/telemetry"
	"golang.org/x/sync/singleflight"
)

// Logical secret names used by the skill.
const (
	RedditClientID     = "reddit_client_id"
	RedditClientSecret = "reddit_client_secret"
	RedditTokenURL     = "reddit_token_url"
	AWSAccessKeyID     = "aws_access_key_id"
	AWSSecretAccessKey = "aws_secret_access_key"
)

// Decrypter turns one ciphertext (or secret reference) into its plaintext.
type Decrypter func(ctx context.Context, ciphertext string) (string, error)

// Plaintext is a Decrypter that returns its input, for local development.
func Plaintext(_ context.Context, value string) (string, error) {
	return value, nil
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store holds decrypted secrets keyed by logical name.
// It is safe for concurrent use.
type Store struct {
	decrypt Decrypter
	logger  *slog.Logger

	mu     sync.RWMutex
	values map[string]string
	group  singleflight.Group
}

// NewStore creates an empty store that decrypts with decrypt.
func NewStore(decrypt Decrypter, opts ...Option) *Store {
	s := &Store{
		decrypt: decrypt,
		values:  make(map[string]string),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load decrypts every named ciphertext whose plaintext is not already held.
// Each name is decrypted at most once, including under concurrent callers.
// If any decrypt fails the returned error wraps catso.ErrSecretsUnavailable;
// values decrypted successfully are kept either way.
func (s *Store) Load(ctx context.Context, ciphertexts map[string]string) error {
	names := make([]string, 0, len(ciphertexts))
	for name := range ciphertexts {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if _, ok := s.Get(name); ok {
			continue
		}
		if err := s.loadOne(ctx, name, ciphertexts[name]); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", catso.ErrSecretsUnavailable, errors.Join(errs...))
	}
	return nil
}

func (s *Store) loadOne(ctx context.Context, name, ciphertext string) error {
	_, err, _ := s.group.Do(name, func() (any, error) {
		// Another caller may have finished while this one waited on the group.
		if v, ok := s.Get(name); ok {
			return v, nil
		}

		val, err := s.decrypt(ctx, ciphertext)
		telemetry.RecordSecretDecrypt(ctx, telemetry.Outcome(err))
		if err != nil {
			s.logger.Error("decrypting secret failed", "name", name, "error", err)
			return nil, fmt.Errorf("decrypting %q: %w", name, err)
		}

		s.mu.Lock()
		s.values[name] = val
		s.mu.Unlock()

		s.logger.Debug("decrypted secret", "name", name)
		return val, nil
	})
	return err
}

// Get returns the plaintext for name.
func (s *Store) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Require returns an error wrapping catso.ErrSecretsUnavailable naming every
// missing secret.
func (s *Store) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := s.Get(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", catso.ErrSecretsUnavailable, missing)
	}
	return nil
}

// FromEnv reads ciphertexts from the environment. mapping is logical name to
// environment variable; unset or empty variables are skipped.
func FromEnv(mapping map[string]string) map[string]string {
	out := make(map[string]string, len(mapping))
	for name, env := range mapping {
		if env == "" {
			continue
		}
		if val, ok := os.LookupEnv(env); ok && val != "" {
			out[name] = val
		}
	}
	return out
}
