package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/wolfeidau/catso/backend"
	"github.com/wolfeidau/catso/cache"
	"github.com/wolfeidau/catso/credentials"
	"github.com/wolfeidau/catso/credentials/awsprovider"
	"github.com/wolfeidau/catso/credentials/opprovider"
	"github.com/wolfeidau/catso/reddit"
	"github.com/wolfeidau/catso/rehost"
	"github.com/wolfeidau/catso/skill"
	"github.com/wolfeidau/catso/telemetry"
)

// secretEnv maps secret names to the environment variables holding their
// ciphertext.
var secretEnv = map[string]string{
	credentials.RedditClientID:     "REDDIT_CLIENT_ID",
	credentials.RedditClientSecret: "REDDIT_CLIENT_SECRET",
	credentials.RedditTokenURL:     "REDDIT_TOKEN_URL_CIPHERTEXT",
	credentials.AWSAccessKeyID:     "AWS_ACCESS_KEY_CIPHERTEXT",
	credentials.AWSSecretAccessKey: "AWS_SECRET_KEY_CIPHERTEXT",
}

// app holds the wired components shared by every command.
type app struct {
	logger          *slog.Logger
	secrets         *credentials.Store
	backend         backend.Backend
	manager         *cache.Manager
	handler         *skill.Handler
	closers         []io.Closer
	metricsShutdown func(context.Context) error
	closeOnce       sync.Once
}

func newApp(ctx context.Context, g *Globals, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	shutdown, err := telemetry.InitMetrics(ctx, telemetry.MetricsConfig{
		ServiceName:      "catso",
		ServiceVersion:   version,
		OTLPEndpoint:     g.OTLPEndpoint,
		EnablePrometheus: g.Prometheus,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}
	a.metricsShutdown = shutdown

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			cfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
			}
			awsCfg = &cfg
		}
		return *awsCfg, nil
	}

	decrypt, err := newDecrypter(g.SecretsProvider, loadAWS)
	if err != nil {
		return nil, err
	}
	a.secrets = credentials.NewStore(decrypt, credentials.WithLogger(logger))
	if err := a.secrets.Load(ctx, credentials.FromEnv(secretEnv)); err != nil {
		return nil, err
	}

	b, err := a.newBackend(g, loadAWS)
	if err != nil {
		return nil, err
	}
	a.backend = backend.NewInstrumentedBackend(b, g.Storage)

	upstream, err := a.newUpstream(g)
	if err != nil {
		return nil, err
	}

	rehoster := rehost.New(a.backend,
		rehost.WithPrefix(g.ImagePrefix),
		rehost.WithLogger(logger.With("component", "rehost")),
	)

	a.manager = cache.NewManager(a.backend, upstream, rehoster, cache.Config{
		Category:    g.Category,
		PostCount:   g.PostCount,
		StaleAfter:  g.StaleAfter,
		Key:         g.CacheKey,
		PruneImages: g.PruneImages,
		Logger:      logger,
	})

	a.handler = skill.NewHandler(a.manager, skill.Config{
		ApplicationID:       g.ApplicationID,
		StrictApplicationID: g.StrictApplicationID,
		PhotoIntent:         g.PhotoIntent,
		Category:            g.Category,
		Logger:              logger,
	})

	return a, nil
}

// Close releases backends and flushes metrics. Calls after the first are
// no-ops.
func (a *app) Close(ctx context.Context) {
	a.closeOnce.Do(func() {
		for _, c := range a.closers {
			if err := c.Close(); err != nil {
				a.logger.Warn("closing resource", "error", err)
			}
		}
		if a.metricsShutdown != nil {
			if err := a.metricsShutdown(ctx); err != nil {
				a.logger.Warn("shutting down metrics", "error", err)
			}
		}
	})
}

func newDecrypter(provider string, loadAWS func() (aws.Config, error)) (credentials.Decrypter, error) {
	switch provider {
	case "plain":
		return credentials.Plaintext, nil
	case "op":
		return opprovider.OnePassword(), nil
	case "kms", "ssm", "secretsmanager":
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", provider)
	}

	cfg, err := loadAWS()
	if err != nil {
		return nil, err
	}
	kmsClient, ssmClient, smClient := awsprovider.FromConfig(cfg)

	switch provider {
	case "kms":
		return awsprovider.KMS(kmsClient, awsprovider.WithLambdaFunctionName(os.Getenv("AWS_LAMBDA_FUNCTION_NAME"))), nil
	case "ssm":
		return awsprovider.SSM(ssmClient), nil
	default:
		return awsprovider.SecretsManager(smClient), nil
	}
}

func (a *app) newBackend(g *Globals, loadAWS func() (aws.Config, error)) (backend.Backend, error) {
	switch g.Storage {
	case "filesystem":
		return backend.NewFilesystem(g.StoragePath, g.PublicBaseURL)
	case "bolt":
		if err := os.MkdirAll(g.StoragePath, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
		b, err := backend.OpenBolt(filepath.Join(g.StoragePath, "catso.db"), g.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, b)
		return b, nil
	case "s3":
		if g.Bucket == "" {
			return nil, fmt.Errorf("--bucket is required for s3 storage")
		}
		cfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(cfg, a.s3Credentials)
		var opts []backend.S3Option
		if g.PublicBaseURL != "" {
			opts = append(opts, backend.WithPublicBaseURL(g.PublicBaseURL))
		}
		return backend.NewS3(client, g.Bucket, opts...), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", g.Storage)
	}
}

// s3Credentials switches S3 to static keys when both were decrypted;
// otherwise the default credential chain applies.
func (a *app) s3Credentials(o *s3.Options) {
	id, ok := a.secrets.Get(credentials.AWSAccessKeyID)
	if !ok {
		return
	}
	secret, ok := a.secrets.Get(credentials.AWSSecretAccessKey)
	if !ok {
		return
	}
	o.Credentials = awscreds.NewStaticCredentialsProvider(id, secret, "")
}

func (a *app) newUpstream(g *Globals) (*reddit.Upstream, error) {
	opts := []reddit.UpstreamOption{
		reddit.WithAPIURL(g.RedditAPIURL),
		reddit.WithUserAgent(g.UserAgent),
		reddit.WithLogger(a.logger.With("component", "reddit")),
	}

	tokenURL := g.RedditTokenURL
	if v, ok := a.secrets.Get(credentials.RedditTokenURL); ok {
		tokenURL = v
	}
	if tokenURL != "" {
		opts = append(opts, reddit.WithTokenURL(tokenURL))
	}

	id, hasID := a.secrets.Get(credentials.RedditClientID)
	secret, hasSecret := a.secrets.Get(credentials.RedditClientSecret)
	switch {
	case hasID && hasSecret:
		opts = append(opts, reddit.WithClientCredentials(id, secret))
	case hasID || hasSecret:
		return nil, fmt.Errorf("both REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET are required")
	}

	return reddit.NewUpstream(opts...), nil
}
