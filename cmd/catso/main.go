// Command catso runs the photo skill backend, either as a Lambda function or
// as a local HTTP server, and offers cache maintenance commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
)

var version = "dev"

// Globals are the settings shared by every command. Each is also read from
// the environment so the Lambda runtime can configure the function.
type Globals struct {
	LogLevel  string `help:"Log level." enum:"debug,info,warn,error" default:"info" env:"LOG_LEVEL"`
	LogFormat string `help:"Log format." enum:"text,json" default:"text" env:"LOG_FORMAT"`

	Category   string        `help:"Upstream category images come from." default:"cats" env:"CATEGORY"`
	PostCount  int           `help:"Top posts turned into images per refresh." default:"3" env:"POST_COUNT"`
	StaleAfter time.Duration `help:"Maximum cache record age." default:"1h" env:"STALE_AFTER"`

	ApplicationID       string `help:"Expected skill application id (empty disables the check)." env:"APPLICATION_ID"`
	StrictApplicationID bool   `help:"Reject events with a mismatched application id." env:"STRICT_APPLICATION_ID"`
	PhotoIntent         string `help:"Intent that asks for a photo." default:"GETCATPHOTOINTENT" env:"PHOTO_INTENT"`

	Storage       string `help:"Object storage backend." enum:"s3,filesystem,bolt" default:"s3" env:"STORAGE"`
	Bucket        string `help:"S3 bucket for the cache record and images." env:"BUCKET"`
	StoragePath   string `help:"Directory for the filesystem and bolt backends." default:"./data" env:"STORAGE_PATH"`
	PublicBaseURL string `help:"Public URL objects are served from." env:"PUBLIC_BASE_URL"`
	CacheKey      string `help:"Object key of the cache record." default:"cache.json" env:"CACHE_KEY"`
	PruneImages   bool   `help:"Delete images of a replaced cache record." default:"true" negatable:"" env:"PRUNE_IMAGES"`
	ImagePrefix   string `help:"Key prefix for re-hosted images." default:"" env:"IMAGE_PREFIX"`

	SecretsProvider string `help:"How ciphertext environment variables are decrypted." enum:"kms,ssm,secretsmanager,op,plain" default:"kms" env:"SECRETS_PROVIDER"`
	RedditTokenURL  string `help:"OAuth2 token endpoint; may embed client credentials as user:password@." env:"REDDIT_TOKEN_URL"`
	RedditAPIURL    string `help:"Reddit API base URL." default:"https://oauth.reddit.com" env:"REDDIT_API_URL"`
	UserAgent       string `help:"User-Agent sent upstream." default:"catso-skill/1.0" env:"USER_AGENT"`

	OTLPEndpoint string `help:"OTLP gRPC endpoint for metrics." env:"OTLP_ENDPOINT"`
	Prometheus   bool   `help:"Expose Prometheus metrics on /metrics." env:"PROMETHEUS"`
}

// CLI is the command line interface.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Print version and exit."`

	Lambda  LambdaCmd  `cmd:"" default:"1" help:"Run as an AWS Lambda skill handler."`
	Serve   ServeCmd   `cmd:"" help:"Serve skill events over HTTP."`
	Refresh RefreshCmd `cmd:"" help:"Rebuild the cache record now."`
	Status  StatusCmd  `cmd:"" help:"Show the cache record and its age."`
	Purge   PurgeCmd   `cmd:"" help:"Delete the cache record."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("catso"),
		kong.Description("Photo skill backend."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	logger, err := newLogger(cli.LogLevel, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(&cli.Globals, logger); err != nil {
		logger.Error("command failed", "command", kctx.Command(), "error", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: lvl, TimeFormat: time.Kitchen})
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	return slog.New(handler), nil
}
