package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/wolfeidau/catso/backend"
	"github.com/wolfeidau/catso/cache"
	"github.com/wolfeidau/catso/server"
	"github.com/wolfeidau/catso/skill"
	"github.com/wolfeidau/catso/telemetry"
)

// LambdaCmd runs the skill under the Lambda runtime.
type LambdaCmd struct{}

func (c *LambdaCmd) Run(ctx context.Context, g *Globals, logger *slog.Logger) error {
	a, err := newApp(ctx, g, logger)
	if err != nil {
		return err
	}

	// StartWithOptions never returns, so cleanup runs from the SIGTERM hook.
	lambda.StartWithOptions(a.lambdaHandler,
		lambda.WithContext(ctx),
		lambda.WithEnableSIGTERM(func() {
			a.Close(context.WithoutCancel(ctx))
		}),
	)

	return nil
}

func (a *app) lambdaHandler(ctx context.Context, req skill.RequestEnvelope) (*skill.ResponseEnvelope, error) {
	resp, err := a.handler.Handle(ctx, req)
	// The runtime may freeze between invocations; push metrics out first.
	if ferr := telemetry.ForceFlush(ctx); ferr != nil {
		a.logger.Warn("flushing metrics", "error", ferr)
	}
	return resp, err
}

// ServeCmd serves skill events over HTTP for local development.
type ServeCmd struct {
	Address   string `help:"Address to listen on." default:":8080" env:"ADDRESS"`
	AuthToken string `help:"Bearer token required on /skill." env:"AUTH_TOKEN"`

	WarmInterval time.Duration `help:"Check the cache in the background at this interval (0 disables)." default:"0s" env:"WARM_INTERVAL"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals, logger *slog.Logger) error {
	if g.PublicBaseURL == "" && g.Storage != "s3" {
		g.PublicBaseURL = "http://localhost" + c.Address + "/objects"
	}

	a, err := newApp(ctx, g, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	cfg := server.Config{
		Address:   c.Address,
		AuthToken: c.AuthToken,
		Skill:     a.handler,
		Logger:    logger,
	}
	if g.Storage != "s3" {
		cfg.Objects = a.backend
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if c.WarmInterval > 0 {
		warmer := cache.NewWarmer(a.manager, g.Category, c.WarmInterval)
		warmer.Start(ctx)
		defer warmer.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("server started",
		"address", srv.Address(),
		"skill_url", fmt.Sprintf("http://localhost%s/skill", srv.Address()),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// RefreshCmd rebuilds the cache record regardless of its age.
type RefreshCmd struct{}

func (c *RefreshCmd) Run(ctx context.Context, g *Globals, logger *slog.Logger) error {
	a, err := newApp(ctx, g, logger)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	images, err := a.manager.Refresh(ctx, g.Category)
	if err != nil {
		return fmt.Errorf("refreshing cache: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SMALL\tLARGE")
	for _, img := range images {
		fmt.Fprintf(w, "%s\t%s\n", img.Small, img.Large)
	}
	return w.Flush()
}

// StatusCmd prints the cache record.
type StatusCmd struct{}

func (c *StatusCmd) Run(ctx context.Context, g *Globals, logger *slog.Logger) error {
	a, err := newApp(ctx, g, logger)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	return a.writeStatus(ctx, os.Stdout, time.Now())
}

// writeStatus prints the cache record, judging staleness with the
// manager's effective threshold.
func (a *app) writeStatus(ctx context.Context, out io.Writer, now time.Time) error {
	rec, err := a.manager.Read(ctx)
	if errors.Is(err, backend.ErrNotFound) {
		fmt.Fprintln(out, "no cache record")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading cache record: %w", err)
	}

	cfg := a.manager.Config()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "key\t%s\n", cfg.Key)
	fmt.Fprintf(w, "category\t%s\n", rec.Category)
	fmt.Fprintf(w, "written\t%s\n", rec.WrittenAt().Format(time.RFC3339))
	fmt.Fprintf(w, "age\t%s\n", rec.Age(now).Truncate(time.Second))
	fmt.Fprintf(w, "stale\t%t\n", rec.Stale(now, cfg.StaleAfter))
	for i, img := range rec.Images {
		fmt.Fprintf(w, "image %d\t%s %s\n", i, img.Small, img.Large)
	}
	return w.Flush()
}

// PurgeCmd deletes the cache record so the next request refreshes it.
type PurgeCmd struct{}

func (c *PurgeCmd) Run(ctx context.Context, g *Globals, logger *slog.Logger) error {
	a, err := newApp(ctx, g, logger)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	return a.manager.Purge(ctx)
}
