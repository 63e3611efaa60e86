// Package main provides tripctl, a command line client for logging car and
// train trips and their CO2 emissions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/emissiontracker/emissiontracker/internal/activity"
	"github.com/emissiontracker/emissiontracker/internal/activity/client"
	"github.com/emissiontracker/emissiontracker/internal/auth"
	"github.com/emissiontracker/emissiontracker/internal/config"
	"github.com/emissiontracker/emissiontracker/internal/provider/resilience"
	"github.com/emissiontracker/emissiontracker/internal/session"
	"github.com/emissiontracker/emissiontracker/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "tripctl"

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "tripctl: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.FromEnv()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(stderr, "tripctl: %v\n", err)
		return 2
	}

	// Setup structured logging
	log := zerolog.New(stderr).
		Level(cfg.LogLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Debug().
		Str("build_time", BuildTime).
		Str("base_url", cfg.BaseURL).
		Msg("starting tripctl")

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize telemetry")
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	a, err := newApp(cfg, tp, log, stdout)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize")
		return 1
	}
	defer a.logHealth()

	if err := a.execute(ctx, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "tripctl: %v\n", err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

// app holds the collaborators shared by all commands.
type app struct {
	store    activity.Store
	registry *resilience.Registry
	opts     session.Options
	out      io.Writer
	logger   zerolog.Logger
}

func newApp(cfg config.Config, tp *telemetry.Provider, log zerolog.Logger, out io.Writer) (*app, error) {
	providerMetrics, err := telemetry.NewProviderMetrics(tp.Meter)
	if err != nil {
		return nil, fmt.Errorf("creating provider metrics: %w", err)
	}
	tripMetrics, err := telemetry.NewTripMetrics(tp.Meter)
	if err != nil {
		return nil, fmt.Errorf("creating trip metrics: %w", err)
	}

	registry := resilience.NewRegistry()

	rc := resilience.DefaultClientConfig(client.ProviderName)
	rc.Timeout = cfg.HTTPTimeout
	rc.MaxRetries = cfg.HTTPMaxRetries
	rc.Registry = registry
	rc.Logger = log

	var limiter *rate.Limiter
	if cfg.HTTPRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.HTTPRateLimit), 1)
	}

	remote := client.New(client.Config{
		BaseURL:    cfg.BaseURL,
		HTTPClient: resilience.NewClient(rc),
		Tokens:     tokenSource(cfg, log),
		Registry:   registry,
		Metrics:    providerMetrics,
		Tracer:     tp.Tracer,
		Limiter:    limiter,
		Logger:     log,
	})

	store, err := activity.NewCachedStore(remote, cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	return &app{
		store:    store,
		registry: registry,
		opts: session.Options{
			Metrics: tripMetrics,
			Logger:  log,
		},
		out:    out,
		logger: log,
	}, nil
}

// tokenSource returns nil when no credentials are configured, which sends
// unauthenticated requests.
func tokenSource(cfg config.Config, log zerolog.Logger) auth.Source {
	switch {
	case cfg.CanRefresh():
		return auth.NewRefreshingSource(auth.RefreshingSourceConfig{
			TokenURL: cfg.TokenURL,
			ClientID: cfg.ClientID,
			Scopes:   cfg.Scopes,
			Logger:   log,
		}, auth.TokenInfo{
			AccessToken:  cfg.AccessToken,
			RefreshToken: cfg.RefreshToken,
		})
	case cfg.AccessToken != "":
		return auth.StaticSource{AccessToken: cfg.AccessToken}
	default:
		log.Warn().Msg("no access token configured - requests are unauthenticated")
		return nil
	}
}

// logHealth reports providers that did not stay healthy.
func (a *app) logHealth() {
	if a.registry == nil {
		return
	}
	for _, h := range a.registry.All() {
		evt := a.logger.Debug()
		if !h.IsHealthy() {
			evt = a.logger.Warn()
		}
		evt.Str("provider", h.Name).
			Str("status", string(h.Status())).
			Uint32("requests", h.Counts.Requests).
			Uint32("failures", h.Counts.TotalFailures).
			Uint64("rejected", h.Rejected).
			Str("last_error", h.LastError).
			Msg("provider health")
	}
}
