// Package app wires the listinggen server runtime: config, logging, audit,
// metrics, HTTP routes and the websocket gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"listinggen/cmd/internal/access"
	"listinggen/cmd/internal/audit"
	"listinggen/cmd/internal/generate"
	"listinggen/cmd/internal/license"
	"listinggen/cmd/internal/listing"
	listingapi "listinggen/cmd/internal/listing/api"
	"listinggen/cmd/internal/metrics"
	"listinggen/cmd/internal/realtime"
	"listinggen/cmd/internal/session"
	"listinggen/cmd/security/passcode"
	"listinggen/cmd/security/token"
)

// App owns the server dependencies and their lifecycle.
type App struct {
	cfg Config
	log Logger

	metrics    *metrics.Metrics
	audit      audit.Sink
	ready      audit.Pinger
	closeAudit func()

	sessions *session.Store
	svc      *listing.Service
	api      *listingapi.Handler
	ws       *realtime.WSGateway
}

// Option overrides a collaborator, mostly for tests.
type Option func(*options)

type options struct {
	completer generate.Completer
	verifier  access.Verifier
}

// WithCompleter replaces the OpenAI client.
func WithCompleter(c generate.Completer) Option { return func(o *options) { o.completer = c } }

// WithVerifier replaces the Gumroad client.
func WithVerifier(v access.Verifier) Option { return func(o *options) { o.verifier = v } }

// New constructs a fully wired App. cfg must already be validated.
func New(ctx context.Context, cfg Config, log Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	hasher, err := token.HasherFromEnv(token.MinHMACKeyBytes)
	if err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg, hasher); err != nil {
		return nil, err
	}
	pcfg, err := passcode.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	completer := o.completer
	if completer == nil {
		c, err := generate.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, fmt.Errorf("OPENAI_API_KEY: %w", ErrMissingCredential)
		}
		completer = c
	}
	verifier := o.verifier
	if verifier == nil {
		verifier = license.NewGumroadClient(cfg.LicenseVerifyTimeout, license.WithEndpoint(cfg.GumroadVerifyURL))
	}

	sink, closeAudit, err := OpenAudit(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	ready, _ := sink.(audit.Pinger)

	override := access.NewMatcher(cfg.AdminBypass, cfg.AdminBypassHash, pcfg)
	lcfg := cfg.ListingConfig()
	if len(lcfg.Products.Plans()) == 0 && !override.Enabled() {
		log.Warn("license.unconfigured", "hint", "set GUMROAD_PRODUCT_PERMALINK or ADMIN_BYPASS")
	}

	m := metrics.New()
	store := session.NewStore(sessCfg, hasher)
	svc := listing.NewService(lcfg, verifier, completer,
		listing.WithOverride(override),
		listing.WithAudit(sink),
		listing.WithMetrics(m),
		listing.WithHasher(hasher),
		listing.WithLogger(log),
	)
	api := listingapi.NewHandler(log, listingapi.LoadConfigFromEnv(), svc, store,
		listingapi.WithSessionObserver(m.SetSessions),
	)
	ws := realtime.NewWSGateway(log, realtime.LoadConfigFromEnv(), svc, api)

	return &App{
		cfg:        cfg,
		log:        log,
		metrics:    m,
		audit:      sink,
		ready:      ready,
		closeAudit: closeAudit,
		sessions:   store,
		svc:        svc,
		api:        api,
		ws:         ws,
	}, nil
}

// Handler returns the root HTTP handler with middleware applied.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.ready, a.metrics, a.api, a.ws)
	return WithSecurityHeaders(WithRequestLogging(mux, a.log))
}

// Run starts the HTTP server and the session sweeper and blocks until ctx
// is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sessions.Run(sweepCtx, a.log, a.metrics.SetSessions)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 120*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"models", a.svc.Models(),
		"plans", a.svc.Plans(),
		"audit_db", a.ready != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

// Close releases the audit sink. It is safe to call more than once.
func (a *App) Close() {
	if a.closeAudit != nil {
		a.closeAudit()
		a.closeAudit = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
