package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/routepbx/routepbx/internal/api"
	"github.com/routepbx/routepbx/internal/api/middleware"
	"github.com/routepbx/routepbx/internal/config"
	"github.com/routepbx/routepbx/internal/database"
	"github.com/routepbx/routepbx/internal/database/models"
	"github.com/routepbx/routepbx/internal/dialplan"
	"github.com/routepbx/routepbx/internal/eventbridge"
	"github.com/routepbx/routepbx/internal/metrics"
	"github.com/routepbx/routepbx/internal/realtime"
	"github.com/routepbx/routepbx/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	slog.SetDefault(slog.New(cfg.SlogHandler(os.Stdout)))

	slog.Info("starting routepbx",
		"http_port", cfg.HTTPPort,
		"esl_addr", cfg.ESLAddr,
		"data_dir", cfg.DataDir,
	)

	// Open database and run migrations.
	db, err := database.Open(cfg.DataDir, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := database.NewStore(db)

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	if err := seedDefaultTenant(appCtx, store, cfg.DefaultDomain); err != nil {
		slog.Error("failed to seed default tenant", "error", err)
		os.Exit(1)
	}

	tenants := tenant.NewResolver(store.Tenants, store.Extensions)
	engine := dialplan.NewEngine(store, tenants)

	// Event bridge: one connection consumes the switch's event stream,
	// a second serves snapshot api queries.
	eslCfg := eventbridge.Config{Addr: cfg.ESLAddr, Password: cfg.ESLPassword}
	bridge := eventbridge.New(eslCfg)
	go bridge.Run(appCtx)

	snapshotter := eventbridge.NewSnapshotter(eslCfg)
	defer snapshotter.Close()

	secret, err := cfg.JWTSecretBytes()
	if err != nil {
		slog.Error("failed to decode jwt secret", "error", err)
		os.Exit(1)
	}
	auth := realtime.NewAuthenticator(string(secret))

	registrations := realtime.NewDistributor(eventbridge.FamilyRegistrations, bridge,
		realtime.RegistrationSnapshots(snapshotter), cfg.PollInterval())
	calls := realtime.NewDistributor(eventbridge.FamilyCalls, bridge,
		realtime.ChannelSnapshots(snapshotter), cfg.PollInterval())
	go registrations.Run(appCtx)
	go calls.Run(appCtx)

	ws := realtime.NewHandler(auth, registrations, calls, middleware.ParseCORSOrigins(cfg.CORSOrigins))

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(store.CDRs, bridge, registrations, calls, time.Now()))
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	handler := api.NewServer(store, cfg, engine, tenants, ws, metricsHandler)
	defer handler.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down")
	appCancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("routepbx stopped")
}

// seedDefaultTenant creates a first tenant and extension on an empty
// database so a fresh install can register a phone and place a call
// before any provisioning happens.
func seedDefaultTenant(ctx context.Context, store *database.Store, domain string) error {
	count, err := store.Tenants.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting tenants: %w", err)
	}
	if count > 0 {
		return nil
	}

	tn := &models.Tenant{Name: "default", Domain: domain}
	if err := store.Tenants.Create(ctx, tn); err != nil {
		return fmt.Errorf("creating tenant: %w", err)
	}

	rc := &models.RoutingConfig{
		TenantID:        tn.ID,
		InternalPrefix:  "9",
		VoicemailPrefix: "*9",
		CodecString:     "PCMU,PCMA,G722",
	}
	if err := store.RoutingConfigs.Create(ctx, rc); err != nil {
		return fmt.Errorf("creating routing config: %w", err)
	}

	password := uuid.NewString()
	ext := &models.Extension{
		TenantID:  tn.ID,
		Extension: "1000",
		Password:  password,
		Enabled:   true,
	}
	if err := store.Extensions.Create(ctx, ext); err != nil {
		return fmt.Errorf("creating extension: %w", err)
	}

	slog.Info("seeded default tenant",
		"domain", domain,
		"extension", ext.Extension,
		"password", password,
	)
	return nil
}
