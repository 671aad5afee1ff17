package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/hamrah-app/hamrah/internal/config"
	"github.com/hamrah-app/hamrah/pkg/guard"
	"github.com/hamrah-app/hamrah/pkg/identity"
	"github.com/hamrah-app/hamrah/pkg/middleware"
	"github.com/hamrah-app/hamrah/pkg/session"
	"github.com/hamrah-app/hamrah/pkg/token"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the frontend with route guarding enabled",
		Long: `Serve the frontend.

All navigations pass through the route guard before rendering.
The session API is exposed under /api/session, the cross-tab sync
socket under /session/sync, and Prometheus metrics under /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, listen)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.ConfigFileName, "Path to the configuration file")
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (overrides config)")

	return cmd
}

func runServe(configPath, listen string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	snaps, err := newSnapshotStore(cfg)
	if err != nil {
		return err
	}
	defer snaps.Close()

	metrics := middleware.NewMetrics()

	// The verifier runs read-only role lookups with the navigation's
	// own cookies; it holds no token state of its own.
	verifier := identity.NewClient(cfg.IdentityURL,
		token.NewStore(token.NewMemJar()),
		identity.WithLogger(log),
	)

	rules := cfg.GuardRules()
	routeGuard := guard.New(rules, verifier,
		guard.WithLogger(log),
		guard.WithObserver(metrics),
	)

	hub := session.NewSyncHub(session.WithSyncLogger(log))
	defer hub.Close()

	app := newApp(cfg, log, snaps, metrics, hub)
	defer app.Close()

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(routeGuard.Middleware())

	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", app.handleState)
		r.Post("/check", app.handleCheck)
		r.Post("/login", app.handleLogin)
		r.Post("/register", app.handleRegister)
		r.Post("/logout", app.handleLogout)
	})
	r.Get("/session/sync", app.handleSync)

	// Placeholder pages so redirect targets resolve. The real UI is
	// rendered elsewhere; the guard layer does not care what a page
	// looks like.
	for _, path := range []string{rules.HomePath, rules.LoginPath, rules.DashboardPath} {
		r.Get(path, page(path))
	}
	for _, prefix := range rules.AdminPages {
		r.Get(prefix, page(prefix))
		r.Get(prefix+"/*", page(prefix))
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("hamrah: serving", "listen", cfg.Listen, "identity", cfg.IdentityURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newSnapshotStore(cfg *config.Config) (session.SnapshotStore, error) {
	switch cfg.Snapshots.Backend {
	case config.SnapshotRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Snapshots.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("serve: redis at %s: %w", cfg.Snapshots.RedisAddr, err)
		}
		return session.NewRedisSnapshots(client, session.WithRedisTTL(cfg.SnapshotTTL())), nil
	default:
		return session.NewMemorySnapshots(session.WithTTL(cfg.SnapshotTTL())), nil
	}
}

func page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "hamrah page %s\n", name)
	}
}
