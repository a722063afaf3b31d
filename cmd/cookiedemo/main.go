// Command cookiedemo serves a small page whose whole state lives in a signed
// session cookie.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Morditux/cookiesession"
	"github.com/Morditux/cookiesession/internal/config"
	"github.com/Morditux/cookiesession/internal/demo"
	"github.com/Morditux/cookiesession/internal/telemetry"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Getenv, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout io.Writer) error {
	flags := flag.NewFlagSet("cookiedemo", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML configuration file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, getenv)
	if err != nil {
		return err
	}

	logger, shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       stdout,
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	store, err := openStore(ctx, cfg.Revocation)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mc := cfg.ManagerConfig()
	mc.Store = store
	mc.Logger = logger
	mc.Registerer = reg
	mgr, err := cookiesession.NewManager(mc)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return err
	}
	defer mgr.Close()

	if cfg.Cookie.Secrets[0] == config.DefaultSecret {
		logger.Warn("using the built-in development secret; set " + config.EnvPrefix + "SESSION_SECRETS")
	}

	handler := demo.NewHandler(
		demo.NewService(mgr, logger),
		logger,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           otelhttp.NewHandler(handler, cfg.Telemetry.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "cookie", mgr.CookieName(), "revocation", cfg.Revocation.Backend, "encrypt", cfg.Cookie.Encrypt)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		stop()
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore returns the revocation backend named in cfg, or nil for none.
func openStore(ctx context.Context, cfg config.RevocationConfig) (cookiesession.Store, error) {
	switch cfg.Backend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendMemory:
		return cookiesession.NewMemoryStore(), nil
	case config.BackendSQLite:
		s, err := cookiesession.NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendPostgres:
		s, err := cookiesession.NewPostgreSQLStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendMemcached:
		return cookiesession.NewMemcachedStore(cfg.Addrs...), nil
	case config.BackendRedis:
		s, err := cookiesession.DialRedisStore(ctx, cfg.Addrs[0])
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown revocation backend %q", cfg.Backend)
	}
}
