package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/discochess/swcache"
	"github.com/discochess/swcache/fx/memoryswcachefx"
	"github.com/discochess/swcache/fx/sqliteswcachefx"
	"github.com/discochess/swcache/internal/config"
	"github.com/discochess/swcache/internal/control"
	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/stats"
	statsprom "github.com/discochess/swcache/internal/stats/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cache layer as a caching proxy",
	Long: `Run the worker as an HTTP proxy in front of the storefront origin.

On start the worker installs, precaching the configured assets. It
activates right away when skip_waiting is set, otherwise on a SKIP_WAITING
message posted to /__sw/message. Requests are answered per category; control routes under
/__sw/ deliver page messages, sync triggers, push messages and
notification clicks. Prometheus metrics are served at /metrics.

Examples:
  swcache serve --origin http://localhost:3000 --listen :8081

  # Trigger a cart sync
  curl -X POST localhost:8081/__sw/sync/cart-sync`,
	RunE: runServe,
}

var listenAddr string

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "address to listen on (default from config, :8081)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		s.Listen = listenAddr
	}
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := s.WorkerConfig()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var storage fx.Option
	switch s.Storage {
	case config.StorageMemory:
		storage = memoryswcachefx.Module
	case config.StorageSQLite:
		storage = fx.Options(
			fx.Supply(sqliteswcachefx.Config{DataDir: s.DataDir, Codec: s.Codec}),
			fx.Provide(newPrometheusCollector),
			sqliteswcachefx.Module,
		)
	default:
		return fmt.Errorf("unknown storage %q", s.Storage)
	}

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger { return &fxevent.ZapLogger{Logger: logger.Named("fx")} }),
		fx.Supply(logger, cfg, s),
		fx.Provide(
			newRegistry,
			newNetwork,
		),
		storage,
		fx.Invoke(startServer),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newPrometheusCollector(reg *prometheus.Registry, cfg swcache.Config) stats.Collector {
	return statsprom.New(reg, statsprom.WithConstLabels(prometheus.Labels{"version": cfg.Version}))
}

func newNetwork(s *config.Settings, logger *zap.Logger) (fetch.Network, error) {
	u, err := url.Parse(s.Origin)
	if err != nil {
		return nil, err
	}
	return fetch.NewHTTPNetwork(u,
		fetch.WithMaxBodyBytes(s.MaxBodyBytes),
		fetch.WithHTTPLogger(logger.Named("network")),
	), nil
}

// ServerParams holds dependencies for the HTTP server.
type ServerParams struct {
	fx.In

	Settings  *config.Settings
	Worker    *swcache.Worker
	Registry  *prometheus.Registry
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

func startServer(p ServerParams) {
	srv := &http.Server{
		Addr: p.Settings.Listen,
		Handler: control.NewRouter(p.Worker, control.Options{
			Gatherer: p.Registry,
			Logger:   p.Logger.Named("control"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := p.Worker.Install(ctx); err != nil {
				// The proxy still serves from the network and any
				// caches left by an earlier release.
				p.Logger.Warn("install failed", zap.Error(err))
			}

			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			p.Logger.Info("serving",
				zap.String("addr", ln.Addr().String()),
				zap.String("origin", p.Settings.Origin),
				zap.String("version", p.Worker.Config().Version),
			)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
