// Command solaredge-scrape reads inverter telemetry from the SolarEdge
// monitoring portal.
//
// Usage:
//
//	solaredge-scrape [flags]            print the current reading
//	solaredge-scrape insert [flags]     store a fresh reading in the database
//	solaredge-scrape --publish [flags]  write latest.json every interval
//
// The flags are:
//
//	--config string
//	      path to config file (default <binary dir>/config.yaml)
//	--rundir string
//	      directory for cookies.json, api_v3_site.js and latest.json
//	--debug
//	      enable debug logging
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tejusbharadwaj/solaredge-scrape/internal/api"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/app"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/cache"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/config"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/database"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/logging"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/metrics"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/poller"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/publisher"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/scheduler"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

const metricsShutdownTimeout = 5 * time.Second

// env holds the wired components for one invocation.
type env struct {
	settings config.Settings
	cfg      *config.Config
	logger   *logrus.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	app      *app.App
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var publish bool

	root := &cobra.Command{
		Use:   "solaredge-scrape",
		Short: "Scrape SolarEdge site telemetry",
		Args:  cobra.NoArgs,
		RunE: withEnv(v, func(ctx context.Context, e *env) error {
			if publish {
				return runPublish(ctx, e)
			}
			_, err := e.app.Print(ctx, os.Stdout)
			return err
		}),
	}
	root.Flags().BoolVar(&publish, "publish", false, "run the publish loop")
	if err := config.BindFlags(v, root.PersistentFlags()); err != nil {
		panic(err)
	}

	root.AddCommand(&cobra.Command{
		Use:   "insert",
		Short: "Insert a fresh reading into the database",
		Args:  cobra.NoArgs,
		RunE: withEnv(v, func(ctx context.Context, e *env) error {
			_, _, err := e.app.Insert(ctx, func(ctx context.Context) (database.ReadingRepository, error) {
				repo, err := database.NewRepo(e.cfg.Database, e.metrics)
				if err != nil {
					return nil, err
				}
				return repo, nil
			})
			return err
		}),
	})

	return root
}

// withEnv builds the components before running fn. Argument errors are
// reported by cobra with usage; anything after that is logged here.
func withEnv(v *viper.Viper, fn func(ctx context.Context, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true

		e, err := newEnv(v)
		if err != nil {
			if e == nil || e.logger == nil {
				logging.New(os.Stderr, false).WithError(err).Error("Startup failed")
			} else {
				e.logger.WithError(err).Error("Startup failed")
			}
			return err
		}

		if err := fn(cmd.Context(), e); err != nil {
			e.logger.WithError(err).Error("Command failed")
			return err
		}
		return nil
	}
}

func newEnv(v *viper.Viper) (*env, error) {
	settings, err := config.ResolveSettings(v)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, settings.Debug)

	cfg, err := config.Load(settings.ConfigPath, logger)
	if err != nil {
		return &env{logger: logger}, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	fetcher := api.NewSiteFetcher(cfg.Web, session.NewStore(settings.CookieJarPath()), settings.HTTPTimeout, m, logger)
	responses := cache.NewResponseCache(settings.CachePath(), fetcher, m, logger)
	source := poller.New(responses, settings.IdleMaxAge, logger)

	return &env{
		settings: settings,
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  m,
		app:      app.New(source, logger),
	}, nil
}

func runPublish(ctx context.Context, e *env) error {
	writer := publisher.NewSnapshotWriter(e.settings.SnapshotPath(), e.metrics, e.logger)

	if e.settings.MetricsListen != "" {
		srv := startMetricsServer(e)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				e.logger.WithError(err).Warn("Metrics server shutdown failed")
			}
		}()
	}

	e.logger.WithFields(logrus.Fields{
		"interval": e.settings.PublishInterval,
		"path":     writer.Path(),
	}).Info("Starting publish loop")

	s := scheduler.NewScheduler(e.settings.PublishInterval, func(ctx context.Context) error {
		return e.app.PublishCycle(ctx, writer)
	}, e.logger)
	return s.Run(ctx)
}

func startMetricsServer(e *env) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(e.registry))
	srv := &http.Server{
		Addr:              e.settings.MetricsListen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		e.logger.WithField("addr", srv.Addr).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.WithError(err).Error("Metrics server failed")
		}
	}()
	return srv
}
