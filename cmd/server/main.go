package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Skufu/neurorisk/internal/assessment"
	"github.com/Skufu/neurorisk/internal/catalog"
	"github.com/Skufu/neurorisk/internal/config"
	"github.com/Skufu/neurorisk/internal/db"
	"github.com/Skufu/neurorisk/internal/httpapi"
	"github.com/Skufu/neurorisk/internal/metrics"
	"github.com/Skufu/neurorisk/internal/modelclient"
	"github.com/Skufu/neurorisk/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "server",
		Short:        "Neurological risk assessment service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(fieldsCmd())
	rootCmd.AddCommand(assessCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

func newScorer(cfg *config.Config, logger zerolog.Logger, obs modelclient.Observer) *modelclient.Client {
	opts := []modelclient.Option{
		modelclient.WithTimeout(cfg.ModelTimeout),
		modelclient.WithLogger(logger),
	}
	if obs != nil {
		opts = append(opts, modelclient.WithObserver(obs))
	}
	return modelclient.New(cfg.ModelBaseURL, opts...)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()
	var hc db.HealthChecker
	if cfg.EnableDB {
		pool, err := db.Connect(ctx, cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			logger.Error().Err(err).Msg("database connection failed")
			return err
		}
		defer pool.Close()
		hc = pool
		logger.Info().Msg("connected to database")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	engine := assessment.NewEngine(newScorer(cfg, logger, m), logger, assessment.WithRecorder(m))
	sessions := session.NewStore(engine,
		session.WithIdleTTL(cfg.FormIdleTTL),
		session.WithMaxForms(cfg.MaxOpenForms),
		session.WithLogger(logger),
	)
	defer sessions.CloseAll()
	go sessions.Run(ctx, sweepInterval(cfg.FormIdleTTL))

	router := httpapi.NewRouter(httpapi.Deps{
		Catalog:        catalog.Default(),
		Engine:         engine,
		Sessions:       sessions,
		DB:             hc,
		Metrics:        m,
		MetricsHandler: metrics.Handler(reg),
		Logger:         logger,
		CORSOrigins:    cfg.CORSOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Submits wait on the model, so leave room past its timeout.
		WriteTimeout: cfg.ModelTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info().
		Str("port", cfg.Port).
		Str("model_base_url", cfg.ModelBaseURL).
		Bool("db", cfg.EnableDB).
		Msg("server listening")
	return waitForShutdown(server, logger, errCh)
}

// sweepInterval checks for idle forms a few times per TTL, at most once a
// minute.
func sweepInterval(ttl time.Duration) time.Duration {
	if d := ttl / 4; d > 0 && d < time.Minute {
		return d
	}
	return time.Minute
}

func waitForShutdown(server *http.Server, logger zerolog.Logger, errCh <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}
