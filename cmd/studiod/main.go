// Command studiod runs the trace ingestion daemon: it accepts OTLP spans
// over HTTP and gRPC, stores them in SQLite, and serves the query/insights
// API and WebSocket feed a local UI polls and subscribes to.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/localtrace/studio/internal/api/http"
	grpcapi "github.com/localtrace/studio/internal/api/grpc"
	"github.com/localtrace/studio/internal/bus"
	"github.com/localtrace/studio/internal/config"
	"github.com/localtrace/studio/internal/ingest"
	"github.com/localtrace/studio/internal/logging"
	"github.com/localtrace/studio/internal/store"
)

// shutdownGrace bounds how long a graceful shutdown waits for in-flight
// requests to drain after the first interrupt. Hijacked WebSocket
// connections are not waited for by http.Server.Shutdown.
const shutdownGrace = 5 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "studiod",
		Short: "Local OTLP trace ingestion and query daemon",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ~/.studio/config.yaml)")
	cmd.AddCommand(serveCmd(&configPath))
	return cmd
}

func serveCmd(configPath *string) *cobra.Command {
	var httpAddr, grpcAddr, dbPath, logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP, gRPC, and WebSocket servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			applyFlagOverrides(&cfg, cmd.Flags(), httpAddr, grpcAddr, dbPath, logLevel)
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "override the configured HTTP listen address")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "override the configured gRPC listen address")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "override the configured SQLite database path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	return cmd
}

// applyFlagOverrides layers explicitly-set flags over the loaded config.
// Flags the user didn't pass are left alone so the config file's values win.
func applyFlagOverrides(cfg *config.Config, flags *pflag.FlagSet, httpAddr, grpcAddr, dbPath, logLevel string) {
	if flags.Changed("http-addr") {
		cfg.HTTPAddr = httpAddr
	}
	if flags.Changed("grpc-addr") {
		cfg.GRPCAddr = grpcAddr
	}
	if flags.Changed("db-path") {
		cfg.DBPath = dbPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

// run wires Store, Bus, and Ingestor together and serves both protocol
// front ends until ctx is cancelled, then shuts down in two stages: a
// graceful drain bounded by shutdownGrace, followed by an immediate exit if
// a second interrupt arrives first (§5: a stuck request must not block
// the daemon from dying when the operator asks twice).
func run(parentCtx context.Context, cfg config.Config) error {
	logger := logging.New(logging.Options{Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	eventBus := bus.New()
	ingestor := ingest.New(db, eventBus, logger)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewServer(db, eventBus, ingestor, logger).Handler(),
	}

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.GRPCAddr, err)
	}
	grpcServer := grpcapi.Register(ingestor)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		logger.Info("grpc server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		// Only start listening for the hard-stop signal once the first
		// one has already triggered shutdown (via signal.NotifyContext
		// above) — registering this earlier would let the first signal
		// land on both channels and force an immediate exit before the
		// graceful drain ever runs.
		hardStop := make(chan os.Signal, 1)
		signal.Notify(hardStop, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(hardStop)

		return shutdown(logger, httpServer, grpcServer, hardStop)
	})

	err = group.Wait()
	if err != nil {
		logger.Error("studiod exited with error", "error", err)
	}
	return err
}

// shutdown drains the HTTP and gRPC servers within shutdownGrace. A second
// signal on hardStop short-circuits the wait and forces an immediate
// Close() instead of a graceful GracefulStop().
func shutdown(logger *slog.Logger, httpServer *http.Server, grpcServer interface{ GracefulStop(); Stop() }, hardStop <-chan os.Signal) error {
	logger.Info("shutdown requested, draining connections", "grace", shutdownGrace)

	graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		go grpcServer.GracefulStop()
		_ = httpServer.Shutdown(graceCtx)
	}()

	select {
	case <-drained:
		logger.Info("shutdown complete")
	case <-hardStop:
		logger.Warn("second signal received, forcing immediate exit")
		grpcServer.Stop()
		_ = httpServer.Close()
		os.Exit(1)
	case <-graceCtx.Done():
		logger.Warn("shutdown grace period expired, forcing close")
		grpcServer.Stop()
		_ = httpServer.Close()
	}
	return nil
}
