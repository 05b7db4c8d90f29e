package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/sessionlock"
	"github.com/aretw0/sessionlock/internal/presentation/tui"
	httpAdapter "github.com/aretw0/sessionlock/pkg/adapters/http"
	"github.com/aretw0/sessionlock/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP session server",
	Long: `Serves the session store over JSON/HTTP, exposes Prometheus metrics on /metrics
and runs the expired-record sweeper in the background. Collection calls are traced
through the global OpenTelemetry provider.`,
	Run: func(cmd *cobra.Command, args []string) {
		metrics := observability.NewMetrics()
		svc, logger := openService(cmd, sessionlock.WithMetrics(metrics), sessionlock.WithTracing())
		defer svc.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = svc.Config.HTTP.Addr
		}

		handler := httpAdapter.NewHandler(svc.Store,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetricsHandler(promhttp.Handler()),
		)

		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sweeper := svc.NewSweeper()
		go sweeper.Start(ctx)
		defer sweeper.Stop()

		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet && tui.IsTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout, sessionlock.Version)
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("Starting session server", "addr", srv.Addr, "backend", svc.Config.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancelShutdown()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
				if err := srv.Close(); err != nil {
					logger.Error("Error killing server", "error", err)
				}
			}
			logger.Info("Session server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (defaults to http.addr)")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
