package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/dorametrics/internal/adapter/driving/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run on a schedule and serve the read API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup signal-based context (SIGINT, SIGTERM).
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		pipeline, err := buildPipeline(cfg, s)
		if err != nil {
			return err
		}
		go pipeline.Start(ctx, cfg.RunInterval)

		apiHandler := httphandler.NewHandler(s.successful, s.corrective, s.incidents, pipeline, slog.Default())
		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			// Triggered runs hold the request open until the run finishes.
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  120 * time.Second,
		}

		go func() {
			slog.Info("http server starting", "addr", cfg.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "error", err)
				stop()
			}
		}()

		slog.Info("dorametrics started",
			"listen_addr", cfg.ListenAddr,
			"run_interval", cfg.RunInterval,
			"scheme", cfg.Scheme,
		)

		// Wait for shutdown signal.
		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}

		slog.Info("shutdown complete")
		return nil
	},
}
