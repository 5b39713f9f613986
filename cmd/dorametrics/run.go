package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan, derive, persist and reconcile once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		report, err := pipeline.RunOnce(ctx)
		logRunReport(report)
		if err != nil {
			return runFailed("run", err)
		}
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check stored corrective deploys against the issue tracker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		result, err := pipeline.Reconcile(ctx)
		if err != nil {
			return runFailed("reconcile", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checked %d tickets: %d incidents recorded, %d unresolved, %d lookups failed\n",
			result.Candidates, result.Insert.Inserted, result.Unresolved, result.Failed)
		return nil
	},
}
