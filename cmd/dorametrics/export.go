package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	parquetadapter "github.com/ericfisherdev/dorametrics/internal/adapter/driven/parquet"
	"github.com/ericfisherdev/dorametrics/internal/application"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the fact tables to Parquet files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		sink, err := parquetadapter.NewSink(exportDir)
		if err != nil {
			return err
		}

		result, err := application.NewExportService(s.successful, s.corrective, s.incidents).Export(ctx, sink)
		if err != nil {
			return runFailed("export", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d successful deploys, %d corrective deploys, %d recovered incidents to %s\n",
			result.SuccessfulDeploys, result.CorrectiveDeploys, result.Incidents, exportDir)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "export", "output directory")
}
