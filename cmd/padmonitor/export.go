package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/padfleet/status-monitor/internal/feed"
	"github.com/padfleet/status-monitor/internal/status"
)

var (
	exportOutput  string
	exportSearch  string
	exportStatus  string
	exportCountry string
	exportSort    string
	exportDesc    bool
)

// exportCmd creates the "export" subcommand.
func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch the current status snapshot once and write it as CSV",
		Long: `Fetch the status snapshot over HTTP and write the matching devices as CSV.

Without --output the CSV goes to stdout.`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&exportSearch, "search", "s", "", "only devices whose pad code, code or proxy contains this")
	cmd.Flags().StringVar(&exportStatus, "status", "", "only devices in this status")
	cmd.Flags().StringVar(&exportCountry, "country", "", "only devices in this country")
	cmd.Flags().StringVar(&exportSort, "sort", status.SortPadCode, "sort column")
	cmd.Flags().BoolVar(&exportDesc, "desc", false, "sort descending")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Log.Level)

	poller, err := feed.NewPoller(feed.PollerOptions{
		Origin:  cfg.Dashboard.Origin,
		Path:    cfg.Dashboard.FallbackPath,
		Token:   cfg.Dashboard.Token,
		Timeout: cfg.Dashboard.RequestTimeout,
		Logger:  logger,
	}, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.Dashboard.RequestTimeout)
	defer cancel()

	records, err := poller.Fetch(ctx)
	if err != nil {
		return err
	}

	board := status.NewBoard(logger)
	if err := board.ApplySnapshot(records); err != nil {
		return err
	}

	devices := status.Filter(board.All(), status.Query{
		Search:  exportSearch,
		Status:  exportStatus,
		Country: exportCountry,
		SortBy:  exportSort,
		Desc:    exportDesc,
	})

	if err := writeExport(cmd.OutOrStdout(), exportOutput, devices); err != nil {
		return err
	}

	logger.Info().Int("devices", len(devices)).Int("total", board.Len()).Msg("Export complete")
	return nil
}

// writeExport writes devices as CSV to path, or to stdout when path is empty.
// The file's close error is returned since it may be the failed flush.
func writeExport(stdout io.Writer, path string, devices []status.Device) error {
	if path == "" {
		return status.WriteCSV(stdout, devices)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := status.WriteCSV(f, devices); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
