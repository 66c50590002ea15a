package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/expense-ledger/internal/cli"
	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/config"
	"github.com/Veraticus/expense-ledger/internal/engine"
	"github.com/Veraticus/expense-ledger/internal/service"
	"github.com/Veraticus/expense-ledger/internal/sheets"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export expenses and their summary to Google Sheets",
		Long: `Write the expenses in range to the "Expenses" tab and their totals to the
"Summary" tab of a Google spreadsheet. Existing contents of both tabs are
replaced. Without sheets.spreadsheet_id a new spreadsheet is created.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dateRange, err := dateRangeFromFlags(cmd)
			if err != nil {
				return err
			}

			sheetsCfg, err := config.LoadSheetsConfig()
			if err != nil {
				return common.NewUserError("Google Sheets is not configured", err)
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			writer, err := sheets.NewWriter(cmd.Context(), *sheetsCfg, slog.Default())
			if err != nil {
				return err
			}

			return runExport(cmd.Context(), cmd.OutOrStdout(), a.engine, writer, dateRange)
		},
	}

	addRangeFlags(cmd)

	return cmd
}

func runExport(ctx context.Context, out io.Writer, eng *engine.Engine, writer service.ReportWriter, dateRange service.DateRange) error {
	expenses, summary, err := eng.Summary(ctx, dateRange)
	if err != nil {
		return fmt.Errorf("failed to summarize expenses: %w", err)
	}

	if err := writer.Write(ctx, expenses, summary); err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}

	_, _ = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Exported %d expenses", len(expenses))))
	return nil
}
