package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/expense-ledger/internal/cli"
	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/engine"
	"github.com/Veraticus/expense-ledger/internal/model"
	"github.com/Veraticus/expense-ledger/internal/report"
	"github.com/Veraticus/expense-ledger/internal/service"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded expenses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dateRange, err := dateRangeFromFlags(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runList(cmd.Context(), cmd.OutOrStdout(), a.engine, dateRange, format)
		},
	}

	addRangeFlags(cmd)
	cmd.Flags().String("format", "table", "output format (table, json)")

	return cmd
}

func runList(ctx context.Context, out io.Writer, eng *engine.Engine, dateRange service.DateRange, format string) error {
	expenses, err := eng.List(ctx, dateRange)
	if err != nil {
		return fmt.Errorf("failed to list expenses: %w", err)
	}

	switch format {
	case "json":
		return writeJSON(out, expenses)
	case "table":
		if len(expenses) == 0 {
			_, _ = fmt.Fprintln(out, cli.FormatInfo("No expenses in range"))
			return nil
		}
		_, _ = fmt.Fprintln(out, renderExpenses(expenses))
		return nil
	default:
		return common.NewUserError(fmt.Sprintf("unknown format %q (use table or json)", format), nil)
	}
}

func renderExpenses(expenses []*model.Expense) string {
	rows := make([][]string, len(expenses))
	for i, e := range expenses {
		reference := e.DedupKey()
		if m, ok := e.Details.(*model.Manual); ok && m.Interval != model.IntervalNone {
			reference = string(m.Interval)
		}
		rows[i] = []string{
			e.Date.Format(time.DateOnly),
			string(e.Type()),
			string(e.SubCategory),
			e.ProviderName,
			reference,
			money(e.TotalAmount) + " " + e.Currency,
			money(report.Amount(e)),
			e.ID,
		}
	}
	return cli.RenderTable(
		[]string{"Date", "Type", "Category", "Provider", "Reference", "Amount", "Base", "ID"},
		rows, 5, 6,
	)
}
