package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/expense-ledger/internal/cli"
	"github.com/Veraticus/expense-ledger/internal/engine"
	"github.com/Veraticus/expense-ledger/internal/model"
	"github.com/Veraticus/expense-ledger/internal/report"
	"github.com/Veraticus/expense-ledger/internal/service"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize expenses by category and month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dateRange, err := dateRangeFromFlags(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runReport(cmd.Context(), cmd.OutOrStdout(), a.engine, a.normalizer.Base(), dateRange)
		},
	}

	addRangeFlags(cmd)

	return cmd
}

func runReport(ctx context.Context, out io.Writer, eng *engine.Engine, base string, dateRange service.DateRange) error {
	_, summary, err := eng.Summary(ctx, dateRange)
	if err != nil {
		return fmt.Errorf("failed to summarize expenses: %w", err)
	}

	_, _ = fmt.Fprintln(out, renderSummary(summary, base))
	return nil
}

func renderSummary(summary *service.ReportSummary, base string) string {
	amountHeader := "Amount (" + base + ")"
	count := func(s service.CategorySummary) string { return strconv.Itoa(s.Count) }

	var mains [][]string
	for _, main := range model.MainCategories() {
		if s, ok := summary.ByMainCategory[main]; ok {
			mains = append(mains, []string{string(main), count(s), money(s.Amount)})
		}
	}

	var subs [][]string
	for _, row := range report.BySubCategory(summary) {
		subs = append(subs, []string{string(row.Sub), count(row.CategorySummary), money(row.Amount)})
	}

	var months [][]string
	for _, month := range report.Months(summary) {
		s := summary.ByMonth[month]
		months = append(months, []string{month, count(s), money(s.Amount)})
	}

	var b strings.Builder
	b.WriteString(cli.FormatTitle("Expense Report"))
	b.WriteString("\n")
	b.WriteString(cli.RenderBox("Total",
		fmt.Sprintf("%s %s across %d expenses", money(summary.Total.Amount), base, summary.Total.Count)))
	b.WriteString("\n\n")
	b.WriteString(cli.RenderTable([]string{"Main Category", "Count", amountHeader}, mains, 1, 2))
	b.WriteString("\n\n")
	b.WriteString(cli.RenderTable([]string{"Sub Category", "Count", amountHeader}, subs, 1, 2))
	b.WriteString("\n\n")
	b.WriteString(cli.RenderTable([]string{"Month", "Count", amountHeader}, months, 1, 2))

	return b.String()
}
