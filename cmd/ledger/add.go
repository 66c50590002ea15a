package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/expense-ledger/internal/cli"
	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/engine"
	"github.com/Veraticus/expense-ledger/internal/model"
)

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense by hand",
		Long: `Record an expense from a JSON payload (--file or --stdin) or from flags.
Payloads without invoice or salary slip fields are manual expenses; a manual
expense with --interval monthly or yearly is recorded once per occurrence up to
--end, or for two years when no end is given.`,
		Example: `  ledger add --date 2024-01-15 --amount 1200 --currency USD \
    --sub-category rentAndMaintenance --interval monthly --end 2024-12-15 --note "office rent"
  ledger add --file invoice.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payloads, err := payloadsFromFlags(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runAdd(cmd.Context(), cmd.OutOrStdout(), a.engine, payloads)
		},
	}

	cmd.Flags().String("file", "", "read the payload from a JSON file")
	cmd.Flags().Bool("stdin", false, "read the payload from standard input")
	cmd.Flags().String("date", "", "expense date (YYYY-MM-DD)")
	cmd.Flags().String("amount", "", "amount in the expense currency")
	cmd.Flags().String("currency", "", "ISO 4217 currency code (default: base currency)")
	cmd.Flags().String("main-category", "", "main category (derived from the subcategory when omitted)")
	cmd.Flags().String("sub-category", "", "subcategory")
	cmd.Flags().String("provider", "", "provider name")
	cmd.Flags().String("interval", "", "recurrence: monthly or yearly")
	cmd.Flags().String("end", "", "last date of a recurring expense (YYYY-MM-DD)")
	cmd.Flags().String("note", "", "free text note")

	return cmd
}

func payloadsFromFlags(cmd *cobra.Command) ([]model.Payload, error) {
	file, _ := cmd.Flags().GetString("file")
	stdin, _ := cmd.Flags().GetBool("stdin")

	switch {
	case file != "" && stdin:
		return nil, common.NewUserError("use either --file or --stdin", nil)
	case file != "":
		f, err := os.Open(file) // #nosec G304
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", file, err)
		}
		defer func() { _ = f.Close() }()
		return decodePayloads(f)
	case stdin:
		return decodePayloads(cmd.InOrStdin())
	}

	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}

	payload := model.Payload{
		ExpenseType:  string(model.TypeManual),
		Date:         get("date"),
		Currency:     get("currency"),
		MainCategory: get("main-category"),
		SubCategory:  get("sub-category"),
		ProviderName: get("provider"),
		ManualFields: model.ManualFields{
			ManualInterval:  get("interval"),
			IntervalEndDate: get("end"),
			Note:            get("note"),
		},
	}

	if raw := get("amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, common.NewUserError("--amount must be a number", err)
		}
		payload.ManualTotalAmount = &amount
	}

	return []model.Payload{payload}, nil
}

func runAdd(ctx context.Context, out io.Writer, eng *engine.Engine, payloads []model.Payload) error {
	var saved []*model.Expense
	for i, payload := range payloads {
		series, err := eng.AddManual(ctx, payload)
		saved = append(saved, series...)
		if err != nil {
			if len(saved) > 0 {
				_, _ = fmt.Fprintln(out, renderExpenses(saved))
			}
			return describeBatchError(&engine.BatchError{Index: i, Err: err})
		}
	}

	_, _ = fmt.Fprintln(out, renderExpenses(saved))
	_, _ = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Recorded %d expenses", len(saved))))
	return nil
}
