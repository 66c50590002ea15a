package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/expense-ledger/internal/cli"
	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/engine"
	"github.com/Veraticus/expense-ledger/internal/model"
)

func updateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a recorded expense",
		Long: `Change fields of a recorded expense. Only the flags you pass are changed.
Changing the amount, currency or date recomputes the base currency amount.
The invoice or salary slip identity used to detect resubmissions is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upd, err := updateFromFlags(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runUpdate(cmd.Context(), cmd.OutOrStdout(), a.engine, args[0], upd)
		},
	}

	cmd.Flags().String("date", "", "expense date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "recurring expense end date (YYYY-MM-DD)")
	cmd.Flags().String("main-category", "", "main category")
	cmd.Flags().String("sub-category", "", "subcategory")
	cmd.Flags().String("provider", "", "provider name")
	cmd.Flags().String("currency", "", "ISO 4217 currency code")
	cmd.Flags().String("amount", "", "invoice total, gross salary or manual amount")
	cmd.Flags().String("net-salary", "", "salary slip net salary")
	cmd.Flags().String("employee-name", "", "salary slip employee name")
	cmd.Flags().String("note", "", "manual expense note")

	return cmd
}

func updateFromFlags(cmd *cobra.Command) (engine.ExpenseUpdate, error) {
	var upd engine.ExpenseUpdate
	flags := cmd.Flags()

	str := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}

	date := func(name string) (*time.Time, error) {
		raw := str(name)
		if raw == nil {
			return nil, nil
		}
		d, err := model.ParseDate(*raw)
		if err != nil {
			return nil, common.NewUserError("--"+name+" must be a date", err)
		}
		return &d, nil
	}

	amount := func(name string) (*decimal.Decimal, error) {
		raw := str(name)
		if raw == nil {
			return nil, nil
		}
		d, err := decimal.NewFromString(strings.TrimSpace(*raw))
		if err != nil {
			return nil, common.NewUserError("--"+name+" must be a number", err)
		}
		return &d, nil
	}

	var err error
	if upd.Date, err = date("date"); err != nil {
		return upd, err
	}
	if upd.IntervalEnd, err = date("end"); err != nil {
		return upd, err
	}
	if upd.Amount, err = amount("amount"); err != nil {
		return upd, err
	}
	if upd.NetSalary, err = amount("net-salary"); err != nil {
		return upd, err
	}

	if v := str("main-category"); v != nil {
		main := model.MainCategory(strings.TrimSpace(*v))
		upd.MainCategory = &main
	}
	if v := str("sub-category"); v != nil {
		sub := model.SubCategory(strings.TrimSpace(*v))
		upd.SubCategory = &sub
	}
	upd.ProviderName = str("provider")
	upd.Currency = str("currency")
	upd.EmployeeName = str("employee-name")
	upd.Note = str("note")

	return upd, nil
}

func runUpdate(ctx context.Context, out io.Writer, eng *engine.Engine, id string, upd engine.ExpenseUpdate) error {
	updated, err := eng.Update(ctx, id, upd)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", id, err)
	}

	_, _ = fmt.Fprintln(out, renderExpenses([]*model.Expense{updated}))
	_, _ = fmt.Fprintln(out, cli.FormatSuccess("Updated "+id))
	return nil
}
