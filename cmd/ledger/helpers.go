package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/config"
	"github.com/Veraticus/expense-ledger/internal/currency"
	"github.com/Veraticus/expense-ledger/internal/engine"
	"github.com/Veraticus/expense-ledger/internal/model"
	"github.com/Veraticus/expense-ledger/internal/service"
	"github.com/Veraticus/expense-ledger/internal/storage"
)

// initStorage opens the ledger database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// app bundles what the ledger commands share.
type app struct {
	store      *storage.SQLiteStorage
	normalizer *currency.Normalizer
	engine     *engine.Engine
}

func newApp(ctx context.Context) (*app, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadCurrencyConfig()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	normalizer := currency.NewNormalizer(cfg, currency.WithLogger(slog.Default()))

	return &app{
		store:      store,
		normalizer: normalizer,
		engine:     engine.NewWithConfig(store, normalizer, engine.Config{Logger: slog.Default()}),
	}, nil
}

func (a *app) Close() {
	a.normalizer.Close()
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

// addRangeFlags registers --from and --to.
func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "start date, inclusive (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "end date, inclusive (YYYY-MM-DD)")
}

func dateRangeFromFlags(cmd *cobra.Command) (service.DateRange, error) {
	var r service.DateRange

	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	if from != "" {
		d, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return r, common.NewUserError("--from must be YYYY-MM-DD", err)
		}
		r.Start = d
	}
	if to != "" {
		d, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return r, common.NewUserError("--to must be YYYY-MM-DD", err)
		}
		r.End = d
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return r, common.NewUserError("--to is before --from", nil)
	}

	return r, nil
}

// decodePayloads reads a single payload object or an array of them.
func decodePayloads(r io.Reader) ([]model.Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var payloads []model.Payload
		if err := json.Unmarshal([]byte(trimmed), &payloads); err != nil {
			return nil, common.NewUserError("payload is not valid JSON", err)
		}
		return payloads, nil
	}

	var payload model.Payload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, common.NewUserError("payload is not valid JSON", err)
	}
	return []model.Payload{payload}, nil
}

// expenseView is the JSON rendering of an expense.
type expenseView struct {
	EmployeeNumber      *int64  `json:"employeeNumber,omitempty"`
	ID                  string  `json:"id"`
	ExpenseType         string  `json:"expenseType"`
	Date                string  `json:"date"`
	MainCategory        string  `json:"mainCategory"`
	SubCategory         string  `json:"subCategory"`
	ProviderName        string  `json:"providerName,omitempty"`
	Currency            string  `json:"currency"`
	TotalAmount         string  `json:"totalAmount"`
	ConvertedAmountBase string  `json:"convertedAmountBase"`
	ConversionRate      string  `json:"conversionRate"`
	ConversionDate      string  `json:"conversionDate"`
	InvoiceID           string  `json:"invoiceId,omitempty"`
	InvoiceNumber       string  `json:"invoiceNumber,omitempty"`
	SalarySlipID        string  `json:"salarySlipId,omitempty"`
	EmployeeID          string  `json:"employeeId,omitempty"`
	EmployeeName        string  `json:"employeeName,omitempty"`
	GrossSalary         string  `json:"grossSalary,omitempty"`
	NetSalary           string  `json:"netSalary,omitempty"`
	ManualInterval      string  `json:"manualInterval,omitempty"`
	IntervalEndDate     string  `json:"intervalEndDate,omitempty"`
	Note                string  `json:"note,omitempty"`
	CreatedAt           string  `json:"createdAt"`
	UpdatedAt           string  `json:"updatedAt"`
	ManualTotalAmount   *string `json:"manualTotalAmount,omitempty"`
}

func viewOf(e *model.Expense) expenseView {
	v := expenseView{
		ID:                  e.ID,
		ExpenseType:         string(e.Type()),
		Date:                e.Date.Format(time.DateOnly),
		MainCategory:        string(e.MainCategory),
		SubCategory:         string(e.SubCategory),
		ProviderName:        e.ProviderName,
		Currency:            e.Currency,
		TotalAmount:         e.TotalAmount.String(),
		ConvertedAmountBase: e.ConvertedAmountBase.String(),
		ConversionRate:      e.ConversionRate.String(),
		ConversionDate:      e.ConversionDate.Format(time.DateOnly),
		CreatedAt:           e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           e.UpdatedAt.Format(time.RFC3339),
	}

	switch d := e.Details.(type) {
	case *model.Invoice:
		v.InvoiceID = d.InvoiceID
		v.InvoiceNumber = d.InvoiceNumber
	case *model.SalarySlip:
		v.SalarySlipID = d.SalarySlipID
		v.EmployeeID = d.EmployeeID
		v.EmployeeName = d.EmployeeName
		v.EmployeeNumber = d.EmployeeNumber
		v.GrossSalary = d.GrossSalary.String()
		v.NetSalary = d.NetSalary.String()
	case *model.Manual:
		amount := d.ManualTotalAmount.String()
		v.ManualTotalAmount = &amount
		v.ManualInterval = string(d.Interval)
		v.Note = d.Note
		if d.IntervalEnd != nil {
			v.IntervalEndDate = d.IntervalEnd.Format(time.DateOnly)
		}
	}

	return v
}

func writeJSON(w io.Writer, expenses []*model.Expense) error {
	views := make([]expenseView, len(expenses))
	for i, e := range expenses {
		views[i] = viewOf(e)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
