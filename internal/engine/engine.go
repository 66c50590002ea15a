// Package engine implements the expense reconciliation pipeline: resolving raw
// payloads, expanding recurring entries and persisting them to the ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/model"
	"github.com/Veraticus/expense-ledger/internal/report"
	"github.com/Veraticus/expense-ledger/internal/service"
)

// Engine orchestrates resolution, materialization and persistence.
type Engine struct {
	storage      service.Storage
	converter    Converter
	resolver     *Resolver
	materializer *Materializer
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
}

// Config holds optional collaborators for the engine.
type Config struct {
	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

// New creates an engine with default configuration.
func New(storage service.Storage, converter Converter) *Engine {
	return NewWithConfig(storage, converter, Config{})
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(storage service.Storage, converter Converter, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	return &Engine{
		storage:      storage,
		converter:    converter,
		resolver:     NewResolver(storage, converter, cfg.Logger),
		materializer: NewMaterializer(converter),
		logger:       cfg.Logger,
		now:          cfg.Now,
		newID:        cfg.NewID,
	}
}

// IngestResult reports what a batch wrote.
type IngestResult struct {
	Saved     []*model.Expense
	Processed int
}

// BatchError identifies the payload that stopped a batch.
type BatchError struct {
	Err   error
	Index int
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("entry %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// IngestBatch processes payloads in order. The first failure stops the batch
// before the next payload is attempted. Records saved before the failure are
// kept: there is no rollback, and the result lists them.
func (e *Engine) IngestBatch(ctx context.Context, payloads []model.Payload) (*IngestResult, error) {
	result := &IngestResult{}

	for i, payload := range payloads {
		if err := ctx.Err(); err != nil {
			return result, &BatchError{Index: i, Err: err}
		}

		saved, err := e.ingest(ctx, payload)
		result.Saved = append(result.Saved, saved...)
		if err != nil {
			e.logger.Warn("Batch stopped",
				"index", i,
				"saved", len(result.Saved),
				"error", err)
			return result, &BatchError{Index: i, Err: err}
		}
		result.Processed++
	}

	e.logger.Info("Batch ingested", "payloads", len(payloads), "records", len(result.Saved))
	return result, nil
}

// Ingest resolves and persists a single payload, expanding it when it is a
// recurring manual entry.
func (e *Engine) Ingest(ctx context.Context, payload model.Payload) ([]*model.Expense, error) {
	return e.ingest(ctx, payload)
}

// AddManual persists a user-entered expense. A payload without an explicit
// type and without invoice or salary slip fields is treated as manual.
func (e *Engine) AddManual(ctx context.Context, payload model.Payload) ([]*model.Expense, error) {
	if strings.TrimSpace(payload.ExpenseType) == "" && !payload.HasInvoiceFields() && !payload.HasSalarySlipFields() {
		payload.ExpenseType = string(model.TypeManual)
	}
	return e.ingest(ctx, payload)
}

// Preview resolves and expands payloads without writing anything. It stops at
// the first failure like IngestBatch does.
func (e *Engine) Preview(ctx context.Context, payloads []model.Payload) ([]*model.Expense, error) {
	var out []*model.Expense
	for i, payload := range payloads {
		series, err := e.resolveSeries(ctx, payload)
		if err != nil {
			return out, &BatchError{Index: i, Err: err}
		}
		out = append(out, series...)
	}
	return out, nil
}

func (e *Engine) resolveSeries(ctx context.Context, payload model.Payload) ([]*model.Expense, error) {
	expense, err := e.resolver.Resolve(ctx, payload)
	if err != nil {
		return nil, err
	}
	return e.materializer.Expand(ctx, expense)
}

// ingest persists each occurrence as it goes. Occurrences written before a
// failing one stay written.
func (e *Engine) ingest(ctx context.Context, payload model.Payload) ([]*model.Expense, error) {
	series, err := e.resolveSeries(ctx, payload)
	if err != nil {
		return nil, err
	}

	saved := make([]*model.Expense, 0, len(series))
	for _, expense := range series {
		now := e.now().UTC()
		expense.ID = e.newID()
		expense.CreatedAt = now
		expense.UpdatedAt = now

		if err := e.storage.InsertExpense(ctx, expense); err != nil {
			return saved, err
		}
		saved = append(saved, expense)

		e.logger.Info("Saved expense",
			"id", expense.ID,
			"type", expense.Type(),
			"date", expense.Date.Format(time.DateOnly),
			"total", expense.TotalAmount.String(),
			"currency", expense.Currency,
			"converted", expense.ConvertedAmountBase.String())
	}

	return saved, nil
}

// ExpenseUpdate lists the fields an update may change. Nil fields are left
// as they are. Dedup keys are never recomputed.
type ExpenseUpdate struct {
	Date         *time.Time
	IntervalEnd  *time.Time
	MainCategory *model.MainCategory
	SubCategory  *model.SubCategory
	ProviderName *string
	Currency     *string
	Amount       *decimal.Decimal
	NetSalary    *decimal.Decimal
	EmployeeName *string
	Note         *string
}

// Update applies changes to a stored expense. Category changes are validated
// against the taxonomy; amount, currency or date changes re-run currency
// normalization. Writes are last-write-wins.
func (e *Engine) Update(ctx context.Context, id string, upd ExpenseUpdate) (*model.Expense, error) {
	expense, err := e.storage.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}

	renormalize := false

	if upd.MainCategory != nil || upd.SubCategory != nil {
		main, sub := expense.MainCategory, expense.SubCategory
		if upd.MainCategory != nil {
			main = *upd.MainCategory
		}
		if upd.SubCategory != nil {
			sub = *upd.SubCategory
		}
		healed, err := model.ValidateCategory(main, sub)
		if err != nil {
			return nil, err
		}
		expense.MainCategory, expense.SubCategory = healed, sub
	}

	if upd.ProviderName != nil {
		expense.ProviderName = strings.TrimSpace(*upd.ProviderName)
	}

	if upd.Date != nil {
		expense.Date = model.Day(*upd.Date)
		renormalize = true
	}

	if upd.Currency != nil {
		expense.Currency = strings.ToUpper(strings.TrimSpace(*upd.Currency))
		renormalize = true
	}

	if upd.Amount != nil {
		if err := setSourceAmount(expense, *upd.Amount); err != nil {
			return nil, err
		}
		renormalize = true
	}

	if err := applyVariantUpdate(expense, upd); err != nil {
		return nil, err
	}

	if renormalize {
		normalize(ctx, e.converter, expense)
	}
	expense.UpdatedAt = e.now().UTC()

	if err := e.storage.UpdateExpense(ctx, expense); err != nil {
		return nil, err
	}

	e.logger.Info("Updated expense", "id", expense.ID, "renormalized", renormalize)
	return expense, nil
}

func setSourceAmount(expense *model.Expense, amount decimal.Decimal) error {
	switch d := expense.Details.(type) {
	case *model.Invoice:
		if amount.IsZero() {
			return &common.MissingFieldError{Field: "invoiceTotal"}
		}
		d.InvoiceTotal = amount
	case *model.SalarySlip:
		if amount.IsZero() {
			return &common.MissingFieldError{Field: "grossSalary"}
		}
		d.GrossSalary = amount
	case *model.Manual:
		switch {
		case amount.IsZero():
			return &common.MissingFieldError{Field: "manualTotalAmount"}
		case amount.IsNegative():
			return &common.InvalidFieldError{Field: "manualTotalAmount", Reason: "must be positive"}
		}
		d.ManualTotalAmount = amount
	}
	return nil
}

func applyVariantUpdate(expense *model.Expense, upd ExpenseUpdate) error {
	slip, isSlip := expense.Details.(*model.SalarySlip)
	manual, isManual := expense.Details.(*model.Manual)

	switch {
	case upd.EmployeeName != nil && !isSlip:
		return notApplicable(expense, "employeeName")
	case upd.NetSalary != nil && !isSlip:
		return notApplicable(expense, "netSalary")
	case upd.Note != nil && !isManual:
		return notApplicable(expense, "note")
	case upd.IntervalEnd != nil && !isManual:
		return notApplicable(expense, "intervalEndDate")
	}

	if isSlip {
		if upd.EmployeeName != nil {
			slip.EmployeeName = strings.TrimSpace(*upd.EmployeeName)
		}
		if upd.NetSalary != nil {
			if upd.NetSalary.IsZero() {
				return &common.MissingFieldError{Field: "netSalary"}
			}
			slip.NetSalary = *upd.NetSalary
		}
	}

	if isManual {
		if upd.Note != nil {
			manual.Note = strings.TrimSpace(*upd.Note)
		}
		if upd.IntervalEnd != nil {
			end := model.Day(*upd.IntervalEnd)
			manual.IntervalEnd = &end
		}
	}

	return nil
}

func notApplicable(expense *model.Expense, field string) error {
	return &common.InvalidFieldError{Field: field, Reason: fmt.Sprintf("not applicable to %s expenses", expense.Type())}
}

// Delete removes an expense. A missing id yields a NotFoundError, which
// callers report without treating it as fatal.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if err := e.storage.DeleteExpense(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			e.logger.Warn("Expense to delete not found", "id", id)
		}
		return err
	}
	e.logger.Info("Deleted expense", "id", id)
	return nil
}

// Get returns one expense.
func (e *Engine) Get(ctx context.Context, id string) (*model.Expense, error) {
	return e.storage.GetExpense(ctx, id)
}

// List returns expenses in the date range.
func (e *Engine) List(ctx context.Context, dateRange service.DateRange) ([]*model.Expense, error) {
	return e.storage.ListExpenses(ctx, dateRange)
}

// Summary aggregates the expenses in the date range.
func (e *Engine) Summary(ctx context.Context, dateRange service.DateRange) ([]*model.Expense, *service.ReportSummary, error) {
	expenses, err := e.storage.ListExpenses(ctx, dateRange)
	if err != nil {
		return nil, nil, err
	}
	return expenses, report.Summarize(expenses, dateRange), nil
}
