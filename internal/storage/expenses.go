package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/model"
	"github.com/Veraticus/expense-ledger/internal/service"
)

const (
	expensesTable = "expenses"
	dayLayout     = time.DateOnly
	stampLayout   = time.RFC3339Nano
)

var expenseColumns = []string{
	"id", "expense_type", "date", "main_category", "sub_category",
	"provider_name", "currency", "total_amount", "converted_amount_base",
	"conversion_rate", "conversion_date",
	"invoice_id", "invoice_number", "invoice_total",
	"salary_slip_id", "employee_id", "employee_name", "employee_number",
	"gross_salary", "net_salary",
	"manual_interval", "interval_end", "manual_total_amount", "note",
	"created_at", "updated_at",
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// InsertExpense stores a new expense. A second record carrying an invoice or
// salary slip key that is already stored yields a DuplicateRecordError.
func (s *SQLiteStorage) InsertExpense(ctx context.Context, expense *model.Expense) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateExpense(expense); err != nil {
		return err
	}

	query, args, err := builder.Insert(expensesTable).
		Columns(expenseColumns...).
		Values(expenseValues(expense)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return &common.DuplicateRecordError{Key: expense.DedupKey()}
		}
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	slog.Debug("Stored expense", "id", expense.ID, "type", expense.Type(), "date", expense.Date.Format(dayLayout))
	return nil
}

// GetExpense returns the expense with the given id or a NotFoundError.
func (s *SQLiteStorage) GetExpense(ctx context.Context, id string) (*model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query, args, err := builder.Select(expenseColumns...).
		From(expensesTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	expense, err := scanExpense(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &common.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	return expense, nil
}

// FindByDedupKey returns the stored invoice or salary slip with the given key.
// It returns common.ErrNotFound when no record carries the key.
func (s *SQLiteStorage) FindByDedupKey(ctx context.Context, expenseType model.ExpenseType, key string) (*model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}

	var column string
	switch expenseType {
	case model.TypeInvoice:
		column = "invoice_id"
	case model.TypeSalarySlip:
		column = "salary_slip_id"
	default:
		return nil, fmt.Errorf("%w: %s expenses have no dedup key", ErrInvalidExpense, expenseType)
	}

	query, args, err := builder.Select(expenseColumns...).
		From(expensesTable).
		Where(sq.Eq{column: key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	expense, err := scanExpense(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find expense by key: %w", err)
	}

	return expense, nil
}

// ListExpenses returns expenses dated within the range, inclusive of both
// ends, ordered by date and then insertion time.
func (s *SQLiteStorage) ListExpenses(ctx context.Context, dateRange service.DateRange) ([]*model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateDateRange(dateRange); err != nil {
		return nil, err
	}

	q := builder.Select(expenseColumns...).From(expensesTable)
	if !dateRange.Start.IsZero() {
		q = q.Where(sq.GtOrEq{"date": model.Day(dateRange.Start).Format(dayLayout)})
	}
	if !dateRange.End.IsZero() {
		q = q.Where(sq.LtOrEq{"date": model.Day(dateRange.End).Format(dayLayout)})
	}

	query, args, err := q.OrderBy("date", "created_at", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var expenses []*model.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}

	slog.Debug("Retrieved expenses", "count", len(expenses))
	return expenses, nil
}

// UpdateExpense overwrites every column of the stored expense. Concurrent
// updates to the same id are last-write-wins.
func (s *SQLiteStorage) UpdateExpense(ctx context.Context, expense *model.Expense) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateExpense(expense); err != nil {
		return err
	}

	values := expenseValues(expense)
	set := make(map[string]any, len(expenseColumns))
	for i, col := range expenseColumns {
		if col == "id" || col == "created_at" {
			continue
		}
		set[col] = values[i]
	}

	query, args, err := builder.Update(expensesTable).
		SetMap(set).
		Where(sq.Eq{"id": expense.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return &common.DuplicateRecordError{Key: expense.DedupKey()}
		}
		return fmt.Errorf("failed to update expense: %w", err)
	}

	if err := requireAffected(result, expense.ID); err != nil {
		return err
	}
	return nil
}

// DeleteExpense removes the expense with the given id. Deleting an id that
// does not exist returns a NotFoundError and changes nothing.
func (s *SQLiteStorage) DeleteExpense(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	query, args, err := builder.Delete(expensesTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	return requireAffected(result, id)
}

func requireAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return &common.NotFoundError{ID: id}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// expenseValues flattens an expense into column order.
func expenseValues(e *model.Expense) []any {
	var (
		invoiceID, invoiceNumber, salarySlipID, employeeID, employeeName sql.NullString
		manualInterval, intervalEnd, note                                 sql.NullString
		invoiceTotal, grossSalary, netSalary, manualTotal                 decimal.NullDecimal
		employeeNumber                                                    sql.NullInt64
	)

	switch d := e.Details.(type) {
	case *model.Invoice:
		invoiceID = nullString(d.InvoiceID)
		invoiceNumber = nullString(d.InvoiceNumber)
		invoiceTotal = decimal.NewNullDecimal(d.InvoiceTotal)
	case *model.SalarySlip:
		salarySlipID = nullString(d.SalarySlipID)
		employeeID = nullString(d.EmployeeID)
		employeeName = nullString(d.EmployeeName)
		if d.EmployeeNumber != nil {
			employeeNumber = sql.NullInt64{Int64: *d.EmployeeNumber, Valid: true}
		}
		grossSalary = decimal.NewNullDecimal(d.GrossSalary)
		netSalary = decimal.NewNullDecimal(d.NetSalary)
	case *model.Manual:
		manualInterval = nullString(string(d.Interval))
		if d.IntervalEnd != nil {
			intervalEnd = nullString(d.IntervalEnd.Format(dayLayout))
		}
		manualTotal = decimal.NewNullDecimal(d.ManualTotalAmount)
		note = nullString(d.Note)
	}

	return []any{
		e.ID,
		string(e.Type()),
		model.Day(e.Date).Format(dayLayout),
		string(e.MainCategory),
		string(e.SubCategory),
		e.ProviderName,
		e.Currency,
		e.TotalAmount.String(),
		e.ConvertedAmountBase.String(),
		e.ConversionRate.String(),
		model.Day(e.ConversionDate).Format(dayLayout),
		invoiceID, invoiceNumber, invoiceTotal,
		salarySlipID, employeeID, employeeName, employeeNumber,
		grossSalary, netSalary,
		manualInterval, intervalEnd, manualTotal, note,
		e.CreatedAt.UTC().Format(stampLayout),
		e.UpdatedAt.UTC().Format(stampLayout),
	}
}

func scanExpense(row scanner) (*model.Expense, error) {
	var (
		e                                                                 model.Expense
		expenseType, date, mainCategory, subCategory, conversionDate      string
		createdAt, updatedAt                                              string
		invoiceID, invoiceNumber, salarySlipID, employeeID, employeeName sql.NullString
		manualInterval, intervalEnd, note                                 sql.NullString
		invoiceTotal, grossSalary, netSalary, manualTotal                 decimal.NullDecimal
		employeeNumber                                                    sql.NullInt64
	)

	err := row.Scan(
		&e.ID, &expenseType, &date, &mainCategory, &subCategory,
		&e.ProviderName, &e.Currency, &e.TotalAmount, &e.ConvertedAmountBase,
		&e.ConversionRate, &conversionDate,
		&invoiceID, &invoiceNumber, &invoiceTotal,
		&salarySlipID, &employeeID, &employeeName, &employeeNumber,
		&grossSalary, &netSalary,
		&manualInterval, &intervalEnd, &manualTotal, &note,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.MainCategory = model.MainCategory(mainCategory)
	e.SubCategory = model.SubCategory(subCategory)

	if e.Date, err = time.Parse(dayLayout, date); err != nil {
		return nil, fmt.Errorf("%w: bad date %q", common.ErrDatabaseCorrupted, date)
	}
	if e.ConversionDate, err = time.Parse(dayLayout, conversionDate); err != nil {
		return nil, fmt.Errorf("%w: bad conversion date %q", common.ErrDatabaseCorrupted, conversionDate)
	}
	if e.CreatedAt, err = time.Parse(stampLayout, createdAt); err != nil {
		return nil, fmt.Errorf("%w: bad created_at %q", common.ErrDatabaseCorrupted, createdAt)
	}
	if e.UpdatedAt, err = time.Parse(stampLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("%w: bad updated_at %q", common.ErrDatabaseCorrupted, updatedAt)
	}

	switch model.ExpenseType(expenseType) {
	case model.TypeInvoice:
		e.Details = &model.Invoice{
			InvoiceID:     invoiceID.String,
			InvoiceNumber: invoiceNumber.String,
			InvoiceTotal:  invoiceTotal.Decimal,
		}
	case model.TypeSalarySlip:
		slip := &model.SalarySlip{
			SalarySlipID: salarySlipID.String,
			EmployeeID:   employeeID.String,
			EmployeeName: employeeName.String,
			GrossSalary:  grossSalary.Decimal,
			NetSalary:    netSalary.Decimal,
		}
		if employeeNumber.Valid {
			n := employeeNumber.Int64
			slip.EmployeeNumber = &n
		}
		e.Details = slip
	case model.TypeManual:
		manual := &model.Manual{
			Interval:          model.Interval(manualInterval.String),
			ManualTotalAmount: manualTotal.Decimal,
			Note:              note.String,
		}
		if intervalEnd.Valid {
			end, err := time.Parse(dayLayout, intervalEnd.String)
			if err != nil {
				return nil, fmt.Errorf("%w: bad interval end %q", common.ErrDatabaseCorrupted, intervalEnd.String)
			}
			manual.IntervalEnd = &end
		}
		e.Details = manual
	default:
		return nil, fmt.Errorf("%w: unknown expense type %q", common.ErrDatabaseCorrupted, expenseType)
	}

	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
