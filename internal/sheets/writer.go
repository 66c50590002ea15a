package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/model"
	"github.com/Veraticus/expense-ledger/internal/report"
	"github.com/Veraticus/expense-ledger/internal/service"
)

// Writer implements the ReportWriter interface for Google Sheets.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets report writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// Write replaces the contents of the Expenses and Summary tabs.
func (w *Writer) Write(ctx context.Context, expenses []*model.Expense, summary *service.ReportSummary) error {
	w.logger.Info("starting sheets export",
		"expenses", len(expenses),
		"date_range", formatRange(summary.DateRange, time.DateOnly))

	spreadsheetID, sheetIDs, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	tabs := []struct {
		name   string
		values [][]any
	}{
		{name: ExpensesSheet, values: expenseRows(expenses, w.config.BaseCurrency)},
		{name: SummarySheet, values: summaryRows(summary, w.config.BaseCurrency)},
	}

	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	for _, tab := range tabs {
		if err := w.clearSheet(ctx, spreadsheetID, tab.name); err != nil {
			return fmt.Errorf("failed to clear %s: %w", tab.name, err)
		}

		retryOpts.Operation = "write " + tab.name
		err := common.WithRetry(ctx, func() error {
			return classifyAPIError(w.writeData(ctx, spreadsheetID, tab.name, tab.values))
		}, retryOpts)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", tab.name, err)
		}
	}

	if w.config.EnableFormatting {
		retryOpts.Operation = "format sheets"
		err = common.WithRetry(ctx, func() error {
			return classifyAPIError(w.applyFormatting(ctx, spreadsheetID, sheetIDs))
		}, retryOpts)
		if err != nil {
			// Formatting is cosmetic; the data is already written.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("sheets export completed",
		"spreadsheet_id", spreadsheetID,
		"expense_rows", len(tabs[0].values),
		"summary_rows", len(tabs[1].values))

	return nil
}

// classifyAPIError marks Sheets client errors as final. Quota errors wait for
// the Retry-After header when the API sends one.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return &common.RetryableError{Err: err, Retryable: true}
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		var after time.Duration
		if secs, convErr := strconv.Atoi(apiErr.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			after = time.Duration(secs) * time.Second
		}
		return &common.RetryableError{
			Err:        fmt.Errorf("%w: %w", common.ErrRateLimit, err),
			RetryAfter: after,
			Retryable:  true,
		}
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return &common.RetryableError{Err: err, Retryable: false}
	default:
		return &common.RetryableError{Err: err, Retryable: true}
	}
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet returns the spreadsheet id and the sheet id of each
// tab, adding missing tabs to an existing spreadsheet.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, map[string]int64, error) {
	if w.config.SpreadsheetID == "" {
		spreadsheet := &sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{
				Title:    w.config.SpreadsheetName,
				TimeZone: w.config.TimeZone,
			},
			Sheets: []*sheets.Sheet{
				{Properties: &sheets.SheetProperties{Title: ExpensesSheet}},
				{Properties: &sheets.SheetProperties{Title: SummarySheet}},
			},
		}

		created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
		if err != nil {
			return "", nil, fmt.Errorf("unable to create spreadsheet: %w", err)
		}

		w.logger.Info("created new spreadsheet",
			"id", created.SpreadsheetId,
			"url", created.SpreadsheetUrl)

		return created.SpreadsheetId, sheetIDs(created), nil
	}

	existing, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
	}

	ids := sheetIDs(existing)
	var requests []*sheets.Request
	for _, name := range []string{ExpensesSheet, SummarySheet} {
		if _, ok := ids[name]; !ok {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: name}},
			})
		}
	}
	if len(requests) == 0 {
		return existing.SpreadsheetId, ids, nil
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(existing.SpreadsheetId, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to add sheets: %w", err)
	}
	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			ids[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
		}
	}

	return existing.SpreadsheetId, ids, nil
}

func sheetIDs(s *sheets.Spreadsheet) map[string]int64 {
	ids := make(map[string]int64, len(s.Sheets))
	for _, sh := range s.Sheets {
		if sh.Properties != nil {
			ids[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	return ids
}

func (w *Writer) clearSheet(ctx context.Context, spreadsheetID, sheet string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, sheet+"!A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// expenseHeader is the first row of the Expenses tab.
func expenseHeader(base string) []any {
	return []any{
		"Date", "Type", "Main Category", "Sub Category", "Provider", "Reference",
		"Currency", "Total", "Rate", "Converted (" + base + ")", "Details", "ID",
	}
}

// expenseRows renders one row per expense, oldest first.
func expenseRows(expenses []*model.Expense, base string) [][]any {
	sorted := make([]*model.Expense, len(expenses))
	copy(sorted, expenses)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	values := make([][]any, 0, len(sorted)+1)
	values = append(values, expenseHeader(base))

	for _, e := range sorted {
		values = append(values, []any{
			e.Date.Format(time.DateOnly),
			string(e.Type()),
			string(e.MainCategory),
			string(e.SubCategory),
			e.ProviderName,
			e.DedupKey(),
			e.Currency,
			e.TotalAmount.StringFixed(2),
			e.ConversionRate.String(),
			report.Amount(e).StringFixed(2),
			details(e),
			e.ID,
		})
	}

	return values
}

func details(e *model.Expense) string {
	switch d := e.Details.(type) {
	case *model.SalarySlip:
		return d.EmployeeName
	case *model.Manual:
		if d.Interval == model.IntervalNone {
			return d.Note
		}
		if d.Note == "" {
			return string(d.Interval)
		}
		return fmt.Sprintf("%s (%s)", d.Note, d.Interval)
	}
	return ""
}

// summaryRows renders the totals by main category, subcategory and month.
func summaryRows(summary *service.ReportSummary, base string) [][]any {
	amountHeader := "Amount (" + base + ")"

	values := [][]any{
		{"Expense Report", formatRange(summary.DateRange, "Jan 2, 2006")},
		{},
		{"Total", summary.Total.Count, summary.Total.Amount.StringFixed(2)},
		{},
		{"By Main Category"},
		{"Main Category", "Count", amountHeader},
	}

	for _, main := range model.MainCategories() {
		s, ok := summary.ByMainCategory[main]
		if !ok {
			continue
		}
		values = append(values, []any{string(main), s.Count, s.Amount.StringFixed(2)})
	}

	values = append(values,
		[]any{},
		[]any{"By Sub Category"},
		[]any{"Sub Category", "Count", amountHeader, "Main Category"},
	)
	for _, row := range report.BySubCategory(summary) {
		values = append(values, []any{string(row.Sub), row.Count, row.Amount.StringFixed(2), string(row.Main)})
	}

	values = append(values,
		[]any{},
		[]any{"By Month"},
		[]any{"Month", "Count", amountHeader},
	)
	for _, month := range report.Months(summary) {
		s := summary.ByMonth[month]
		values = append(values, []any{month, s.Count, s.Amount.StringFixed(2)})
	}

	return values
}

func formatRange(r service.DateRange, layout string) string {
	start, end := "beginning", "now"
	if !r.Start.IsZero() {
		start = r.Start.Format(layout)
	}
	if !r.End.IsZero() {
		end = r.End.Format(layout)
	}
	return start + " - " + end
}

// writeData writes values into sheet in batches.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, sheet string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))

		batch := values[i:end]
		valueRange := &sheets.ValueRange{
			Values: batch,
		}

		rangeStr := fmt.Sprintf("%s!A%d", sheet, i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()

		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "sheet", sheet, "start_row", i+1, "rows", len(batch))
	}

	return nil
}

// applyFormatting bolds and freezes the Expenses header and sizes the columns.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, sheetIDs map[string]int64) error {
	expensesID := sheetIDs[ExpensesSheet]
	summaryID := sheetIDs[SummarySheet]

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          expensesID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(len(expenseHeader(""))),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: expensesID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          summaryID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   2,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true, FontSize: 16},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
	}

	for _, id := range []int64{expensesID, summaryID} {
		requests = append(requests, &sheets.Request{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    id,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(len(expenseHeader(""))),
				},
			},
		})
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}
