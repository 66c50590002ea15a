package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/expense-ledger/internal/cli"
	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/config"
	"github.com/Veraticus/expense-ledger/internal/engine"
	"github.com/Veraticus/expense-ledger/internal/extract"
	"github.com/Veraticus/expense-ledger/internal/model"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Extract expenses from invoice and salary slip documents",
		Long: `Send each document to the extraction model and record the expenses it
contains. Documents are processed in order and ingestion stops at the first
expense that fails; expenses recorded before it are kept.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Expenses recorded before the interrupt are kept.")
			ctx := handler.HandleInterrupts(cmd.Context())

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			extractor, err := extract.NewGeminiExtractor(ctx, config.LoadExtractConfig(), slog.Default())
			if err != nil {
				return common.NewUserError("extraction is not configured (set gemini.api_key or GEMINI_API_KEY)", err)
			}

			return runIngest(ctx, cmd.OutOrStdout(), a.engine, extractor, args, dryRun)
		},
	}

	cmd.Flags().Bool("dry-run", false, "resolve and show the expenses without recording them")

	return cmd
}

func runIngest(ctx context.Context, out io.Writer, eng *engine.Engine, extractor extract.Extractor, files []string, dryRun bool) error {
	payloads, err := extractAll(ctx, out, extractor, files)
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		_, _ = fmt.Fprintln(out, cli.FormatWarning("No expenses found in the documents"))
		return nil
	}

	if dryRun {
		preview, err := eng.Preview(ctx, payloads)
		if len(preview) > 0 {
			_, _ = fmt.Fprintln(out, renderExpenses(preview))
		}
		if err != nil {
			return describeBatchError(err)
		}
		_, _ = fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Dry run: %d expenses would be recorded", len(preview))))
		return nil
	}

	result, err := eng.IngestBatch(ctx, payloads)
	if len(result.Saved) > 0 {
		_, _ = fmt.Fprintln(out, renderExpenses(result.Saved))
	}
	if err != nil {
		if len(result.Saved) > 0 {
			_, _ = fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%d expenses were recorded before the failure and are kept", len(result.Saved))))
		}
		return describeBatchError(err)
	}

	_, _ = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Recorded %d expenses from %d documents", len(result.Saved), len(files))))
	return nil
}

func extractAll(ctx context.Context, out io.Writer, extractor extract.Extractor, files []string) ([]model.Payload, error) {
	progress := cli.NewProgress(out, len(files), "Extracting documents...")
	defer progress.Finish()

	var payloads []model.Payload
	for _, file := range files {
		data, err := os.ReadFile(file) // #nosec G304
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}

		mimeType := extract.DetectMIME(file, data)
		extracted, err := extractor.Extract(ctx, data, mimeType)
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", file, err)
		}

		slog.Debug("Extracted document", "file", file, "mime_type", mimeType, "expenses", len(extracted))
		payloads = append(payloads, extracted...)
		progress.Step(filepath.Base(file))
	}

	return payloads, nil
}

// describeBatchError turns the first failure of a batch into a message that
// names the offending entry.
func describeBatchError(err error) error {
	var batchErr *engine.BatchError
	if !errors.As(err, &batchErr) {
		return err
	}

	var dup *common.DuplicateRecordError
	if errors.As(err, &dup) {
		return common.NewUserError(fmt.Sprintf("expense %d was already recorded (%s)", batchErr.Index+1, dup.Key), err)
	}
	return common.NewUserError(fmt.Sprintf("expense %d was rejected", batchErr.Index+1), batchErr.Err)
}
