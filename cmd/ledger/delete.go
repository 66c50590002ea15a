package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Veraticus/expense-ledger/internal/cli"
	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/engine"
)

func deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a recorded expense",
		Long: `Delete a recorded expense. Deleting an id that does not exist prints a
warning and is not an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if !yes {
				reader := cli.NewNonBlockingReader(cmd.InOrStdin())
				ok, err := cli.Confirm(cmd.Context(), reader, cmd.OutOrStdout(), "Delete expense "+args[0]+"?")
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing deleted"))
					return nil
				}
			}

			return runDelete(cmd.Context(), cmd.OutOrStdout(), a.engine, args[0])
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	return cmd
}

func runDelete(ctx context.Context, out io.Writer, eng *engine.Engine, id string) error {
	err := eng.Delete(ctx, id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		_, _ = fmt.Fprintln(out, cli.FormatWarning("No expense with id "+id))
		return nil
	case err != nil:
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}

	_, _ = fmt.Fprintln(out, cli.FormatSuccess("Deleted "+id))
	return nil
}
