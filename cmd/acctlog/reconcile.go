package main

import (
	"context"
	"errors"
	"fmt"

	ucli "github.com/urfave/cli/v3"
)

func cmdReconcile() *ucli.Command {
	return &ucli.Command{
		Name:   "reconcile",
		Usage:  "Run one column reconciliation pass and print its report",
		Action: reconcile,
	}
}

func reconcile(ctx context.Context, cmd *ucli.Command) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.reconciler.ReconcileColumns(ctx)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	if report.Skipped {
		fmt.Fprintln(w, "skipped: another reconciliation holds the lock")
		return nil
	}
	fmt.Fprintf(w, "documents: %d\nupdated:   %d\nunchanged: %d\nfailed:    %d\ndiscarded: %d\ntook:      %s\n",
		report.Documents, report.Updated, report.Unchanged, report.Failed, report.Discarded, report.Took)
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  %v\n", e)
	}
	if report.Failed > 0 {
		return fmt.Errorf("reconcile: %d of %d documents failed: %w", report.Failed, report.Documents, errors.Join(report.Errors...))
	}
	return nil
}
