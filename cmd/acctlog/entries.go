package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"acctlog/internal/core"
	"acctlog/internal/ledger"
	"acctlog/internal/store"

	ucli "github.com/urfave/cli/v3"
)

func entryFlags() []ucli.Flag {
	return []ucli.Flag{
		&ucli.StringFlag{Name: "date", Usage: "day of the entry (YYYY-MM-DD, default today)"},
		&ucli.StringFlag{Name: "cash", Usage: "cash amount"},
		&ucli.StringSliceFlag{Name: "credit", Usage: "credit amount, repeat once per column"},
		&ucli.StringFlag{Name: "location", Usage: "location name (default " + core.DefaultLocation + ")"},
		&ucli.StringFlag{Name: "employee", Usage: "employee name"},
	}
}

func cmdEntries() *ucli.Command {
	return &ucli.Command{
		Name:  "entries",
		Usage: "List and edit daily log entries",
		Commands: []*ucli.Command{
			{
				Name:   "list",
				Usage:  "Print entries, oldest first, optionally filtered",
				Flags:  filterFlags(),
				Action: entriesList,
			},
			{
				Name:   "add",
				Usage:  "Log a new entry",
				Flags:  entryFlags(),
				Action: entriesAdd,
			},
			{
				Name:      "update",
				Usage:     "Change an entry; unset flags keep their current value",
				ArgsUsage: "<id>",
				Flags:     entryFlags(),
				Action:    entriesUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Remove an entry",
				ArgsUsage: "<id>",
				Action:    entriesDelete,
			},
		},
	}
}

// entryInput overlays the flags set on cmd onto base.
func entryInput(cmd *ucli.Command, base core.EntryInput) core.EntryInput {
	in := base
	if cmd.IsSet("date") {
		in.Date = cmd.String("date")
	}
	if cmd.IsSet("cash") {
		in.CashAmount = cmd.String("cash")
	}
	if cmd.IsSet("credit") {
		in.Credits = cmd.StringSlice("credit")
	}
	if cmd.IsSet("location") {
		in.Location = cmd.String("location")
	}
	if cmd.IsSet("employee") {
		in.EmployeeName = cmd.String("employee")
	}
	return in
}

// inputFromEntry renders e back into form fields.
func inputFromEntry(e core.Entry) core.EntryInput {
	credits := make([]string, len(e.Credits))
	for i, c := range e.Credits {
		credits[i] = c.String()
	}
	return core.EntryInput{
		Date:         e.Date.Format(core.DayLayout),
		CashAmount:   e.CashAmount.String(),
		Credits:      credits,
		Location:     e.Location,
		EmployeeName: e.EmployeeName,
	}
}

func idArg(cmd *ucli.Command) (string, error) {
	id := strings.TrimSpace(cmd.Args().First())
	if id == "" {
		return "", errors.New("missing entry id")
	}
	return id, nil
}

func entriesList(ctx context.Context, cmd *ucli.Command) error {
	spec, err := ledger.ParseParams(filterParams(cmd))
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.startProjection(ctx); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	defer w.Flush()
	for _, e := range ledger.SortByDate(ledger.Apply(a.sync.Entries(), spec)) {
		credits := make([]string, len(e.Credits))
		for i, c := range e.Credits {
			credits[i] = core.FormatAmount(c)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\tcash %s\tcredits [%s]\tday %s\t%s\n",
			e.DocumentID, e.Date.Format(core.DayLayout), e.Location,
			core.FormatAmount(e.CashAmount), strings.Join(credits, " "),
			core.FormatAmount(e.DayTotal), e.EmployeeName)
	}
	return nil
}

func entriesAdd(ctx context.Context, cmd *ucli.Command) error {
	base := core.EntryInput{Date: time.Now().Format(core.DayLayout)}
	e, err := core.ParseEntryInput(entryInput(cmd, base))
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.startProjection(ctx); err != nil {
		return err
	}

	out := cmd.Root().Writer
	sameLocation := ledger.Apply(a.sync.Entries(), ledger.Spec{Location: e.Location})
	if core.IsDateLogged(sameLocation, e.Date) {
		fmt.Fprintf(out, "note: %s already has an entry for %s\n", e.Location, e.Date.Format(core.DayLayout))
	}

	added, err := a.ledger.AddLogEntry(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "added %s to %s, day total %s\n",
		added.DocumentID, added.BucketKey(), core.FormatAmount(added.DayTotal))
	return nil
}

func entriesUpdate(ctx context.Context, cmd *ucli.Command) error {
	id, err := idArg(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.startProjection(ctx); err != nil {
		return err
	}

	var existing *core.Entry
	for _, e := range a.sync.Entries() {
		if e.DocumentID == id {
			existing = &e
			break
		}
	}
	if existing == nil {
		return fmt.Errorf("update log entry %s: %w", id, store.ErrNotFound)
	}

	e, err := core.ParseEntryInput(entryInput(cmd, inputFromEntry(*existing)))
	if err != nil {
		return err
	}
	e.DocumentID = id

	updated, err := a.ledger.UpdateLogEntry(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "updated %s in %s, day total %s\n",
		updated.DocumentID, updated.BucketKey(), core.FormatAmount(updated.DayTotal))
	return nil
}

func entriesDelete(ctx context.Context, cmd *ucli.Command) error {
	id, err := idArg(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ledger.DeleteLogEntry(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "deleted %s\n", id)
	return nil
}
