package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"acctlog/internal/core"
	"acctlog/internal/ledger"

	ucli "github.com/urfave/cli/v3"
)

func cmdBuckets() *ucli.Command {
	return &ucli.Command{
		Name:  "buckets",
		Usage: "Print monthly buckets, most recent first, optionally filtered",
		Flags: append(filterFlags(),
			&ucli.BoolFlag{Name: "entries", Usage: "list the entries of each bucket"},
		),
		Action: buckets,
	}
}

// filterFlags are the entry filter options shared by the read commands.
func filterFlags() []ucli.Flag {
	return []ucli.Flag{
		&ucli.StringFlag{Name: "start", Usage: "first day to include (YYYY-MM-DD)"},
		&ucli.StringFlag{Name: "end", Usage: "last day to include (YYYY-MM-DD)"},
		&ucli.StringFlag{Name: "min", Usage: "minimum day total"},
		&ucli.StringFlag{Name: "max", Usage: "maximum day total"},
		&ucli.StringFlag{Name: "location", Usage: "only this location"},
		&ucli.BoolFlag{Name: "no-cash", Usage: "exclude entries with a cash amount"},
		&ucli.BoolFlag{Name: "no-credit", Usage: "exclude entries with any credit"},
	}
}

func filterParams(cmd *ucli.Command) ledger.Params {
	p := ledger.Params{
		StartDate: cmd.String("start"),
		EndDate:   cmd.String("end"),
		MinAmount: cmd.String("min"),
		MaxAmount: cmd.String("max"),
		Location:  cmd.String("location"),
	}
	if cmd.IsSet("no-cash") {
		cash := !cmd.Bool("no-cash")
		p.Cash = &cash
	}
	if cmd.IsSet("no-credit") {
		credit := !cmd.Bool("no-credit")
		p.Credit = &credit
	}
	return p
}

func buckets(ctx context.Context, cmd *ucli.Command) error {
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

	columns := a.sync.Columns()
	for _, b := range a.sync.Buckets(spec) {
		fmt.Fprintf(w, "%s\t%s\tdays %d\ttotal %s\taverage %s\n",
			b.MonthName, b.Location, b.Stats.Count,
			core.FormatAmount(b.Stats.RunningAmount), core.FormatAmount(b.Stats.MonthlyAverage))
		if !cmd.Bool("entries") {
			continue
		}
		for _, e := range b.DisplayEntries() {
			credits := ledger.NormalizeCredits(e.Credits, len(columns))
			parts := make([]string, len(credits))
			for i, c := range credits {
				parts[i] = columns[i].Name + "=" + core.FormatAmount(c)
			}
			fmt.Fprintf(w, "  %s\tcash %s\t%s\tday %s\n",
				e.Date.Format(core.DayLayout), core.FormatAmount(e.CashAmount),
				strings.Join(parts, " "), core.FormatAmount(e.DayTotal))
		}
	}

	t := ledger.Lifetime(ledger.Apply(a.sync.Entries(), spec))
	fmt.Fprintf(w, "lifetime\t\tdays %d\ttotal %s\tcash %s\tcredit %s\taverage %s\n",
		t.Entries, core.FormatAmount(t.Total), core.FormatAmount(t.Cash),
		core.FormatAmount(t.Credit), core.FormatAmount(t.AveragePerDay))
	return nil
}
