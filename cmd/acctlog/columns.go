package main

import (
	"context"
	"fmt"

	ucli "github.com/urfave/cli/v3"
)

func cmdColumns() *ucli.Command {
	return &ucli.Command{
		Name:  "columns",
		Usage: "Inspect or extend the credit columns",
		Commands: []*ucli.Command{
			{
				Name:   "list",
				Usage:  "Print the credit columns derived from stored entries",
				Action: columnsList,
			},
			{
				Name:   "add",
				Usage:  "Append one zero credit column to every stored entry",
				Action: columnsAdd,
			},
		},
	}
}

func columnsList(ctx context.Context, cmd *ucli.Command) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.startProjection(ctx); err != nil {
		return err
	}

	for _, c := range a.sync.Columns() {
		fmt.Fprintf(cmd.Root().Writer, "%s\t%s\t%s\n", c.ID, c.Name, c.DisplayName)
	}
	return nil
}

func columnsAdd(ctx context.Context, cmd *ucli.Command) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.ledger.AddColumn(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "entries now carry %d credit columns\n", count)
	return nil
}
