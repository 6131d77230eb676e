package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"acctlog/internal/core"

	ucli "github.com/urfave/cli/v3"
)

func cmdLocations() *ucli.Command {
	return &ucli.Command{
		Name:  "locations",
		Usage: "List and edit locations",
		Commands: []*ucli.Command{
			{
				Name:   "list",
				Usage:  "Print known locations",
				Action: locationsList,
			},
			{
				Name:      "add",
				Usage:     "Create a location",
				ArgsUsage: "<name>",
				Flags: []ucli.Flag{
					&ucli.StringFlag{Name: "display", Usage: "display name (default the name)"},
				},
				Action: locationsAdd,
			},
			{
				Name:      "delete",
				Usage:     "Remove a location record; its entries are kept",
				ArgsUsage: "<id>",
				Action:    locationsDelete,
			},
		},
	}
}

func locationsList(ctx context.Context, cmd *ucli.Command) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.startProjection(ctx); err != nil {
		return err
	}

	for _, l := range a.sync.Locations() {
		fmt.Fprintf(cmd.Root().Writer, "%s\t%s\t%s\n", l.ID, l.Name, l.DisplayName)
	}
	return nil
}

func locationsAdd(ctx context.Context, cmd *ucli.Command) error {
	l := core.Location{
		Name:        strings.TrimSpace(cmd.Args().First()),
		DisplayName: strings.TrimSpace(cmd.String("display")),
	}
	if err := l.Validate(); err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	added, err := a.ledger.AddLocation(ctx, l)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "added location %s (%s)\n", added.Name, added.ID)
	return nil
}

func locationsDelete(ctx context.Context, cmd *ucli.Command) error {
	id := strings.TrimSpace(cmd.Args().First())
	if id == "" {
		return errors.New("missing location id")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ledger.DeleteLocation(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "deleted location %s\n", id)
	return nil
}
