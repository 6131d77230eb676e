package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "acctlog",
		Usage: "Daily account log: live projection, statistics and column maintenance",
		Commands: []*cli.Command{
			cmdRun(),
			cmdEntries(),
			cmdLocations(),
			cmdReconcile(),
			cmdBuckets(),
			cmdColumns(),
			cmdMigrate(),
		},
	}
}

func main() {
	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
