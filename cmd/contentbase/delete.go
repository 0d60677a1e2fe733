package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/contentbase/internal/types"
)

var deleteCommand = &cli.Command{
	Name:      "delete",
	Usage:     "purge a file's index entries and artifacts",
	ArgsUsage: "<file-id>",
	Action: func(c *cli.Context) error {
		fileID := types.FileIdentifier(c.Args().First())
		if fileID == "" {
			return cli.Exit("delete requires a file id", 1)
		}

		a, err := bootstrap(c)
		if err != nil {
			return err
		}
		defer a.shutdown()

		return a.cb.Delete(context.Background(), fileID)
	},
}
