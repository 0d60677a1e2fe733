package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/contentbase/internal/types"
)

var queryCommand = &cli.Command{
	Name:      "query",
	Usage:     "search the index with a text query",
	ArgsUsage: "<text>",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "kind", Usage: "restrict results to one or more content kinds"},
		&cli.IntFlag{Name: "k", Usage: "max results", Value: 10},
		&cli.IntFlag{Name: "offset", Usage: "result offset for pagination"},
		&cli.StringFlag{Name: "file-id", Usage: "restrict results to one file"},
	},
	Action: func(c *cli.Context) error {
		raw := c.Args().First()
		if raw == "" {
			return cli.Exit("query requires search text", 1)
		}

		a, err := bootstrap(c)
		if err != nil {
			return err
		}
		defer a.shutdown()

		filter := types.SearchFilter{}
		for _, k := range c.StringSlice("kind") {
			filter.ContentKinds = append(filter.ContentKinds, types.ContentKind(k))
		}
		if fid := c.String("file-id"); fid != "" {
			f := types.FileIdentifier(fid)
			filter.FileIdentifier = &f
		}

		hits, err := a.cb.QueryText(context.Background(), a.rc, raw, filter, c.Int("k"), c.Int("offset"))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	},
}
