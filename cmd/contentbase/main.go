// Command contentbase is the CLI front end for the content base facade
// (C9): submit files for indexing, cancel in-flight work, delete a file's
// index entries and artifacts, and query the index.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/contentbase/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "contentbase",
		Usage:   "local-first content indexing and retrieval engine",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "root",
				Usage: "project root, used to locate .contentbase.kdl",
				Value: ".",
			},
			&cli.StringFlag{
				Name:  "artifacts",
				Usage: "artifacts/blob store root",
				Value: ".contentbase",
			},
		},
		Commands: []*cli.Command{
			submitCommand,
			cancelCommand,
			deleteCommand,
			queryCommand,
			watchCommand,
			mcpCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "contentbase: %v\n", err)
		os.Exit(1)
	}
}
