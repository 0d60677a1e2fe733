package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/contentbase/internal/types"
	"github.com/standardbeagle/contentbase/internal/watch"
)

var watchCommand = &cli.Command{
	Name:      "watch",
	Usage:     "watch a directory and submit new or changed files",
	ArgsUsage: "<dir>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "kind", Usage: "video|audio|image|raw_text|web_page", Value: string(types.KindRawText)},
		&cli.StringFlag{Name: "priority", Usage: "low|normal|high", Value: "normal"},
	},
	Action: func(c *cli.Context) error {
		dir := c.Args().First()
		if dir == "" {
			return cli.Exit("watch requires a directory", 1)
		}
		kind := types.ContentKind(c.String("kind"))
		if !kind.Valid() {
			return cli.Exit(fmt.Sprintf("unrecognized content kind %q", kind), 1)
		}
		priority, err := types.ParsePriority(c.String("priority"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		a, err := bootstrap(c)
		if err != nil {
			return err
		}
		defer a.shutdown()

		w, err := watch.New(300 * time.Millisecond)
		if err != nil {
			return err
		}
		if err := w.Start(dir); err != nil {
			return err
		}
		defer w.Stop()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(c.App.Writer, "watching %s\n", dir)
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				fileID, err := submitFile(ctx, a, ev.Path, kind, priority)
				if err != nil {
					fmt.Fprintf(c.App.ErrWriter, "contentbase: submit %s: %v\n", ev.Path, err)
					continue
				}
				fmt.Fprintf(c.App.Writer, "%s -> %s\n", ev.Path, fileID)
			case err := <-w.Errors:
				fmt.Fprintf(c.App.ErrWriter, "contentbase: watch error: %v\n", err)
			}
		}
	},
}
