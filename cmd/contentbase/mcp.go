package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/contentbase/internal/mcpserver"
)

var mcpCommand = &cli.Command{
	Name:  "serve-mcp",
	Usage: "serve submit/cancel/delete/query as MCP tools over stdio",
	Action: func(c *cli.Context) error {
		a, err := bootstrap(c)
		if err != nil {
			return err
		}
		defer a.shutdown()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := mcpserver.New(a.cb, a.rc)
		return srv.Run(ctx)
	},
}
