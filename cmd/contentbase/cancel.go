package main

import (
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/contentbase/internal/types"
)

var cancelCommand = &cli.Command{
	Name:      "cancel",
	Usage:     "cancel a file's pending and in-flight tasks",
	ArgsUsage: "<file-id>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "kind", Usage: "restrict cancellation to one content kind, paired with --task"},
		&cli.StringFlag{Name: "task", Usage: "restrict cancellation to one task name, paired with --kind"},
	},
	Action: func(c *cli.Context) error {
		fileID := types.FileIdentifier(c.Args().First())
		if fileID == "" {
			return cli.Exit("cancel requires a file id", 1)
		}

		a, err := bootstrap(c)
		if err != nil {
			return err
		}
		defer a.shutdown()

		var taskType *types.ContentTaskType
		if kind, task := c.String("kind"), c.String("task"); kind != "" && task != "" {
			t := types.NewTaskType(types.ContentKind(kind), task)
			taskType = &t
		}
		a.cb.Cancel(fileID, taskType)
		return nil
	},
}
