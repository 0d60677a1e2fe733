package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/contentbase/internal/artifact"
	"github.com/standardbeagle/contentbase/internal/types"
)

var submitCommand = &cli.Command{
	Name:      "submit",
	Usage:     "ingest a file and enqueue its task pipeline",
	ArgsUsage: "<path>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "kind", Usage: "video|audio|image|raw_text|web_page", Value: string(types.KindRawText)},
		&cli.StringFlag{Name: "priority", Usage: "low|normal|high", Value: "normal"},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return cli.Exit("submit requires a file path", 1)
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

		fileID, err := submitFile(context.Background(), a, path, kind, priority)
		if err != nil {
			return err
		}

		fmt.Println(fileID)
		return nil
	},
}

// submitFile hashes path's contents into a FileIdentifier, writes the
// original blob, and enqueues the task pipeline for kind/priority. Shared
// by the submit command and the watch command, which both turn a bare
// filesystem path into a submission.
func submitFile(ctx context.Context, a *app, path string, kind types.ContentKind, priority types.PriorityLevel) (types.FileIdentifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	fileID := types.FileIdentifier(hex.EncodeToString(sum[:]))

	if err := a.cb.Blob.Write(ctx, artifact.OriginalBlobPath(fileID), data); err != nil {
		return "", err
	}

	file := types.FileInfo{FileID: fileID, FilePath: path, FileFullPathOnDisk: path}
	if err := a.cb.Submit(ctx, file, kind, priority); err != nil {
		return "", err
	}
	return fileID, nil
}
