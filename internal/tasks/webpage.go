package tasks

import (
	"context"
	"encoding/json"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
	"github.com/standardbeagle/contentbase/internal/types"
)

// registerWebPageTasks declares WebPage.{Transform, Chunk, ChunkSum,
// ChunkSumEmbed}: Transform (html->markdown) -> Chunk -> ChunkSum ->
// ChunkSumEmbed.
func registerWebPageTasks(r *Registry) {
	transformType := types.NewTaskType(types.KindWebPage, types.TaskWebPageTransform)
	chunkType := types.NewTaskType(types.KindWebPage, types.TaskWebPageChunk)
	chunkSumType := types.NewTaskType(types.KindWebPage, types.TaskWebPageChunkSum)
	chunkSumEmbedType := types.NewTaskType(types.KindWebPage, types.TaskWebPageChunkSumEmbed)

	r.register(&Descriptor{
		Type: transformType,
		Parameters: func(rc *RunContext) json.RawMessage {
			return json.RawMessage(`{"converter":"html-to-markdown"}`)
		},
		Run: runWebPageTransform,
	})
	r.register(&Descriptor{
		Type:         chunkType,
		Dependencies: []types.ContentTaskType{transformType},
		Parameters:   chunkSizeParameters(types.KindWebPage),
		Run: func(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
			return chunkOriginalBlob(ctx, rc, file, run, types.KindWebPage, types.TaskWebPageChunk)
		},
	})
	r.register(&Descriptor{
		Type:         chunkSumType,
		Dependencies: []types.ContentTaskType{chunkType},
		Parameters:   chunkSizeParameters(types.KindWebPage),
		Run:          runChunkSum(chunkType),
	})
	r.register(&Descriptor{
		Type:         chunkSumEmbedType,
		Dependencies: []types.ContentTaskType{chunkSumType},
		Parameters:   chunkSizeParameters(types.KindWebPage),
		Run:          runChunkSumEmbed(chunkSumType, "language", types.RecordTextChunkSummarization),
	})
}

func runWebPageTransform(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
	html, err := rc.Blob.Read(ctx, originalBlobPath(file.FileID))
	if err != nil {
		return err
	}
	if rc.Media == nil {
		return cberrors.Permanentf("tasks.webpage.transform", errMediaToolsUnset)
	}
	markdown, err := rc.Media.HTMLToMarkdown(ctx, string(html))
	if err != nil {
		return err
	}
	out, err := writeBytes(ctx, rc, file.FileID, types.TaskWebPageTransform, "transformed.md", []byte(markdown))
	if err != nil {
		return err
	}
	run.Output = out
	return nil
}
