package tasks

import (
	"context"
	"encoding/json"

	"github.com/standardbeagle/contentbase/internal/types"
)

// registerRawTextTasks declares RawText.{Chunk, ChunkSum, ChunkSumEmbed}:
// Chunk -> ChunkSum -> ChunkSumEmbed, a linear chain with no leaves besides
// the first task, whose input is the original uploaded blob itself.
func registerRawTextTasks(r *Registry) {
	chunkType := types.NewTaskType(types.KindRawText, types.TaskRawTextChunk)
	chunkSumType := types.NewTaskType(types.KindRawText, types.TaskRawTextChunkSum)
	chunkSumEmbedType := types.NewTaskType(types.KindRawText, types.TaskRawTextChunkSumEmbed)

	r.register(&Descriptor{
		Type:       chunkType,
		Parameters: chunkSizeParameters(types.KindRawText),
		Run:        runRawTextChunk,
	})
	r.register(&Descriptor{
		Type:         chunkSumType,
		Dependencies: []types.ContentTaskType{chunkType},
		Parameters:   chunkSizeParameters(types.KindRawText),
		Run:          runChunkSum(chunkType),
	})
	r.register(&Descriptor{
		Type:         chunkSumEmbedType,
		Dependencies: []types.ContentTaskType{chunkSumType},
		Parameters:   chunkSizeParameters(types.KindRawText),
		Run:          runChunkSumEmbed(chunkSumType, "language", types.RecordTextChunkSummarization),
	})
}

// chunkSizeParameters is the parameters function shared by every chunk-
// family task: the only configuration input that affects chunking output.
func chunkSizeParameters(kind types.ContentKind) ParametersFunc {
	return func(rc *RunContext) json.RawMessage {
		data, _ := json.Marshal(struct {
			ChunkSize int `json:"chunk_size"`
		}{ChunkSize: rc.chunkSize(kind)})
		return data
	}
}

func runRawTextChunk(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
	return chunkOriginalBlob(ctx, rc, file, run, types.KindRawText, types.TaskRawTextChunk)
}

// chunkOriginalBlob reads the file's text (the original uploaded blob, or
// for WebPage the Transform output), packs it into chunks, and writes the
// chunk-family output. Shared by RawText's
// first stage and WebPage's second stage (after Transform).
func chunkOriginalBlob(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord, kind types.ContentKind, taskName string) error {
	data, err := readOriginalOrTransformed(ctx, rc, file, kind)
	if err != nil {
		return err
	}
	chunks := PackChunks(splitParagraphs(string(data)), rc.chunkSize(kind), rc.tokenizer())
	out, err := writeJSON(ctx, rc, file.FileID, taskName, "chunks.json", chunkRecord{Chunks: chunks})
	if err != nil {
		return err
	}
	run.Output = out
	return nil
}

// readOriginalOrTransformed returns the WebPage Transform output for
// WebPage content, or the original blob for every other kind.
func readOriginalOrTransformed(ctx context.Context, rc *RunContext, file types.FileInfo, kind types.ContentKind) ([]byte, error) {
	if kind != types.KindWebPage {
		return rc.Blob.Read(ctx, originalBlobPath(file.FileID))
	}
	transformType := types.NewTaskType(types.KindWebPage, types.TaskWebPageTransform)
	out, err := latestOutput(ctx, rc, file.FileID, transformType)
	if err != nil {
		return nil, err
	}
	return readBytes(ctx, rc, file.FileID, types.TaskWebPageTransform, out)
}

// runChunkSum returns a Run function that summarizes every chunk produced
// by chunkType, shared by every *-chunk-sum task.
func runChunkSum(chunkType types.ContentTaskType) RunFunc {
	return func(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
		chunkOut, err := latestOutput(ctx, rc, file.FileID, chunkType)
		if err != nil {
			return err
		}
		var cr chunkRecord
		if err := readJSON(ctx, rc, file.FileID, chunkType.Name, chunkOut, &cr); err != nil {
			return err
		}
		texts := make([]string, len(cr.Chunks))
		for i, c := range cr.Chunks {
			texts[i] = c.Text
		}
		summaries, err := summarizeAll(ctx, rc, texts)
		if err != nil {
			return err
		}
		out, err := writeJSON(ctx, rc, file.FileID, run.TaskType.Name, "summaries.json", chunkSumRecord{Summaries: summaries})
		if err != nil {
			return err
		}
		run.Output = out
		return nil
	}
}

// runChunkSumEmbed returns a Run function that embeds every summary
// produced by chunkSumType and indexes each as collection/recordType,
// shared by every *-chunk-sum-embed task.
func runChunkSumEmbed(chunkSumType types.ContentTaskType, collection string, recordType types.RecordType) RunFunc {
	return func(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
		sumOut, err := latestOutput(ctx, rc, file.FileID, chunkSumType)
		if err != nil {
			return err
		}
		var sr chunkSumRecord
		if err := readJSON(ctx, rc, file.FileID, chunkSumType.Name, sumOut, &sr); err != nil {
			return err
		}
		if err := embedAndIndex(ctx, rc, file, run.TaskType.Kind, collection, sr.Summaries, func(i int) types.VectorPayload {
			return types.VectorPayload{FileIdentifier: file.FileID, RecordType: recordType}
		}); err != nil {
			return err
		}
		out, err := writeJSON(ctx, rc, file.FileID, run.TaskType.Name, "embedded.json", struct {
			Count int `json:"count"`
		}{Count: len(sr.Summaries)})
		if err != nil {
			return err
		}
		run.Output = out
		return nil
	}
}
