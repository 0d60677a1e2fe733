package contentbase

import (
	"context"

	"github.com/standardbeagle/contentbase/internal/index"
	"github.com/standardbeagle/contentbase/internal/tasks"
	"github.com/standardbeagle/contentbase/internal/types"
)

// QueryText embeds raw once with rc.TextEmbed, uses that one vector as both
// the language-space and the vision-space query vector, and runs Query.
// rc.ImageEmbed is not used. With rc.TextEmbed nil both vectors stay empty,
// which buildSignals treats as no signal for either vector collection.
func (cb *ContentBase) QueryText(ctx context.Context, rc *tasks.RunContext, raw string, filter types.SearchFilter, k, offset int) ([]types.HitResult, error) {
	model, err := textSearchModel(ctx, rc, raw)
	if err != nil {
		return nil, err
	}
	return cb.Query(ctx, model, filter, k, offset)
}

// QueryImage embeds imagePath into the vision space and, when prompt is
// non-empty, also builds the blended text search model the spec's
// ImageSearchModel carries for a caption-plus-prompt query.
func (cb *ContentBase) QueryImage(ctx context.Context, rc *tasks.RunContext, imagePath, prompt string, filter types.SearchFilter, k, offset int) ([]types.HitResult, error) {
	var visionVec []float32
	if rc.ImageEmbed != nil {
		v, err := rc.ImageEmbed.Submit(ctx, imagePath)
		if err != nil {
			return nil, err
		}
		visionVec = v
	}

	model := types.ImageSearchModel{Prompt: prompt, VisionVector: visionVec}
	if prompt != "" {
		promptModel, err := textSearchModel(ctx, rc, prompt)
		if err != nil {
			return nil, err
		}
		model.PromptSearchModel = &promptModel
		model.TextVector = promptModel.TextVector
	}
	return cb.Query(ctx, model, filter, k, offset)
}

// textSearchModel embeds raw once with TextEmbed and uses that same vector
// for both TextVector and VisionVector. The capability set here has no
// joint text/image (CLIP-style) encoder, so there is no way to produce a
// genuinely vision-space query vector from text; reusing the language
// embedding is the same simplification signal.go documents for
// text.vector/image.prompt_vector, kept consistent rather than adding a
// second collapse rule (see DESIGN.md).
func textSearchModel(ctx context.Context, rc *tasks.RunContext, raw string) (types.TextSearchModel, error) {
	model := types.TextSearchModel{Raw: raw, Tokens: index.Tokenize(raw)}
	if rc.TextEmbed != nil {
		v, err := rc.TextEmbed.Submit(ctx, raw)
		if err != nil {
			return types.TextSearchModel{}, err
		}
		model.TextVector = v
		model.VisionVector = v
	}
	return model, nil
}
