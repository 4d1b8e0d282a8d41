package jobs

import (
	"context"
	"strconv"
	"strings"

	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/progress"
	"github.com/postwright/postwright/pkg/render"
)

const maxInfographicContent = 10000

// StartInfographic validates req and starts an infographic job. A PostID
// must name a stored post; otherwise the ErrNotFound error is returned and
// nothing is billed.
func (r *Runner) StartInfographic(sub context.Context, req models.InfographicRequest) (*progress.Reporter, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, errors.NewValidationError("content", "required")
	}
	if len(content) > maxInfographicContent {
		return nil, errors.NewValidationError("content", "too long")
	}
	if req.PostID < 0 {
		return nil, errors.NewValidationError("postId", "must be positive")
	}

	meta := map[string]string{}
	if req.PostID > 0 {
		if _, err := r.Artifacts.Get(sub, req.PostID); err != nil {
			return nil, err
		}
		meta["post_id"] = strconv.FormatInt(req.PostID, 10)
	}
	return r.launch(sub, infographicPlan, meta, func(ctx context.Context, j *job) (map[string]any, error) {
		return r.runInfographic(ctx, j, content, strings.TrimSpace(req.Title), req.PostID)
	}), nil
}

func (r *Runner) runInfographic(ctx context.Context, j *job, content, title string, postID int64) (map[string]any, error) {
	sel := r.Styles.Select(content, title)
	analysis := render.Analyze(content, title)
	j.meta["style"] = string(sel.Style)
	_ = j.rep.Emit("style", "Selected "+string(sel.Style)+" layout", 30, map[string]any{
		"style":      sel.Style,
		"confidence": sel.Confidence,
	})

	_ = j.rep.Emit("generate", "Generating image...", 40, nil)
	data, mimeType, fellBack := r.generateImage(ctx, j, analysis, sel.Style)
	if fellBack {
		svg, err := render.SVG(analysis, sel.Style)
		if err != nil {
			return nil, err
		}
		data, mimeType = svg, render.SVGMIMEType
		_ = j.rep.Emit("generate", "Rendered fallback infographic", 75, map[string]any{"fallback": true})
	} else {
		_ = j.rep.Emit("generate", "Image generated", 75, map[string]any{"fallback": false})
	}

	_ = j.rep.Emit("save", "Saving infographic...", 90, nil)
	if err := r.settle(ctx, j); err != nil {
		return nil, err
	}
	url, err := r.Files.Save(ctx, data, mimeType)
	if err != nil {
		return nil, errors.Mark(err, errors.ErrPersistence)
	}
	if postID > 0 {
		src := models.ImageGenerated
		if fellBack {
			src = models.ImageRendered
		}
		if err := r.Artifacts.UpdateArtifact(ctx, postID, models.ArtifactUpdate{ImageURL: &url, ImageSource: &src}); err != nil {
			return nil, errors.Mark(err, errors.ErrPersistence)
		}
	}

	out := map[string]any{
		"imageUrl": url,
		"style":    sel.Style,
		"fallback": fellBack,
	}
	if postID > 0 {
		out["postId"] = postID
	}
	return out, nil
}

// generateImage asks the image provider for an infographic. It reports
// fallback when no provider is configured, the call fails or the response
// carries no image. Only a successful call is billed.
func (r *Runner) generateImage(ctx context.Context, j *job, a render.Analysis, style render.Style) ([]byte, string, bool) {
	img := r.Providers.Image
	if img == nil || img.Client == nil {
		return nil, "", true
	}

	res, err := img.Client.Generate(ctx, render.ImagePrompt(a, style))
	r.providerCall(img.Provider, "generate_image", err)
	if err != nil {
		r.Log.Warnw("image generation failed, rendering locally", "job_id", j.id, "error", err)
		return nil, "", true
	}
	if len(res.Data) == 0 {
		return nil, "", true
	}

	model := res.Model
	if model == "" {
		model = img.Model
	}
	j.bill(call{
		service:   models.ServiceImageGen,
		operation: "generate_image",
		provider:  img.Provider,
		model:     model,
		cost:      r.Pricing.ImageCost(),
	})
	mimeType := res.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return res.Data, mimeType, false
}
