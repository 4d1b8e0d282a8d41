package jobs

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/progress"
)

const (
	maxPostLen        = 10000
	maxFeedbackPoints = 10
)

// StartImprove validates req and starts a job that revises a post to
// address feedback. With a PostID the revision replaces the stored content
// and its cost is added to the post's AI cost.
func (r *Runner) StartImprove(sub context.Context, req models.ImproveRequest) (*progress.Reporter, error) {
	if req.PostID < 0 {
		return nil, errors.NewValidationError("postId", "must be positive")
	}
	feedback := make([]string, 0, len(req.Feedback))
	for _, point := range req.Feedback {
		if point = strings.TrimSpace(point); point != "" {
			feedback = append(feedback, point)
		}
	}
	if len(feedback) == 0 {
		return nil, errors.NewValidationError("feedbackPoints", "at least one point required")
	}
	if len(feedback) > maxFeedbackPoints {
		return nil, errors.NewValidationError("feedbackPoints", "too many points")
	}

	content := strings.TrimSpace(req.Content)
	prior := decimal.Zero
	meta := map[string]string{}
	if req.PostID > 0 {
		post, err := r.Artifacts.Get(sub, req.PostID)
		if err != nil {
			return nil, err
		}
		if content == "" {
			content = post.Content
		}
		prior = post.AICost
		meta["post_id"] = strconv.FormatInt(req.PostID, 10)
	}
	if content == "" {
		return nil, errors.NewValidationError("originalPost", "required")
	}
	if len([]rune(content)) > maxPostLen {
		return nil, errors.NewValidationError("originalPost", "too long")
	}

	return r.launch(sub, improvePlan, meta, func(ctx context.Context, j *job) (map[string]any, error) {
		return r.runImprove(ctx, j, content, feedback, req.PostID, prior)
	}), nil
}

func (r *Runner) runImprove(ctx context.Context, j *job, content string, feedback []string, postID int64, prior decimal.Decimal) (map[string]any, error) {
	_ = j.rep.Emit("prompt", "Preparing feedback...", 30, map[string]any{"feedbackPoints": len(feedback)})

	_ = j.rep.Emit("generate", "Improving post...", 40, nil)
	res, err := r.textCall(ctx, j, models.JobImprove, "improve_text", improveSystem, improvePrompt(content, feedback))
	if err != nil {
		return nil, errors.Mark(err, errors.ErrProvider)
	}
	_ = j.rep.Emit("generate", "Post improved", 80, map[string]any{
		"tokensUsed": res.TokensUsed,
		"model":      res.Model,
		"cached":     res.Cached,
	})

	if err := r.settle(ctx, j); err != nil {
		return nil, err
	}
	out := map[string]any{
		"improvedPost": res.Content,
		"tokensUsed":   res.TokensUsed,
		"model":        res.Model,
		"cached":       res.Cached,
	}
	if postID > 0 {
		_ = j.rep.Emit("save", "Saving post...", 90, nil)
		cost := prior.Add(j.total())
		upd := models.ArtifactUpdate{Content: &res.Content, AICost: &cost}
		if err := r.Artifacts.UpdateArtifact(ctx, postID, upd); err != nil {
			return nil, errors.Mark(err, errors.ErrPersistence)
		}
		out["postId"] = postID
	}
	return out, nil
}
