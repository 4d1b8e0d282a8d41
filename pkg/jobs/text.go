package jobs

import (
	"context"
	"strings"

	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/progress"
)

const maxTopicLen = 500

// StartText validates req and starts a post generation job. Validation
// errors are returned before any event is emitted.
func (r *Runner) StartText(sub context.Context, req models.GenerateRequest) (*progress.Reporter, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, errors.NewValidationError("topic", "required")
	}
	if len([]rune(topic)) > maxTopicLen {
		return nil, errors.NewValidationError("topic", "too long")
	}

	meta := map[string]string{"topic": topic}
	return r.launch(sub, textPlan, meta, func(ctx context.Context, j *job) (map[string]any, error) {
		return r.runText(ctx, j, topic, req.Context)
	}), nil
}

func (r *Runner) runText(ctx context.Context, j *job, topic, extra string) (map[string]any, error) {
	_ = j.rep.Emit("prompt", "Preparing prompt...", 35, nil)
	prompt := postPrompt(topic, extra)
	_ = j.rep.Emit("prompt", "Prompt ready", 45, nil)

	_ = j.rep.Emit("generate", "Generating post...", 50, nil)
	res, err := r.textCall(ctx, j, models.JobTextGeneration, "generate_post", postSystem, prompt)
	if err != nil {
		return nil, errors.Mark(err, errors.ErrProvider)
	}
	_ = j.rep.Emit("generate", "Post generated", 85, map[string]any{
		"tokensUsed": res.TokensUsed,
		"model":      res.Model,
		"cached":     res.Cached,
	})

	_ = j.rep.Emit("save", "Saving post...", 90, nil)
	if err := r.settle(ctx, j); err != nil {
		return nil, err
	}
	id, err := r.Artifacts.CreateArtifact(ctx, res.Content, models.ArtifactMeta{
		SourceType: models.SourceAIResearch,
		SourceData: map[string]string{"topic": topic, "context": strings.TrimSpace(extra)},
		JobID:      j.id,
		AICost:     j.total(),
	})
	if err != nil {
		return nil, errors.Mark(err, errors.ErrPersistence)
	}

	return map[string]any{
		"postId":     id,
		"content":    res.Content,
		"tokensUsed": res.TokensUsed,
		"model":      res.Model,
		"cached":     res.Cached,
	}, nil
}
