package jobs

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/progress"
)

const maxSuggestions = 5

// StartAnalyze validates req and starts a job that scores a post. Nothing
// is stored; the scores are returned in the complete event.
func (r *Runner) StartAnalyze(sub context.Context, req models.AnalyzeRequest) (*progress.Reporter, error) {
	if req.PostID < 0 {
		return nil, errors.NewValidationError("postId", "must be positive")
	}
	content := strings.TrimSpace(req.Content)
	meta := map[string]string{}
	if req.PostID > 0 {
		post, err := r.Artifacts.Get(sub, req.PostID)
		if err != nil {
			return nil, err
		}
		if content == "" {
			content = post.Content
		}
		meta["post_id"] = strconv.FormatInt(req.PostID, 10)
	}
	if content == "" {
		return nil, errors.NewValidationError("post", "required")
	}
	if len([]rune(content)) > maxPostLen {
		return nil, errors.NewValidationError("post", "too long")
	}

	return r.launch(sub, analyzePlan, meta, func(ctx context.Context, j *job) (map[string]any, error) {
		return r.runAnalyze(ctx, j, content)
	}), nil
}

func (r *Runner) runAnalyze(ctx context.Context, j *job, content string) (map[string]any, error) {
	_ = j.rep.Emit("analysis", "Analyzing post...", 30, nil)
	res, err := r.textCall(ctx, j, models.JobPostAnalysis, "analyze_post", analysisSystem, analysisPrompt(content))
	if err != nil {
		return nil, errors.Mark(err, errors.ErrProvider)
	}
	a, err := parseAnalysis(res.Content)
	if err != nil {
		return nil, err
	}
	j.meta["overall_score"] = strconv.FormatFloat(a.OverallScore, 'f', 1, 64)
	_ = j.rep.Emit("analysis", "Analysis complete", 80, map[string]any{"overallScore": a.OverallScore})

	return map[string]any{
		"scores":       a.Scores,
		"overallScore": a.OverallScore,
		"suggestions":  a.Suggestions,
		"tokensUsed":   res.TokensUsed,
		"model":        res.Model,
		"cached":       res.Cached,
	}, nil
}

// parseAnalysis reads the model's JSON reply. Scores are clamped to 0..10,
// unknown criteria are dropped, and the overall score is the mean of the
// criteria present, rounded to one decimal.
func parseAnalysis(raw string) (models.PostAnalysis, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var reply struct {
		Scores      map[string]float64 `json:"scores"`
		Suggestions []string           `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &reply); err != nil {
		return models.PostAnalysis{}, errors.Wrap(errors.Mark(err, errors.ErrProvider), "parse analysis")
	}

	out := models.PostAnalysis{Scores: map[string]float64{}, Suggestions: []string{}}
	sum := 0.0
	for _, name := range analysisCriteria {
		v, ok := reply.Scores[name]
		if !ok {
			continue
		}
		v = math.Max(0, math.Min(10, v))
		out.Scores[name] = v
		sum += v
	}
	if len(out.Scores) == 0 {
		return models.PostAnalysis{}, errors.New(errors.ErrProvider, "analysis reply has no scores")
	}
	out.OverallScore = math.Round(sum/float64(len(out.Scores))*10) / 10

	for _, s := range reply.Suggestions {
		if s = strings.TrimSpace(s); s != "" && len(out.Suggestions) < maxSuggestions {
			out.Suggestions = append(out.Suggestions, s)
		}
	}
	return out, nil
}
