package jobs

import (
	"context"
	"strings"

	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/progress"
	"github.com/postwright/postwright/pkg/providers"
)

// StartReel validates req and starts a reel analysis job. Either a URL or a
// description is required; a URL must point at instagram.com.
func (r *Runner) StartReel(sub context.Context, req models.ReelRequest) (*progress.Reporter, error) {
	url := strings.TrimSpace(req.URL)
	desc := strings.TrimSpace(req.Description)
	if url == "" && desc == "" {
		return nil, errors.NewValidationError("url", "url or description required")
	}
	if url != "" && !strings.Contains(url, "instagram.com") {
		return nil, errors.NewValidationError("url", "must be an instagram.com URL")
	}

	meta := map[string]string{}
	if url != "" {
		meta["url"] = url
		if id, ok := providers.ReelID(url); ok {
			meta["reel_id"] = id
		}
	}
	return r.launch(sub, reelPlan, meta, func(ctx context.Context, j *job) (map[string]any, error) {
		return r.runReel(ctx, j, url, desc)
	}), nil
}

func (r *Runner) runReel(ctx context.Context, j *job, url, desc string) (map[string]any, error) {
	audio := ""
	if url != "" {
		_ = j.rep.Emit("download", "Downloading reel audio...", 15, nil)
		path, err := r.download(ctx, url)
		if err != nil {
			r.Log.Warnw("reel download failed", "job_id", j.id, "error", err)
			if desc == "" {
				return nil, err
			}
			_ = j.rep.Emit("download", "Download failed, using description", 25, nil)
		} else {
			j.temp = append(j.temp, path)
			audio = path
			_ = j.rep.Emit("download", "Audio downloaded", 25, nil)
		}
	}

	transcript := ""
	if audio != "" {
		transcript = r.transcribeStep(ctx, j, audio)
	}

	data := map[string]string{}
	if url != "" {
		data["url"] = url
	}
	return r.writeReelPost(ctx, j, transcript, desc, data)
}

// transcribeStep runs the audio step on a local media file. The transcript
// is empty when transcription fails or finds no speech.
func (r *Runner) transcribeStep(ctx context.Context, j *job, path string) string {
	_ = j.rep.Emit("audio", "Transcribing audio...", 30, nil)
	text, err := r.transcribe(ctx, j, path)
	switch {
	case err != nil:
		r.Log.Warnw("transcription failed", "job_id", j.id, "error", err)
		_ = j.rep.Emit("audio", "Transcription failed, using description", 45, nil)
		return ""
	case strings.TrimSpace(text) == "":
		_ = j.rep.Emit("audio", "No speech found, using description", 45, nil)
		return ""
	}
	_ = j.rep.Emit("audio", "Audio transcribed", 45, map[string]any{"characters": len(text)})
	return text
}

// writeReelPost drafts a post from a transcript, a description or both and
// stores it as an Instagram-sourced post carrying data.
func (r *Runner) writeReelPost(ctx context.Context, j *job, transcript, desc string, data map[string]string) (map[string]any, error) {
	if transcript == "" && desc == "" {
		return nil, errors.New(errors.ErrTranscription, "No description provided for fallback")
	}
	source := "description"
	if transcript != "" {
		source = "transcript"
	}

	_ = j.rep.Emit("analysis", "Writing post...", 50, nil)
	res, err := r.textCall(ctx, j, models.JobReelAnalysis, "reel_post", reelSystem, reelPrompt(transcript, desc))
	if err != nil {
		return nil, errors.Mark(err, errors.ErrProvider)
	}
	_ = j.rep.Emit("analysis", "Post written", 80, map[string]any{"source": source})

	_ = j.rep.Emit("save", "Saving post...", 90, nil)
	if err := r.settle(ctx, j); err != nil {
		return nil, err
	}
	data["source"] = source
	if desc != "" {
		data["description"] = desc
	}
	id, err := r.Artifacts.CreateArtifact(ctx, res.Content, models.ArtifactMeta{
		SourceType: models.SourceInstagram,
		SourceData: data,
		JobID:      j.id,
		AICost:     j.total(),
	})
	if err != nil {
		return nil, errors.Mark(err, errors.ErrPersistence)
	}

	return map[string]any{
		"postId":     id,
		"content":    res.Content,
		"source":     source,
		"transcript": transcript,
		"tokensUsed": res.TokensUsed,
		"model":      res.Model,
	}, nil
}

func (r *Runner) download(ctx context.Context, url string) (string, error) {
	if r.Providers.Downloader == nil {
		return "", errors.New(errors.ErrDownload, "no downloader configured")
	}
	path, err := r.Providers.Downloader.Fetch(ctx, url)
	r.providerCall("yt-dlp", "download", err)
	if err != nil {
		return "", errors.Mark(err, errors.ErrDownload)
	}
	return path, nil
}

// transcribe bills the transcription only when it succeeded.
func (r *Runner) transcribe(ctx context.Context, j *job, path string) (string, error) {
	t := r.Providers.Transcriber
	if t == nil || t.Client == nil {
		return "", errors.New(errors.ErrTranscription, "no transcriber configured")
	}
	res, err := t.Client.Transcribe(ctx, path)
	r.providerCall(t.Provider, "transcribe", err)
	if err != nil {
		return "", errors.Mark(err, errors.ErrTranscription)
	}
	model := res.Model
	if model == "" {
		model = t.Model
	}
	j.bill(call{
		service:   models.ServiceTranscription,
		operation: "transcribe",
		provider:  t.Provider,
		model:     model,
		cost:      r.Pricing.TranscriptionCost(res.DurationSeconds),
	})
	return res.Text, nil
}
