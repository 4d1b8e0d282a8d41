package providers

import (
	"context"

	"github.com/postwright/postwright/pkg/config"
	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/logger"
	"github.com/postwright/postwright/pkg/metrics"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/router"
)

// Named pairs a client with the provider name it bills against.
type Named[T any] struct {
	Provider string
	Model    string
	Client   T
}

// Set is every client a job runner needs. Missing capabilities are nil.
type Set struct {
	Text        map[models.JobKind]*Named[TextGenerator]
	Image       *Named[ImageGenerator]
	Transcriber *Named[Transcriber]
	Downloader  Downloader
}

// Build resolves routes for every capability and creates the clients.
// Capabilities whose provider has no API key are left nil and logged; jobs
// needing them fail with ErrProvider.
func Build(ctx context.Context, cfg *config.Config, cache PromptCache, m *metrics.Metrics, log *logger.Logger) *Set {
	r := router.New(cfg)
	limiters := make(map[string]*Limiter, len(cfg.Providers))
	for _, p := range cfg.Providers {
		limiters[p.Name] = NewLimiter(p.Name, p.RPM)
	}

	set := &Set{
		Text: make(map[models.JobKind]*Named[TextGenerator]),
		Downloader: NewYTDLP(
			cfg.Downloader.Binary, cfg.TempDir, cfg.Downloader.Timeout,
		),
	}

	for _, kind := range []models.JobKind{
		models.JobTextGeneration, models.JobReelAnalysis, models.JobImprove, models.JobPostAnalysis,
	} {
		route, err := r.Resolve(config.CapabilityText, kind)
		if err != nil {
			log.Warnw("no text route", "job", kind, "error", err)
			continue
		}
		gen, err := newText(ctx, route, limiters[route.Provider.Name], cfg.Downloader.MaxSizeMB)
		if err != nil {
			log.Warnw("text provider unavailable", "job", kind, "provider", route.Provider.Name, "error", err)
			continue
		}
		if cache != nil && cfg.Cache.Enabled {
			gen = NewCachedText(gen, cache, route.Model, m, log)
		}
		set.Text[kind] = &Named[TextGenerator]{Provider: route.Provider.Name, Model: route.Model, Client: gen}
	}

	if route, err := r.Resolve(config.CapabilityImage, models.JobInfographic); err == nil {
		if route.Provider.Type != "gemini" {
			log.Warnw("image generation needs a gemini provider", "provider", route.Provider.Name)
		} else if g, err := NewGemini(ctx, GeminiConfig{
			APIKey:  route.Provider.APIKey,
			BaseURL: route.Provider.URL,
			Model:   route.Model,
			Limiter: limiters[route.Provider.Name],
		}); err != nil {
			log.Warnw("image provider unavailable", "provider", route.Provider.Name, "error", err)
		} else {
			set.Image = &Named[ImageGenerator]{Provider: route.Provider.Name, Model: route.Model, Client: GeminiImage{g}}
		}
	}

	if route, err := r.Resolve(config.CapabilityTranscription, models.JobReelAnalysis); err == nil {
		if route.Provider.Type != "openai" {
			log.Warnw("transcription needs an openai provider", "provider", route.Provider.Name)
		} else if o, err := NewOpenAI(OpenAIConfig{
			APIKey:        route.Provider.APIKey,
			BaseURL:       route.Provider.URL,
			Model:         route.Model,
			Limiter:       limiters[route.Provider.Name],
			MaxAudioBytes: int64(cfg.Downloader.MaxSizeMB) * 1024 * 1024,
		}); err != nil {
			log.Warnw("transcription provider unavailable", "provider", route.Provider.Name, "error", err)
		} else {
			set.Transcriber = &Named[Transcriber]{Provider: route.Provider.Name, Model: route.Model, Client: o}
		}
	}

	return set
}

func newText(ctx context.Context, route router.Route, limiter *Limiter, maxAudioMB int) (TextGenerator, error) {
	switch route.Provider.Type {
	case "gemini":
		return NewGemini(ctx, GeminiConfig{
			APIKey:  route.Provider.APIKey,
			BaseURL: route.Provider.URL,
			Model:   route.Model,
			Limiter: limiter,
		})
	case "openai":
		return NewOpenAI(OpenAIConfig{
			APIKey:        route.Provider.APIKey,
			BaseURL:       route.Provider.URL,
			Model:         route.Model,
			Limiter:       limiter,
			MaxAudioBytes: int64(maxAudioMB) * 1024 * 1024,
		})
	default:
		return nil, errors.Newf(errors.ErrProvider, "unknown provider type %q", route.Provider.Type)
	}
}
