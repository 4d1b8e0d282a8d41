package providers

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/postwright/postwright/pkg/errors"
)

// GeminiConfig configures a Gemini client.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Limiter *Limiter
}

// Gemini generates text and images with the Gemini API.
type Gemini struct {
	models  *genai.Models
	model   string
	limiter *Limiter
}

// NewGemini creates a Gemini client for one model.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewValidationError("api_key", "gemini API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create gemini client"), errors.ErrProvider)
	}
	return &Gemini{models: client.Models, model: cfg.Model, limiter: cfg.Limiter}, nil
}

// Generate implements TextGenerator.
func (g *Gemini) Generate(ctx context.Context, system, prompt string) (TextResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return TextResult{}, errors.Mark(err, errors.ErrProvider)
	}

	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		}
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return TextResult{}, errors.Mark(errors.Wrapf(err, "gemini %s", g.model), errors.ErrProvider)
	}

	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return TextResult{}, errors.Newf(errors.ErrProvider, "gemini %s returned no text", g.model)
	}

	res := TextResult{Content: content, Model: g.model}
	if u := resp.UsageMetadata; u != nil {
		res.PromptTokens = int(u.PromptTokenCount)
		res.CompletionTokens = int(u.CandidatesTokenCount)
		res.TokensUsed = int(u.TotalTokenCount)
	}
	if res.TokensUsed == 0 {
		res.TokensUsed = res.PromptTokens + res.CompletionTokens
	}
	return res, nil
}

// GeminiImage adapts a Gemini client to ImageGenerator.
type GeminiImage struct {
	*Gemini
}

// Generate implements ImageGenerator. It returns ErrNoImageData when the
// response carries no inline image.
func (g GeminiImage) Generate(ctx context.Context, prompt string) (ImageResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return ImageResult{}, errors.Mark(err, errors.ErrProvider)
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return ImageResult{}, errors.Mark(errors.Wrapf(err, "gemini %s", g.model), errors.ErrProvider)
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return ImageResult{Data: part.InlineData.Data, MIMEType: mime, Model: g.model}, nil
		}
	}
	return ImageResult{}, ErrNoImageData
}
