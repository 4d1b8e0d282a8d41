package providers

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/postwright/postwright/pkg/config"
	"github.com/postwright/postwright/pkg/models"
)

var thousand = decimal.NewFromInt(1000)

// Pricing converts provider usage into dollar costs.
type Pricing struct {
	text          map[string]models.ModelPricing
	defaultPer1K  decimal.Decimal
	image         decimal.Decimal
	transcription decimal.Decimal
	estimates     map[models.JobKind]decimal.Decimal
}

// NewPricing builds a Pricing from configuration.
func NewPricing(cfg config.PricingConfig) *Pricing {
	p := &Pricing{
		text:          make(map[string]models.ModelPricing, len(cfg.Text)),
		defaultPer1K:  decimal.NewFromFloat(cfg.DefaultTextPer1K),
		image:         decimal.NewFromFloat(cfg.ImagePerCall),
		transcription: decimal.NewFromFloat(cfg.TranscriptionPerMinute),
		estimates:     make(map[models.JobKind]decimal.Decimal, len(cfg.Estimates)),
	}
	for _, mp := range cfg.Text {
		p.text[mp.Model] = mp
	}
	for kind, v := range cfg.Estimates {
		p.estimates[models.JobKind(kind)] = decimal.NewFromFloat(v)
	}
	return p
}

// TextCost prices a text generation. Models without a table entry are
// charged the default rate on total tokens.
func (p *Pricing) TextCost(model string, promptTokens, completionTokens int) decimal.Decimal {
	mp, ok := p.text[model]
	if !ok {
		total := decimal.NewFromInt(int64(promptTokens + completionTokens))
		return total.Div(thousand).Mul(p.defaultPer1K)
	}
	prompt := decimal.NewFromInt(int64(promptTokens)).Div(thousand).Mul(decimal.NewFromFloat(mp.PromptCost))
	completion := decimal.NewFromInt(int64(completionTokens)).Div(thousand).Mul(decimal.NewFromFloat(mp.CompletionCost))
	return prompt.Add(completion)
}

// ImageCost prices one generated image.
func (p *Pricing) ImageCost() decimal.Decimal {
	return p.image
}

// TranscriptionCost prices a transcription pro rata per minute of audio.
func (p *Pricing) TranscriptionCost(seconds float64) decimal.Decimal {
	if seconds <= 0 || math.IsNaN(seconds) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(seconds).Div(decimal.NewFromInt(60)).Mul(p.transcription)
}

// Estimate returns the static pre-flight estimate for a job kind.
func (p *Pricing) Estimate(kind models.JobKind) decimal.Decimal {
	return p.estimates[kind]
}
