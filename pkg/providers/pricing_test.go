package providers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/postwright/postwright/pkg/config"
	"github.com/postwright/postwright/pkg/models"
)

func testPricing() *Pricing {
	return NewPricing(config.Default().Pricing)
}

func TestTextCostKnownModel(t *testing.T) {
	p := testPricing()
	// gpt-4: 0.03 prompt, 0.06 completion per 1K
	got := p.TextCost("gpt-4", 1000, 500)
	assert.True(t, got.Equal(decimal.RequireFromString("0.06")), "got %s", got)
}

func TestTextCostDefaultRate(t *testing.T) {
	p := testPricing()
	got := p.TextCost("unknown-model", 1500, 500)
	assert.True(t, got.Equal(decimal.RequireFromString("0.004")), "got %s", got)
}

func TestImageCost(t *testing.T) {
	assert.True(t, testPricing().ImageCost().Equal(decimal.RequireFromString("0.04")))
}

func TestTranscriptionCost(t *testing.T) {
	p := testPricing()
	assert.True(t, p.TranscriptionCost(90).Equal(decimal.RequireFromString("0.009")))
	assert.True(t, p.TranscriptionCost(0).IsZero())
	assert.True(t, p.TranscriptionCost(-5).IsZero())
}

func TestEstimates(t *testing.T) {
	p := testPricing()
	assert.True(t, p.Estimate(models.JobTextGeneration).Equal(decimal.RequireFromString("0.003")))
	assert.True(t, p.Estimate(models.JobReelAnalysis).Equal(decimal.RequireFromString("0.008")))
	assert.True(t, p.Estimate(models.JobInfographic).Equal(decimal.RequireFromString("0.04")))
	assert.True(t, p.Estimate(models.JobImprove).Equal(decimal.RequireFromString("0.05")))
	assert.True(t, p.Estimate(models.JobPostAnalysis).Equal(decimal.RequireFromString("0.02")))
	assert.True(t, p.Estimate("unknown").IsZero())
}

func TestEstimateDuration(t *testing.T) {
	assert.InDelta(t, 1.2, EstimateDuration(16000), 1e-9)
	assert.InDelta(t, 0, EstimateDuration(0), 1e-9)
}
