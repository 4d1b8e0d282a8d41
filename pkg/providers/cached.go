package providers

import (
	"context"

	cachepkg "github.com/postwright/postwright/pkg/cache/sqlite"
	"github.com/postwright/postwright/pkg/logger"
	"github.com/postwright/postwright/pkg/metrics"
	"github.com/postwright/postwright/pkg/models"
)

// PromptCache stores text generations by prompt hash and model.
type PromptCache interface {
	Get(ctx context.Context, promptHash, model string) (models.CacheEntry, bool)
	Put(ctx context.Context, promptHash, model, content string, tokensUsed int) error
}

// CachedText serves repeated prompts from a PromptCache. Hits are marked
// Cached and carry no billable tokens.
type CachedText struct {
	next    TextGenerator
	cache   PromptCache
	model   string
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewCachedText wraps next, keying entries by model.
func NewCachedText(next TextGenerator, cache PromptCache, model string, m *metrics.Metrics, log *logger.Logger) *CachedText {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedText{next: next, cache: cache, model: model, metrics: m, log: log}
}

// Generate implements TextGenerator.
func (c *CachedText) Generate(ctx context.Context, system, prompt string) (TextResult, error) {
	hash := cachepkg.HashPrompt(c.model, system, prompt)

	if entry, ok := c.cache.Get(ctx, hash, c.model); ok {
		c.metrics.CacheLookup(true)
		return TextResult{Content: entry.Content, Model: c.model, Cached: true}, nil
	}
	c.metrics.CacheLookup(false)

	res, err := c.next.Generate(ctx, system, prompt)
	if err != nil {
		return res, err
	}

	// Cache write
	if err := c.cache.Put(ctx, hash, c.model, res.Content, res.TokensUsed); err != nil {
		c.log.Warnw("prompt cache write failed", "model", c.model, "error", err)
	}
	return res, nil
}
