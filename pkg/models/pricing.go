package models

// ModelPricing defines per-1K token costs for a text model.
type ModelPricing struct {
	Model          string  `json:"model" yaml:"model"`
	PromptCost     float64 `json:"prompt_cost_per_1k" yaml:"prompt_cost_per_1k"`
	CompletionCost float64 `json:"completion_cost_per_1k" yaml:"completion_cost_per_1k"`
}
