package models

import "github.com/shopspring/decimal"

// BudgetDecision is the outcome of an affordability check.
type BudgetDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// HealthStatus classifies monthly spend against the budget.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// BudgetHealth reports how close monthly spend is to the budget.
type BudgetHealth struct {
	Status     HealthStatus `json:"status"`
	Message    string       `json:"message"`
	Percentage float64      `json:"percentage"`
}

// DailyLimit reports today's spend against the daily limit.
type DailyLimit struct {
	Limit     decimal.Decimal `json:"limit"`
	Current   decimal.Decimal `json:"current"`
	Remaining decimal.Decimal `json:"remaining"`
	Exceeded  bool            `json:"exceeded"`
}

// BudgetStatus is the combined budget view served to clients.
type BudgetStatus struct {
	Summary            CostSummary     `json:"summary"`
	Daily              DailyLimit      `json:"daily"`
	Health             BudgetHealth    `json:"health"`
	EstimatedRemaining int             `json:"estimated_remaining_posts"`
	Reserved           decimal.Decimal `json:"reserved"`
}
