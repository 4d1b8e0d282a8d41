package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Service identifies the kind of billed provider capability.
type Service string

const (
	ServiceTextGen       Service = "text-gen"
	ServiceImageGen      Service = "image-gen"
	ServiceTranscription Service = "transcription"
	ServiceSearch        Service = "search"
)

// Services lists every known service in display order.
var Services = []Service{ServiceTextGen, ServiceImageGen, ServiceTranscription, ServiceSearch}

// Valid reports whether s is a known service.
func (s Service) Valid() bool {
	for _, known := range Services {
		if s == known {
			return true
		}
	}
	return false
}

// CostEntry is one priced operation in the ledger. Entries are never mutated.
type CostEntry struct {
	ID         int64             `json:"id"`
	Service    Service           `json:"service"`
	Operation  string            `json:"operation"`
	TokensUsed *int              `json:"tokens_used,omitempty"`
	Cost       decimal.Decimal   `json:"cost"`
	JobID      string            `json:"job_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ServiceCost aggregates spend for a single service.
type ServiceCost struct {
	Service   Service         `json:"service"`
	Cost      decimal.Decimal `json:"cost"`
	CallCount int             `json:"call_count"`
}

// DayCost aggregates spend for a single UTC calendar day (YYYY-MM-DD).
type DayCost struct {
	Date string          `json:"date"`
	Cost decimal.Decimal `json:"cost"`
}

// OperationCost aggregates spend for a single operation label.
type OperationCost struct {
	Operation   string          `json:"operation"`
	Count       int             `json:"count"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	AverageCost decimal.Decimal `json:"average_cost"`
	TotalTokens int64           `json:"total_tokens"`
}

// CostSummary is the derived spend report for a window. It is never stored.
type CostSummary struct {
	WindowStart       time.Time       `json:"window_start"`
	WindowEnd         time.Time       `json:"window_end"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	ByService         []ServiceCost   `json:"by_service"`
	ByDay             []DayCost       `json:"by_day"`
	BudgetLimit       decimal.Decimal `json:"budget_limit"`
	BudgetUsedPercent float64         `json:"budget_used_percent"`
	BudgetRemaining   decimal.Decimal `json:"budget_remaining"`
	NearBudget        bool            `json:"near_budget"`
	OverBudget        bool            `json:"over_budget"`
}
