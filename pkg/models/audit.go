package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProcessType identifies the pipeline a processing log row belongs to.
type ProcessType string

const (
	ProcessAIPost       ProcessType = "ai_post"
	ProcessReelAnalysis ProcessType = "reel_analysis"
	ProcessInfographic  ProcessType = "infographic"
	ProcessPostAnalysis ProcessType = "post_analysis"
)

// ProcessStatus is the outcome of a processed job.
type ProcessStatus string

const (
	ProcessSuccess ProcessStatus = "success"
	ProcessError   ProcessStatus = "error"
)

// ProcessingLog is one job outcome in the processing journal.
type ProcessingLog struct {
	ID          int64             `json:"id"`
	JobID       string            `json:"job_id"`
	ProcessType ProcessType       `json:"process_type"`
	Status      ProcessStatus     `json:"status"`
	Details     string            `json:"details"`
	Cost        decimal.Decimal   `json:"cost"`
	DurationMs  int64             `json:"duration_ms"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ProcessingLogQuery filters processing log queries.
type ProcessingLogQuery struct {
	ProcessType ProcessType
	Status      ProcessStatus
	Since       time.Time
	Limit       int
}

// ProcessingStat counts outcomes per process type.
type ProcessingStat struct {
	ProcessType ProcessType     `json:"process_type"`
	Success     int             `json:"success"`
	Errors      int             `json:"errors"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

// AuditConfig controls the processing log.
type AuditConfig struct {
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxDetailSize int    `yaml:"max_detail_size"` // bytes
}
