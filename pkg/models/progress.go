package models

import "time"

// Well-known progress steps.
const (
	StepStart    = "start"
	StepComplete = "complete"
	StepError    = "error"
)

// ProgressEvent is one streamed status update for a job.
type ProgressEvent struct {
	Step      string    `json:"step"`
	Message   string    `json:"message"`
	Progress  int       `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Terminal reports whether the event ends its stream.
func (e ProgressEvent) Terminal() bool {
	return e.Step == StepComplete || e.Step == StepError
}
