package errors

import "context"

// Tracker forwards errors to an external tracking service.
type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
	Flush(ctx context.Context)
}

// NoopTracker drops everything.
type NoopTracker struct{}

// CaptureError implements Tracker.
func (NoopTracker) CaptureError(context.Context, error, map[string]string) {}

// Flush implements Tracker.
func (NoopTracker) Flush(context.Context) {}
