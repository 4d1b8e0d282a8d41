// Package progress streams ordered progress events for one job to one
// subscriber.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/postwright/postwright/pkg/logger"
	"github.com/postwright/postwright/pkg/models"
)

// Payload size limits.
const (
	MaxStringLen    = 2048
	MaxPayloadBytes = 16 << 10
)

// ErrTerminated is returned by Emit, Complete and Fail after the job's
// terminal event.
var ErrTerminated = fmt.Errorf("progress: job already terminated")

// Reporter is a single-producer, single-consumer event stream for one job.
// Events are delivered in emission order. Delivery is best effort: once the
// subscriber context is done, emits are dropped and logged.
type Reporter struct {
	jobID  string
	sub    context.Context
	events chan models.ProgressEvent
	log    *logger.Logger
	now    func() time.Time

	mu         sync.Mutex
	last       int
	terminated bool
	closed     bool
	dropped    int
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets the reporter logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Reporter) { r.log = l }
}

// WithClock sets the clock that stamps events.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// WithBuffer sets the channel buffer size.
func WithBuffer(n int) Option {
	return func(r *Reporter) { r.events = make(chan models.ProgressEvent, n) }
}

// Start opens a stream for jobID and emits the start event at progress 0.
// sub is the subscriber's lifetime, usually the request context.
func Start(sub context.Context, jobID string, opts ...Option) *Reporter {
	r := &Reporter{
		jobID:  jobID,
		sub:    sub,
		events: make(chan models.ProgressEvent, 16),
		log:    logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("job_id", jobID)
	_ = r.Emit(models.StepStart, "Starting", 0, map[string]any{"job_id": jobID})
	return r
}

// JobID returns the job identifier.
func (r *Reporter) JobID() string {
	return r.jobID
}

// Events returns the receive side of the stream. It is closed by Close.
func (r *Reporter) Events() <-chan models.ProgressEvent {
	return r.events
}

// Progress returns the highest progress emitted so far.
func (r *Reporter) Progress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Emit sends a progress event. progress is clamped to [last, 100] so the
// stream never goes backwards. Binary payloads are elided before sending.
func (r *Reporter) Emit(step, message string, progress int, payload any) error {
	if step == models.StepComplete || step == models.StepError {
		return fmt.Errorf("progress: use Complete or Fail for %q", step)
	}
	return r.send(step, message, progress, payload, false)
}

// Complete sends the terminal complete event at progress 100.
func (r *Reporter) Complete(message string, payload any) error {
	return r.send(models.StepComplete, message, 100, payload, true)
}

// Fail sends the terminal error event. Its progress is the last emitted
// value so the stream stays non-decreasing.
func (r *Reporter) Fail(message string) error {
	return r.send(models.StepError, message, -1, nil, true)
}

func (r *Reporter) send(step, message string, progress int, payload any, terminal bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.terminated || r.closed {
		return ErrTerminated
	}

	switch {
	case progress < 0:
		progress = r.last
	case progress < r.last:
		r.log.Debugw("progress clamped", "step", step, "requested", progress, "last", r.last)
		progress = r.last
	case progress > 100:
		progress = 100
	}
	r.last = progress
	if terminal {
		r.terminated = true
	}

	ev := models.ProgressEvent{
		Step:      step,
		Message:   message,
		Progress:  progress,
		Timestamp: r.now().UTC(),
		Data:      Sanitize(payload),
	}

	if r.sub.Err() != nil {
		r.drop(step)
		return nil
	}
	select {
	case r.events <- ev:
	case <-r.sub.Done():
		r.drop(step)
	}
	return nil
}

func (r *Reporter) drop(step string) {
	r.dropped++
	if r.dropped == 1 {
		r.log.Infow("subscriber gone, dropping progress events", "step", step)
	}
}

// Close releases the stream. It is safe to call more than once.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.events)
}

// Sanitize bounds a payload before it is streamed: byte slices become a
// size summary, data URLs and long strings are cut, and payloads whose JSON
// form is still too large are replaced by a truncation marker.
func Sanitize(payload any) any {
	if payload == nil {
		return nil
	}
	out := sanitize(payload)
	b, err := json.Marshal(out)
	if err != nil {
		return map[string]any{"unencodable": true}
	}
	if len(b) > MaxPayloadBytes {
		return map[string]any{"truncated": true, "bytes": len(b)}
	}
	return out
}

func sanitize(v any) any {
	switch t := v.(type) {
	case []byte:
		return map[string]any{"elided": true, "bytes": len(t)}
	case string:
		return sanitizeString(t)
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = sanitize(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = sanitize(val)
		}
		return s
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = sanitizeString(val)
		}
		return m
	default:
		return v
	}
}

func sanitizeString(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i > 0 && len(s) > MaxStringLen {
			return s[:i+1] + fmt.Sprintf("[elided %d bytes]", len(s)-i-1)
		}
	}
	if len(s) > MaxStringLen {
		return s[:MaxStringLen] + "…"
	}
	return s
}
