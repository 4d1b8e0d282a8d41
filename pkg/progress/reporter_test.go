package progress

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postwright/postwright/pkg/models"
)

func drain(r *Reporter) []models.ProgressEvent {
	var out []models.ProgressEvent
	for ev := range r.Events() {
		out = append(out, ev)
	}
	return out
}

func TestStartEmitsStartAtZero(t *testing.T) {
	r := Start(context.Background(), "job-1")
	r.Close()

	events := drain(r)
	require.Len(t, events, 1)
	assert.Equal(t, models.StepStart, events[0].Step)
	assert.Equal(t, 0, events[0].Progress)
	assert.Equal(t, "job-1", r.JobID())
}

func TestEventsAreOrderedAndMonotonic(t *testing.T) {
	r := Start(context.Background(), "job-2")

	var events []models.ProgressEvent
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		events = drain(r)
	}()

	require.NoError(t, r.Emit("estimate", "Estimating", 10, nil))
	require.NoError(t, r.Emit("budget", "Checking budget", 30, nil))
	require.NoError(t, r.Emit("prompt", "Going backwards", 20, nil))
	require.NoError(t, r.Emit("generate", "Way over", 150, nil))
	require.NoError(t, r.Complete("Done", map[string]any{"id": 1}))
	r.Close()
	wg.Wait()

	steps := make([]string, len(events))
	for i, ev := range events {
		steps[i] = ev.Step
		if i > 0 {
			assert.GreaterOrEqual(t, ev.Progress, events[i-1].Progress, "progress went backwards at %s", ev.Step)
		}
	}
	assert.Equal(t, []string{"start", "estimate", "budget", "prompt", "generate", "complete"}, steps)
	assert.Equal(t, 30, events[3].Progress)
	assert.Equal(t, 100, events[4].Progress)
	assert.True(t, events[len(events)-1].Terminal())
}

func TestNoEmitsAfterTerminal(t *testing.T) {
	r := Start(context.Background(), "job-3")
	require.NoError(t, r.Emit("budget", "Checking", 30, nil))
	require.NoError(t, r.Fail("Monthly budget exceeded"))

	assert.ErrorIs(t, r.Emit("generate", "late", 50, nil), ErrTerminated)
	assert.ErrorIs(t, r.Complete("late", nil), ErrTerminated)
	assert.ErrorIs(t, r.Fail("again"), ErrTerminated)
	r.Close()

	events := drain(r)
	last := events[len(events)-1]
	assert.Equal(t, models.StepError, last.Step)
	assert.Equal(t, 30, last.Progress)
	assert.Equal(t, "Monthly budget exceeded", last.Message)
}

func TestEmitRejectsTerminalSteps(t *testing.T) {
	r := Start(context.Background(), "job-4")
	defer r.Close()
	assert.Error(t, r.Emit(models.StepComplete, "x", 100, nil))
	assert.Error(t, r.Emit(models.StepError, "x", 0, nil))
}

func TestCloseIsIdempotent(t *testing.T) {
	r := Start(context.Background(), "job-5")
	r.Close()
	assert.NotPanics(t, r.Close)
	assert.ErrorIs(t, r.Emit("late", "after close", 50, nil), ErrTerminated)
}

func TestDisconnectedSubscriberIsNoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := Start(ctx, "job-6", WithBuffer(0))

	// Nobody reads; with an unbuffered channel these would block without
	// the disconnect check.
	for i := 1; i <= 5; i++ {
		require.NoError(t, r.Emit("step", "working", i*10, nil))
	}
	require.NoError(t, r.Complete("done", nil))
	assert.Equal(t, 100, r.Progress())
	r.Close()
}

func TestSanitizeElidesBinary(t *testing.T) {
	img := make([]byte, 1<<20)
	dataURL := "data:image/png;base64," + strings.Repeat("A", 50_000)

	out := Sanitize(map[string]any{
		"image":    img,
		"imageUrl": dataURL,
		"nested":   []any{map[string]any{"raw": []byte("abc")}},
		"title":    "ok",
	}).(map[string]any)

	assert.Equal(t, map[string]any{"elided": true, "bytes": 1 << 20}, out["image"])
	assert.Less(t, len(out["imageUrl"].(string)), 100)
	assert.True(t, strings.HasPrefix(out["imageUrl"].(string), "data:image/png;base64,[elided"))
	nested := out["nested"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"elided": true, "bytes": 3}, nested["raw"])
	assert.Equal(t, "ok", out["title"])
}

func TestSanitizeTruncatesOversizedPayload(t *testing.T) {
	items := make([]any, 0, 100)
	for range 100 {
		items = append(items, strings.Repeat("x", 1000))
	}
	out := Sanitize(map[string]any{"items": items}).(map[string]any)
	assert.Equal(t, true, out["truncated"])
}

func TestSanitizeNil(t *testing.T) {
	assert.Nil(t, Sanitize(nil))
}
