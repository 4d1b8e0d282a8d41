// Package sentry reports job failures to Sentry.
package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// Tracker implements errors.Tracker via Sentry.
type Tracker struct {
	hub *sentry.Hub
}

// New initializes the Sentry client.
func New(dsn, environment, release string) (*Tracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, err
	}
	return &Tracker{hub: sentry.CurrentHub()}, nil
}

// CaptureError sends err to Sentry with tags.
func (t *Tracker) CaptureError(_ context.Context, err error, tags map[string]string) {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	hub.CaptureException(err)
}

// Flush waits briefly for queued events.
func (t *Tracker) Flush(context.Context) {
	sentry.Flush(2 * time.Second)
}
