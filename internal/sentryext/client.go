// Package sentryext wraps the Sentry SDK for launcher error reporting.
package sentryext

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

type Params struct {
	// DSN is the Data Source Name for the sentry client
	DSN string
	// Disabled turns off error reporting regardless of the DSN
	Disabled bool
	// AttachStacktrace is a flag to attach stacktrace to the sentry event
	AttachStacktrace bool
	// Release is the version of the launcher
	Release string
	// Environment is the environment the launcher is running in
	Environment string
}

type Client struct {
	disabled bool
}

// New initializes the sentry client.
//
// If the DSN is not set, the client is effectively disabled and will not
// send any errors to sentry.
func New(params Params) *Client {
	if params.Disabled {
		return &Client{disabled: true}
	}

	if err := sentry.Init(
		sentry.ClientOptions{
			Dsn:              params.DSN,
			AttachStacktrace: params.AttachStacktrace,
			Release:          params.Release,
			Environment:      params.Environment,
		}); err != nil {
		slog.Error("sentryext: New: failed to initialize sentry", "err", err)
	}

	if params.DSN == "" {
		slog.Debug("sentryext: New: sentry is disabled, no DSN provided")
	}

	return &Client{disabled: params.DSN == ""}
}

// CaptureException captures an error and sends it to sentry.
//
// The error is sent to sentry as an error level event, enriched with the
// tags provided.
func (s *Client) CaptureException(err error, tags map[string]string) {
	if s.disabled {
		return
	}

	localHub := sentry.CurrentHub().Clone()
	localHub.ConfigureScope(
		func(scope *sentry.Scope) {
			scope.SetTags(tags)
		},
	)
	localHub.CaptureException(err)
}

// CaptureMessage captures a non-error message and sends it to sentry as an
// info level event, enriched with the tags provided.
func (s *Client) CaptureMessage(msg string, tags map[string]string) {
	if s.disabled {
		return
	}

	localHub := sentry.CurrentHub().Clone()
	localHub.ConfigureScope(
		func(scope *sentry.Scope) {
			scope.SetTags(tags)
		},
	)
	localHub.CaptureMessage(msg)
}

// Reraise captures an error and re-raises it.
// Used to capture unexpected panics.
func (s *Client) Reraise(err any, tags map[string]string) {
	if err != nil {
		e, ok := err.(error)
		if !ok {
			e = fmt.Errorf("%v", err)
		}
		s.CaptureException(e, tags)
		sentry.Flush(time.Second * 2)
		panic(err)
	}
}

// Flush flushes the sentry client.
func (s *Client) Flush(timeout time.Duration) bool {
	if s.disabled {
		return true
	}
	hub := sentry.CurrentHub()
	return hub.Flush(timeout)
}
