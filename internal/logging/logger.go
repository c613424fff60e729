// Package logging is the structured logger shared by the callback server,
// the credential store and the triage CLI. NewSlogLogger adapts log/slog to
// the Logger interface.
package logging

import "context"

// Logger takes a context and alternating key/value pairs:
//
//	log.Info(ctx, "exchanging code", "provider", name, "user_id", userID)
type Logger interface {
	// Debug is for output that is only useful when diagnosing a run, such
	// as full model responses.
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	// Warn reports a problem the caller recovered from.
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger that adds args to every record.
	With(args ...any) Logger
}
