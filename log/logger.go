package log

import "context"

// Logger defines a standard interface for logging.
// Implementations receive the request context so trace information can be
// attached to every entry.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	Fatal(ctx context.Context, msg string, err error, fields ...map[string]interface{}) // Underlying logger calls os.Exit(1)
	With(fields map[string]interface{}) Logger
}
