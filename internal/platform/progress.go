package platform

import (
	"context"
	"fmt"

	"github.com/lukman83/autopost/internal/logging"
)

// ProgressFunc receives human-readable batch progress, one line per step.
type ProgressFunc func(msg string)

type progressKey struct{}

// WithProgress attaches fn to ctx. The CLI feeds it to a spinner.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ReportProgress sends msg to the callback in ctx and to the debug log.
// Without a callback (MCP, REST, daemon) only the log line is written.
func ReportProgress(ctx context.Context, msg string) {
	logging.FromContext(ctx).WithField("step", msg).Debug("progress")
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && fn != nil {
		fn(msg)
	}
}

// ReportProgressf is ReportProgress with a format string.
func ReportProgressf(ctx context.Context, format string, args ...any) {
	ReportProgress(ctx, fmt.Sprintf(format, args...))
}
