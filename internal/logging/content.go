package logging

import (
	"context"
	"fmt"
	"log/slog"
)

// LevelChecker is implemented by loggers that can report their active level.
type LevelChecker interface {
	Enabled(ctx context.Context, level slog.Level) bool
}

// SafeContent returns a loggable representation of sensitive or bulky
// content. The full value is returned only when l logs at DEBUG; otherwise
// only its type and length are.
func SafeContent(ctx context.Context, l Logger, content string) string {
	if lc, ok := l.(LevelChecker); ok && lc.Enabled(ctx, slog.LevelDebug) {
		return content
	}
	return fmt.Sprintf("<string len=%d>", len(content))
}
