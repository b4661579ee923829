package providers

import (
	"context"
	"log/slog"

	"github.com/preston-bernstein/game-ingest-service/internal/logging"
)

// logWithSource emits a log entry that always carries the source name.
func logWithSource(ctx context.Context, logger *slog.Logger, level slog.Level, source string, msg string, args ...any) {
	args = append(args, logging.FieldSource, source)
	logging.Ctx(ctx, logger, level, msg, args...)
}
