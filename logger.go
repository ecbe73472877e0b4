package hybridengine

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with hybridengine-specific field helpers: a
// thin struct around *slog.Logger with With* helpers and Log*
// convenience methods per operation, rather than a bespoke logging
// abstraction.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler. If handler is
// nil, it defaults to a text handler writing to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000),
	})
	return &Logger{Logger: slog.New(handler)}
}

// WithNamespace adds a namespace field to the logger.
func (l *Logger) WithNamespace(namespace string) *Logger {
	return &Logger{Logger: l.Logger.With("namespace", namespace)}
}

// WithK adds a k (result-limit) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{Logger: l.Logger.With("k", k)}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{Logger: l.Logger.With("count", count)}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, namespace, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed", "namespace", namespace, "id", id, "error", err)
		return
	}
	l.DebugContext(ctx, "insert completed", "namespace", namespace, "id", id)
}

// LogBatchInsert logs a batch insert operation.
func (l *Logger) LogBatchInsert(ctx context.Context, namespace string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "batch insert failed", "namespace", namespace, "count", count, "error", err)
		return
	}
	l.InfoContext(ctx, "batch insert completed", "namespace", namespace, "count", count)
}

// LogSearch logs a search operation (vector, full-text, or hybrid).
func (l *Logger) LogSearch(ctx context.Context, namespace, kind string, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "namespace", namespace, "kind", kind, "k", k, "error", err)
		return
	}
	l.DebugContext(ctx, "search completed", "namespace", namespace, "kind", kind, "k", k, "results", resultsFound)
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, namespace, id string, found bool) {
	l.DebugContext(ctx, "delete completed", "namespace", namespace, "id", id, "found", found)
}

// LogUpdate logs an update operation.
func (l *Logger) LogUpdate(ctx context.Context, namespace, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed", "namespace", namespace, "id", id, "error", err)
		return
	}
	l.DebugContext(ctx, "update completed", "namespace", namespace, "id", id)
}

// LogSave logs a Save operation.
func (l *Logger) LogSave(ctx context.Context, namespace, fileBase string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed", "namespace", namespace, "file_base", fileBase, "error", err)
		return
	}
	l.InfoContext(ctx, "save completed", "namespace", namespace, "file_base", fileBase)
}

// LogLoad logs a Load operation.
func (l *Logger) LogLoad(ctx context.Context, namespace, fileBase string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed", "namespace", namespace, "file_base", fileBase, "error", err)
		return
	}
	l.InfoContext(ctx, "load completed", "namespace", namespace, "file_base", fileBase)
}

// LogCompaction logs a compaction run.
func (l *Logger) LogCompaction(ctx context.Context, namespace string, reclaimed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "compaction failed", "namespace", namespace, "error", err)
		return
	}
	l.InfoContext(ctx, "compaction completed", "namespace", namespace, "reclaimed", reclaimed)
}
