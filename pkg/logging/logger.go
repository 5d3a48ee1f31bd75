package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/S1riyS/dirsize/pkg/logging/slogpretty"
)

type ctxLoggerKey struct {
	Key string
}

var (
	cKey   = ctxLoggerKey{Key: "logger"}
	reqKey = ctxLoggerKey{Key: "request_id"}
)

// New builds the process logger. Format "json" gives machine-readable output,
// anything else the coloured pretty handler.
func New(out io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}

	prettyOpts := slogpretty.PrettyHandlerOptions{SlogOpts: opts}
	return slog.New(prettyOpts.NewPrettyHandler(out))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func GetLoggerFromContext(ctx context.Context) *slog.Logger {
	var l *slog.Logger

	logger := ctx.Value(cKey)
	if logger != nil {
		l = logger.(*slog.Logger)
	} else {
		// Default stderr logger
		l = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	// Always attach request ID from context if available
	requestID := GetRequestIDFromCtx(ctx)
	if requestID != "" {
		l = l.With(slog.String("request_id", requestID))
	}

	return l
}

// Returns logger from context and attaches operation name
func GetLoggerFromContextWithOp(ctx context.Context, op string) *slog.Logger {
	l := GetLoggerFromContext(ctx)

	// Attach operation
	l = l.With(slog.String("op", op))

	return l
}

func MakeContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, cKey, logger)
	return ctx
}
