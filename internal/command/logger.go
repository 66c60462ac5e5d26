package command

import "go.uber.org/zap"

// Logger is the narrow logging port the command runtime depends on,
// keeping internal/command free of a hard dependency on any specific
// logging library in its core orchestration logic (spec.md §1 places
// logging out of scope as a collaborator). ZapLogger below is the ambient
// default, following SPEC_FULL.md §1's logging section.
type Logger interface {
	Warn(msg string, fields ...any)
	Error(msg string, err error, fields ...any)
}

// ZapLogger adapts *zap.SugaredLogger to the Logger port.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a ZapLogger around a production zap configuration.
// Falls back to a no-op core if the logger cannot be built (e.g. in
// restricted sandboxes with no writable stderr), matching the teacher
// library's convention of never letting observability failures take down
// the breaker itself.
func NewZapLogger() *ZapLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{sugar: logger.Sugar()}
}

func (l *ZapLogger) Warn(msg string, fields ...any) {
	l.sugar.Warnw(msg, fields...)
}

func (l *ZapLogger) Error(msg string, err error, fields ...any) {
	l.sugar.Errorw(msg, append(fields, "error", err)...)
}

// NoopLogger discards everything; useful in tests.
type NoopLogger struct{}

func (NoopLogger) Warn(string, ...any)        {}
func (NoopLogger) Error(string, error, ...any) {}
