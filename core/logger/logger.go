package logger

// Logger exposes logging methods for common severity levels.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// FieldLogger derives a child logger carrying extra structured fields, e.g.
// the run id of a pipeline execution.
type FieldLogger interface {
	With(fields map[string]any) Logger
}

// With returns l enriched with fields when l supports it, l otherwise.
func With(l Logger, fields map[string]any) Logger {
	if fl, ok := l.(FieldLogger); ok {
		return fl.With(fields)
	}
	return l
}
