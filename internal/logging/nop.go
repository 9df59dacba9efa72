package logging

import "context"

type nopLogger struct{}

// NewNop returns a logger that discards everything. Useful in tests and as
// a default when no sink is configured.
func NewNop() Logger {
	return nopLogger{}
}

func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) With(...any) Logger                    { return nopLogger{} }
