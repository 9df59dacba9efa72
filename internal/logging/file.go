package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewFileLogger returns a structured logger writing JSON lines to path,
// rotated by size, additionally mirrored to stderr. An empty path logs to
// stderr only.
func NewFileLogger(path string) Logger {
	var w io.Writer = os.Stderr
	if path != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	return NewSlogLogger(slog.New(slog.NewJSONHandler(w, nil)))
}
