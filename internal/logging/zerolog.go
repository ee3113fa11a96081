package logging

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
)

// NewZerolog returns a console zerolog logger at the given level, used by
// the database, influx and dispatcher layers.
func NewZerolog(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = osStdout
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	return zerolog.New(out).Level(zerologLevel(ParseLevel(level))).With().Timestamp().Logger()
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l <= slog.LevelInfo:
		return zerolog.InfoLevel
	case l <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// SlogWriter adapts a slog.Logger into an io.Writer so zerolog output can be
// routed through the process logger. Each write is logged as one record.
type SlogWriter struct {
	Logger *slog.Logger
	Level  slog.Level
}

func (w SlogWriter) Write(p []byte) (int, error) {
	msg := string(p)
	for len(msg) > 0 && (msg[len(msg)-1] == '\n' || msg[len(msg)-1] == '\r') {
		msg = msg[:len(msg)-1]
	}
	if msg != "" && w.Logger != nil {
		w.Logger.Log(context.Background(), w.Level, msg)
	}
	return len(p), nil
}

// DispatcherLogger adapts a zerolog.Logger to the dispatcher's key/value
// logging interface.
type DispatcherLogger struct {
	zerolog.Logger
}

func (l DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.Logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.Logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.Logger.Error().Fields(keysAndValues).Msg(msg)
}
