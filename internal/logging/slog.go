package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// osStdout is swapped in tests.
var osStdout io.Writer = os.Stdout

// Options configures Manager.Setup. Zero values disable each sink.
type Options struct {
	Level string

	// File receives text logs. When nil, logs go to stdout instead.
	File io.Writer

	// Graylog receives JSON records, one GELF message per record.
	Graylog io.Writer

	// Provider enables the OTel log bridge.
	Provider *sdklog.LoggerProvider

	// ServiceName is the OTel instrumentation scope. Defaults to "panodraw".
	ServiceName string
}

// Manager owns the process logger.
type Manager struct {
	logger   *slog.Logger
	provider *sdklog.LoggerProvider

	// state is read on every record; SetState may swap it after Setup.
	state atomic.Pointer[StateFunc]
}

// NewManager creates an unconfigured Manager. Logger returns slog.Default
// until Setup is called.
func NewManager() *Manager {
	return &Manager{}
}

// ParseLevel converts a config level string to a slog.Level. Unknown values
// map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
		}
	}
	return a
}

// Setup builds the logger from opts, replacing any previous one.
func (m *Manager) Setup(opts Options) {
	m.provider = opts.Provider

	handlerOpts := &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: utcTime,
	}

	var handlers []slog.Handler
	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}
	if opts.Graylog != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.Graylog, handlerOpts))
	}
	if opts.Provider != nil {
		name := opts.ServiceName
		if name == "" {
			name = "panodraw"
		}
		handlers = append(handlers, otelslog.NewHandler(name, otelslog.WithLoggerProvider(opts.Provider)))
	}

	m.logger = slog.New(&stateHandler{
		Handler: newFanout(handlers...),
		state:   m.currentState,
	})
	m.logger.Info("Logging initialized", "level", ParseLevel(opts.Level).String())
}

// SetState installs fn as the source of per-record annotation attributes.
// Passing nil removes it.
func (m *Manager) SetState(fn StateFunc) {
	if fn == nil {
		m.state.Store(nil)
		return
	}
	m.state.Store(&fn)
}

func (m *Manager) currentState() []slog.Attr {
	fn := m.state.Load()
	if fn == nil {
		return nil
	}
	return (*fn)()
}

// Logger returns the configured logger.
func (m *Manager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces buffered OTel records out.
func (m *Manager) Flush(ctx context.Context) error {
	if m.provider != nil {
		return m.provider.ForceFlush(ctx)
	}
	return nil
}
