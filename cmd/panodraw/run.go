package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/panodraw/annotator/internal/annotate"
	"github.com/panodraw/annotator/internal/bridge"
	"github.com/panodraw/annotator/internal/config"
	"github.com/panodraw/annotator/internal/dispatcher"
	"github.com/panodraw/annotator/internal/handlers"
	"github.com/panodraw/annotator/internal/influx"
	"github.com/panodraw/annotator/internal/journal"
	"github.com/panodraw/annotator/internal/krpano"
	"github.com/panodraw/annotator/internal/logging"
	intOtel "github.com/panodraw/annotator/internal/otel"
	"github.com/panodraw/annotator/internal/overlay"
	"github.com/panodraw/annotator/internal/storage"
	"github.com/panodraw/annotator/internal/surface"
	"github.com/panodraw/annotator/internal/transport"
	"github.com/panodraw/annotator/pkg/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/mobile/event/lifecycle"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the viewer page and serve the annotation overlay",
	Args:  cobra.NoArgs,
	RunE:  runAnnotator,
}

func init() {
	runCmd.Flags().String("viewer-url", "", "websocket URL of the viewer page relay")
	_ = viper.BindPFlag("viewer.url", runCmd.Flags().Lookup("viewer-url"))
	rootCmd.AddCommand(runCmd)
}

// closers run in reverse order on shutdown.
type closers []func(context.Context) error

func (c *closers) add(fn func(context.Context) error) {
	*c = append(*c, fn)
}

func (c closers) run(ctx context.Context, logger *slog.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](ctx); err != nil {
			logger.Warn("Shutdown step failed", "error", err)
		}
	}
}

func setupLogging(ctx context.Context, start time.Time, cleanup *closers) (*logging.Manager, *intOtel.Provider, error) {
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create logs dir: %w", err)
	}
	logFile, err := os.OpenFile(logging.LogFilePath(logsDir, appName, start), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	cleanup.add(func(context.Context) error { return logFile.Close() })

	opts := logging.Options{
		Level: viper.GetString("logLevel"),
		File:  io.MultiWriter(os.Stdout, logFile),
	}

	if gc := config.GetGraylogConfig(); gc.Enabled {
		w, err := logging.NewGraylogWriter(gc.Address, appName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: graylog disabled: %v\n", err)
		} else {
			opts.Graylog = w
			cleanup.add(func(context.Context) error { return w.Close() })
		}
	}

	oc := config.GetOTelConfig()
	var otelWriter io.Writer
	if oc.Enabled {
		f, err := os.OpenFile(logging.LogFilePath(logsDir, appName+".otel", start), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open otel log file: %w", err)
		}
		cleanup.add(func(context.Context) error { return f.Close() })
		otelWriter = f
	}
	provider, err := intOtel.New(ctx, oc, otelWriter)
	if err != nil {
		return nil, nil, err
	}
	cleanup.add(provider.Shutdown)
	opts.Provider = provider.LoggerProvider()
	opts.ServiceName = oc.ServiceName

	lm := logging.NewManager()
	lm.Setup(opts)
	return lm, provider, nil
}

func runAnnotator(cmd *cobra.Command, _ []string) error {
	start := time.Now()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleanup closers
	lm, provider, err := setupLogging(ctx, start, &cleanup)
	if err != nil {
		return err
	}
	logger := lm.Logger()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = lm.Flush(sctx)
		cleanup.run(sctx, logger)
	}()
	logger.Info("Starting panodraw", "version", Version, "build", BuildDate, "otel", provider.Enabled())

	zl := logging.NewZerolog(logging.SlogWriter{Logger: logger, Level: slog.LevelInfo}, viper.GetString("logLevel"))

	// viewer transport and adapter
	vc := config.GetViewerConfig()
	conn := transport.New(transport.Config{URL: vc.URL, Secret: vc.Secret}, logger)
	if err := conn.Dial(); err != nil {
		return fmt.Errorf("failed to connect to viewer page: %w", err)
	}
	cleanup.add(func(context.Context) error { return conn.Close() })
	client := krpano.NewClient(conn, logger)

	ac := config.GetAnnotationConfig()
	br, err := bridge.New(client, bridge.Config{
		DefaultFOV:    ac.DefaultFOV,
		ReadyAttempts: ac.ReadyAttempts,
		ReadyInterval: ac.ReadyInterval,
	}, logger)
	if err != nil {
		return err
	}

	// journal
	backend, err := storage.NewBackend(config.GetStorageConfig(), zl, logger)
	if err != nil {
		return fmt.Errorf("failed to create journal backend: %w", err)
	}
	if backend != nil {
		if err := backend.Init(); err != nil {
			return fmt.Errorf("failed to initialize journal backend: %w", err)
		}
		cleanup.add(func(context.Context) error {
			if err := backend.Close(); err != nil {
				return err
			}
			if e, ok := backend.(storage.Exporter); ok && e.ExportedFilePath() != "" {
				logger.Info("Journal exported", "path", e.ExportedFilePath())
			}
			return nil
		})
	}

	var sinks []journal.Sink
	if ic := config.GetInfluxConfig(); ic.Enabled {
		im := influx.NewManager(zl, ic, filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("%s_influx_%s.lp.gz", appName, start.Format("20060102_150405"))))
		if err := im.Connect(ctx); err != nil && !errors.Is(err, influx.ErrDisabled) {
			logger.Warn("InfluxDB unavailable", "error", err)
		} else {
			sinks = append(sinks, im)
			go im.ReportConversions(ctx, ic.Interval, br.Stats)
			cleanup.add(func(context.Context) error { return im.Close() })
		}
	}

	rec := journal.New(client, journal.Options{
		Backend:   backend,
		Sinks:     sinks,
		Logger:    logger,
		ViewerURL: vc.URL,
	})

	// overlay and store
	style := config.GetStyleConfig()
	storeCfg := annotate.Config{
		CloseRadius:       ac.CloseRadius,
		MinPolygonPoints:  ac.MinPolygonPoints,
		MinFreehandPoints: ac.MinFreehandPoints,
		SimplifySpacing:   ac.SimplifySpacing,
		PolygonStyle:      hotspotStyle(style.Polygon, false),
		FreehandStyle:     hotspotStyle(style.Freehand, true),
	}
	oc := config.GetOverlayConfig()
	var raster *overlay.Renderer
	if oc.SendImage {
		raster = overlay.New(1, 1, overlay.StyleFromConfig(style))
	}
	frames := overlay.NewPublisher(conn, overlay.PublisherOptions{
		Interval: oc.FrameInterval,
		Raster:   raster,
		Logger:   logger,
	})
	go func() { _ = frames.Run(ctx) }()

	d, err := dispatcher.New(logging.DispatcherLogger{Logger: zl})
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer d.Close()

	var session *surface.Session
	session = surface.New(surface.Dependencies{
		Viewer:     client,
		Sender:     conn,
		Inbound:    conn.Inbound(),
		Dispatcher: d,
		NewStore: func(ids *annotate.IDSource) *annotate.Store {
			return annotate.New(annotate.Dependencies{
				Converter: br,
				Registry:  rec,
				Renderer:  frames,
				Logger:    logger,
				IDs:       ids,
			}, storeCfg)
		},
		OnAttach: func(_ *annotate.Store, version string) {
			if _, err := rec.Start(version); err != nil {
				logger.Error("Failed to start journal session", "error", err)
			}
			lm.SetState(session.LogState)
		},
		OnDetach: func() {
			lm.SetState(nil)
			if err := rec.Stop(); err != nil {
				logger.Error("Failed to end journal session", "error", err)
			}
		},
		OnResize: frames.Resize,
		Logger:   logger,
	})

	handlers.NewService(handlers.Dependencies{
		Store:   session.Store,
		Viewer:  client,
		Stats:   br.Stats,
		Journal: rec,
		Logger:  logger,
	}).Register(d)
	logger.Info("Commands registered", "commands", d.Commands())

	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	if err := br.WaitReady(ctx); err != nil {
		logger.Error("Viewer did not become ready", "error", err)
		stop()
		<-done
		return err
	}
	if err := session.Post(lifecycle.Event{From: lifecycle.StageAlive, To: lifecycle.StageVisible}); err != nil {
		logger.Error("Failed to attach annotation surface", "error", err)
	}

	err = <-done
	logger.Info("Shutting down", "uptime", time.Since(start).Round(time.Second))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func hotspotStyle(s config.ShapeStyle, polyline bool) core.HotspotStyle {
	return core.HotspotStyle{
		FillColor:   s.Color,
		FillAlpha:   s.FillAlpha,
		BorderColor: s.Color,
		BorderAlpha: s.BorderAlpha,
		BorderWidth: s.BorderWidth,
		ZOrder:      s.ZOrder,
		Polyline:    polyline,
	}
}
