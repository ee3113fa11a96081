// Package bridge converts between canvas pixels and sphere directions.
//
// The viewer's own projection is always tried first. When it is missing or
// returns garbage the bridge falls back to a rectilinear camera model built
// from the last reported view.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/panodraw/annotator/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/panodraw/annotator/internal/bridge"

var (
	// ErrConversion is returned when neither the viewer nor the fallback
	// could map a point.
	ErrConversion = errors.New("coordinate conversion failed")

	// ErrUnavailable is returned when no view or surface is known yet.
	ErrUnavailable = errors.New("viewer unavailable")
)

// Projector is the viewer-side half of the bridge.
//
// ProjectScreenToSphere and ProjectSphereToScreen work in native render
// surface pixels. Either may report false when the viewer cannot answer
// synchronously, in which case the fallback camera is used.
type Projector interface {
	ProjectScreenToSphere(x, y float64) (core.AngularPoint, bool)
	ProjectSphereToScreen(bearing, elevation float64) (core.Point2D, bool)
	CurrentView() (core.View, bool)
	Surface() core.SurfaceGeometry
	Ready() bool
}

// Config tunes the bridge.
type Config struct {
	DefaultFOV    float64
	ReadyAttempts int
	ReadyInterval time.Duration
}

// DefaultConfig mirrors the config package defaults.
func DefaultConfig() Config {
	return Config{
		DefaultFOV:    90,
		ReadyAttempts: 20,
		ReadyInterval: 250 * time.Millisecond,
	}
}

// Bridge is safe for concurrent use as long as the Projector is.
type Bridge struct {
	projector Projector
	cfg       Config
	logger    *slog.Logger

	conversions metric.Int64Counter
	direct      atomic.Int64
	fallback    atomic.Int64
	failed      atomic.Int64
}

// Stats counts conversions by resolution path since the bridge was created.
type Stats struct {
	Direct   int64
	Fallback int64
	Failed   int64
}

// Stats returns a snapshot of the conversion counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Direct:   b.direct.Load(),
		Fallback: b.fallback.Load(),
		Failed:   b.failed.Load(),
	}
}

// New creates a Bridge over p.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(p Projector, cfg Config, logger *slog.Logger) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultFOV <= 0 || cfg.DefaultFOV >= 180 {
		cfg.DefaultFOV = DefaultConfig().DefaultFOV
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"bridge.conversions",
		metric.WithDescription("Coordinate conversions by resolution path"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating conversions counter: %w", err)
	}

	return &Bridge{
		projector:   p,
		cfg:         cfg,
		logger:      logger.With("component", "bridge"),
		conversions: counter,
	}, nil
}

// frame is the geometry snapshot shared by one conversion batch.
type frame struct {
	geometry       core.SurfaceGeometry
	scaleX, scaleY float64
	nativeW        float64
	nativeH        float64
	view           core.View
	haveView       bool
	cam            camera
}

func (b *Bridge) snapshot() (frame, error) {
	g := b.projector.Surface()
	if g.Surface.Empty() {
		g.Surface = g.Canvas
	}
	if g.Surface.Empty() {
		return frame{}, ErrUnavailable
	}

	f := frame{geometry: g, scaleX: 1, scaleY: 1, nativeW: g.Surface.Width, nativeH: g.Surface.Height}
	if g.NativeWidth > 0 && g.NativeHeight > 0 {
		f.scaleX = g.NativeWidth / g.Surface.Width
		f.scaleY = g.NativeHeight / g.Surface.Height
		f.nativeW = g.NativeWidth
		f.nativeH = g.NativeHeight
	}

	f.view, f.haveView = b.projector.CurrentView()
	if f.haveView {
		f.cam = newCamera(f.view, f.nativeW, f.nativeH, b.cfg.DefaultFOV)
	}
	return f, nil
}

// toNative maps a canvas point into native surface pixels.
func (f *frame) toNative(p core.Point2D) (float64, float64) {
	cx := f.geometry.Canvas.Left + p.X
	cy := f.geometry.Canvas.Top + p.Y
	return (cx - f.geometry.Surface.Left) * f.scaleX, (cy - f.geometry.Surface.Top) * f.scaleY
}

// fromNative is the inverse of toNative.
func (f *frame) fromNative(nx, ny float64) core.Point2D {
	return core.Point2D{
		X: nx/f.scaleX + f.geometry.Surface.Left - f.geometry.Canvas.Left,
		Y: ny/f.scaleY + f.geometry.Surface.Top - f.geometry.Canvas.Top,
	}
}

func (b *Bridge) count(ctx context.Context, path string) {
	switch path {
	case "direct":
		b.direct.Add(1)
	case "fallback":
		b.fallback.Add(1)
	default:
		b.failed.Add(1)
	}
	b.conversions.Add(ctx, 1, metric.WithAttributes(attribute.String("path", path)))
}

func (b *Bridge) screenToAngular(f *frame, p core.Point2D) (core.AngularPoint, error) {
	ctx := context.Background()
	if !p.IsFinite() {
		b.count(ctx, "failed")
		return core.AngularPoint{}, ErrConversion
	}
	nx, ny := f.toNative(p)

	if a, ok := b.projector.ProjectScreenToSphere(nx, ny); ok && a.IsFinite() {
		b.count(ctx, "direct")
		return normalize(a), nil
	}

	if f.haveView {
		if a, ok := f.cam.unproject(nx, ny); ok {
			b.count(ctx, "fallback")
			return normalize(a), nil
		}
	}

	b.count(ctx, "failed")
	b.logger.Debug("screen to sphere failed", "x", p.X, "y", p.Y)
	return core.AngularPoint{}, ErrConversion
}

func (b *Bridge) angularToScreen(f *frame, a core.AngularPoint) (core.Point2D, error) {
	ctx := context.Background()
	if !a.IsFinite() {
		b.count(ctx, "failed")
		return core.Point2D{}, ErrConversion
	}

	if p, ok := b.projector.ProjectSphereToScreen(a.Bearing, a.Elevation); ok && p.IsFinite() {
		b.count(ctx, "direct")
		return f.fromNative(p.X, p.Y), nil
	}

	if f.haveView {
		if nx, ny, ok := f.cam.project(a); ok {
			b.count(ctx, "fallback")
			return f.fromNative(nx, ny), nil
		}
	}

	b.count(ctx, "failed")
	b.logger.Debug("sphere to screen failed", "bearing", a.Bearing, "elevation", a.Elevation)
	return core.Point2D{}, ErrConversion
}

// ScreenToAngular maps a canvas point to a sphere direction.
func (b *Bridge) ScreenToAngular(p core.Point2D) (core.AngularPoint, error) {
	f, err := b.snapshot()
	if err != nil {
		return core.AngularPoint{}, err
	}
	return b.screenToAngular(&f, p)
}

// AngularToScreen maps a sphere direction to a canvas point.
func (b *Bridge) AngularToScreen(a core.AngularPoint) (core.Point2D, error) {
	f, err := b.snapshot()
	if err != nil {
		return core.Point2D{}, err
	}
	return b.angularToScreen(&f, a)
}

// ScreenToAngularBatch converts points under a single geometry snapshot.
// Points that fail are dropped; the number dropped is returned.
func (b *Bridge) ScreenToAngularBatch(points []core.Point2D) ([]core.AngularPoint, int) {
	f, err := b.snapshot()
	if err != nil {
		return nil, len(points)
	}

	out := make([]core.AngularPoint, 0, len(points))
	failed := 0
	for _, p := range points {
		a, err := b.screenToAngular(&f, p)
		if err != nil {
			failed++
			continue
		}
		out = append(out, a)
	}
	return out, failed
}

// AngularToScreenBatch converts anchors under a single geometry snapshot,
// reusing dst's storage. Anchors that fail are dropped; the number dropped is
// returned.
func (b *Bridge) AngularToScreenBatch(dst []core.Point2D, anchors []core.AngularPoint) ([]core.Point2D, int) {
	dst = dst[:0]
	f, err := b.snapshot()
	if err != nil {
		return dst, len(anchors)
	}

	failed := 0
	for _, a := range anchors {
		p, err := b.angularToScreen(&f, a)
		if err != nil {
			failed++
			continue
		}
		dst = append(dst, p)
	}
	return dst, failed
}

// AngularDelta scales a canvas drag into a bearing and elevation offset
// using the current field of view. A drag across the full canvas width moves
// one field of view.
func (b *Bridge) AngularDelta(dx, dy float64) (dBearing, dElevation float64) {
	g := b.projector.Surface()
	if g.Canvas.Empty() || !g.Canvas.IsFinite() || !(core.Point2D{X: dx, Y: dy}).IsFinite() {
		return 0, 0
	}

	fov := b.cfg.DefaultFOV
	if v, ok := b.projector.CurrentView(); ok && v.FOV > 0 && v.FOV < 180 {
		fov = v.FOV
	}
	return dx / g.Canvas.Width * fov, dy / g.Canvas.Height * fov
}

// WaitReady polls the projector until it reports ready, the attempts run out
// or ctx is done.
func (b *Bridge) WaitReady(ctx context.Context) error {
	attempts := b.cfg.ReadyAttempts
	if attempts <= 0 {
		attempts = 1
	}

	interval := b.cfg.ReadyInterval
	if interval <= 0 {
		interval = DefaultConfig().ReadyInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < attempts; i++ {
		if b.projector.Ready() {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, ErrUnavailable)
}
