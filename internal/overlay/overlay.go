// Package overlay rasterises annotation frames into an RGBA image that the
// host composites over the viewer.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"github.com/panodraw/annotator/internal/annotate"
	"github.com/panodraw/annotator/internal/config"
	"github.com/panodraw/annotator/pkg/core"
	"golang.org/x/image/vector"
)

const circleSegments = 24

// Style controls colours and sizes. Sizes are in canvas points.
type Style struct {
	Polygon  color.NRGBA
	Freehand color.NRGBA
	Selected color.NRGBA
	Pending  color.NRGBA

	FillAlpha    float64
	LineWidth    float64
	MarkerRadius float64

	// Scale converts canvas points to image pixels.
	Scale float64
}

// DefaultStyle matches the hotspot colours used in the viewer.
func DefaultStyle() Style {
	return Style{
		Polygon:      color.NRGBA{R: 0x00, G: 0xFF, B: 0x00, A: 0xFF},
		Freehand:     color.NRGBA{R: 0xFF, G: 0x00, B: 0x00, A: 0xFF},
		Selected:     color.NRGBA{R: 0xFF, G: 0xD7, B: 0x00, A: 0xFF},
		Pending:      color.NRGBA{R: 0x00, G: 0xA0, B: 0xFF, A: 0xFF},
		FillAlpha:    0.3,
		LineWidth:    2,
		MarkerRadius: 5,
		Scale:        1,
	}
}

// StyleFromConfig takes the shape colours, fill alpha and border width from
// the hotspot style config.
func StyleFromConfig(sc config.StyleConfig) Style {
	st := DefaultStyle()
	st.Polygon = rgb(sc.Polygon.Color)
	st.Freehand = rgb(sc.Freehand.Color)
	if sc.Polygon.FillAlpha > 0 {
		st.FillAlpha = sc.Polygon.FillAlpha
	}
	if sc.Polygon.BorderWidth > 0 {
		st.LineWidth = sc.Polygon.BorderWidth
	}
	return st
}

func rgb(c uint32) color.NRGBA {
	return color.NRGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: 0xFF}
}

func withAlpha(c color.NRGBA, a float64) color.NRGBA {
	c.A = uint8(math.Round(float64(c.A) * a))
	return c
}

// Renderer implements annotate.Renderer. It keeps the last rasterised frame.
type Renderer struct {
	style Style

	mu     sync.Mutex
	img    *image.RGBA
	frames uint64
}

var _ annotate.Renderer = (*Renderer)(nil)

// New creates a renderer with a w by h pixel image.
func New(w, h int, style Style) *Renderer {
	if style.Scale <= 0 {
		style.Scale = 1
	}
	return &Renderer{style: style, img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// Resize replaces the image. The next Render fills it. Empty sizes are
// ignored.
func (r *Renderer) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.img = image.NewRGBA(image.Rect(0, 0, w, h))
}

// SetScale sets the points-to-pixels factor.
func (r *Renderer) SetScale(scale float64) {
	if scale <= 0 {
		return
	}
	r.mu.Lock()
	r.style.Scale = scale
	r.mu.Unlock()
}

// Render rasterises f, replacing the previous frame.
func (r *Renderer) Render(f annotate.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	Draw(r.img, f, r.style)
	r.frames++
}

// Snapshot returns a copy of the last frame and the number of frames drawn.
func (r *Renderer) Snapshot() (*image.RGBA, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := image.NewRGBA(r.img.Bounds())
	copy(out.Pix, r.img.Pix)
	return out, r.frames
}

// Draw clears dst and paints f onto it: shape fills, outlines, vertex
// markers, then the pending stroke on top.
func Draw(dst *image.RGBA, f annotate.Frame, st Style) {
	draw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, draw.Src)
	p := painter{dst: dst, st: st}

	for i := range f.Shapes {
		sh := &f.Shapes[i]
		c := st.Polygon
		if sh.Kind == core.ShapeFreehand {
			c = st.Freehand
		}
		closed := sh.Kind == core.ShapePolygon

		if closed && len(sh.ScreenPoints) >= 3 {
			p.fillPolygon(sh.ScreenPoints, withAlpha(c, st.FillAlpha))
		}
		width := st.LineWidth
		if sh.Selected {
			c = st.Selected
			width *= 2
		}
		p.stroke(sh.ScreenPoints, closed, width, c)
		if !sh.HidePoints {
			p.markers(sh.ScreenPoints, st.MarkerRadius, c)
		}
	}

	if len(f.Pending) > 0 {
		if f.CloseRange > 0 {
			p.disc(f.Pending[0], f.CloseRange, withAlpha(st.Pending, 0.25))
		}
		p.stroke(f.Pending, false, st.LineWidth, st.Pending)
		if f.Mode != annotate.ModeDrawFreehand {
			p.markers(f.Pending, st.MarkerRadius, st.Pending)
		}
	}
}

type painter struct {
	dst *image.RGBA
	st  Style
}

func (p painter) rasterizer() *vector.Rasterizer {
	b := p.dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	return z
}

func (p painter) xy(pt core.Point2D) (float32, float32) {
	return float32(pt.X * p.st.Scale), float32(pt.Y * p.st.Scale)
}

func (p painter) paint(z *vector.Rasterizer, c color.NRGBA) {
	z.Draw(p.dst, p.dst.Bounds(), image.NewUniform(c), image.Point{})
}

func (p painter) fillPolygon(pts []core.Point2D, c color.NRGBA) {
	z := p.rasterizer()
	x, y := p.xy(pts[0])
	z.MoveTo(x, y)
	for _, pt := range pts[1:] {
		x, y = p.xy(pt)
		z.LineTo(x, y)
	}
	z.ClosePath()
	p.paint(z, c)
}

// stroke fills one quad per segment; overlapping joints saturate rather
// than darken.
func (p painter) stroke(pts []core.Point2D, closed bool, width float64, c color.NRGBA) {
	if len(pts) < 2 || width <= 0 {
		return
	}
	z := p.rasterizer()
	half := width * p.st.Scale / 2
	n := len(pts) - 1
	if closed {
		n = len(pts)
	}
	for i := 0; i < n; i++ {
		quad(z, p.scaled(pts[i]), p.scaled(pts[(i+1)%len(pts)]), half)
	}
	p.paint(z, c)
}

func (p painter) scaled(pt core.Point2D) core.Point2D {
	return core.Point2D{X: pt.X * p.st.Scale, Y: pt.Y * p.st.Scale}
}

func quad(z *vector.Rasterizer, a, b core.Point2D, half float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*half, dx/l*half
	z.MoveTo(float32(a.X+nx), float32(a.Y+ny))
	z.LineTo(float32(b.X+nx), float32(b.Y+ny))
	z.LineTo(float32(b.X-nx), float32(b.Y-ny))
	z.LineTo(float32(a.X-nx), float32(a.Y-ny))
	z.ClosePath()
}

func circle(z *vector.Rasterizer, c core.Point2D, radius float64) {
	z.MoveTo(float32(c.X+radius), float32(c.Y))
	for i := 1; i < circleSegments; i++ {
		a := 2 * math.Pi * float64(i) / circleSegments
		z.LineTo(float32(c.X+radius*math.Cos(a)), float32(c.Y+radius*math.Sin(a)))
	}
	z.ClosePath()
}

func (p painter) markers(pts []core.Point2D, radius float64, c color.NRGBA) {
	if len(pts) == 0 || radius <= 0 {
		return
	}
	z := p.rasterizer()
	for _, pt := range pts {
		circle(z, p.scaled(pt), radius*p.st.Scale)
	}
	p.paint(z, c)
}

func (p painter) disc(center core.Point2D, radius float64, c color.NRGBA) {
	z := p.rasterizer()
	circle(z, p.scaled(center), radius*p.st.Scale)
	p.paint(z, c)
}
