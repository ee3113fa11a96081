package annotate

import (
	"errors"
	"math"
	"testing"

	"github.com/panodraw/annotator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearConverter maps 10 pixels to one degree. offset shifts the camera
// horizontally by that many pixels. Points with negative X fail.
type linearConverter struct {
	offset float64
}

func (c *linearConverter) ScreenToAngularBatch(points []core.Point2D) ([]core.AngularPoint, int) {
	out := make([]core.AngularPoint, 0, len(points))
	failed := 0
	for _, p := range points {
		if p.X < 0 {
			failed++
			continue
		}
		out = append(out, core.AngularPoint{Bearing: (p.X + c.offset) / 10, Elevation: p.Y / 10})
	}
	return out, failed
}

func (c *linearConverter) AngularToScreenBatch(dst []core.Point2D, anchors []core.AngularPoint) ([]core.Point2D, int) {
	dst = dst[:0]
	for _, a := range anchors {
		dst = append(dst, core.Point2D{X: a.Bearing*10 - c.offset, Y: a.Elevation * 10})
	}
	return dst, 0
}

func (c *linearConverter) AngularDelta(dx, dy float64) (float64, float64) {
	return dx / 10, dy / 10
}

type createCall struct {
	id      string
	anchors []core.AngularPoint
	style   core.HotspotStyle
}

type recordingRegistry struct {
	creates []createCall
	updates []string
	removes []string
	err     error
}

func (r *recordingRegistry) CreatePolygonHotspot(id string, anchors []core.AngularPoint, style core.HotspotStyle) error {
	r.creates = append(r.creates, createCall{id: id, anchors: anchors, style: style})
	return r.err
}

func (r *recordingRegistry) UpdatePolygonHotspotPoints(id string, _ []core.AngularPoint) error {
	r.updates = append(r.updates, id)
	return r.err
}

func (r *recordingRegistry) RemoveHotspot(id string) error {
	r.removes = append(r.removes, id)
	return r.err
}

type fixture struct {
	store    *Store
	conv     *linearConverter
	registry *recordingRegistry
	frames   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{conv: &linearConverter{}, registry: &recordingRegistry{}}
	f.store = New(Dependencies{
		Converter: f.conv,
		Registry:  f.registry,
		Renderer:  RendererFunc(func(Frame) { f.frames++ }),
	}, DefaultConfig())
	return f
}

func (f *fixture) drawPolygon(t *testing.T, pts ...core.Point2D) {
	t.Helper()
	require.True(t, f.store.SetMode(ModeDrawPolygon))
	for _, p := range pts {
		require.True(t, f.store.AddPoint(p))
	}
	require.True(t, f.store.CompletePolygon())
}

var triangle = []core.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}

func TestCompletePolygon(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)

	shapes := f.store.Shapes()
	require.Len(t, shapes, 1)
	sh := shapes[0]
	assert.Equal(t, "poly_1", sh.ID)
	assert.Equal(t, core.ShapePolygon, sh.Kind)
	assert.Len(t, sh.AnchorPoints, 3)
	assert.True(t, sh.Selected)
	assert.False(t, sh.HidePoints)
	assert.Equal(t, triangle, sh.ScreenPoints)

	require.Len(t, f.registry.creates, 1)
	assert.Empty(t, f.registry.updates)
	assert.Equal(t, "poly_1", f.registry.creates[0].id)
	assert.Equal(t, DefaultConfig().PolygonStyle, f.registry.creates[0].style)

	assert.Equal(t, ModeIdle, f.store.Mode())
	assert.Empty(t, f.store.Pending())
	assert.Equal(t, "poly_1", f.store.SelectedID())
}

func TestCompletePolygon_TooFewPoints(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.store.SetMode(ModeDrawPolygon))
	f.store.AddPoint(core.Point2D{X: 1, Y: 1})
	f.store.AddPoint(core.Point2D{X: 50, Y: 1})

	assert.False(t, f.store.CompletePolygon())
	assert.Empty(t, f.store.Shapes())
	assert.Equal(t, ModeDrawPolygon, f.store.Mode())
	assert.Len(t, f.store.Pending(), 2)
}

func TestAddPoint_ClosesLoopNearFirstPoint(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.store.SetMode(ModeDrawPolygon))
	for _, p := range []core.Point2D{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}} {
		f.store.AddPoint(p)
	}

	require.True(t, f.store.AddPoint(core.Point2D{X: 10, Y: 10}))

	assert.Empty(t, f.store.Pending())
	shapes := f.store.Shapes()
	require.Len(t, shapes, 1)
	assert.Len(t, shapes[0].AnchorPoints, 3, "closing point is not appended")
	assert.Equal(t, ModeIdle, f.store.Mode())
}

func TestAddPoint_FarPointAppends(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.store.SetMode(ModeDrawPolygon))
	for _, p := range []core.Point2D{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 50, Y: 50}} {
		f.store.AddPoint(p)
	}

	assert.Len(t, f.store.Pending(), 4)
	assert.Empty(t, f.store.Shapes())
}

func TestAddPoint_NearFirstWithTwoPointsAppends(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.store.SetMode(ModeDrawPolygon))
	f.store.AddPoint(core.Point2D{X: 0, Y: 0})
	f.store.AddPoint(core.Point2D{X: 100, Y: 0})
	f.store.AddPoint(core.Point2D{X: 5, Y: 5})

	assert.Len(t, f.store.Pending(), 3)
}

func TestAddPoint_IdleIgnored(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.store.AddPoint(core.Point2D{X: 1, Y: 1}))
	assert.Empty(t, f.store.Pending())
}

func TestUndoLastPendingPoint_Empty(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)
	require.True(t, f.store.SetMode(ModeDrawPolygon))

	assert.False(t, f.store.UndoLastPendingPoint())
	assert.Equal(t, ModeDrawPolygon, f.store.Mode())
	assert.Len(t, f.store.Shapes(), 1)
}

func TestUndoLastPendingPoint(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.store.SetMode(ModeDrawPolygon))
	f.store.AddPoint(core.Point2D{X: 1, Y: 1})
	f.store.AddPoint(core.Point2D{X: 2, Y: 2})

	assert.True(t, f.store.UndoLastPendingPoint())
	assert.Equal(t, []core.Point2D{{X: 1, Y: 1}}, f.store.Pending())
}

func TestClearAll(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)
	f.drawPolygon(t, core.Point2D{X: 100, Y: 100}, core.Point2D{X: 200, Y: 100}, core.Point2D{X: 200, Y: 200})
	f.drawPolygon(t, core.Point2D{X: 300, Y: 0}, core.Point2D{X: 400, Y: 0}, core.Point2D{X: 400, Y: 90})
	require.True(t, f.store.SetMode(ModeDrawPolygon))
	f.store.AddPoint(core.Point2D{X: 7, Y: 7})

	f.store.ClearAll()

	assert.Equal(t, []string{"poly_1", "poly_2", "poly_3"}, f.registry.removes)
	assert.Empty(t, f.store.Shapes())
	assert.Empty(t, f.store.Pending())
	assert.Equal(t, ModeIdle, f.store.Mode())
	assert.Empty(t, f.store.SelectedID())
}

func TestClearAll_RegistryErrorsDoNotStop(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)
	f.drawPolygon(t, triangle...)
	f.registry.err = errors.New("viewer gone")

	f.store.ClearAll()

	assert.Len(t, f.registry.removes, 2)
	assert.Empty(t, f.store.Shapes())
}

func TestCompleteFreehand_BelowMinimum(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.store.SetMode(ModeDrawFreehand))
	f.store.StartStroke(core.Point2D{X: 0, Y: 0})
	for i := 1; i < 4; i++ {
		f.store.AddPoint(core.Point2D{X: float64(i * 10), Y: 0})
	}

	assert.False(t, f.store.CompleteFreehand())
	assert.Empty(t, f.store.Shapes())
	assert.Empty(t, f.registry.creates)
	assert.Equal(t, ModeDrawFreehand, f.store.Mode())
}

func TestCompleteFreehand_Simplifies(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.store.SetMode(ModeDrawFreehand))
	f.store.StartStroke(core.Point2D{X: 0, Y: 0})
	for i := 1; i < 20; i++ {
		f.store.AddPoint(core.Point2D{X: float64(i), Y: 0})
	}

	require.True(t, f.store.CompleteFreehand())

	shapes := f.store.Shapes()
	require.Len(t, shapes, 1)
	sh := shapes[0]
	assert.Equal(t, "freehand_1", sh.ID)
	assert.Equal(t, core.ShapeFreehand, sh.Kind)
	assert.True(t, sh.HidePoints)
	assert.Less(t, len(sh.ScreenPoints), 20)
	assert.Equal(t, core.Point2D{X: 0, Y: 0}, sh.ScreenPoints[0])
	assert.Equal(t, core.Point2D{X: 19, Y: 0}, sh.ScreenPoints[len(sh.ScreenPoints)-1])
	assert.Len(t, sh.AnchorPoints, len(sh.ScreenPoints))

	require.Len(t, f.registry.creates, 1)
	assert.True(t, f.registry.creates[0].style.Polyline)
	assert.Equal(t, ModeIdle, f.store.Mode())
}

func TestStartStroke_ResetsPending(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.store.SetMode(ModeDrawFreehand))
	f.store.StartStroke(core.Point2D{X: 0, Y: 0})
	f.store.AddPoint(core.Point2D{X: 1, Y: 0})

	f.store.StartStroke(core.Point2D{X: 50, Y: 50})
	assert.Equal(t, []core.Point2D{{X: 50, Y: 50}}, f.store.Pending())
}

func TestIDsCountPerKind(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)
	require.True(t, f.store.SetMode(ModeDrawFreehand))
	f.store.StartStroke(core.Point2D{X: 0, Y: 0})
	for i := 1; i < 6; i++ {
		f.store.AddPoint(core.Point2D{X: float64(i * 10), Y: float64(i * 10)})
	}
	require.True(t, f.store.CompleteFreehand())
	f.drawPolygon(t, triangle...)

	var ids []string
	for _, sh := range f.store.Shapes() {
		ids = append(ids, sh.ID)
	}
	assert.Equal(t, []string{"poly_1", "freehand_1", "poly_2"}, ids)
	assert.Equal(t, "poly_2", f.store.SelectedID())
	assert.False(t, f.store.Shapes()[0].Selected, "only one shape is selected")
}

func TestCompletion_DropsFailedPoints(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, core.Point2D{X: 0, Y: 0}, core.Point2D{X: -5, Y: 0}, core.Point2D{X: 100, Y: 0}, core.Point2D{X: 100, Y: 100})

	shapes := f.store.Shapes()
	require.Len(t, shapes, 1)
	assert.Len(t, shapes[0].AnchorPoints, 3)
	assert.Len(t, shapes[0].ScreenPoints, 3, "screen points follow the surviving anchors")
}

func TestCompletion_AbandonedWhenNothingConverts(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.store.SetMode(ModeDrawPolygon))
	for _, p := range []core.Point2D{{X: -1, Y: 0}, {X: -100, Y: 0}, {X: -100, Y: 100}} {
		f.store.AddPoint(p)
	}

	assert.False(t, f.store.CompletePolygon())
	assert.Empty(t, f.store.Shapes())
	assert.Empty(t, f.registry.creates)
	assert.Equal(t, ModeIdle, f.store.Mode())
	assert.Empty(t, f.store.Pending())
}

func TestOnCameraViewChanged_AnchorsInvariant(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)
	before := f.store.Shapes()[0]

	for _, off := range []float64{50, -20, 360} {
		f.conv.offset = off
		f.store.OnCameraViewChanged()
	}

	after := f.store.Shapes()[0]
	assert.Equal(t, before.AnchorPoints, after.AnchorPoints)
	assert.NotEqual(t, before.ScreenPoints, after.ScreenPoints)
	assert.Equal(t, core.Point2D{X: -360, Y: 0}, after.ScreenPoints[0])
	assert.Empty(t, f.registry.updates)
}

func TestSetMode_Transitions(t *testing.T) {
	f := newFixture(t)

	require.True(t, f.store.SetMode(ModeDrawPolygon))
	f.store.AddPoint(core.Point2D{X: 1, Y: 1})
	assert.False(t, f.store.SetMode(ModeEdit), "drawing only exits to idle")
	assert.False(t, f.store.SetMode(ModeDrawFreehand))
	assert.Equal(t, ModeDrawPolygon, f.store.Mode())
	assert.Len(t, f.store.Pending(), 1)

	assert.True(t, f.store.SetMode(ModeDrawPolygon), "same mode is a redraw")
	assert.Len(t, f.store.Pending(), 1)

	assert.True(t, f.store.SetMode(ModeIdle))
	assert.Empty(t, f.store.Pending(), "abandoned drawing leaves nothing behind")
	assert.Empty(t, f.store.Shapes())

	assert.True(t, f.store.SetMode(ModeEdit))
	assert.False(t, f.store.SetMode(ModeMove))
	assert.True(t, f.store.SetMode(ModeIdle))
	assert.True(t, f.store.SetMode(ModeMove))
	assert.False(t, f.store.SetMode(Mode(42)))
}

func TestToggleMode(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.store.ToggleMode(ModeDrawFreehand))
	assert.Equal(t, ModeDrawFreehand, f.store.Mode())
	assert.True(t, f.store.ToggleMode(ModeDrawFreehand))
	assert.Equal(t, ModeIdle, f.store.Mode())
}

func TestSelectAt_TopmostWins(t *testing.T) {
	f := newFixture(t)
	square := []core.Point2D{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}
	f.drawPolygon(t, square...)
	f.drawPolygon(t, core.Point2D{X: 50, Y: 50}, core.Point2D{X: 150, Y: 50}, core.Point2D{X: 150, Y: 150}, core.Point2D{X: 50, Y: 150})

	assert.True(t, f.store.SelectAt(core.Point2D{X: 75, Y: 75}))
	assert.Equal(t, "poly_2", f.store.SelectedID())

	assert.True(t, f.store.SelectAt(core.Point2D{X: 10, Y: 10}))
	assert.Equal(t, "poly_1", f.store.SelectedID())

	assert.False(t, f.store.SelectAt(core.Point2D{X: 500, Y: 500}))
	assert.Equal(t, "poly_1", f.store.SelectedID(), "miss keeps selection")
}

func TestEditDrag(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)
	require.True(t, f.store.SetMode(ModeEdit))

	require.True(t, f.store.BeginDrag(core.Point2D{X: 8, Y: 2}))
	require.True(t, f.store.ContinueDrag(core.Point2D{X: 11, Y: 6}))

	sh := f.store.Shapes()[0]
	assert.Equal(t, []core.Point2D{{X: 3, Y: 4}, {X: 13, Y: 4}, {X: 13, Y: 14}}, sh.ScreenPoints)
	assert.Equal(t, "poly_1", sh.ID)
	assert.Equal(t, core.ShapePolygon, sh.Kind)
	assert.Empty(t, f.registry.updates, "anchors are re-derived only at the end")

	require.True(t, f.store.EndDrag())

	sh = f.store.Shapes()[0]
	assert.Equal(t, []core.AngularPoint{{Bearing: 0.3, Elevation: 0.4}, {Bearing: 1.3, Elevation: 0.4}, {Bearing: 1.3, Elevation: 1.4}}, sh.AnchorPoints)
	assert.Equal(t, []string{"poly_1"}, f.registry.updates)
	assert.Equal(t, ModeEdit, f.store.Mode(), "end of drag keeps the mode")
	assert.False(t, f.store.Dragging())
}

func TestEditDrag_AbandonedSnapsBack(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)
	require.True(t, f.store.SetMode(ModeEdit))
	require.True(t, f.store.BeginDrag(core.Point2D{X: 8, Y: 2}))
	require.True(t, f.store.ContinueDrag(core.Point2D{X: 28, Y: 2}))

	require.True(t, f.store.SetMode(ModeIdle))

	sh := f.store.Shapes()[0]
	assert.Equal(t, triangle, sh.ScreenPoints)
	assert.Empty(t, f.registry.updates)
	assert.Equal(t, "poly_1", f.store.SelectedID(), "selection survives the mode change")
}

func TestMoveDrag(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)
	require.True(t, f.store.SetMode(ModeMove))

	require.True(t, f.store.BeginDrag(core.Point2D{X: 8, Y: 2}))
	require.True(t, f.store.ContinueDrag(core.Point2D{X: 18, Y: 2}))
	require.True(t, f.store.ContinueDrag(core.Point2D{X: 28, Y: 2}))

	sh := f.store.Shapes()[0]
	assert.InDelta(t, 2.0, sh.AnchorPoints[0].Bearing, 1e-9)
	assert.InDelta(t, 3.0, sh.AnchorPoints[1].Bearing, 1e-9)
	assert.InDelta(t, 20.0, sh.ScreenPoints[0].X, 1e-9)
	assert.Equal(t, []string{"poly_1", "poly_1"}, f.registry.updates, "one update per move")

	require.True(t, f.store.EndDrag())
	assert.Len(t, f.registry.updates, 2)
	assert.Equal(t, ModeMove, f.store.Mode())
}

func TestBeginDrag_RequiresHit(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)

	assert.False(t, f.store.BeginDrag(core.Point2D{X: 8, Y: 2}), "idle mode")

	require.True(t, f.store.SetMode(ModeEdit))
	assert.False(t, f.store.BeginDrag(core.Point2D{X: 500, Y: 500}))
	assert.False(t, f.store.ContinueDrag(core.Point2D{X: 501, Y: 500}))
	assert.False(t, f.store.EndDrag())
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)
	require.True(t, f.store.SetMode(ModeDrawPolygon))
	f.store.AddPoint(core.Point2D{X: 3, Y: 3})

	assert.Equal(t, Status{Mode: "draw", Points: 1, Shapes: 1, SelectedID: "poly_1"}, f.store.Status())
}

func TestFrame_CloseRangeArmed(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.store.SetMode(ModeDrawPolygon))
	f.store.AddPoint(core.Point2D{X: 0, Y: 0})
	f.store.AddPoint(core.Point2D{X: 100, Y: 0})
	assert.Zero(t, f.store.Frame().CloseRange)

	f.store.AddPoint(core.Point2D{X: 100, Y: 100})
	assert.Equal(t, 30.0, f.store.Frame().CloseRange)
}

func TestRenderCalled(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)
	assert.Greater(t, f.frames, 0)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)
	frames := f.frames

	f.store.Close()
	f.store.ClearAll()
	f.store.OnCameraViewChanged()

	assert.False(t, f.store.SetMode(ModeDrawPolygon))
	assert.Empty(t, f.registry.removes, "teardown issues no commands")
	assert.Empty(t, f.store.Shapes())
	assert.Equal(t, frames, f.frames)
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeIdle, ModeDrawPolygon, ModeDrawFreehand, ModeEdit, ModeMove} {
		got, ok := ParseMode(m.String())
		require.True(t, ok)
		assert.Equal(t, m, got)
	}
	_, ok := ParseMode("paint")
	assert.False(t, ok)
}

func TestRestoreShape(t *testing.T) {
	f := newFixture(t)
	anchors := []core.AngularPoint{{Bearing: 1, Elevation: 1}, {Bearing: 5, Elevation: 1}, {Bearing: 3, Elevation: 4}}

	id, ok := f.store.RestoreShape(core.ShapePolygon, anchors)
	require.True(t, ok)
	assert.Equal(t, "poly_1", id)
	require.Len(t, f.registry.creates, 1)
	assert.Equal(t, anchors, f.registry.creates[0].anchors)
	assert.Equal(t, uint32(0x00FF00), f.registry.creates[0].style.FillColor)

	shapes := f.store.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, []core.Point2D{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 30, Y: 40}}, shapes[0].ScreenPoints)
	assert.True(t, shapes[0].Selected)

	id, ok = f.store.RestoreShape(core.ShapeFreehand, anchors[:2])
	require.True(t, ok)
	assert.Equal(t, "freehand_1", id)
	assert.True(t, f.registry.creates[1].style.Polyline)

	// the next drawn polygon continues the numbering
	f.drawPolygon(t, core.Point2D{X: 100, Y: 100}, core.Point2D{X: 200, Y: 100}, core.Point2D{X: 150, Y: 200})
	assert.Equal(t, "poly_2", f.registry.creates[2].id)
}

func TestRestoreShape_Rejected(t *testing.T) {
	f := newFixture(t)
	two := []core.AngularPoint{{Bearing: 1}, {Bearing: 2}}

	_, ok := f.store.RestoreShape(core.ShapePolygon, two)
	assert.False(t, ok, "too few anchors")
	_, ok = f.store.RestoreShape("circle", append(two, core.AngularPoint{Bearing: 3}))
	assert.False(t, ok, "unknown kind")

	require.True(t, f.store.SetMode(ModeDrawPolygon))
	_, ok = f.store.RestoreShape(core.ShapeFreehand, two)
	assert.False(t, ok, "not idle")
	assert.Empty(t, f.registry.creates)
}

func TestEditDrag_SurvivesCameraChange(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, triangle...)
	f.drawPolygon(t, core.Point2D{X: 100, Y: 100}, core.Point2D{X: 200, Y: 100}, core.Point2D{X: 200, Y: 200})
	require.True(t, f.store.SetMode(ModeEdit))

	require.True(t, f.store.BeginDrag(core.Point2D{X: 8, Y: 2}))
	require.True(t, f.store.ContinueDrag(core.Point2D{X: 11, Y: 6}))
	f.store.OnCameraViewChanged()

	shapes := f.store.Shapes()
	assert.Equal(t, []core.Point2D{{X: 3, Y: 4}, {X: 13, Y: 4}, {X: 13, Y: 14}}, shapes[0].ScreenPoints, "dragged shape keeps its translation")
	assert.Equal(t, core.Point2D{X: 100, Y: 100}, shapes[1].ScreenPoints[0])

	require.True(t, f.store.EndDrag())
	assert.Equal(t, []core.AngularPoint{{Bearing: 0.3, Elevation: 0.4}, {Bearing: 1.3, Elevation: 0.4}, {Bearing: 1.3, Elevation: 1.4}}, f.store.Shapes()[0].AnchorPoints)

	f.conv.offset = 10
	f.store.OnCameraViewChanged()
	assert.Equal(t, core.Point2D{X: -7, Y: 4}, f.store.Shapes()[0].ScreenPoints[0], "re-projected once the drag ends")
}

func TestStroking(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.store.Stroking())
	assert.False(t, f.store.StartStroke(core.Point2D{X: 0, Y: 0}), "idle")
	assert.False(t, f.store.Stroking())

	require.True(t, f.store.SetMode(ModeDrawFreehand))
	require.True(t, f.store.StartStroke(core.Point2D{X: 0, Y: 0}))
	assert.True(t, f.store.Stroking())
	assert.False(t, f.store.CompleteFreehand(), "too short")
	assert.False(t, f.store.Stroking())
	assert.Equal(t, ModeDrawFreehand, f.store.Mode())

	require.True(t, f.store.StartStroke(core.Point2D{X: 0, Y: 0}))
	require.True(t, f.store.SetMode(ModeIdle))
	assert.False(t, f.store.Stroking())

	require.True(t, f.store.SetMode(ModeDrawFreehand))
	require.True(t, f.store.StartStroke(core.Point2D{X: 0, Y: 0}))
	f.store.ClearAll()
	assert.False(t, f.store.Stroking())
}

func TestIDSource_SharedBetweenStores(t *testing.T) {
	ids := NewIDSource()
	newStore := func(reg *recordingRegistry) *Store {
		return New(Dependencies{Converter: &linearConverter{}, Registry: reg, IDs: ids}, DefaultConfig())
	}

	first := &recordingRegistry{}
	f := &fixture{store: newStore(first), registry: first}
	f.drawPolygon(t, triangle...)
	f.store.Close()

	second := &recordingRegistry{}
	f = &fixture{store: newStore(second), registry: second}
	f.drawPolygon(t, triangle...)

	assert.Equal(t, "poly_1", first.creates[0].id)
	assert.Equal(t, "poly_2", second.creates[0].id)
	assert.Equal(t, "freehand_1", ids.Next(core.ShapeFreehand))
}

func TestAdopt(t *testing.T) {
	f := newFixture(t)
	anchors := []core.AngularPoint{{Bearing: 1, Elevation: 1}, {Bearing: 2, Elevation: 1}, {Bearing: 2, Elevation: 2}}
	in := []core.Shape{
		{ID: "poly_3", Kind: core.ShapePolygon, AnchorPoints: anchors, Selected: true},
		{ID: "poly_3", Kind: core.ShapePolygon, AnchorPoints: anchors},
		{ID: "poly_4", Kind: core.ShapePolygon, AnchorPoints: []core.AngularPoint{{Bearing: math.NaN(), Elevation: 0}}},
		{ID: "", Kind: core.ShapePolygon, AnchorPoints: anchors},
		{ID: "poly_5", Kind: core.ShapePolygon},
	}
	before := f.frames

	assert.Equal(t, 1, f.store.Adopt(in))
	shapes := f.store.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, "poly_3", shapes[0].ID)
	assert.Equal(t, []core.Point2D{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 20, Y: 20}}, shapes[0].ScreenPoints)
	assert.Equal(t, "poly_3", f.store.SelectedID())
	assert.Equal(t, before+1, f.frames)
	assert.Empty(t, f.registry.creates, "the hotspot already exists in the viewer")
	assert.Empty(t, f.registry.updates)

	anchors[0].Bearing = 99
	assert.Equal(t, 1.0, f.store.Shapes()[0].AnchorPoints[0].Bearing, "anchors are copied")

	f.store.ClearAll()
	assert.Equal(t, []string{"poly_3"}, f.registry.removes)
}

func TestAdopt_OnlyWhenIdle(t *testing.T) {
	f := newFixture(t)
	in := []core.Shape{{ID: "poly_1", Kind: core.ShapePolygon, AnchorPoints: []core.AngularPoint{{Bearing: 1, Elevation: 1}}}}

	require.True(t, f.store.SetMode(ModeDrawPolygon))
	assert.Zero(t, f.store.Adopt(in))
	require.True(t, f.store.SetMode(ModeIdle))

	f.store.Close()
	assert.Zero(t, f.store.Adopt(in))
}
