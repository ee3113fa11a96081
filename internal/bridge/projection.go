package bridge

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/panodraw/annotator/pkg/core"
)

// minForward rejects directions at or behind the camera plane.
const minForward = 1e-9

// camera is a rectilinear pinhole camera in native render-surface pixels.
//
// The world frame has X pointing at bearing 0 on the horizon, Y pointing at
// bearing +90 and Z pointing straight down, so an s2.LatLng read from a world
// direction gives Lat=elevation and Lng=bearing in the viewer's convention.
type camera struct {
	yaw, pitch    s1.Angle
	focal         float64
	width, height float64
}

// newCamera builds the fallback camera for view on a surface of w x h native
// pixels. fov is taken along the side selected by the view's FOVKind.
func newCamera(view core.View, w, h, defaultFOV float64) camera {
	fov := view.FOV
	if !(fov > 0 && fov < 180) {
		fov = defaultFOV
	}
	half := math.Tan((s1.Angle(fov/2) * s1.Degree).Radians())

	var span float64
	switch view.FOVKind {
	case core.FOVVertical:
		span = h
	case core.FOVDiagonal:
		span = math.Hypot(w, h)
	case core.FOVHorizontal:
		span = w
	default:
		span = math.Max(w, h)
	}

	return camera{
		yaw:    s1.Angle(view.Bearing) * s1.Degree,
		pitch:  s1.Angle(view.Elevation) * s1.Degree,
		focal:  (span / 2) / half,
		width:  w,
		height: h,
	}
}

// toWorld rotates a camera-space direction (forward, right, down) by pitch
// and then yaw.
func (c camera) toWorld(v r3.Vector) r3.Vector {
	sp, cp := math.Sincos(c.pitch.Radians())
	sy, cy := math.Sincos(c.yaw.Radians())

	x := v.X*cp - v.Z*sp
	z := v.X*sp + v.Z*cp
	y := v.Y

	return r3.Vector{X: x*cy - y*sy, Y: x*sy + y*cy, Z: z}
}

// toCamera is the inverse of toWorld.
func (c camera) toCamera(v r3.Vector) r3.Vector {
	sp, cp := math.Sincos(c.pitch.Radians())
	sy, cy := math.Sincos(c.yaw.Radians())

	x := v.X*cy + v.Y*sy
	y := -v.X*sy + v.Y*cy

	return r3.Vector{X: x*cp + v.Z*sp, Y: y, Z: -x*sp + v.Z*cp}
}

// unproject casts a ray through native pixel (nx, ny).
func (c camera) unproject(nx, ny float64) (core.AngularPoint, bool) {
	ray := r3.Vector{X: c.focal, Y: nx - c.width/2, Z: ny - c.height/2}
	world := c.toWorld(ray)
	if world.Norm() == 0 {
		return core.AngularPoint{}, false
	}

	ll := s2.LatLngFromPoint(s2.PointFromCoords(world.X, world.Y, world.Z))
	a := core.AngularPoint{Bearing: ll.Lng.Degrees(), Elevation: ll.Lat.Degrees()}
	return a, a.IsFinite()
}

// project maps a direction to native pixels. Directions behind the camera
// have no projection.
func (c camera) project(a core.AngularPoint) (nx, ny float64, ok bool) {
	p := s2.PointFromLatLng(s2.LatLngFromDegrees(a.Elevation, a.Bearing))
	v := c.toCamera(p.Vector)
	if v.X < minForward {
		return 0, 0, false
	}

	nx = c.width/2 + v.Y/v.X*c.focal
	ny = c.height/2 + v.Z/v.X*c.focal
	return nx, ny, !math.IsNaN(nx) && !math.IsNaN(ny) && !math.IsInf(nx, 0) && !math.IsInf(ny, 0)
}

// NormalizeBearing maps degrees into (-180, 180].
func NormalizeBearing(deg float64) float64 {
	r := math.Remainder(deg, 360)
	if r <= -180 {
		r += 360
	}
	return r
}

// ClampElevation limits degrees to [-90, 90].
func ClampElevation(deg float64) float64 {
	return math.Max(-90, math.Min(90, deg))
}

func normalize(a core.AngularPoint) core.AngularPoint {
	return core.AngularPoint{Bearing: NormalizeBearing(a.Bearing), Elevation: ClampElevation(a.Elevation)}
}
