// Package krpano drives the panorama viewer through its text action
// language and mirrors its view state for the coordinate bridge.
package krpano

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/panodraw/annotator/pkg/core"
)

var (
	// ErrInvalidID is returned for hotspot ids outside [A-Za-z0-9_].
	ErrInvalidID = errors.New("invalid hotspot id")

	// ErrInvalidAttribute is returned for attributes that are not on the
	// allow-list or values that cannot be rendered safely.
	ErrInvalidAttribute = errors.New("invalid hotspot attribute")
)

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// attributes that may be set on a hotspot
var allowedAttributes = map[string]bool{
	"type":        true,
	"renderer":    true,
	"fill":        true,
	"fillcolor":   true,
	"fillalpha":   true,
	"bordercolor": true,
	"borderalpha": true,
	"borderwidth": true,
	"zorder":      true,
	"visible":     true,
	"polyline":    true,
}

// Color is rendered in the viewer's 0xRRGGBB notation.
type Color uint32

// Builder accumulates viewer actions. The first error sticks and is
// returned by Build; later calls are ignored.
type Builder struct {
	sb  strings.Builder
	err error
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder) checkID(id string) bool {
	if !tokenPattern.MatchString(id) {
		b.fail(fmt.Errorf("%q: %w", id, ErrInvalidID))
		return false
	}
	return true
}

// AddHotspot emits addhotspot(id).
func (b *Builder) AddHotspot(id string) *Builder {
	if b.err != nil || !b.checkID(id) {
		return b
	}
	fmt.Fprintf(&b.sb, "addhotspot(%s);", id)
	return b
}

// RemoveHotspot emits removehotspot(id).
func (b *Builder) RemoveHotspot(id string) *Builder {
	if b.err != nil || !b.checkID(id) {
		return b
	}
	fmt.Fprintf(&b.sb, "removehotspot(%s);", id)
	return b
}

// Set assigns an allow-listed attribute. Values may be bool, int, float64,
// Color, or a string consisting only of [A-Za-z0-9_].
func (b *Builder) Set(id, attr string, value any) *Builder {
	if b.err != nil || !b.checkID(id) {
		return b
	}
	if !allowedAttributes[attr] {
		return b.fail(fmt.Errorf("%q: %w", attr, ErrInvalidAttribute))
	}
	v, err := formatValue(value)
	if err != nil {
		return b.fail(fmt.Errorf("%s: %w", attr, err))
	}
	fmt.Fprintf(&b.sb, "set(hotspot[%s].%s,%s);", id, attr, v)
	return b
}

// SetPoints replaces the hotspot outline with anchors.
func (b *Builder) SetPoints(id string, anchors []core.AngularPoint) *Builder {
	if b.err != nil || !b.checkID(id) {
		return b
	}
	fmt.Fprintf(&b.sb, "set(hotspot[%s].point.count,0);", id)
	for i, a := range anchors {
		if !a.IsFinite() {
			return b.fail(fmt.Errorf("point %d: %w", i, ErrInvalidAttribute))
		}
		fmt.Fprintf(&b.sb, "set(hotspot[%s].point[%d].ath,%s);set(hotspot[%s].point[%d].atv,%s);",
			id, i, formatFloat(a.Bearing), id, i, formatFloat(a.Elevation))
	}
	return b
}

// Style applies a hotspot style the way the viewer page does.
func (b *Builder) Style(id string, s core.HotspotStyle) *Builder {
	b.Set(id, "type", "polygon").
		Set(id, "renderer", "webgl").
		Set(id, "fill", true).
		Set(id, "fillcolor", Color(s.FillColor)).
		Set(id, "fillalpha", s.FillAlpha).
		Set(id, "bordercolor", Color(s.BorderColor)).
		Set(id, "borderalpha", s.BorderAlpha).
		Set(id, "borderwidth", s.BorderWidth).
		Set(id, "zorder", s.ZOrder).
		Set(id, "visible", true)
	if s.Polyline {
		b.Set(id, "polyline", true)
	}
	return b
}

// Build returns the script or the first error.
func (b *Builder) Build() (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return b.sb.String(), nil
}

func formatValue(value any) (string, error) {
	switch v := value.(type) {
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", ErrInvalidAttribute
		}
		return formatFloat(v), nil
	case Color:
		return fmt.Sprintf("0x%06X", uint32(v)&0xFFFFFF), nil
	case string:
		if !tokenPattern.MatchString(v) {
			return "", ErrInvalidAttribute
		}
		return v, nil
	default:
		return "", ErrInvalidAttribute
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatPoints renders anchors as the viewer's "ath,atv,ath,atv" list.
func FormatPoints(anchors []core.AngularPoint) string {
	parts := make([]string, 0, len(anchors)*2)
	for _, a := range anchors {
		parts = append(parts, formatFloat(a.Bearing), formatFloat(a.Elevation))
	}
	return strings.Join(parts, ",")
}
