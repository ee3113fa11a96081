package krpano

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/panodraw/annotator/pkg/core"
	"github.com/panodraw/annotator/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Script(t *testing.T) {
	b := new(Builder)
	script, err := b.AddHotspot("poly_1").
		Set("poly_1", "fillalpha", 0.3).
		Set("poly_1", "fillcolor", Color(0x00FF00)).
		Set("poly_1", "zorder", 1000).
		Set("poly_1", "polyline", true).
		SetPoints("poly_1", []core.AngularPoint{{Bearing: 10.5, Elevation: -3}, {Bearing: -170, Elevation: 0}}).
		Build()

	require.NoError(t, err)
	assert.Equal(t,
		"addhotspot(poly_1);"+
			"set(hotspot[poly_1].fillalpha,0.3);"+
			"set(hotspot[poly_1].fillcolor,0x00FF00);"+
			"set(hotspot[poly_1].zorder,1000);"+
			"set(hotspot[poly_1].polyline,true);"+
			"set(hotspot[poly_1].point.count,0);"+
			"set(hotspot[poly_1].point[0].ath,10.5);set(hotspot[poly_1].point[0].atv,-3);"+
			"set(hotspot[poly_1].point[1].ath,-170);set(hotspot[poly_1].point[1].atv,0);",
		script)
}

func TestBuilder_RejectsInjection(t *testing.T) {
	tests := []struct {
		name string
		fn   func(b *Builder) *Builder
		want error
	}{
		{"id with call", func(b *Builder) *Builder { return b.AddHotspot("x);removehotspot(y") }, ErrInvalidID},
		{"empty id", func(b *Builder) *Builder { return b.RemoveHotspot("") }, ErrInvalidID},
		{"attribute not allowed", func(b *Builder) *Builder { return b.Set("a", "onclick", "x") }, ErrInvalidAttribute},
		{"string value with space", func(b *Builder) *Builder { return b.Set("a", "renderer", "web gl") }, ErrInvalidAttribute},
		{"nan value", func(b *Builder) *Builder { return b.Set("a", "fillalpha", math.NaN()) }, ErrInvalidAttribute},
		{"unsupported type", func(b *Builder) *Builder { return b.Set("a", "zorder", int64(3)) }, ErrInvalidAttribute},
		{"infinite point", func(b *Builder) *Builder {
			return b.SetPoints("a", []core.AngularPoint{{Bearing: math.Inf(1)}})
		}, ErrInvalidAttribute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn(new(Builder)).Build()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuilder_FirstErrorSticks(t *testing.T) {
	b := new(Builder)
	_, err := b.AddHotspot("bad id").Set("ok", "onclick", 1).AddHotspot("fine").Build()
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestBuilder_Style(t *testing.T) {
	poly, err := new(Builder).Style("p", core.HotspotStyle{FillColor: 0xFF, FillAlpha: 0.3, BorderWidth: 2}).Build()
	require.NoError(t, err)
	assert.Contains(t, poly, "set(hotspot[p].fillcolor,0x0000FF);")
	assert.Contains(t, poly, "set(hotspot[p].renderer,webgl);")
	assert.NotContains(t, poly, "polyline")

	free, err := new(Builder).Style("f", core.HotspotStyle{Polyline: true}).Build()
	require.NoError(t, err)
	assert.Contains(t, free, "set(hotspot[f].polyline,true);")
}

func TestFormatPoints(t *testing.T) {
	assert.Equal(t, "1,2.5,-3,4", FormatPoints([]core.AngularPoint{{Bearing: 1, Elevation: 2.5}, {Bearing: -3, Elevation: 4}}))
	assert.Equal(t, "", FormatPoints(nil))
}

type captureSender struct {
	sent [][]byte
}

func (s *captureSender) Send(data []byte) { s.sent = append(s.sent, data) }

func (s *captureSender) scripts(t *testing.T) []protocol.ScriptPayload {
	t.Helper()
	var out []protocol.ScriptPayload
	for _, data := range s.sent {
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		require.Equal(t, protocol.TypeScript, env.Type)
		var p protocol.ScriptPayload
		require.NoError(t, protocol.Decode(env, &p))
		out = append(out, p)
	}
	return out
}

func envelope(t *testing.T, msgType string, payload any) protocol.Envelope {
	t.Helper()
	data, err := protocol.Encode(msgType, payload)
	require.NoError(t, err)
	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestClient_HotspotCommands(t *testing.T) {
	s := &captureSender{}
	c := NewClient(s, nil)

	anchors := []core.AngularPoint{{Bearing: 1, Elevation: 2}, {Bearing: 3, Elevation: 4}, {Bearing: 5, Elevation: 6}}
	require.NoError(t, c.CreatePolygonHotspot("poly_1", anchors, core.HotspotStyle{FillColor: 0x00FF00}))
	require.NoError(t, c.UpdatePolygonHotspotPoints("poly_1", anchors[:2]))
	require.NoError(t, c.RemoveHotspot("poly_1"))

	scripts := s.scripts(t)
	require.Len(t, scripts, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{scripts[0].Seq, scripts[1].Seq, scripts[2].Seq})
	assert.True(t, strings.HasPrefix(scripts[0].Script, "addhotspot(poly_1);"))
	assert.Contains(t, scripts[0].Script, "point[2].atv,6")
	assert.NotContains(t, scripts[1].Script, "point[2]")
	assert.Equal(t, "removehotspot(poly_1);", scripts[2].Script)
}

func TestClient_InvalidIDSendsNothing(t *testing.T) {
	s := &captureSender{}
	c := NewClient(s, nil)

	err := c.RemoveHotspot("a;b")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.Empty(t, s.sent)
}

func TestClient_HandleEnvelope(t *testing.T) {
	c := NewClient(&captureSender{}, nil)

	assert.False(t, c.Ready())
	_, ok := c.CurrentView()
	assert.False(t, ok)

	require.NoError(t, c.HandleEnvelope(envelope(t, protocol.TypeReady, protocol.ReadyPayload{Version: "1.21"})))
	assert.True(t, c.Ready())
	assert.Equal(t, "1.21", c.Version())

	require.NoError(t, c.HandleEnvelope(envelope(t, protocol.TypeViewChanged, protocol.ViewChangedPayload{
		View: core.View{Bearing: 12, Elevation: -4, FOV: 70},
	})))
	v, ok := c.CurrentView()
	require.True(t, ok)
	assert.Equal(t, core.View{Bearing: 12, Elevation: -4, FOV: 70, FOVKind: core.FOVMaximum}, v)

	geo := core.SurfaceGeometry{
		Canvas:      core.Rect{Width: 400, Height: 300},
		Surface:     core.Rect{Width: 400, Height: 300},
		NativeWidth: 800, NativeHeight: 600,
	}
	require.NoError(t, c.HandleEnvelope(envelope(t, protocol.TypeSurfaceResized, protocol.SurfaceResizedPayload{Geometry: geo})))
	assert.Equal(t, geo, c.Surface())

	c.SetCanvas(core.Rect{Left: 5, Width: 390, Height: 300})
	assert.Equal(t, 5.0, c.Surface().Canvas.Left)
	assert.Equal(t, 800.0, c.Surface().NativeWidth)

	require.NoError(t, c.HandleEnvelope(envelope(t, protocol.TypeAck, protocol.AckMessage{Seq: 1, Error: "boom"})))
	require.NoError(t, c.HandleEnvelope(protocol.Envelope{Type: "unknown"}))
}

func TestClient_HandleEnvelope_BadPayload(t *testing.T) {
	c := NewClient(&captureSender{}, nil)

	err := c.HandleEnvelope(protocol.Envelope{Type: protocol.TypeViewChanged})
	assert.Error(t, err)
	err = c.HandleEnvelope(protocol.Envelope{Type: protocol.TypeSurfaceResized, Payload: json.RawMessage(`"x"`)})
	assert.Error(t, err)
}

func TestClient_NoSynchronousProjection(t *testing.T) {
	c := NewClient(&captureSender{}, nil)
	_, ok := c.ProjectScreenToSphere(1, 2)
	assert.False(t, ok)
	_, ok = c.ProjectSphereToScreen(1, 2)
	assert.False(t, ok)
}
