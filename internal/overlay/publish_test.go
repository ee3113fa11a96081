package overlay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/panodraw/annotator/internal/annotate"
	"github.com/panodraw/annotator/pkg/core"
	"github.com/panodraw/annotator/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu   sync.Mutex
	sent [][]byte
}

func (s *sink) Send(data []byte) {
	s.mu.Lock()
	s.sent = append(s.sent, data)
	s.mu.Unlock()
}

func (s *sink) frames(t *testing.T) []protocol.FramePayload {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []protocol.FramePayload
	for _, data := range s.sent {
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		require.Equal(t, protocol.TypeFrame, env.Type)
		var p protocol.FramePayload
		require.NoError(t, protocol.Decode(env, &p))
		out = append(out, p)
	}
	return out
}

var squareFrame = annotate.Frame{
	Mode:   annotate.ModeIdle,
	Shapes: []core.Shape{{ID: "poly_1", Kind: core.ShapePolygon, ScreenPoints: square, Selected: true}},
}

func TestPublisher_CoalescesToNewest(t *testing.T) {
	s := &sink{}
	p := NewPublisher(s, PublisherOptions{})

	p.Render(annotate.Frame{Mode: annotate.ModeDrawPolygon, Pending: []core.Point2D{{X: 1, Y: 1}}})
	p.Render(squareFrame)
	require.NoError(t, p.Flush())
	require.NoError(t, p.Flush())

	frames := s.frames(t)
	require.Len(t, frames, 1, "nothing new after the first flush")
	got := frames[0]
	assert.Equal(t, uint64(1), got.Seq)
	assert.Equal(t, annotate.ModeIdle.String(), got.Mode)
	assert.Empty(t, got.Pending)
	assert.Empty(t, got.Image)
	require.Len(t, got.Shapes, 1)
	assert.Equal(t, protocol.FrameShape{ID: "poly_1", Kind: core.ShapePolygon, Points: square, Selected: true}, got.Shapes[0])
}

func TestPublisher_ResizeWithoutRaster(t *testing.T) {
	s := &sink{}
	p := NewPublisher(s, PublisherOptions{})
	p.Render(squareFrame)
	require.NoError(t, p.Flush())

	p.Resize(80, 60, 2)
	require.NoError(t, p.Flush())
	assert.Len(t, s.frames(t), 1, "vector frames do not depend on the surface size")
}

func TestPublisher_RasterImage(t *testing.T) {
	s := &sink{}
	p := NewPublisher(s, PublisherOptions{Raster: New(10, 10, DefaultStyle())})

	p.Render(squareFrame)
	require.NoError(t, p.Flush())
	p.Resize(200, 160, 2)
	require.NoError(t, p.Flush(), "resize queues the last frame again")

	frames := s.frames(t)
	require.Len(t, frames, 2)
	assert.Equal(t, uint64(2), frames[1].Seq)

	raw, err := base64.StdEncoding.DecodeString(frames[1].Image)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 160), img.Bounds())

	// the square spans 20..80 points, 40..160 pixels at scale 2
	_, _, _, inside := img.At(120, 120).RGBA()
	_, _, _, outside := img.At(20, 20).RGBA()
	assert.NotZero(t, inside)
	assert.Zero(t, outside)
}

func TestPublisher_Run(t *testing.T) {
	s := &sink{}
	p := NewPublisher(s, PublisherOptions{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	p.Render(squareFrame)
	require.Eventually(t, func() bool { return len(s.frames(t)) == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
