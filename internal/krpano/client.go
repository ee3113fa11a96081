package krpano

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/panodraw/annotator/pkg/core"
	"github.com/panodraw/annotator/pkg/protocol"
)

// Sender delivers encoded envelopes to the viewer page.
// *transport.Conn satisfies it.
type Sender interface {
	Send(data []byte)
}

// Client talks to a viewer that is reachable only through a message
// channel. It cannot answer projection queries synchronously, so the
// Project methods always report false and the bridge falls back to the
// cached view.
type Client struct {
	sender Sender
	logger *slog.Logger
	seq    atomic.Uint64

	mu       sync.RWMutex
	view     core.View
	haveView bool
	geometry core.SurfaceGeometry
	ready    bool
	version  string
}

// NewClient creates a Client that sends scripts through s.
func NewClient(s Sender, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{sender: s, logger: logger.With("component", "krpano")}
}

// ProjectScreenToSphere is not available over a message channel.
func (c *Client) ProjectScreenToSphere(x, y float64) (core.AngularPoint, bool) {
	return core.AngularPoint{}, false
}

// ProjectSphereToScreen is not available over a message channel.
func (c *Client) ProjectSphereToScreen(bearing, elevation float64) (core.Point2D, bool) {
	return core.Point2D{}, false
}

// CurrentView returns the last view reported by the page.
func (c *Client) CurrentView() (core.View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view, c.haveView
}

// Surface returns the last known canvas and render-surface geometry.
func (c *Client) Surface() core.SurfaceGeometry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.geometry
}

// Ready reports whether the page announced the viewer.
func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Version returns the viewer version from the ready message.
func (c *Client) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// SetCanvas records the overlay canvas rectangle reported by the host.
func (c *Client) SetCanvas(r core.Rect) {
	c.mu.Lock()
	c.geometry.Canvas = r
	c.mu.Unlock()
}

// HandleEnvelope folds an inbound message into the cached state.
// Unknown types are ignored.
func (c *Client) HandleEnvelope(env protocol.Envelope) error {
	switch env.Type {
	case protocol.TypeReady:
		var p protocol.ReadyPayload
		if len(env.Payload) > 0 {
			if err := protocol.Decode(env, &p); err != nil {
				return err
			}
		}
		c.mu.Lock()
		c.ready = true
		c.version = p.Version
		c.mu.Unlock()
		c.logger.Info("viewer ready", "version", p.Version)

	case protocol.TypeViewChanged:
		var p protocol.ViewChangedPayload
		if err := protocol.Decode(env, &p); err != nil {
			return err
		}
		if p.View.FOVKind == "" {
			p.View.FOVKind = core.FOVMaximum
		}
		c.mu.Lock()
		c.view = p.View
		c.haveView = true
		c.mu.Unlock()

	case protocol.TypeSurfaceResized:
		var p protocol.SurfaceResizedPayload
		if err := protocol.Decode(env, &p); err != nil {
			return err
		}
		c.mu.Lock()
		c.geometry = p.Geometry
		c.mu.Unlock()

	case protocol.TypeAck:
		var ack protocol.AckMessage
		if err := protocol.Decode(env, &ack); err != nil {
			return err
		}
		if ack.Error != "" {
			c.logger.Warn("viewer rejected script", "seq", ack.Seq, "error", ack.Error)
		}
	}
	return nil
}

func (c *Client) run(b *Builder) error {
	script, err := b.Build()
	if err != nil {
		return err
	}
	seq := c.seq.Add(1)
	data, err := protocol.Encode(protocol.TypeScript, protocol.ScriptPayload{Seq: seq, Script: script})
	if err != nil {
		return err
	}
	c.sender.Send(data)
	return nil
}

// CreatePolygonHotspot adds a styled polygon hotspot with the given outline.
func (c *Client) CreatePolygonHotspot(id string, anchors []core.AngularPoint, style core.HotspotStyle) error {
	b := new(Builder)
	b.AddHotspot(id).Style(id, style).SetPoints(id, anchors)
	if err := c.run(b); err != nil {
		return fmt.Errorf("create hotspot %s: %w", id, err)
	}
	c.logger.Debug("hotspot created", "id", id, "points", FormatPoints(anchors))
	return nil
}

// UpdatePolygonHotspotPoints replaces the outline of an existing hotspot.
func (c *Client) UpdatePolygonHotspotPoints(id string, anchors []core.AngularPoint) error {
	b := new(Builder)
	b.SetPoints(id, anchors)
	if err := c.run(b); err != nil {
		return fmt.Errorf("update hotspot %s: %w", id, err)
	}
	return nil
}

// RemoveHotspot deletes a hotspot.
func (c *Client) RemoveHotspot(id string) error {
	b := new(Builder)
	b.RemoveHotspot(id)
	if err := c.run(b); err != nil {
		return fmt.Errorf("remove hotspot %s: %w", id, err)
	}
	return nil
}
