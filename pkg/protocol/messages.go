// Package protocol defines the JSON envelopes exchanged with the page that
// hosts the panorama viewer.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/panodraw/annotator/pkg/core"
)

// Message type constants.
const (
	// page -> host
	TypeReady          = "ready"
	TypeViewChanged    = "view_changed"
	TypeSurfaceResized = "surface_resized"
	TypeAck            = "ack"
	TypeCommand        = "command"
	TypePointer        = "pointer"

	// host -> page
	TypeScript        = "script"
	TypeCommandResult = "command_result"
	TypeFrame         = "frame"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage acknowledges a script by sequence number.
type AckMessage struct {
	Seq   uint64 `json:"seq"`
	Error string `json:"error,omitempty"`
}

// ReadyPayload is sent once the viewer has initialized.
type ReadyPayload struct {
	Version string `json:"version"`
}

// ViewChangedPayload carries the camera state after a view update.
type ViewChangedPayload struct {
	View core.View `json:"view"`
}

// SurfaceResizedPayload carries the new canvas/render-surface geometry.
type SurfaceResizedPayload struct {
	Geometry core.SurfaceGeometry `json:"geometry"`
}

// ScriptPayload carries a viewer command script.
type ScriptPayload struct {
	Seq    uint64 `json:"seq"`
	Script string `json:"script"`
}

// Pointer phases.
const (
	PointerDown = "down"
	PointerMove = "move"
	PointerUp   = "up"
)

// PointerPayload is a pointer event on the page's overlay canvas, in canvas
// CSS pixels. Used when the page, not a native host, owns the input.
type PointerPayload struct {
	Phase string  `json:"phase"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// CommandPayload is a named host command raised by the page toolbar,
// e.g. {"command": ":MODE:", "args": ["draw"]}.
type CommandPayload struct {
	ID      string   `json:"id,omitempty"`
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// CommandResultPayload answers a CommandPayload with the same ID.
type CommandResultPayload struct {
	ID     string `json:"id,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// FrameShape is one completed shape as drawn on the overlay canvas.
type FrameShape struct {
	ID         string         `json:"id"`
	Kind       core.ShapeKind `json:"kind"`
	Points     []core.Point2D `json:"points"`
	Selected   bool           `json:"selected,omitempty"`
	HidePoints bool           `json:"hidePoints,omitempty"`
}

// FramePayload is the overlay state for the page to draw: pending points,
// the close-loop radius around the first one, and every shape in canvas
// CSS pixels. Image, when set, is the same frame rasterised as a base64 PNG.
type FramePayload struct {
	Seq        uint64         `json:"seq"`
	Mode       string         `json:"mode"`
	Pending    []core.Point2D `json:"pending"`
	CloseRange float64        `json:"closeRange,omitempty"`
	Shapes     []FrameShape   `json:"shapes"`
	Image      string         `json:"image,omitempty"`
}

// Encode builds a JSON-encoded Envelope from a message type and payload.
func Encode(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		raw = b
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Decode unmarshals an envelope's payload into v.
func Decode(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return nil
}
