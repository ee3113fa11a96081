package surface

import (
	"errors"

	"github.com/panodraw/annotator/internal/dispatcher"
	"github.com/panodraw/annotator/pkg/core"
	"github.com/panodraw/annotator/pkg/protocol"
)

var errNoDispatcher = errors.New("no command dispatcher")

// handleEnvelope folds a viewer message into the cached state, re-projects
// on camera or surface changes and answers page commands.
func (s *Session) handleEnvelope(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeCommand:
		s.handleCommand(env)
		return
	case protocol.TypePointer:
		s.handlePointerEnvelope(env)
		return
	}

	if s.deps.Viewer != nil {
		if err := s.deps.Viewer.HandleEnvelope(env); err != nil {
			s.logger.Warn("Bad viewer message", "type", env.Type, "error", err)
			return
		}
	}

	switch env.Type {
	case protocol.TypeSurfaceResized:
		if s.deps.OnResize != nil {
			var p protocol.SurfaceResizedPayload
			if protocol.Decode(env, &p) == nil {
				c := p.Geometry.Canvas
				s.deps.OnResize(int(c.Width*float64(s.pixelsPerPt)), int(c.Height*float64(s.pixelsPerPt)), s.pixelsPerPt)
			}
		}
		fallthrough
	case protocol.TypeViewChanged:
		if s.store != nil {
			s.store.OnCameraViewChanged()
		}
	}
}

func (s *Session) handlePointerEnvelope(env protocol.Envelope) {
	var p protocol.PointerPayload
	if err := protocol.Decode(env, &p); err != nil {
		s.logger.Warn("Bad pointer message", "error", err)
		return
	}
	var phase PointerPhase
	switch p.Phase {
	case protocol.PointerDown:
		phase = PointerDown
	case protocol.PointerMove:
		phase = PointerMove
	case protocol.PointerUp:
		phase = PointerUp
	default:
		s.logger.Debug("Unknown pointer phase", "phase", p.Phase)
		return
	}
	s.HandlePointer(phase, core.Point2D{X: p.X, Y: p.Y})
}

func (s *Session) handleCommand(env protocol.Envelope) {
	var cmd protocol.CommandPayload
	if err := protocol.Decode(env, &cmd); err != nil {
		s.logger.Warn("Bad command message", "error", err)
		return
	}

	var (
		result any
		err    error
	)
	if s.deps.Dispatcher == nil {
		err = errNoDispatcher
	} else {
		result, err = s.deps.Dispatcher.Dispatch(dispatcher.Event{
			ID:      cmd.ID,
			Command: cmd.Command,
			Args:    cmd.Args,
		})
	}

	reply := protocol.CommandResultPayload{ID: cmd.ID, Result: result}
	if err != nil {
		reply.Result = nil
		reply.Error = err.Error()
	}
	s.reply(reply)
}

func (s *Session) reply(p protocol.CommandResultPayload) {
	if s.deps.Sender == nil {
		return
	}
	data, err := protocol.Encode(protocol.TypeCommandResult, p)
	if err != nil {
		s.logger.Error("Failed to encode command result", "command", p.ID, "error", err)
		return
	}
	s.deps.Sender.Send(data)
}
