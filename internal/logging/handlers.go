package logging

import (
	"context"
	"errors"
	"log/slog"
)

// fanout forwards each record to every handler that accepts its level.
type fanout []slog.Handler

func newFanout(handlers ...slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return fanout(handlers)
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// StateFunc reports attributes describing the current annotation state,
// e.g. the interaction mode and number of committed shapes.
type StateFunc func() []slog.Attr

// stateHandler stamps every record with the attributes returned by state.
type stateHandler struct {
	slog.Handler
	state StateFunc
}

func (h *stateHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.state != nil {
		r.AddAttrs(h.state()...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *stateHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stateHandler{Handler: h.Handler.WithAttrs(attrs), state: h.state}
}

func (h *stateHandler) WithGroup(name string) slog.Handler {
	return &stateHandler{Handler: h.Handler.WithGroup(name), state: h.state}
}
