package overlay

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/panodraw/annotator/internal/annotate"
	"github.com/panodraw/annotator/pkg/protocol"
)

const defaultFrameInterval = 33 * time.Millisecond

// Sender delivers encoded envelopes to the page.
type Sender interface {
	Send(data []byte)
}

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	// Interval is the minimum gap between two frames. Frames rendered in
	// between are coalesced into the newest one.
	Interval time.Duration

	// Raster, when set, rasterises each published frame and attaches it as
	// a PNG.
	Raster *Renderer

	Logger *slog.Logger
}

// Publisher implements annotate.Renderer by sending frame envelopes to the
// page. Render only records the newest frame; Run sends it at most once per
// interval, so pointer moves and camera updates never wait on encoding.
type Publisher struct {
	sender   Sender
	raster   *Renderer
	interval time.Duration
	logger   *slog.Logger
	wake     chan struct{}

	mu      sync.Mutex
	pending *annotate.Frame
	last    *annotate.Frame
	seq     uint64
}

var _ annotate.Renderer = (*Publisher)(nil)

// NewPublisher creates a Publisher sending through s.
func NewPublisher(s Sender, opts PublisherOptions) *Publisher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultFrameInterval
	}
	return &Publisher{
		sender:   s,
		raster:   opts.Raster,
		interval: interval,
		logger:   logger.With("component", "overlay"),
		wake:     make(chan struct{}, 1),
	}
}

// Render queues f, replacing any frame not yet sent.
func (p *Publisher) Render(f annotate.Frame) {
	p.mu.Lock()
	p.pending = &f
	p.mu.Unlock()
	p.signal()
}

func (p *Publisher) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Resize resizes the raster image and sets its scale, then queues the last
// frame again so the page gets an image of the new size.
func (p *Publisher) Resize(widthPx, heightPx int, pixelsPerPt float32) {
	if p.raster == nil {
		return
	}
	p.raster.Resize(widthPx, heightPx)
	p.raster.SetScale(float64(pixelsPerPt))

	p.mu.Lock()
	if p.pending == nil && p.last != nil {
		p.pending = p.last
	}
	queued := p.pending != nil
	p.mu.Unlock()
	if queued {
		p.signal()
	}
}

// Run sends queued frames until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
		}

		if err := p.Flush(); err != nil {
			p.logger.Warn("Failed to publish overlay frame", "error", err)
		}

		timer.Reset(p.interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Flush sends the queued frame now, if any.
func (p *Publisher) Flush() error {
	p.mu.Lock()
	f := p.pending
	p.pending = nil
	if f == nil {
		p.mu.Unlock()
		return nil
	}
	p.last = f
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	payload := framePayload(seq, *f)
	if p.raster != nil {
		img, err := p.rasterise(*f)
		if err != nil {
			return err
		}
		payload.Image = img
	}

	data, err := protocol.Encode(protocol.TypeFrame, payload)
	if err != nil {
		return err
	}
	p.sender.Send(data)
	return nil
}

func (p *Publisher) rasterise(f annotate.Frame) (string, error) {
	p.raster.Render(f)
	img, _ := p.raster.Snapshot()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode overlay png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func framePayload(seq uint64, f annotate.Frame) protocol.FramePayload {
	out := protocol.FramePayload{
		Seq:        seq,
		Mode:       f.Mode.String(),
		Pending:    f.Pending,
		CloseRange: f.CloseRange,
		Shapes:     make([]protocol.FrameShape, len(f.Shapes)),
	}
	for i, sh := range f.Shapes {
		out.Shapes[i] = protocol.FrameShape{
			ID:         sh.ID,
			Kind:       sh.Kind,
			Points:     sh.ScreenPoints,
			Selected:   sh.Selected,
			HidePoints: sh.HidePoints,
		}
	}
	return out
}
