// Package transport carries protocol envelopes between this process and the
// page hosting the panorama viewer over a WebSocket.
package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/panodraw/annotator/pkg/protocol"
)

const (
	sendChSize    = 1024
	inboundChSize = 256
	maxReconnect  = 10
	maxBackoff    = 30 * time.Second
	writeWait     = 10 * time.Second
)

// Config holds the relay endpoint.
type Config struct {
	URL    string
	Secret string
}

// Conn is a WebSocket connection with a single write goroutine and a read
// goroutine that decodes inbound envelopes.
type Conn struct {
	mu      sync.Mutex
	conn    *ws.Conn
	sendCh  chan []byte
	inbound chan protocol.Envelope
	done    chan struct{} // closed on shutdown
	stop    chan struct{} // closed when conn is replaced
	closed  bool

	cfg    Config
	logger *slog.Logger

	// backoff before the first reconnect attempt
	initialBackoff time.Duration
}

// New creates an unconnected Conn.
func New(cfg Config, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		sendCh:         make(chan []byte, sendChSize),
		inbound:        make(chan protocol.Envelope, inboundChSize),
		done:           make(chan struct{}),
		cfg:            cfg,
		logger:         logger.With("component", "transport"),
		initialBackoff: time.Second,
	}
}

// Dial connects and starts the read and write loops.
func (c *Conn) Dial() error {
	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.start(conn)
	return nil
}

// dialOnce performs a single dial with the secret query param.
func (c *Conn) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.cfg.Secret != "" {
		q := u.Query()
		q.Set("secret", c.cfg.Secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// Inbound delivers decoded envelopes from the page. It is never closed;
// select on it together with a context.
func (c *Conn) Inbound() <-chan protocol.Envelope {
	return c.inbound
}

// start installs conn and runs one read and one write loop bound to it.
func (c *Conn) start(conn *ws.Conn) bool {
	stop := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return false
	}
	c.conn = conn
	c.stop = stop
	c.mu.Unlock()

	go c.writeLoop(conn, stop)
	go c.readLoop(conn, stop)
	return true
}

// fail tears down conn and reconnects, unless conn was already replaced or
// the Conn is closed.
func (c *Conn) fail(conn *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	close(c.stop)
	c.conn = nil
	c.mu.Unlock()

	_ = conn.Close()
	go c.reconnect()
}

func (c *Conn) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.fail(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.fail(conn)
				return
			}
		}
	}
}

func (c *Conn) readLoop(conn *ws.Conn, stop <-chan struct{}) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			case <-stop:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			c.fail(conn)
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
			c.logger.Debug("Non-envelope message received", "raw", string(message))
			continue
		}

		select {
		case c.inbound <- env:
		case <-c.done:
			return
		default:
			c.logger.Warn("Inbound channel full, dropping", "type", env.Type)
		}
	}
}

// reconnect re-establishes the connection with exponential backoff.
func (c *Conn) reconnect() {
	backoff := c.initialBackoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		if c.start(conn) {
			c.logger.Info("WebSocket reconnected", "attempt", attempt)
		}
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// Send queues data for the write loop. Non-blocking; drops if the queue is
// full.
func (c *Conn) Send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// Close sends a close frame and stops both loops.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
