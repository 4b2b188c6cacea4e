package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/metrics"
)

// StreamPath is where the emulator serves the telemetry stream.
const StreamPath = "/ws/telemetry"

// Publisher receives every decoded payload.
type Publisher interface {
	Publish(p domain.RawPayload)
}

// UndecodableRecorder is told about frames that are not JSON objects.
type UndecodableRecorder interface {
	RecordUndecodable(raw []byte, err error)
}

type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Client consumes the emulator stream and republishes each payload. It
// reconnects with exponential backoff until its context is cancelled.
type Client struct {
	url        string
	pub        Publisher
	undecoded  UndecodableRecorder
	log        *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
	dialer     *websocket.Dialer

	state    atomic.Int32
	attempts atomic.Int32
}

func NewClient(
	streamURL string,
	pub Publisher,
	undecoded UndecodableRecorder,
	log *slog.Logger,
	minBackoff, maxBackoff time.Duration,
) *Client {
	if minBackoff <= 0 {
		minBackoff = 500 * time.Millisecond
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	return &Client{
		url:        streamURL,
		pub:        pub,
		undecoded:  undecoded,
		log:        log,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// StreamURL turns the emulator base URL into its WebSocket stream URL.
func StreamURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid emulator url %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid emulator url %q: unsupported scheme", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + StreamPath
	return u.String(), nil
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) StateName() string {
	return c.State().String()
}

func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// Run blocks until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	defer c.setState(StateStopped)

	for {
		if ctx.Err() != nil {
			return
		}

		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}

		c.setState(StateReconnecting)
		metrics.StreamReconnects.Inc()
		delay := c.reconnectDelay()
		c.log.Warn("telemetry stream unavailable, reconnecting",
			"url", c.url,
			"retry_in", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// session dials once and reads until the connection fails.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", domain.ErrChannelUnavailable, err)
	}
	defer conn.Close()

	c.attempts.Store(0)
	c.setState(StateConnected)
	c.log.Info("telemetry stream connected", "url", c.url)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: read: %v", domain.ErrChannelUnavailable, err)
		}

		p, err := decodePayload(msg)
		if err != nil {
			if c.undecoded != nil {
				c.undecoded.RecordUndecodable(msg, err)
			}
			continue
		}
		c.pub.Publish(p)
	}
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
	if s == StateConnected {
		metrics.StreamConnected.Set(1)
	} else {
		metrics.StreamConnected.Set(0)
	}
}

// reconnectDelay doubles from minBackoff per consecutive failure, capped at
// maxBackoff.
func (c *Client) reconnectDelay() time.Duration {
	attempts := c.attempts.Add(1) - 1

	delay := c.minBackoff
	for j := int32(0); j < attempts; j++ {
		delay *= 2
		if delay >= c.maxBackoff {
			return c.maxBackoff
		}
	}
	return delay
}

var errNotObject = errors.New("frame is not a JSON object")

// decodePayload keeps numbers as json.Number so integer identities survive
// without float rounding.
func decodePayload(msg []byte) (domain.RawPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()

	var p domain.RawPayload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnparseablePayload, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnparseablePayload, errNotObject)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", domain.ErrUnparseablePayload)
	}
	return p, nil
}
