package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"studio/internal/providers/openai"
)

const writeWait = 10 * time.Second

// ErrChannelClosed is returned by Send and Receive after Close.
var ErrChannelClosed = errors.New("realtime: channel closed")

// Channel is an ordered, bidirectional stream of JSON events.
type Channel interface {
	Send(ctx context.Context, event any) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens a Channel authorised by an ephemeral session.
type Dialer interface {
	Dial(ctx context.Context, sess openai.Session) (Channel, error)
}

// WSChannel is a Channel over a websocket. Writes are serialised; reads must
// come from a single goroutine.
type WSChannel struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{conn: conn, closed: make(chan struct{})}
}

func (c *WSChannel) Send(ctx context.Context, event any) error {
	raw, err := encodeEvent(event)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *WSChannel) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		select {
		case <-c.closed:
			return nil, ErrChannelClosed
		default:
		}
		return nil, err
	}
	return data, nil
}

// Close sends a close frame and releases the connection. It is idempotent.
func (c *WSChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// WSDialer connects to the OpenAI Realtime websocket endpoint.
type WSDialer struct {
	URL    string
	Dialer *websocket.Dialer
}

func (d WSDialer) Dial(ctx context.Context, sess openai.Session) (Channel, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+sess.ClientSecret)
	header.Set("OpenAI-Beta", "realtime=v1")
	conn, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime: dial %s: %w (status %d)", d.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("realtime: dial %s: %w", d.URL, err)
	}
	return NewWSChannel(conn), nil
}

func encodeEvent(event any) ([]byte, error) {
	switch v := event.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		raw, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("realtime: encode event: %w", err)
		}
		return raw, nil
	}
}
