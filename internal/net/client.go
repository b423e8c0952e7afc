package net

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"LiveBoard/internal/logging"
	"LiveBoard/internal/protocol"
)

// ErrNotConnected is returned by Send while the client has no connection.
var ErrNotConnected = errors.New("not connected")

// ClientOptions configures a Client.
type ClientOptions struct {
	// ReconnectInitial is the first delay before redialing.
	ReconnectInitial time.Duration
	// ReconnectMax caps the delay between attempts.
	ReconnectMax time.Duration
	// MaxAttempts stops redialing after this many failed dials in a row. Zero
	// retries until the context is cancelled.
	MaxAttempts uint64
	// WriteTimeout bounds each Send. A write that times out drops the
	// connection, which is then redialed.
	WriteTimeout time.Duration
	// OnEvent receives every event from the server, in order.
	OnEvent func(protocol.Envelope)
	// OnDisconnect is called after a connection is lost.
	OnDisconnect func(err error)
}

// Client is the drawing client's side of the transport. It redials with
// exponential backoff after a connection drops; the server answers every new
// connection with init, which resynchronizes the board.
type Client struct {
	url    string
	opts   ClientOptions
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a client for a ws:// or wss:// URL. Call Run to connect.
func NewClient(url string, opts ClientOptions) *Client {
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = 500 * time.Millisecond
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Client{
		url:    url,
		opts:   opts,
		dialer: websocket.DefaultDialer,
		log:    logging.Component("client").With().Str("url", url).Logger(),
	}
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes one event to the server.
func (c *Client) Send(env protocol.Envelope) error {
	frame, err := protocol.Marshal(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		// a failed write leaves the connection unusable; closing it ends
		// serve and the next dial resyncs through init
		_ = c.conn.Close()
		return fmt.Errorf("send %s: %w", env.Event, err)
	}
	return nil
}

// Run connects and keeps reconnecting until ctx is cancelled or MaxAttempts
// dials fail in a row.
func (c *Client) Run(ctx context.Context) error {
	b := c.newBackoff(ctx)
	for {
		var conn *websocket.Conn
		dial := func() error {
			var err error
			conn, _, err = c.dialer.DialContext(ctx, c.url, nil)
			return err
		}
		notify := func(err error, wait time.Duration) {
			c.log.Warn().Err(err).Dur("retry_in", wait).Msg("dial failed")
		}
		if err := backoff.RetryNotify(dial, b, notify); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("connect %s: %w", c.url, err)
		}
		b.Reset()
		c.log.Info().Msg("connected")

		err := c.serve(ctx, conn)
		if c.opts.OnDisconnect != nil {
			c.opts.OnDisconnect(err)
		}
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn().Err(err).Msg("connection lost")
	}
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.opts.ReconnectInitial
	eb.MaxInterval = c.opts.ReconnectMax
	eb.MaxElapsedTime = 0
	eb.Reset()
	var b backoff.BackOff = eb
	if c.opts.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, c.opts.MaxAttempts)
	}
	return backoff.WithContext(b, ctx)
}

// serve reads from one connection until it fails or ctx is cancelled.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		mt, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.TextMessage {
			continue
		}
		env, err := protocol.Unmarshal(frame)
		if err != nil {
			c.log.Debug().Err(err).Msg("frame dropped")
			continue
		}
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(env)
		}
	}
}
