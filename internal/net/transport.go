package net

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"LiveBoard/internal/logging"
	"LiveBoard/internal/protocol"
)

var (
	// ErrPeerClosed is returned when sending to a closed connection.
	ErrPeerClosed = errors.New("peer closed")
	// ErrSendBufferFull is returned when a slow connection cannot keep up.
	// The connection is closed when this happens.
	ErrSendBufferFull = errors.New("peer send buffer full")
)

// PeerOptions tunes a server-side connection.
type PeerOptions struct {
	SendBuffer   int
	ReadLimit    int64
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// DefaultPeerOptions returns options suitable for tests and small boards.
func DefaultPeerOptions() PeerOptions {
	return PeerOptions{
		SendBuffer:   256,
		ReadLimit:    64 * 1024,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Peer is a client connected to the server over a WebSocket. Its identity is
// a fresh UUID, which the board uses as the user id.
//
// gorilla/websocket allows one reader and one writer at a time: ReadLoop is
// the only reader and WriteLoop the only writer, everything else goes
// through the send queue.
type Peer struct {
	id   string
	conn *websocket.Conn
	opts PeerOptions

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// NewPeer wraps an upgraded connection.
func NewPeer(conn *websocket.Conn, opts PeerOptions) *Peer {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultPeerOptions().SendBuffer
	}
	return &Peer{
		id:     uuid.NewString(),
		conn:   conn,
		opts:   opts,
		send:   make(chan []byte, opts.SendBuffer),
		closed: make(chan struct{}),
	}
}

// ID returns the connection identity.
func (p *Peer) ID() string {
	return p.id
}

// Send queues an event without blocking.
func (p *Peer) Send(env protocol.Envelope) error {
	frame, err := protocol.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case <-p.closed:
		return ErrPeerClosed
	default:
	}
	select {
	case p.send <- frame:
		return nil
	default:
		p.Close()
		return ErrSendBufferFull
	}
}

// Close shuts the connection down. It is safe to call more than once.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		err = p.conn.Close()
	})
	return err
}

// Done is closed once the peer has been closed.
func (p *Peer) Done() <-chan struct{} {
	return p.closed
}

// ReadLoop reads frames until the connection fails and hands each decoded
// envelope to handle. Undecodable frames are skipped.
func (p *Peer) ReadLoop(handle func(protocol.Envelope)) error {
	defer p.Close()
	log := logging.Component("peer").With().Str("user", p.id).Logger()

	if p.opts.ReadLimit > 0 {
		p.conn.SetReadLimit(p.opts.ReadLimit)
	}
	if p.opts.PingInterval > 0 {
		wait := 2 * p.opts.PingInterval
		_ = p.conn.SetReadDeadline(time.Now().Add(wait))
		p.conn.SetPongHandler(func(string) error {
			return p.conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		mt, frame, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("read: %w", err)
			}
			return nil
		}
		if mt != websocket.TextMessage {
			continue
		}
		env, err := protocol.Unmarshal(frame)
		if err != nil {
			log.Debug().Err(err).Msg("frame dropped")
			continue
		}
		handle(env)
	}
}

// WriteLoop drains the send queue and keeps the connection alive with pings.
func (p *Peer) WriteLoop() {
	defer p.Close()

	var ping <-chan time.Time
	if p.opts.PingInterval > 0 {
		ticker := time.NewTicker(p.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case frame := <-p.send:
			p.setWriteDeadline()
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping:
			p.setWriteDeadline()
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.closed:
			return
		}
	}
}

func (p *Peer) setWriteDeadline() {
	if p.opts.WriteTimeout > 0 {
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.opts.WriteTimeout))
	}
}
