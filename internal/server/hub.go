// Package server coordinates LiveBoard connections: it owns the authoritative
// stroke store and cursor table, applies inbound events and relays them to
// the other connections.
package server

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"LiveBoard/internal/logging"
	"LiveBoard/internal/protocol"
	"LiveBoard/internal/state"
)

// ErrHubClosed is returned by hub calls made after Run has returned.
var ErrHubClosed = errors.New("hub is closed")

// Peer is one connected client as seen by the hub. Send must not block.
type Peer interface {
	ID() string
	Send(env protocol.Envelope) error
}

// Hub is the single owner of the board state. Every request is handed to the
// goroutine running Run and processed to completion before the next one, so
// the store and table need no locking and a mutation and its relay happen
// atomically with respect to other events.
type Hub struct {
	strokes *state.StrokeStore
	cursors *state.CursorTable
	peers   map[string]Peer
	order   []string // peer ids in join order, for deterministic fan-out

	requests chan func()
	done     chan struct{}
	log      zerolog.Logger
}

// NewHub creates a hub with an empty board.
func NewHub() *Hub {
	return &Hub{
		strokes:  state.NewStrokeStore(),
		cursors:  state.NewCursorTable(),
		peers:    make(map[string]Peer),
		requests: make(chan func()),
		done:     make(chan struct{}),
		log:      logging.Component("hub"),
	}
}

// Run processes requests until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case fn := <-h.requests:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// do runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	req := func() {
		defer close(finished)
		fn()
	}
	select {
	case h.requests <- req:
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Join registers a connection and sends it its init event. Because the hub
// processes one request at a time, init is queued on the peer before any
// relayed event can be.
func (h *Hub) Join(ctx context.Context, p Peer) error {
	return h.do(ctx, func() {
		id := p.ID()
		if _, exists := h.peers[id]; exists {
			h.log.Warn().Str("user", id).Msg("replacing existing connection")
			h.unregister(id)
		}
		h.peers[id] = p
		h.order = append(h.order, id)

		env := protocol.MustNew(protocol.EventInit, protocol.Init{
			UserID:  id,
			Strokes: h.strokes.Snapshot(),
			Cursors: h.cursors.List(),
		})
		h.send(p, env)
		h.log.Info().Str("user", id).Int("peers", len(h.peers)).Int("strokes", h.strokes.Len()).Msg("joined")
	})
}

// Leave unregisters a connection, drops its cursor and tells the remaining
// connections. The user's strokes stay on the board.
func (h *Hub) Leave(ctx context.Context, userID string) error {
	return h.do(ctx, func() {
		if _, ok := h.peers[userID]; !ok {
			return
		}
		h.unregister(userID)
		h.cursors.Remove(userID)
		h.broadcast(userID, protocol.MustNew(protocol.EventCursorRemove, protocol.CursorRemove{UserID: userID}))
		h.log.Info().Str("user", userID).Int("peers", len(h.peers)).Msg("left")
	})
}

// Dispatch applies one inbound event from userID and relays it.
func (h *Hub) Dispatch(ctx context.Context, userID string, env protocol.Envelope) error {
	return h.do(ctx, func() {
		if _, ok := h.peers[userID]; !ok {
			h.log.Debug().Str("user", userID).Str("event", string(env.Event)).Msg("event from unknown connection dropped")
			return
		}
		if !protocol.Inbound(env.Event) {
			h.log.Debug().Str("user", userID).Str("event", string(env.Event)).Msg("event not accepted from clients")
			return
		}
		if err := h.apply(userID, env); err != nil {
			h.log.Debug().Err(err).Str("user", userID).Str("event", string(env.Event)).Msg("event dropped")
		}
	})
}

// Snapshot returns the ordered strokes on the board.
func (h *Hub) Snapshot(ctx context.Context) ([]state.Stroke, error) {
	var out []state.Stroke
	err := h.do(ctx, func() { out = h.strokes.Snapshot() })
	return out, err
}

// Cursors returns the live cursors.
func (h *Hub) Cursors(ctx context.Context) ([]state.Cursor, error) {
	var out []state.Cursor
	err := h.do(ctx, func() { out = h.cursors.List() })
	return out, err
}

// Peers returns the ids of the connected users in join order.
func (h *Hub) Peers(ctx context.Context) ([]string, error) {
	var out []string
	err := h.do(ctx, func() { out = append([]string(nil), h.order...) })
	return out, err
}

// Reset replaces the board and resynchronizes every connection.
func (h *Hub) Reset(ctx context.Context, strokes []state.Stroke) error {
	return h.do(ctx, func() {
		h.strokes.Reset(strokes)
		h.broadcastAll(protocol.MustNew(protocol.EventStrokesUpdate, h.strokes.Snapshot()))
		h.log.Info().Int("strokes", h.strokes.Len()).Msg("board reset")
	})
}

func (h *Hub) unregister(id string) {
	delete(h.peers, id)
	for i, pid := range h.order {
		if pid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

func (h *Hub) send(p Peer, env protocol.Envelope) {
	if err := p.Send(env); err != nil {
		h.log.Warn().Err(err).Str("user", p.ID()).Str("event", string(env.Event)).Msg("send failed")
	}
}

// broadcast sends env to every connection except the one with id exclude.
func (h *Hub) broadcast(exclude string, env protocol.Envelope) {
	for _, id := range h.order {
		if id == exclude {
			continue
		}
		h.send(h.peers[id], env)
	}
}

func (h *Hub) broadcastAll(env protocol.Envelope) {
	h.broadcast("", env)
}
