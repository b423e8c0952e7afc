package server

import (
	"fmt"

	"LiveBoard/internal/protocol"
	"LiveBoard/internal/state"
)

// apply mutates the board for one inbound event and relays the result.
// The sender's identity always comes from the connection, never the payload.
func (h *Hub) apply(userID string, env protocol.Envelope) error {
	switch env.Event {
	case protocol.EventStrokeStart:
		var st state.Stroke
		if err := env.Decode(&st); err != nil {
			return err
		}
		st.UserID = userID
		if err := h.strokes.Start(st); err != nil {
			return fmt.Errorf("start %q: %w", st.ID, err)
		}
		stored, _ := h.strokes.Get(st.ID)
		return h.relay(userID, protocol.EventStrokeStart, stored)

	case protocol.EventStrokePoint:
		var msg protocol.StrokePoint
		if err := env.Decode(&msg); err != nil {
			return err
		}
		if msg.StrokeID == "" {
			return fmt.Errorf("stroke:point without stroke id")
		}
		h.strokes.AppendPoint(msg.StrokeID, msg.Point)
		msg.UserID = userID
		return h.relay(userID, protocol.EventStrokePoint, msg)

	case protocol.EventStrokeEnd:
		var msg protocol.StrokeEnd
		if err := env.Decode(&msg); err != nil {
			return err
		}
		if msg.StrokeID == "" {
			return fmt.Errorf("stroke:end without stroke id")
		}
		h.strokes.Seal(msg.StrokeID)
		msg.UserID = userID
		return h.relay(userID, protocol.EventStrokeEnd, msg)

	case protocol.EventStrokeUndo:
		removed, ok := h.strokes.RemoveMostRecentByUser(userID)
		if !ok {
			h.log.Debug().Str("user", userID).Msg("nothing to undo")
			return nil
		}
		h.log.Debug().Str("user", userID).Str("stroke", removed.ID).Msg("undo")
		return h.relay(userID, protocol.EventStrokesUpdate, h.strokes.Snapshot())

	case protocol.EventCursorMove:
		var msg protocol.CursorMove
		if err := env.Decode(&msg); err != nil {
			return err
		}
		msg.UserID = userID
		h.cursors.Set(userID, state.CursorPosition{X: msg.X, Y: msg.Y, Color: msg.Color})
		return h.relay(userID, protocol.EventCursorMove, msg)
	}
	return fmt.Errorf("%w: %q", protocol.ErrUnknownEvent, env.Event)
}

// relay encodes payload once and fans it out according to the event's audience.
func (h *Hub) relay(from string, ev protocol.Event, payload any) error {
	env, err := protocol.New(ev, payload)
	if err != nil {
		return err
	}
	switch protocol.AudienceOf(ev) {
	case protocol.AudienceOthers:
		h.broadcast(from, env)
	case protocol.AudienceAll:
		h.broadcastAll(env)
	case protocol.AudienceSelf:
		if p, ok := h.peers[from]; ok {
			h.send(p, env)
		}
	}
	return nil
}
