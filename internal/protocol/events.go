// Package protocol defines the events exchanged between LiveBoard clients and
// the server, their payloads, the frame codec and the relay rules.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"LiveBoard/internal/state"
)

// Event names an event on the wire.
type Event string

const (
	EventInit          Event = "init"
	EventStrokeStart   Event = "stroke:start"
	EventStrokePoint   Event = "stroke:point"
	EventStrokeEnd     Event = "stroke:end"
	EventStrokeUndo    Event = "stroke:undo"
	EventStrokesUpdate Event = "strokes:update"
	EventCursorMove    Event = "cursor:move"
	EventCursorRemove  Event = "cursor:remove"
)

// ErrUnknownEvent is returned when a frame names an event outside the vocabulary.
var ErrUnknownEvent = errors.New("unknown event")

// Audience says which connections receive an event emitted by the server.
type Audience int

const (
	// AudienceNone events are never sent by the server.
	AudienceNone Audience = iota
	// AudienceSelf events go only to the connection they concern.
	AudienceSelf
	// AudienceOthers events go to every connection except the originator.
	AudienceOthers
	// AudienceAll events go to every connection, the originator included.
	AudienceAll
)

func (a Audience) String() string {
	switch a {
	case AudienceSelf:
		return "self"
	case AudienceOthers:
		return "others"
	case AudienceAll:
		return "all"
	default:
		return "none"
	}
}

// AudienceOf returns the relay rule for an event. Undo invalidates the
// requester's own optimistic state, so its snapshot goes to everyone.
func AudienceOf(ev Event) Audience {
	switch ev {
	case EventInit:
		return AudienceSelf
	case EventStrokeStart, EventStrokePoint, EventStrokeEnd, EventCursorMove, EventCursorRemove:
		return AudienceOthers
	case EventStrokesUpdate:
		return AudienceAll
	default:
		return AudienceNone
	}
}

// Inbound reports whether a client is allowed to send ev to the server.
func Inbound(ev Event) bool {
	switch ev {
	case EventStrokeStart, EventStrokePoint, EventStrokeEnd, EventStrokeUndo, EventCursorMove:
		return true
	default:
		return false
	}
}

// Known reports whether ev belongs to the vocabulary.
func Known(ev Event) bool {
	return Inbound(ev) || AudienceOf(ev) != AudienceNone
}

// Init is the first event a connection receives.
type Init struct {
	UserID  string         `json:"userId"`
	Strokes []state.Stroke `json:"strokes"`
	Cursors []state.Cursor `json:"cursors"`
}

// StrokePoint appends one point to a stroke. UserID is set by the server on relay.
type StrokePoint struct {
	StrokeID string      `json:"strokeId"`
	Point    state.Point `json:"point"`
	UserID   string      `json:"userId,omitempty"`
}

// StrokeEnd closes a stroke. UserID is set by the server on relay.
type StrokeEnd struct {
	StrokeID string `json:"strokeId"`
	UserID   string `json:"userId,omitempty"`
}

// CursorMove is a presence update. Clients send it without UserID; the server
// relays it with UserID set.
type CursorMove struct {
	UserID string  `json:"userId,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color"`
}

// Cursor converts a relayed move into a cursor.
func (m CursorMove) Cursor() state.Cursor {
	return state.Cursor{UserID: m.UserID, X: m.X, Y: m.Y, Color: m.Color}
}

// CursorRemove tells clients to drop a user's cursor.
type CursorRemove struct {
	UserID string `json:"userId"`
}

// Envelope is one frame: an event name and its raw payload.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// New builds an envelope, encoding payload as JSON. A nil payload produces an
// envelope without data.
func New(ev Event, payload any) (Envelope, error) {
	env := Envelope{Event: ev}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", ev, err)
	}
	env.Data = data
	return env, nil
}

// MustNew is New for payloads that cannot fail to encode.
func MustNew(ev Event, payload any) Envelope {
	env, err := New(ev, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("decode %s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Event, err)
	}
	return nil
}

// Marshal encodes an envelope into a frame.
func Marshal(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes a frame. Frames naming unknown events are rejected with
// ErrUnknownEvent.
func Unmarshal(frame []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(frame, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if !Known(e.Event) {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Event)
	}
	return e, nil
}
