// Package client keeps a drawing client's view of the board in step with the
// server while the user draws optimistically.
package client

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"LiveBoard/internal/logging"
	"LiveBoard/internal/protocol"
	"LiveBoard/internal/state"
)

// DefaultWidth is the stroke width used when none is configured.
const DefaultWidth = 3.0

// DefaultPalette is the set of colors a client picks from when it joins.
var DefaultPalette = []string{"#22c55e", "#3b82f6", "#ec4899", "#f97316", "#eab308", "#a855f7"}

// Renderer draws the board. Coordinates are normalized to [0,1].
type Renderer interface {
	DrawSegment(from, to state.Point, color string, width float64)
	DrawDot(p state.Point, color string, width float64)
	ClearAndRedrawAll(strokes []state.Stroke)
	ShowCursor(userID string, p state.Point, color string)
	HideCursor(userID string)
}

// Sender delivers events to the server.
type Sender interface {
	Send(env protocol.Envelope) error
}

// Options configures a Reconciler.
type Options struct {
	// Color fixes the drawing color. Empty picks one from Palette on init.
	Color string
	// Width is the stroke width. Zero means DefaultWidth.
	Width   float64
	Palette []string
}

// Reconciler holds the client's mirror of the board plus the strokes this
// client started that no authoritative snapshot has shown yet (the pending
// layer). Local input is drawn and sent immediately; server events are
// merged into the mirror and drawn.
//
// Network events and UI input arrive on different goroutines, so every
// method takes the lock. Renderer and Sender are called with the lock held
// and must not call back into the Reconciler.
type Reconciler struct {
	mu       sync.Mutex
	renderer Renderer
	sender   Sender
	log      zerolog.Logger

	palette  []string
	color    string
	colorSet bool
	width    float64

	userID string
	ready  bool

	strokes map[string]*state.Stroke
	order   []string
	pending []string // oldest first
	current string   // id of the stroke being drawn, if any
	cursors map[string]struct{}
}

// NewReconciler creates a reconciler with an empty board.
func NewReconciler(r Renderer, s Sender, opts Options) *Reconciler {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if len(opts.Palette) == 0 {
		opts.Palette = DefaultPalette
	}
	color := opts.Color
	if color == "" {
		color = opts.Palette[0]
	}
	return &Reconciler{
		renderer: r,
		sender:   s,
		log:      logging.Component("reconciler"),
		palette:  append([]string(nil), opts.Palette...),
		color:    color,
		colorSet: opts.Color != "",
		width:    opts.Width,
		strokes:  make(map[string]*state.Stroke),
		cursors:  make(map[string]struct{}),
	}
}

// Handle applies one event from the server.
func (r *Reconciler) Handle(env protocol.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch env.Event {
	case protocol.EventInit:
		var init protocol.Init
		if err := env.Decode(&init); err != nil {
			return err
		}
		r.applyInit(init)

	case protocol.EventStrokesUpdate:
		var snapshot []state.Stroke
		if err := env.Decode(&snapshot); err != nil {
			return err
		}
		r.applySnapshot(snapshot)

	case protocol.EventStrokeStart:
		var s state.Stroke
		if err := env.Decode(&s); err != nil {
			return err
		}
		if s.ID == "" {
			return fmt.Errorf("stroke:start without strokeId")
		}
		if _, exists := r.strokes[s.ID]; exists {
			return nil
		}
		r.insert(s.Clone())

	case protocol.EventStrokePoint:
		var m protocol.StrokePoint
		if err := env.Decode(&m); err != nil {
			return err
		}
		s, ok := r.strokes[m.StrokeID]
		if !ok {
			return nil
		}
		prev, hasPrev := s.Last()
		s.Points = append(s.Points, m.Point)
		if hasPrev {
			r.renderer.DrawSegment(prev, m.Point, s.Color, s.Width)
		}

	case protocol.EventStrokeEnd:
		var m protocol.StrokeEnd
		if err := env.Decode(&m); err != nil {
			return err
		}
		if s, ok := r.strokes[m.StrokeID]; ok && len(s.Points) == 1 {
			r.renderer.DrawDot(s.Points[0], s.Color, s.Width)
		}

	case protocol.EventCursorMove:
		var m protocol.CursorMove
		if err := env.Decode(&m); err != nil {
			return err
		}
		if m.UserID == "" || m.UserID == r.userID {
			return nil
		}
		r.cursors[m.UserID] = struct{}{}
		r.renderer.ShowCursor(m.UserID, state.Point{X: m.X, Y: m.Y}, m.Color)

	case protocol.EventCursorRemove:
		var m protocol.CursorRemove
		if err := env.Decode(&m); err != nil {
			return err
		}
		if _, ok := r.cursors[m.UserID]; ok {
			delete(r.cursors, m.UserID)
			r.renderer.HideCursor(m.UserID)
		}

	default:
		r.log.Debug().Str("event", string(env.Event)).Msg("event ignored")
	}
	return nil
}

func (r *Reconciler) applyInit(init protocol.Init) {
	r.userID = init.UserID
	r.ready = true
	r.pending = nil
	r.current = ""
	if !r.colorSet {
		r.color = r.palette[rand.Intn(len(r.palette))]
	}

	r.replaceMirror(init.Strokes)
	r.renderer.ClearAndRedrawAll(r.view())

	r.hideCursors()
	for _, c := range init.Cursors {
		if c.UserID == "" || c.UserID == r.userID {
			continue
		}
		r.cursors[c.UserID] = struct{}{}
		r.renderer.ShowCursor(c.UserID, c.Point(), c.Color)
	}
	r.log.Info().Str("user", r.userID).Int("strokes", len(r.order)).Str("color", r.color).Msg("board synchronized")
}

// applySnapshot replaces the mirror with an authoritative snapshot and merges
// the pending layer back in. The server only learns this client's points from
// this client, so its own strokes keep their local points.
func (r *Reconciler) applySnapshot(snapshot []state.Stroke) {
	local := r.strokes
	r.replaceMirror(snapshot)

	for id, s := range r.strokes {
		if mine, ok := local[id]; ok && mine.UserID == r.userID && len(mine.Points) > len(s.Points) {
			s.Points = mine.Points
		}
	}

	var stillPending []string
	for _, id := range r.pending {
		if _, seen := r.strokes[id]; seen {
			continue
		}
		mine, ok := local[id]
		if !ok {
			continue
		}
		// start not processed by the server yet
		r.insert(*mine)
		stillPending = append(stillPending, id)
	}
	r.pending = stillPending

	if r.current != "" {
		if _, ok := r.strokes[r.current]; !ok {
			r.current = ""
		}
	}
	r.renderer.ClearAndRedrawAll(r.view())
}

func (r *Reconciler) replaceMirror(strokes []state.Stroke) {
	r.strokes = make(map[string]*state.Stroke, len(strokes))
	r.order = make([]string, 0, len(strokes))
	for _, s := range strokes {
		if s.ID == "" {
			continue
		}
		if _, dup := r.strokes[s.ID]; dup {
			continue
		}
		r.insert(s.Clone())
	}
}

func (r *Reconciler) insert(s state.Stroke) {
	r.strokes[s.ID] = &s
	r.order = append(r.order, s.ID)
}

func (r *Reconciler) view() []state.Stroke {
	out := make([]state.Stroke, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.strokes[id].Clone())
	}
	return out
}

func (r *Reconciler) hideCursors() {
	for id := range r.cursors {
		r.renderer.HideCursor(id)
	}
	r.cursors = make(map[string]struct{})
}

// BeginStroke starts a stroke at p and returns its id. A stroke still open is
// ended first. Until init arrives nothing is drawn and the id is empty: the
// init snapshot would not contain the stroke.
func (r *Reconciler) BeginStroke(p state.Point) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endLocked()
	if !r.ready {
		return ""
	}

	id := ulid.Make().String()
	if r.userID != "" {
		id = r.userID + "-" + id
	}
	s := state.Stroke{
		ID:     id,
		UserID: r.userID,
		Color:  r.color,
		Width:  r.width,
		Points: []state.Point{p},
	}
	r.insert(s.Clone())
	r.pending = append(r.pending, id)
	r.current = id
	r.send(protocol.EventStrokeStart, s)
	return id
}

// ExtendStroke adds p to the open stroke and draws the new segment.
func (r *Reconciler) ExtendStroke(p state.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == "" {
		return
	}
	s, ok := r.strokes[r.current]
	if !ok {
		r.current = ""
		return
	}
	prev, hasPrev := s.Last()
	s.Points = append(s.Points, p)
	if hasPrev {
		r.renderer.DrawSegment(prev, p, s.Color, s.Width)
	}
	r.send(protocol.EventStrokePoint, protocol.StrokePoint{StrokeID: s.ID, Point: p})
}

// EndStroke closes the open stroke. A stroke with a single point is drawn as a dot.
func (r *Reconciler) EndStroke() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLocked()
}

func (r *Reconciler) endLocked() {
	if r.current == "" {
		return
	}
	id := r.current
	r.current = ""
	if s, ok := r.strokes[id]; ok && len(s.Points) == 1 {
		r.renderer.DrawDot(s.Points[0], s.Color, s.Width)
	}
	r.send(protocol.EventStrokeEnd, protocol.StrokeEnd{StrokeID: id})
}

// MovePointer reports the local pointer position to the other users. Nothing
// is sent until the board has been synchronized.
func (r *Reconciler) MovePointer(p state.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return
	}
	r.send(protocol.EventCursorMove, protocol.CursorMove{X: p.X, Y: p.Y, Color: r.color})
}

// Undo asks the server to remove this user's most recent stroke. The board
// changes when the resulting strokes:update arrives. Before init there is
// nothing of this user's on the server to remove.
func (r *Reconciler) Undo() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endLocked()
	if !r.ready {
		return
	}
	// Every earlier start reaches the server before this undo, so the
	// stroke it removes is the newest one this client started.
	if n := len(r.pending); n > 0 {
		r.pending = r.pending[:n-1]
	}
	r.send(protocol.EventStrokeUndo, nil)
}

// Disconnected marks the board as out of sync. Remote cursors are hidden; the
// strokes stay on screen until the next init.
func (r *Reconciler) Disconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ready = false
	r.current = ""
	r.hideCursors()
}

// Redraw repaints the whole board, e.g. after a resize.
func (r *Reconciler) Redraw() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderer.ClearAndRedrawAll(r.view())
}

// Strokes returns the board as this client currently sees it.
func (r *Reconciler) Strokes() []state.Stroke {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view()
}

// Pending returns the ids of local strokes not yet confirmed by the server.
func (r *Reconciler) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.pending...)
}

// UserID returns the id the server assigned in init, or "" before it.
func (r *Reconciler) UserID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userID
}

// Ready reports whether init has been received on the current connection.
func (r *Reconciler) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// Color returns the color used for new strokes and the local cursor.
func (r *Reconciler) Color() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.color
}

// SetColor changes the color of strokes started from now on.
func (r *Reconciler) SetColor(color string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.color = color
	r.colorSet = true
}

// Width returns the width used for new strokes.
func (r *Reconciler) Width() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width
}

// SetWidth changes the width of strokes started from now on.
func (r *Reconciler) SetWidth(width float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width > 0 {
		r.width = width
	}
}

func (r *Reconciler) send(ev protocol.Event, payload any) {
	env, err := protocol.New(ev, payload)
	if err != nil {
		r.log.Error().Err(err).Str("event", string(ev)).Msg("encode failed")
		return
	}
	if err := r.sender.Send(env); err != nil {
		r.log.Warn().Err(err).Str("event", string(ev)).Msg("send failed")
	}
}
