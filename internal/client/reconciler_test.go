package client

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveBoard/internal/protocol"
	"LiveBoard/internal/state"
)

type segment struct {
	From, To state.Point
	Color    string
}

type fakeRenderer struct {
	mu       sync.Mutex
	segments []segment
	dots     []state.Point
	redraws  [][]state.Stroke
	cursors  map[string]state.Point
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{cursors: make(map[string]state.Point)}
}

func (f *fakeRenderer) DrawSegment(from, to state.Point, color string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments = append(f.segments, segment{From: from, To: to, Color: color})
}

func (f *fakeRenderer) DrawDot(p state.Point, _ string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dots = append(f.dots, p)
}

func (f *fakeRenderer) ClearAndRedrawAll(strokes []state.Stroke) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redraws = append(f.redraws, strokes)
}

func (f *fakeRenderer) ShowCursor(userID string, p state.Point, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors[userID] = p
}

func (f *fakeRenderer) HideCursor(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cursors, userID)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []protocol.Envelope
	err  error
}

func (f *fakeSender) Send(env protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeSender) events() []protocol.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Event, 0, len(f.sent))
	for _, env := range f.sent {
		out = append(out, env.Event)
	}
	return out
}

func (f *fakeSender) last(t *testing.T) protocol.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func setup(t *testing.T) (*Reconciler, *fakeRenderer, *fakeSender) {
	t.Helper()
	fr := newFakeRenderer()
	fs := &fakeSender{}
	return NewReconciler(fr, fs, Options{}), fr, fs
}

func handle(t *testing.T, r *Reconciler, ev protocol.Event, payload any) {
	t.Helper()
	require.NoError(t, r.Handle(protocol.MustNew(ev, payload)))
}

func initAs(t *testing.T, r *Reconciler, userID string, strokes ...state.Stroke) {
	t.Helper()
	handle(t, r, protocol.EventInit, protocol.Init{UserID: userID, Strokes: strokes, Cursors: []state.Cursor{}})
}

func ids(strokes []state.Stroke) []string {
	out := make([]string, 0, len(strokes))
	for _, s := range strokes {
		out = append(out, s.ID)
	}
	return out
}

func pt(x, y float64) state.Point { return state.Point{X: x, Y: y} }

func TestInitReplacesMirror(t *testing.T) {
	r, fr, _ := setup(t)
	initAs(t, r, "u1", state.Stroke{ID: "a", UserID: "u2", Points: []state.Point{pt(0, 0)}})

	assert.Equal(t, "u1", r.UserID())
	assert.True(t, r.Ready())
	assert.Equal(t, []string{"a"}, ids(r.Strokes()))
	require.Len(t, fr.redraws, 1)
	assert.Equal(t, []string{"a"}, ids(fr.redraws[0]))
	assert.Contains(t, DefaultPalette, r.Color())

	initAs(t, r, "u1", state.Stroke{ID: "b", UserID: "u2"})
	assert.Equal(t, []string{"b"}, ids(r.Strokes()))
}

func TestInitCursorsSkipOwn(t *testing.T) {
	r, fr, _ := setup(t)
	handle(t, r, protocol.EventInit, protocol.Init{
		UserID:  "u1",
		Strokes: []state.Stroke{},
		Cursors: []state.Cursor{
			{UserID: "u1", X: 0.1, Y: 0.1},
			{UserID: "u2", X: 0.5, Y: 0.6, Color: "#fff"},
		},
	})
	assert.Equal(t, map[string]state.Point{"u2": pt(0.5, 0.6)}, fr.cursors)
}

func TestConfiguredColorKeptOnInit(t *testing.T) {
	r := NewReconciler(newFakeRenderer(), &fakeSender{}, Options{Color: "#123456", Width: 7})
	assert.Empty(t, r.UserID())
	initAs(t, r, "u1")
	assert.Equal(t, "u1", r.UserID())
	assert.Equal(t, "#123456", r.Color())
	assert.Equal(t, 7.0, r.Width())
}

func TestLocalStrokeIsOptimistic(t *testing.T) {
	r, fr, fs := setup(t)
	initAs(t, r, "u1")

	id := r.BeginStroke(pt(0.1, 0.1))
	assert.True(t, strings.HasPrefix(id, "u1-"))
	r.ExtendStroke(pt(0.2, 0.2))
	r.EndStroke()

	assert.Equal(t, []protocol.Event{protocol.EventStrokeStart, protocol.EventStrokePoint, protocol.EventStrokeEnd}, fs.events())
	require.Len(t, fr.segments, 1)
	assert.Equal(t, segment{From: pt(0.1, 0.1), To: pt(0.2, 0.2), Color: r.Color()}, fr.segments[0])
	assert.Empty(t, fr.dots)

	strokes := r.Strokes()
	require.Len(t, strokes, 1)
	assert.Equal(t, []state.Point{pt(0.1, 0.1), pt(0.2, 0.2)}, strokes[0].Points)
	assert.Equal(t, []string{id}, r.Pending())

	var start state.Stroke
	require.NoError(t, fs.sent[0].Decode(&start))
	assert.Equal(t, id, start.ID)
	assert.Equal(t, DefaultWidth, start.Width)
	assert.Equal(t, []state.Point{pt(0.1, 0.1)}, start.Points)
}

func TestSinglePointStrokeDrawsDot(t *testing.T) {
	r, fr, _ := setup(t)
	initAs(t, r, "u1")

	r.BeginStroke(pt(0.3, 0.3))
	r.EndStroke()
	assert.Equal(t, []state.Point{pt(0.3, 0.3)}, fr.dots)

	handle(t, r, protocol.EventStrokeStart, state.Stroke{ID: "r1", UserID: "u2", Points: []state.Point{pt(0.7, 0.7)}})
	handle(t, r, protocol.EventStrokeEnd, protocol.StrokeEnd{StrokeID: "r1", UserID: "u2"})
	assert.Equal(t, []state.Point{pt(0.3, 0.3), pt(0.7, 0.7)}, fr.dots)
}

func TestRemoteStrokeDrawsSegments(t *testing.T) {
	r, fr, _ := setup(t)
	initAs(t, r, "u1")

	handle(t, r, protocol.EventStrokeStart, state.Stroke{ID: "r1", UserID: "u2", Color: "#f00", Points: []state.Point{pt(0, 0)}})
	assert.Empty(t, fr.segments)

	handle(t, r, protocol.EventStrokePoint, protocol.StrokePoint{StrokeID: "r1", Point: pt(0.5, 0.5), UserID: "u2"})
	handle(t, r, protocol.EventStrokePoint, protocol.StrokePoint{StrokeID: "r1", Point: pt(1, 1), UserID: "u2"})
	assert.Equal(t, []segment{
		{From: pt(0, 0), To: pt(0.5, 0.5), Color: "#f00"},
		{From: pt(0.5, 0.5), To: pt(1, 1), Color: "#f00"},
	}, fr.segments)

	// duplicate start is ignored
	handle(t, r, protocol.EventStrokeStart, state.Stroke{ID: "r1", UserID: "u2"})
	require.Len(t, r.Strokes(), 1)
	assert.Len(t, r.Strokes()[0].Points, 3)

	// unknown stroke ids are ignored
	handle(t, r, protocol.EventStrokePoint, protocol.StrokePoint{StrokeID: "nope", Point: pt(0, 0)})
	handle(t, r, protocol.EventStrokeEnd, protocol.StrokeEnd{StrokeID: "nope"})
	assert.Len(t, fr.segments, 2)
}

func TestStrokesUpdateMergesPending(t *testing.T) {
	r, _, _ := setup(t)
	initAs(t, r, "u1")

	confirmed := r.BeginStroke(pt(0.1, 0.1))
	r.ExtendStroke(pt(0.2, 0.2))
	r.EndStroke()
	inFlight := r.BeginStroke(pt(0.5, 0.5))

	// the server has seen the first start and one fewer point, not the second start
	handle(t, r, protocol.EventStrokesUpdate, []state.Stroke{
		{ID: "other", UserID: "u2", Points: []state.Point{pt(0, 0)}},
		{ID: confirmed, UserID: "u1", Points: []state.Point{pt(0.1, 0.1)}},
	})

	strokes := r.Strokes()
	assert.Equal(t, []string{"other", confirmed, inFlight}, ids(strokes))
	assert.Equal(t, []state.Point{pt(0.1, 0.1), pt(0.2, 0.2)}, strokes[1].Points)
	assert.Equal(t, []string{inFlight}, r.Pending())

	// the open stroke survives the merge
	r.ExtendStroke(pt(0.6, 0.6))
	assert.Len(t, r.Strokes()[2].Points, 2)
}

func TestUndoDropsNewestPending(t *testing.T) {
	r, _, fs := setup(t)
	initAs(t, r, "u1")

	first := r.BeginStroke(pt(0.1, 0.1))
	r.EndStroke()
	second := r.BeginStroke(pt(0.2, 0.2))

	r.Undo()
	assert.Equal(t, []protocol.Event{
		protocol.EventStrokeStart, protocol.EventStrokeEnd,
		protocol.EventStrokeStart, protocol.EventStrokeEnd,
		protocol.EventStrokeUndo,
	}, fs.events())
	assert.Equal(t, []string{first}, r.Pending())
	// mirror only changes on the server's answer
	assert.Equal(t, []string{first, second}, ids(r.Strokes()))

	handle(t, r, protocol.EventStrokesUpdate, []state.Stroke{
		{ID: first, UserID: "u1", Points: []state.Point{pt(0.1, 0.1)}},
	})
	assert.Equal(t, []string{first}, ids(r.Strokes()))
	assert.Empty(t, r.Pending())
	assert.Empty(t, fs.last(t).Data)
}

func TestUndoBeforeServerSawStart(t *testing.T) {
	r, _, _ := setup(t)
	initAs(t, r, "u1", state.Stroke{ID: "old", UserID: "u1"})

	r.BeginStroke(pt(0.1, 0.1))
	r.EndStroke()
	r.Undo()

	// another user's undo produced a snapshot before our start arrived
	handle(t, r, protocol.EventStrokesUpdate, []state.Stroke{{ID: "old", UserID: "u1"}})
	assert.Equal(t, []string{"old"}, ids(r.Strokes()))
}

func TestCursorEmissionWaitsForInit(t *testing.T) {
	r, _, fs := setup(t)

	r.MovePointer(pt(0.5, 0.5))
	assert.Empty(t, fs.events())

	initAs(t, r, "u1")
	r.MovePointer(pt(0.5, 0.5))
	require.Equal(t, []protocol.Event{protocol.EventCursorMove}, fs.events())

	var m protocol.CursorMove
	require.NoError(t, fs.last(t).Decode(&m))
	assert.Equal(t, protocol.CursorMove{X: 0.5, Y: 0.5, Color: r.Color()}, m)

	r.Disconnected()
	r.MovePointer(pt(0.6, 0.6))
	assert.Len(t, fs.events(), 1)
}

func TestDrawingWaitsForInit(t *testing.T) {
	r, fr, fs := setup(t)

	assert.Empty(t, r.BeginStroke(pt(0.1, 0.1)))
	r.ExtendStroke(pt(0.2, 0.2))
	r.EndStroke()
	r.Undo()
	assert.Empty(t, fs.events())
	assert.Empty(t, fr.segments)
	assert.Empty(t, fr.dots)
	assert.Empty(t, r.Strokes())
	assert.Empty(t, r.Pending())

	initAs(t, r, "A")
	assert.Empty(t, r.Strokes())

	id := r.BeginStroke(pt(0.1, 0.1))
	require.NotEmpty(t, id)
	r.EndStroke()
	assert.Equal(t, []protocol.Event{protocol.EventStrokeStart, protocol.EventStrokeEnd}, fs.events())
	assert.Equal(t, []string{id}, ids(r.Strokes()))

	// a dropped connection stops drawing again until the next init
	r.Disconnected()
	assert.Empty(t, r.BeginStroke(pt(0.3, 0.3)))
	assert.Len(t, fs.events(), 2)
	assert.Equal(t, []string{id}, ids(r.Strokes()))
}

func TestRemoteCursors(t *testing.T) {
	r, fr, _ := setup(t)
	initAs(t, r, "u1")

	handle(t, r, protocol.EventCursorMove, protocol.CursorMove{UserID: "u2", X: 0.1, Y: 0.2})
	handle(t, r, protocol.EventCursorMove, protocol.CursorMove{UserID: "u1", X: 0.9, Y: 0.9})
	assert.Equal(t, map[string]state.Point{"u2": pt(0.1, 0.2)}, fr.cursors)

	handle(t, r, protocol.EventCursorRemove, protocol.CursorRemove{UserID: "u2"})
	assert.Empty(t, fr.cursors)

	handle(t, r, protocol.EventCursorMove, protocol.CursorMove{UserID: "u3", X: 0.3, Y: 0.3})
	r.Disconnected()
	assert.Empty(t, fr.cursors)
	assert.False(t, r.Ready())
}

func TestSendFailureDoesNotStopDrawing(t *testing.T) {
	fr := newFakeRenderer()
	r := NewReconciler(fr, &fakeSender{err: errors.New("offline")}, Options{})
	initAs(t, r, "u1")

	r.BeginStroke(pt(0, 0))
	r.ExtendStroke(pt(1, 1))
	r.EndStroke()

	assert.Len(t, fr.segments, 1)
	assert.Len(t, r.Strokes(), 1)
}

func TestHandleRejectsBadPayload(t *testing.T) {
	r, _, _ := setup(t)
	err := r.Handle(protocol.Envelope{Event: protocol.EventStrokePoint, Data: []byte(`"nope"`)})
	assert.Error(t, err)

	err = r.Handle(protocol.MustNew(protocol.EventStrokeStart, state.Stroke{UserID: "u2"}))
	assert.Error(t, err)
}

func TestRedraw(t *testing.T) {
	r, fr, _ := setup(t)
	initAs(t, r, "u1", state.Stroke{ID: "a"})
	r.Redraw()
	require.Len(t, fr.redraws, 2)
	assert.Equal(t, []string{"a"}, ids(fr.redraws[1]))
}
