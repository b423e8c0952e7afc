package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveBoard/internal/state"
)

func TestAudienceOf(t *testing.T) {
	tests := []struct {
		event    Event
		expected Audience
	}{
		{EventInit, AudienceSelf},
		{EventStrokeStart, AudienceOthers},
		{EventStrokePoint, AudienceOthers},
		{EventStrokeEnd, AudienceOthers},
		{EventCursorMove, AudienceOthers},
		{EventCursorRemove, AudienceOthers},
		{EventStrokesUpdate, AudienceAll},
		{EventStrokeUndo, AudienceNone},
		{Event("bogus"), AudienceNone},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			assert.Equal(t, tt.expected, AudienceOf(tt.event))
		})
	}
}

func TestInbound(t *testing.T) {
	for _, ev := range []Event{EventStrokeStart, EventStrokePoint, EventStrokeEnd, EventStrokeUndo, EventCursorMove} {
		assert.True(t, Inbound(ev), ev)
	}
	for _, ev := range []Event{EventInit, EventStrokesUpdate, EventCursorRemove, Event("x")} {
		assert.False(t, Inbound(ev), ev)
	}
}

func TestEnvelopeWireShape(t *testing.T) {
	env := MustNew(EventStrokePoint, StrokePoint{StrokeID: "s1", Point: state.Point{X: 0.5, Y: 0.25}})
	frame, err := Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"stroke:point","data":{"strokeId":"s1","point":{"x":0.5,"y":0.25}}}`, string(frame))

	undo := MustNew(EventStrokeUndo, nil)
	frame, err = Marshal(undo)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"stroke:undo"}`, string(frame))
}

func TestStrokeWireShape(t *testing.T) {
	env := MustNew(EventStrokeStart, state.Stroke{
		ID: "s1", UserID: "A", Color: "#22c55e", Width: 3,
		Points: []state.Point{{X: 0, Y: 0}},
	})
	assert.JSONEq(t,
		`{"strokeId":"s1","userId":"A","color":"#22c55e","width":3,"points":[{"x":0,"y":0}]}`,
		string(env.Data))
}

func TestInitEncodesEmptyCollectionsAsArrays(t *testing.T) {
	env := MustNew(EventInit, Init{
		UserID:  "u1",
		Strokes: state.NewStrokeStore().Snapshot(),
		Cursors: state.NewCursorTable().List(),
	})
	assert.JSONEq(t, `{"userId":"u1","strokes":[],"cursors":[]}`, string(env.Data))
}

func TestUnmarshalAndDecode(t *testing.T) {
	env, err := Unmarshal([]byte(`{"event":"cursor:move","data":{"x":0.1,"y":0.2,"color":"#fff"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventCursorMove, env.Event)

	var move CursorMove
	require.NoError(t, env.Decode(&move))
	assert.Equal(t, CursorMove{X: 0.1, Y: 0.2, Color: "#fff"}, move)
}

func TestUnmarshalRejectsUnknownEvent(t *testing.T) {
	_, err := Unmarshal([]byte(`{"event":"stroke:redo"}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	var end StrokeEnd
	err := Envelope{Event: EventStrokeEnd}.Decode(&end)
	assert.Error(t, err)

	err = Envelope{Event: EventStrokeEnd, Data: json.RawMessage(`[1,2]`)}.Decode(&end)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stroke:end")
}

func TestStrokesUpdateRoundTrip(t *testing.T) {
	store := state.NewStrokeStore()
	require.NoError(t, store.Start(state.Stroke{ID: "s1", UserID: "A", Color: "#000", Width: 2, Points: []state.Point{{X: 0, Y: 0}}}))
	store.AppendPoint("s1", state.Point{X: 0.5, Y: 0.5})
	require.NoError(t, store.Start(state.Stroke{ID: "s2", UserID: "B", Color: "#fff", Width: 4}))

	frame, err := Marshal(MustNew(EventStrokesUpdate, store.Snapshot()))
	require.NoError(t, err)

	env, err := Unmarshal(frame)
	require.NoError(t, err)
	var strokes []state.Stroke
	require.NoError(t, env.Decode(&strokes))
	assert.Equal(t, store.Snapshot(), strokes)
}
