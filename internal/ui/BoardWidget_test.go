package ui

import (
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveBoard/internal/state"
)

type fakeInput struct {
	calls  []string
	points []state.Point
	moves  []state.Point
}

func (f *fakeInput) BeginStroke(p state.Point) string {
	f.calls = append(f.calls, "begin")
	f.points = append(f.points, p)
	return "s1"
}

func (f *fakeInput) ExtendStroke(p state.Point) {
	f.calls = append(f.calls, "extend")
	f.points = append(f.points, p)
}

func (f *fakeInput) MovePointer(p state.Point) {
	f.calls = append(f.calls, "move")
	f.moves = append(f.moves, p)
}

func (f *fakeInput) EndStroke() { f.calls = append(f.calls, "end") }
func (f *fakeInput) Redraw()    { f.calls = append(f.calls, "redraw") }

func primary(x, y float32) *desktop.MouseEvent {
	return &desktop.MouseEvent{
		PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)},
		Button:     desktop.MouseButtonPrimary,
	}
}

func TestBoardPointerCapture(t *testing.T) {
	test.NewTempApp(t)
	b := NewBoardWidget()
	in := &fakeInput{}
	b.SetInput(in)
	b.Resize(fyne.NewSize(200, 100))
	require.Equal(t, []string{"redraw"}, in.calls)
	in.calls = nil

	b.MouseDown(primary(100, 50))
	b.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(150, 25)}})
	b.DragEnd()
	b.MouseUp(primary(150, 25))
	b.MouseMoved(primary(10, 10))

	assert.Equal(t, []string{"begin", "extend", "move", "end", "move"}, in.calls)
	assert.Equal(t, []state.Point{{X: 0.5, Y: 0.5}, {X: 0.75, Y: 0.25}}, in.points)
}

func TestBoardClampsPointsOutsideBounds(t *testing.T) {
	test.NewTempApp(t)
	b := NewBoardWidget()
	in := &fakeInput{}
	b.SetInput(in)
	b.Resize(fyne.NewSize(200, 100))

	b.MouseDown(primary(100, 50))
	b.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(300, -40)}})
	b.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(-20, 150)}})
	b.DragEnd()
	b.MouseMoved(primary(250, 25))

	assert.Equal(t, []state.Point{{X: 0.5, Y: 0.5}, {X: 1, Y: 0}, {X: 0, Y: 1}}, in.points)
	assert.Equal(t, []state.Point{{X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 0.25}}, in.moves)
}

func TestBoardIgnoresSecondaryButton(t *testing.T) {
	test.NewTempApp(t)
	b := NewBoardWidget()
	in := &fakeInput{}
	b.SetInput(in)

	b.MouseDown(&desktop.MouseEvent{Button: desktop.MouseButtonSecondary})
	b.MouseUp(&desktop.MouseEvent{Button: desktop.MouseButtonSecondary})
	assert.Empty(t, in.calls)
}

func TestBoardRendererMarks(t *testing.T) {
	test.NewTempApp(t)
	b := NewBoardWidget()
	b.Resize(fyne.NewSize(100, 100))

	b.ClearAndRedrawAll([]state.Stroke{
		{ID: "a", Color: "#000000", Width: 2, Points: []state.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0.5}, {X: 1, Y: 1}}},
		{ID: "b", Color: "#ff0000", Width: 4, Points: []state.Point{{X: 0.2, Y: 0.2}}},
	})
	b.DrawSegment(state.Point{X: 0, Y: 1}, state.Point{X: 1, Y: 0}, "#00ff00", 3)
	b.ShowCursor("u2", state.Point{X: 0.5, Y: 0.5}, "#0000ff")

	r := test.TempWidgetRenderer(t, b)
	r.Refresh()
	// background, three segments, one dot, one cursor
	assert.Len(t, r.Objects(), 6)

	b.HideCursor("u2")
	b.ClearAndRedrawAll(nil)
	r.Refresh()
	assert.Len(t, r.Objects(), 1)
}
