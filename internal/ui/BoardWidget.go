package ui

import (
	"image/color"
	"sort"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"LiveBoard/internal/render"
	"LiveBoard/internal/state"
)

const cursorRadius = 5

// Input receives the pointer activity captured by the board.
type Input interface {
	BeginStroke(p state.Point) string
	ExtendStroke(p state.Point)
	EndStroke()
	MovePointer(p state.Point)
	Redraw()
}

// mark is one drawn element in normalized coordinates. A dot has From == To.
type mark struct {
	from, to state.Point
	color    color.Color
	width    float32
	dot      bool
}

type ghost struct {
	at    state.Point
	color color.Color
}

// BoardWidget shows the board and captures pointer input. It implements the
// client's Renderer; drawing calls may come from any goroutine.
type BoardWidget struct {
	widget.BaseWidget

	mu      sync.Mutex
	marks   []mark
	cursors map[string]ghost
	in      Input
	drawing bool
}

var _ fyne.Widget = (*BoardWidget)(nil)
var _ fyne.Draggable = (*BoardWidget)(nil)
var _ desktop.Mouseable = (*BoardWidget)(nil)
var _ desktop.Hoverable = (*BoardWidget)(nil)

func NewBoardWidget() *BoardWidget {
	b := &BoardWidget{cursors: make(map[string]ghost)}
	b.ExtendBaseWidget(b)
	return b
}

// SetInput connects pointer capture to a reconciler.
func (b *BoardWidget) SetInput(in Input) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.in = in
}

func (b *BoardWidget) input() Input {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.in
}

func (b *BoardWidget) DrawSegment(from, to state.Point, c string, width float64) {
	b.mu.Lock()
	b.marks = append(b.marks, mark{from: from, to: to, color: render.MustColor(c), width: float32(width)})
	b.mu.Unlock()
	b.refresh()
}

func (b *BoardWidget) DrawDot(p state.Point, c string, width float64) {
	b.mu.Lock()
	b.marks = append(b.marks, mark{from: p, to: p, color: render.MustColor(c), width: float32(width), dot: true})
	b.mu.Unlock()
	b.refresh()
}

func (b *BoardWidget) ClearAndRedrawAll(strokes []state.Stroke) {
	var marks []mark
	for _, s := range strokes {
		c := render.MustColor(s.Color)
		w := float32(s.Width)
		if len(s.Points) == 1 {
			marks = append(marks, mark{from: s.Points[0], to: s.Points[0], color: c, width: w, dot: true})
			continue
		}
		for i := 1; i < len(s.Points); i++ {
			marks = append(marks, mark{from: s.Points[i-1], to: s.Points[i], color: c, width: w})
		}
	}
	b.mu.Lock()
	b.marks = marks
	b.mu.Unlock()
	b.refresh()
}

func (b *BoardWidget) ShowCursor(userID string, p state.Point, c string) {
	b.mu.Lock()
	b.cursors[userID] = ghost{at: p, color: render.MustColor(c)}
	b.mu.Unlock()
	b.refresh()
}

func (b *BoardWidget) HideCursor(userID string) {
	b.mu.Lock()
	delete(b.cursors, userID)
	b.mu.Unlock()
	b.refresh()
}

func (b *BoardWidget) refresh() {
	fyne.Do(b.Refresh)
}

// Resize repaints the board from the reconciler's view.
func (b *BoardWidget) Resize(size fyne.Size) {
	b.BaseWidget.Resize(size)
	if in := b.input(); in != nil {
		in.Redraw()
	}
}

// normalize maps pos into [0,1] on both axes. Drags keep reporting positions
// after the pointer leaves the widget, so those are pinned to the nearest edge.
func (b *BoardWidget) normalize(pos fyne.Position) state.Point {
	size := b.Size()
	if size.Width <= 0 || size.Height <= 0 {
		return state.Point{}
	}
	return state.Point{X: unit(pos.X / size.Width), Y: unit(pos.Y / size.Height)}
}

func unit(v float32) float64 {
	return float64(min(max(v, 0), 1))
}

func (b *BoardWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	in := b.input()
	if in == nil {
		return
	}
	b.drawing = true
	in.BeginStroke(b.normalize(e.Position))
}

func (b *BoardWidget) MouseUp(e *desktop.MouseEvent) {
	if e.Button == desktop.MouseButtonPrimary {
		b.endStroke()
	}
}

func (b *BoardWidget) Dragged(e *fyne.DragEvent) {
	in := b.input()
	if in == nil {
		return
	}
	p := b.normalize(e.Position)
	if b.drawing {
		in.ExtendStroke(p)
	}
	in.MovePointer(p)
}

func (b *BoardWidget) DragEnd() {
	b.endStroke()
}

func (b *BoardWidget) endStroke() {
	if !b.drawing {
		return
	}
	b.drawing = false
	if in := b.input(); in != nil {
		in.EndStroke()
	}
}

func (b *BoardWidget) MouseIn(*desktop.MouseEvent) {}
func (b *BoardWidget) MouseOut()                  {}

func (b *BoardWidget) MouseMoved(e *desktop.MouseEvent) {
	if in := b.input(); in != nil {
		in.MovePointer(b.normalize(e.Position))
	}
}

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &boardWidgetRenderer{board: b}
	r.background = canvas.NewRectangle(render.MustColor(render.Background))
	r.rebuild(b.Size())
	return r
}

type boardWidgetRenderer struct {
	board      *BoardWidget
	background *canvas.Rectangle
	objects    []fyne.CanvasObject
}

func (r *boardWidgetRenderer) rebuild(size fyne.Size) {
	b := r.board
	b.mu.Lock()
	marks := append([]mark(nil), b.marks...)
	ids := make([]string, 0, len(b.cursors))
	for id := range b.cursors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	ghosts := make([]ghost, 0, len(ids))
	for _, id := range ids {
		ghosts = append(ghosts, b.cursors[id])
	}
	b.mu.Unlock()

	at := func(p state.Point) fyne.Position {
		return fyne.NewPos(float32(p.X)*size.Width, float32(p.Y)*size.Height)
	}

	r.background.Resize(size)
	objects := make([]fyne.CanvasObject, 0, len(marks)+len(ghosts)+1)
	objects = append(objects, r.background)
	for _, m := range marks {
		if m.dot {
			c := canvas.NewCircle(m.color)
			radius := m.width / 2
			center := at(m.from)
			c.Position1 = fyne.NewPos(center.X-radius, center.Y-radius)
			c.Position2 = fyne.NewPos(center.X+radius, center.Y+radius)
			objects = append(objects, c)
			continue
		}
		line := canvas.NewLine(m.color)
		line.StrokeWidth = m.width
		line.Position1 = at(m.from)
		line.Position2 = at(m.to)
		objects = append(objects, line)
	}
	for _, g := range ghosts {
		c := canvas.NewCircle(color.Transparent)
		c.StrokeColor = g.color
		c.StrokeWidth = 2
		center := at(g.at)
		c.Position1 = fyne.NewPos(center.X-cursorRadius, center.Y-cursorRadius)
		c.Position2 = fyne.NewPos(center.X+cursorRadius, center.Y+cursorRadius)
		objects = append(objects, c)
	}
	r.objects = objects
}

func (r *boardWidgetRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *boardWidgetRenderer) Refresh() {
	r.rebuild(r.board.Size())
	canvas.Refresh(r.board)
}

func (r *boardWidgetRenderer) Layout(size fyne.Size) {
	r.rebuild(size)
}

func (r *boardWidgetRenderer) MinSize() fyne.Size {
	return fyne.NewSize(300, 300)
}

func (r *boardWidgetRenderer) Destroy() {}
