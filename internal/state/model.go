package state

// Point is a canvas position normalized to [0,1] of the canvas width and height.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous pointer-down to pointer-up drawing action.
type Stroke struct {
	ID     string  `json:"strokeId"`
	UserID string  `json:"userId"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	Points []Point `json:"points"`
}

// Clone returns a deep copy of the stroke. Points is never nil in the copy.
func (s Stroke) Clone() Stroke {
	c := s
	c.Points = make([]Point, len(s.Points))
	copy(c.Points, s.Points)
	return c
}

// Last returns the most recently appended point.
func (s Stroke) Last() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// CursorPosition is the mutable part of a cursor.
type CursorPosition struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

// Cursor is the live pointer position of one connected user.
type Cursor struct {
	UserID string  `json:"userId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color"`
}

// Point returns the cursor position as a Point.
func (c Cursor) Point() Point {
	return Point{X: c.X, Y: c.Y}
}

// CloneStrokes deep copies an ordered stroke sequence.
func CloneStrokes(strokes []Stroke) []Stroke {
	out := make([]Stroke, 0, len(strokes))
	for _, s := range strokes {
		out = append(out, s.Clone())
	}
	return out
}
