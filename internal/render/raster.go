// Package render rasterizes boards with fogleman/gg.
package render

import (
	"image"
	"io"
	"sync"

	"github.com/fogleman/gg"

	"LiveBoard/internal/state"
)

// Background is the board color.
const Background = "#ffffff"

// Raster draws a board into an in-memory image. It implements the client's
// Renderer, so a headless client can keep a picture of the board.
type Raster struct {
	mu sync.Mutex
	dc *gg.Context
	w  float64
	h  float64
}

// NewRaster creates a blank raster of the given pixel size.
func NewRaster(width, height int) *Raster {
	r := &Raster{
		dc: gg.NewContext(width, height),
		w:  float64(width),
		h:  float64(height),
	}
	r.clear()
	return r
}

func (r *Raster) DrawSegment(from, to state.Point, color string, width float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segment(from, to, color, width)
}

func (r *Raster) DrawDot(p state.Point, color string, width float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dot(p, color, width)
}

func (r *Raster) ClearAndRedrawAll(strokes []state.Stroke) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clear()
	for _, s := range strokes {
		r.stroke(s)
	}
}

// Cursors are presence only and never part of the picture.
func (r *Raster) ShowCursor(string, state.Point, string) {}
func (r *Raster) HideCursor(string)                      {}

// Image returns a copy of the current picture.
func (r *Raster) Image() image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.(*image.RGBA).Pix)
	return dst
}

// EncodePNG writes the current picture as PNG.
func (r *Raster) EncodePNG(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dc.EncodePNG(w)
}

// SavePNG writes the current picture to a file.
func (r *Raster) SavePNG(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dc.SavePNG(path)
}

// PNG renders strokes onto a fresh width x height image and encodes it.
func PNG(w io.Writer, strokes []state.Stroke, width, height int) error {
	r := NewRaster(width, height)
	r.ClearAndRedrawAll(strokes)
	return r.EncodePNG(w)
}

func (r *Raster) clear() {
	r.dc.SetColor(MustColor(Background))
	r.dc.Clear()
}

func (r *Raster) stroke(s state.Stroke) {
	if len(s.Points) == 1 {
		r.dot(s.Points[0], s.Color, s.Width)
		return
	}
	for i := 1; i < len(s.Points); i++ {
		r.segment(s.Points[i-1], s.Points[i], s.Color, s.Width)
	}
}

func (r *Raster) segment(from, to state.Point, color string, width float64) {
	r.dc.SetColor(MustColor(color))
	r.dc.SetLineWidth(width)
	r.dc.SetLineCapRound()
	r.dc.DrawLine(from.X*r.w, from.Y*r.h, to.X*r.w, to.Y*r.h)
	r.dc.Stroke()
}

func (r *Raster) dot(p state.Point, color string, width float64) {
	r.dc.SetColor(MustColor(color))
	r.dc.DrawCircle(p.X*r.w, p.Y*r.h, width/2)
	r.dc.Fill()
}
