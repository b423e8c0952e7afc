// Package export writes board snapshots as PDF documents.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/jung-kurt/gofpdf"

	"LiveBoard/internal/render"
	"LiveBoard/internal/state"
)

// Page geometry in millimetres; boards are drawn on a landscape A4 page.
const (
	pageWidth  = 297.0
	pageHeight = 210.0
	margin     = 10.0
	// pixels of stroke width per millimetre on the page
	pxPerMM = 3.0
)

// WritePDF renders strokes in order onto a single page.
func WritePDF(w io.Writer, strokes []state.Stroke) error {
	p := gofpdf.New("L", "mm", "A4", "")
	p.SetTitle("LiveBoard", true)
	p.AddPage()
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")

	drawW := pageWidth - 2*margin
	drawH := pageHeight - 2*margin
	at := func(pt state.Point) (float64, float64) {
		return margin + pt.X*drawW, margin + pt.Y*drawH
	}

	for _, s := range strokes {
		c := render.MustColor(s.Color)
		width := s.Width / pxPerMM
		p.SetDrawColor(int(c.R), int(c.G), int(c.B))
		p.SetFillColor(int(c.R), int(c.G), int(c.B))
		p.SetLineWidth(width)

		if len(s.Points) == 1 {
			x, y := at(s.Points[0])
			p.Circle(x, y, width/2, "F")
			continue
		}
		for i := 1; i < len(s.Points); i++ {
			x1, y1 := at(s.Points[i-1])
			x2, y2 := at(s.Points[i])
			p.Line(x1, y1, x2, y2)
		}
	}

	if err := p.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// SavePDF writes the PDF to a file.
func SavePDF(path string, strokes []state.Stroke) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePDF(f, strokes); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
