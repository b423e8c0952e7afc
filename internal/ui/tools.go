package ui

import (
	"encoding/json"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"LiveBoard/internal/export"
	"LiveBoard/internal/logging"
	"LiveBoard/internal/render"
	"LiveBoard/internal/state"
)

// Controls is what the toolbar drives.
type Controls interface {
	SetColor(color string)
	SetWidth(width float64)
	Width() float64
	Undo()
	Strokes() []state.Stroke
}

// --- Custom Widget for Color Swatches ---
type colorSwatch struct {
	widget.BaseWidget
	Hex      string
	OnTapped func(hex string)
}

func newColorSwatch(hex string, tapped func(string)) *colorSwatch {
	s := &colorSwatch{Hex: hex, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(render.MustColor(s.Hex))
	rect.SetMinSize(fyne.NewSize(32, 32))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Hex)
	}
}

// NewToolbar builds the color, width, undo and save controls.
func NewToolbar(win fyne.Window, c Controls, palette []string) fyne.CanvasObject {
	tb := widget.NewToolbar(
		widget.NewToolbarAction(theme.ContentUndoIcon(), c.Undo),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), func() { saveJSON(win, c) }),
		widget.NewToolbarAction(theme.FileIcon(), func() { savePDF(win, c) }),
	)

	colorBox := container.NewHBox()
	for _, hex := range palette {
		colorBox.Add(newColorSwatch(hex, c.SetColor))
	}

	strokeSlider := widget.NewSlider(1.0, 30.0)
	strokeSlider.SetValue(c.Width())
	strokeSlider.OnChanged = c.SetWidth
	sliderContainer := container.New(layout.NewGridWrapLayout(fyne.NewSize(150, 35)), strokeSlider)

	return container.NewHBox(
		tb,
		widget.NewSeparator(),
		widget.NewLabel("Color:"),
		colorBox,
		widget.NewSeparator(),
		widget.NewLabel("Size:"),
		sliderContainer,
		layout.NewSpacer(),
	)
}

func saveJSON(win fyne.Window, c Controls) {
	dialog.ShowFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()

		strokes := c.Strokes()
		data, err := json.MarshalIndent(strokes, "", "  ")
		if err == nil {
			_, err = writer.Write(data)
		}
		if err != nil {
			logging.Error().Err(err).Msg("save board failed")
			dialog.ShowError(err, win)
			return
		}
		logging.Info().Int("strokes", len(strokes)).Str("uri", writer.URI().String()).Msg("board saved")
	}, win)
}

func savePDF(win fyne.Window, c Controls) {
	dialog.ShowFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()

		if err := export.WritePDF(writer, c.Strokes()); err != nil {
			logging.Error().Err(err).Msg("pdf export failed")
			dialog.ShowError(err, win)
			return
		}
		logging.Info().Str("uri", writer.URI().String()).Msg("board exported")
	}, win)
}
