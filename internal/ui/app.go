// Package ui is the fyne desktop client.
package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Session is the client state the window drives.
type Session interface {
	Input
	Controls
}

// Window is the desktop client: toolbar, board and status line.
type Window struct {
	app    fyne.App
	win    fyne.Window
	Board  *BoardWidget
	status *widget.Label
}

// NewWindow creates the application and an empty board. Attach a session
// with Bind before ShowAndRun.
func NewWindow(title string) *Window {
	a := app.NewWithID("io.liveboard.client")
	w := a.NewWindow(title)
	w.Resize(fyne.NewSize(1024, 768))
	return &Window{
		app:    a,
		win:    w,
		Board:  NewBoardWidget(),
		status: widget.NewLabel("Connecting..."),
	}
}

// Bind wires the board and the toolbar to a session.
func (w *Window) Bind(s Session, palette []string) {
	w.Board.SetInput(s)
	toolbar := NewToolbar(w.win, s, palette)
	content := container.NewBorder(toolbar, w.status, nil, nil, w.Board)
	w.win.SetContent(content)
}

// SetStatus updates the status line from any goroutine.
func (w *Window) SetStatus(text string) {
	fyne.Do(func() { w.status.SetText(text) })
}

// ShowAndRun blocks until the window is closed.
func (w *Window) ShowAndRun() {
	w.win.ShowAndRun()
}

// Quit closes the application from any goroutine.
func (w *Window) Quit() {
	fyne.Do(w.app.Quit)
}
