// Package display renders pipeline output. The fyne viewer is the
// interactive surface; Null serves headless runs and tests.
package display

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"

	"toonloop/internal/logger"
	"toonloop/internal/opencv/safe"
)

// Viewer shows the styled stream in a window. Present may be called from
// the loop goroutine; the actual refresh is marshalled onto the UI thread.
// Pressing Q files an explicit quality-tier cycle request.
type Viewer struct {
	app         fyne.App
	window      fyne.Window
	image       *canvas.Image
	onTierCycle func()
	logger      logger.Logger
}

func NewViewer(title string, onTierCycle func(), log logger.Logger) *Viewer {
	fyneApp := app.New()
	window := fyneApp.NewWindow(title)

	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScaleFastest

	window.SetContent(img)
	window.Resize(fyne.NewSize(960, 540))

	v := &Viewer{
		app:         fyneApp,
		window:      window,
		image:       img,
		onTierCycle: onTierCycle,
		logger:      log,
	}

	window.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyQ:
			if v.onTierCycle != nil {
				v.onTierCycle()
			}
		case fyne.KeyEscape:
			v.window.Close()
		}
	})

	return v
}

// Present converts the buffer and refreshes the canvas. The Mat is only
// borrowed for the duration of the call; the conversion copies the pixels.
func (v *Viewer) Present(m *safe.Mat) {
	img, err := m.GetMat().ToImage()
	if err != nil {
		v.logger.Warning("Display", "frame conversion failed", map[string]interface{}{
			"cause": err.Error(),
		})
		return
	}

	fyne.Do(func() {
		v.image.Image = img
		v.image.Refresh()
	})
}

// Run blocks on the UI event loop until the window closes.
func (v *Viewer) Run() {
	v.window.ShowAndRun()
}

func (v *Viewer) Shutdown() {
	fyne.Do(func() {
		v.app.Quit()
	})
}
