// Package panel provides the desktop trend chart for gas and noise levels.
package panel

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/envmon/pkg/display"
)

// TrendWidget is a custom Fyne widget that plots gas percentage and noise
// level over the history window, with threshold lines and alarm shading.
type TrendWidget struct {
	widget.BaseWidget

	history *display.History

	// Data (protected by mu)
	mu      sync.RWMutex
	points  []display.Point
	gasTh   float64
	soundTh float64
	xMin    time.Time
	xMax    time.Time
}

// NewTrend creates a trend widget drawing from history.
func NewTrend(history *display.History) *TrendWidget {
	t := &TrendWidget{history: history}
	t.ExtendBaseWidget(t)
	t.Update()
	return t
}

// Update copies the current history and redraws. Call it on the Fyne
// thread, e.g. through fyne.Do.
func (t *TrendWidget) Update() {
	points := t.history.Points()
	gas, sound := t.history.Thresholds()

	t.mu.Lock()
	t.points = points
	t.gasTh = float64(gas)
	t.soundTh = sound
	t.xMin, t.xMax = timeRange(points, t.history.Window(), time.Now())
	t.mu.Unlock()

	t.Refresh()
}

// CreateRenderer creates the widget renderer.
func (t *TrendWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &trendRenderer{
		trend:   t,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
