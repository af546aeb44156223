package panel

import (
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/envmon/pkg/display"
)

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	gasColor   = color.RGBA{R: 255, G: 165, B: 0, A: 255}   // Orange
	soundColor = color.RGBA{R: 100, G: 200, B: 255, A: 255} // Light blue
	alarmColor = color.RGBA{R: 200, G: 30, B: 30, A: 70}
)

// trendRenderer renders the trend widget.
type trendRenderer struct {
	trend *TrendWidget

	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *trendRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 240)
}

// Layout arranges the widget components.
func (r *trendRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.trend.BaseWidget.Refresh()
	}
}

// Refresh rebuilds every canvas object from the widget data.
func (r *trendRenderer) Refresh() {
	r.trend.mu.RLock()
	points := r.trend.points
	gasTh := r.trend.gasTh
	soundTh := r.trend.soundTh
	xMin := r.trend.xMin
	xMax := r.trend.xMax
	r.trend.mu.RUnlock()

	size := r.trend.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.bg}

	marginLeft := float32(40.0)
	marginRight := float32(20.0)
	marginTop := float32(24.0)
	marginBottom := float32(30.0)

	plotX := marginLeft
	plotY := marginTop
	plotWidth := size.Width - marginLeft - marginRight
	plotHeight := size.Height - marginTop - marginBottom

	r.drawAlarmSpans(plotX, plotY, plotWidth, plotHeight, activeSpans(points), xMin, xMax)
	r.drawGrid(plotX, plotY, plotWidth, plotHeight, xMin, xMax)
	r.drawThreshold(plotX, plotY, plotWidth, plotHeight, gasTh, gasColor)
	r.drawThreshold(plotX, plotY, plotWidth, plotHeight, soundTh, soundColor)

	if len(points) > 1 {
		r.drawSeries(plotX, plotY, plotWidth, plotHeight, points, xMin, xMax, gasColor, func(p display.Point) float64 { return float64(p.GasPct) })
		r.drawSeries(plotX, plotY, plotWidth, plotHeight, points, xMin, xMax, soundColor, func(p display.Point) float64 { return p.SoundDB })
	}

	r.drawLegend(plotX, plotY)
}

func (r *trendRenderer) drawGrid(plotX, plotY, plotWidth, plotHeight float32, xMin, xMax time.Time) {
	numHLines := 5
	for i := 0; i < numHLines+1; i++ {
		value := yMax - float64(i)*(yMax-yMin)/float64(numHLines)
		y := yPos(value, plotY, plotHeight)
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(plotX, y)
		line.Position2 = fyne.NewPos(plotX+plotWidth, y)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		text := canvas.NewText(formatLevel(value), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(plotX-5, y-6))
		r.objects = append(r.objects, text)
	}

	numVLines := 6
	for i := 0; i < numVLines+1; i++ {
		x := plotX + float32(i)*plotWidth/float32(numVLines)
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(x, plotY)
		line.Position2 = fyne.NewPos(x, plotY+plotHeight)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		age := xMax.Sub(xMin) * time.Duration(numVLines-i) / time.Duration(numVLines)
		text := canvas.NewText(formatAge(age), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-15, plotY+plotHeight+5))
		r.objects = append(r.objects, text)
	}
}

func (r *trendRenderer) drawThreshold(plotX, plotY, plotWidth, plotHeight float32, value float64, c color.RGBA) {
	c.A = 140
	y := yPos(value, plotY, plotHeight)
	line := canvas.NewLine(c)
	line.Position1 = fyne.NewPos(plotX, y)
	line.Position2 = fyne.NewPos(plotX+plotWidth, y)
	line.StrokeWidth = 1
	r.objects = append(r.objects, line)
}

func (r *trendRenderer) drawSeries(plotX, plotY, plotWidth, plotHeight float32, points []display.Point, xMin, xMax time.Time, c color.Color, value func(display.Point) float64) {
	prev := fyne.NewPos(xPos(points[0].Timestamp, xMin, xMax, plotX, plotWidth), yPos(value(points[0]), plotY, plotHeight))
	for _, p := range points[1:] {
		next := fyne.NewPos(xPos(p.Timestamp, xMin, xMax, plotX, plotWidth), yPos(value(p), plotY, plotHeight))
		line := canvas.NewLine(c)
		line.Position1 = prev
		line.Position2 = next
		line.StrokeWidth = 1.5
		r.objects = append(r.objects, line)
		prev = next
	}
}

func (r *trendRenderer) drawAlarmSpans(plotX, plotY, plotWidth, plotHeight float32, spans []span, xMin, xMax time.Time) {
	for _, s := range spans {
		x1 := xPos(s.start, xMin, xMax, plotX, plotWidth)
		x2 := xPos(s.end, xMin, xMax, plotX, plotWidth)
		if x2-x1 < 2 {
			x2 = x1 + 2
		}
		rect := canvas.NewRectangle(alarmColor)
		rect.Move(fyne.NewPos(x1, plotY))
		rect.Resize(fyne.NewSize(x2-x1, plotHeight))
		r.objects = append(r.objects, rect)
	}
}

func (r *trendRenderer) drawLegend(plotX, plotY float32) {
	gas := canvas.NewText("Gas %", gasColor)
	gas.TextSize = 11
	gas.Move(fyne.NewPos(plotX, plotY-18))

	sound := canvas.NewText("Noise dB", soundColor)
	sound.TextSize = 11
	sound.Move(fyne.NewPos(plotX+60, plotY-18))

	r.objects = append(r.objects, gas, sound)
}

// Objects returns all canvas objects for rendering.
func (r *trendRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *trendRenderer) Destroy() {}
