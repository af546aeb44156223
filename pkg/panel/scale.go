package panel

import (
	"fmt"
	"time"

	"github.com/itohio/envmon/pkg/display"
)

// Both plotted quantities live on a 0-100 scale.
const (
	yMin = 0.0
	yMax = 100.0
)

// span is a contiguous stretch of points with the alarm active.
type span struct {
	start, end time.Time
}

// timeRange returns the x extent for points. The extent is at least
// window wide and ends at the newest point, or at now when empty.
func timeRange(points []display.Point, window time.Duration, now time.Time) (time.Time, time.Time) {
	if len(points) == 0 {
		return now.Add(-window), now
	}
	xMax := points[len(points)-1].Timestamp
	xMin := points[0].Timestamp
	if xMax.Sub(xMin) < window {
		xMin = xMax.Add(-window)
	}
	return xMin, xMax
}

// xPos maps ts into [origin, origin+extent].
func xPos(ts, xMin, xMax time.Time, origin, extent float32) float32 {
	total := xMax.Sub(xMin).Seconds()
	if total <= 0 {
		return origin + extent
	}
	return origin + float32(ts.Sub(xMin).Seconds()/total)*extent
}

// yPos maps v onto the plot, top at origin. Values are clamped to the
// scale.
func yPos(v float64, origin, extent float32) float32 {
	if v < yMin {
		v = yMin
	}
	if v > yMax {
		v = yMax
	}
	return origin + extent - float32((v-yMin)/(yMax-yMin))*extent
}

// activeSpans groups consecutive active points.
func activeSpans(points []display.Point) []span {
	var spans []span
	open := false
	for _, p := range points {
		switch {
		case p.Active && !open:
			spans = append(spans, span{start: p.Timestamp, end: p.Timestamp})
			open = true
		case p.Active:
			spans[len(spans)-1].end = p.Timestamp
		default:
			open = false
		}
	}
	return spans
}

func formatAge(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	if d < time.Minute {
		return fmt.Sprintf("-%.0fs", d.Seconds())
	}
	return fmt.Sprintf("-%.1fm", d.Minutes())
}

func formatLevel(v float64) string {
	return fmt.Sprintf("%.0f", v)
}
