package panel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/envmon/pkg/display"
)

func TestTimeRange(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		points  []display.Point
		wantMin time.Time
		wantMax time.Time
	}{
		{
			name:    "empty ends now",
			wantMin: now.Add(-time.Minute),
			wantMax: now,
		},
		{
			name: "short history padded to window",
			points: []display.Point{
				{Timestamp: now.Add(-10 * time.Second)},
				{Timestamp: now.Add(-5 * time.Second)},
			},
			wantMin: now.Add(-65 * time.Second),
			wantMax: now.Add(-5 * time.Second),
		},
		{
			name: "longer than window",
			points: []display.Point{
				{Timestamp: now.Add(-90 * time.Second)},
				{Timestamp: now},
			},
			wantMin: now.Add(-90 * time.Second),
			wantMax: now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMin, gotMax := timeRange(tt.points, time.Minute, now)
			assert.Equal(t, tt.wantMin, gotMin)
			assert.Equal(t, tt.wantMax, gotMax)
		})
	}
}

func TestPositions(t *testing.T) {
	start := time.Unix(0, 0)
	end := start.Add(10 * time.Second)

	assert.Equal(t, float32(10), xPos(start, start, end, 10, 100))
	assert.Equal(t, float32(60), xPos(start.Add(5*time.Second), start, end, 10, 100))
	assert.Equal(t, float32(110), xPos(end, start, end, 10, 100))
	assert.Equal(t, float32(110), xPos(start, start, start, 10, 100), "empty range pins to the right edge")

	assert.Equal(t, float32(220), yPos(0, 20, 200))
	assert.Equal(t, float32(20), yPos(100, 20, 200))
	assert.Equal(t, float32(120), yPos(50, 20, 200))
	assert.Equal(t, float32(20), yPos(150, 20, 200), "clamped")
	assert.Equal(t, float32(220), yPos(-5, 20, 200), "clamped")
}

func TestActiveSpans(t *testing.T) {
	base := time.Unix(100, 0)
	at := func(s int, active bool) display.Point {
		return display.Point{Timestamp: base.Add(time.Duration(s) * time.Second), Active: active}
	}

	spans := activeSpans([]display.Point{
		at(0, false), at(1, true), at(2, true), at(3, false),
		at(4, true), at(5, false), at(6, true), at(7, true),
	})

	assert.Equal(t, []span{
		{start: base.Add(1 * time.Second), end: base.Add(2 * time.Second)},
		{start: base.Add(4 * time.Second), end: base.Add(4 * time.Second)},
		{start: base.Add(6 * time.Second), end: base.Add(7 * time.Second)},
	}, spans)

	assert.Empty(t, activeSpans([]display.Point{at(0, false)}))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "now", formatAge(0))
	assert.Equal(t, "-10s", formatAge(10*time.Second))
	assert.Equal(t, "-1.5m", formatAge(90*time.Second))
	assert.Equal(t, "60", formatLevel(60))
}
