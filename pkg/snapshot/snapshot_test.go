package snapshot

import (
	"math"
	"sync"
	"testing"

	"github.com/itohio/envmon/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s := New()

	assert.Nil(t, s.Temperature)
	assert.Nil(t, s.Humidity)
	assert.Equal(t, 10.0, s.Lux)
	assert.Equal(t, NoTime, s.GPS.Time)
	assert.Equal(t, NoDate, s.GPS.Date)
	assert.Equal(t, NoHDOP, s.GPS.HDOP)
	assert.False(t, s.GPS.Valid)
}

func TestSetTemperatureHumidity(t *testing.T) {
	s := New()

	assert.False(t, s.SetTemperature(math.NaN()))
	assert.Nil(t, s.Temperature)

	assert.True(t, s.SetTemperature(21.5))
	assert.True(t, s.SetHumidity(40))

	assert.False(t, s.SetTemperature(math.Inf(1)))
	assert.False(t, s.SetHumidity(math.NaN()))

	require.NotNil(t, s.Temperature)
	require.NotNil(t, s.Humidity)
	assert.Equal(t, 21.5, *s.Temperature)
	assert.Equal(t, 40.0, *s.Humidity)
}

func TestClone(t *testing.T) {
	s := New()
	s.SetTemperature(20)

	c := s.Clone()
	*c.Temperature = 99

	assert.Equal(t, 20.0, *s.Temperature)
}

func ptr[T any](v T) *T { return &v }

func TestApplyGPS(t *testing.T) {
	tests := []struct {
		name   string
		update sensor.GPSUpdate
		check  func(t *testing.T, g GPS)
	}{
		{
			name:   "empty update keeps defaults",
			update: sensor.GPSUpdate{},
			check: func(t *testing.T, g GPS) {
				assert.Equal(t, NoTime, g.Time)
				assert.Equal(t, NoHDOP, g.HDOP)
			},
		},
		{
			name:   "time only",
			update: sensor.GPSUpdate{Time: ptr("12:00:01")},
			check: func(t *testing.T, g GPS) {
				assert.Equal(t, "12:00:01", g.Time)
				assert.Equal(t, NoDate, g.Date)
				assert.Zero(t, g.Lat)
			},
		},
		{
			name: "full fix",
			update: sensor.GPSUpdate{
				Location:   &sensor.LatLng{Lat: 1.5, Lng: -2.5},
				SpeedKmph:  ptr(3.2),
				Time:       ptr("01:02:03"),
				Date:       ptr("04/05/2026"),
				Satellites: ptr(7),
				HDOP:       ptr(1.1),
				Valid:      ptr(true),
			},
			check: func(t *testing.T, g GPS) {
				assert.Equal(t, GPS{
					Lat: 1.5, Lng: -2.5, SpeedKmph: 3.2,
					Time: "01:02:03", Date: "04/05/2026",
					Satellites: 7, HDOP: 1.1, Valid: true,
				}, g)
			},
		},
		{
			name: "non-finite dropped",
			update: sensor.GPSUpdate{
				Location:  &sensor.LatLng{Lat: math.NaN(), Lng: 2},
				SpeedKmph: ptr(math.Inf(1)),
				HDOP:      ptr(math.NaN()),
			},
			check: func(t *testing.T, g GPS) {
				assert.Zero(t, g.Lat)
				assert.Zero(t, g.Lng)
				assert.Zero(t, g.SpeedKmph)
				assert.Equal(t, NoHDOP, g.HDOP)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.ApplyGPS(tt.update)
			tt.check(t, s.GPS)
		})
	}
}

func TestApplyGPS_StaleFieldsRetained(t *testing.T) {
	s := New()
	s.ApplyGPS(sensor.GPSUpdate{
		Location:   &sensor.LatLng{Lat: 10, Lng: 20},
		Satellites: ptr(9),
		Valid:      ptr(true),
	})

	// Only time updated afterwards.
	s.ApplyGPS(sensor.GPSUpdate{Time: ptr("23:59:59")})

	assert.Equal(t, 10.0, s.GPS.Lat)
	assert.Equal(t, 20.0, s.GPS.Lng)
	assert.Equal(t, 9, s.GPS.Satellites)
	assert.True(t, s.GPS.Valid)
	assert.Equal(t, "23:59:59", s.GPS.Time)
}

func TestStore_UpdateIsAtomic(t *testing.T) {
	st := NewStore()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			st.Update(func(s *Snapshot) {
				s.GasRaw = i
				s.GasPct = i
			})
		}
	}()

	go func() {
		defer wg.Done()
		for _i := 0; _i < 1000; _i++ {
			s := st.Get()
			if s.GasRaw != s.GasPct {
				t.Errorf("torn snapshot: raw=%d pct=%d", s.GasRaw, s.GasPct)
				return
			}
		}
	}()

	wg.Wait()
	assert.Equal(t, 999, st.Get().GasRaw)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	st := NewStore()
	st.Update(func(s *Snapshot) { s.SetTemperature(18) })

	got := st.Get()
	*got.Temperature = 50

	assert.Equal(t, 18.0, *st.Get().Temperature)
}

func TestPulse(t *testing.T) {
	var p Pulse

	assert.False(t, p.Consume())

	p.Mark()
	assert.True(t, p.Peek())
	assert.True(t, p.Peek(), "peek does not clear")
	assert.True(t, p.Consume())
	assert.False(t, p.Consume(), "consume is one-shot")

	p.Mark()
	p.Mark()
	assert.True(t, p.Consume())
	assert.False(t, p.Peek())
}

func TestPulse_Concurrent(t *testing.T) {
	var p Pulse
	p.Mark()

	var wg sync.WaitGroup
	var mu sync.Mutex
	consumed := 0
	for _i := 0; _i < 16; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.Consume() {
				mu.Lock()
				consumed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, consumed)
}
