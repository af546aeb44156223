package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/envmon/pkg/alarm"
	"github.com/itohio/envmon/pkg/config"
	"github.com/itohio/envmon/pkg/monitor"
	"github.com/itohio/envmon/pkg/sensor"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// staticBackend always reports the same readings.
type staticBackend struct {
	gas int
}

func (b *staticBackend) ReadTemperature() (float64, error) { return 20, nil }
func (b *staticBackend) ReadHumidity() (float64, error)    { return 50, nil }
func (b *staticBackend) ReadDigital(sensor.Pin) (bool, error) {
	return false, nil
}

func (b *staticBackend) ReadAnalog(ch sensor.Channel) (int, error) {
	switch ch {
	case sensor.Gas:
		return b.gas, nil
	case sensor.Light:
		return 2048, nil
	default:
		return 2048, nil
	}
}

type pulse struct{ fn func() }

func (p *pulse) OnPulse(fn func()) { p.fn = fn }

type testEnv struct {
	srv    *Server
	router *gin.Engine
	mon    *monitor.Monitor
	pulse  *pulse
	assets string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	assets := t.TempDir()
	for _, name := range []string{"login.html", "index.html", "settings.html", "chart.js", "leaflet.js", "leaflet.css"} {
		require.NoError(t, os.WriteFile(filepath.Join(assets, name), []byte("<!-- "+name+" -->"), 0o644))
	}

	cfg := config.Default()
	cfg.Monitor.SoundWindow = time.Millisecond
	cfg.HTTP.AssetsDir = assets

	p := &pulse{}
	mon, err := monitor.New(cfg, monitor.Sources{Backend: &staticBackend{gas: 2662}, Pulse: p}, nil, nil)
	require.NoError(t, err)

	srv := NewServer(mon, &cfg.HTTP, nil)
	return &testEnv{srv: srv, router: srv.Router(), mon: mon, pulse: p, assets: assets}
}

func (e *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRoot_RedirectsToLogin(t *testing.T) {
	e := newTestEnv(t)
	w := e.get(t, "/")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantCode int
		wantBody string
	}{
		{name: "valid", target: "/login?user=admin&pass=admin", wantCode: http.StatusOK, wantBody: "OK"},
		{name: "wrong password", target: "/login?user=admin&pass=nope", wantCode: http.StatusUnauthorized, wantBody: "FAIL"},
		{name: "wrong user", target: "/login?user=root&pass=admin", wantCode: http.StatusUnauthorized, wantBody: "FAIL"},
		{name: "page", target: "/login", wantCode: http.StatusOK, wantBody: "<!-- login.html -->"},
		{name: "only user serves page", target: "/login?user=admin", wantCode: http.StatusOK, wantBody: "<!-- login.html -->"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			w := e.get(t, tt.target)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestAssets(t *testing.T) {
	e := newTestEnv(t)

	for route, file := range assets {
		t.Run(route, func(t *testing.T) {
			w := e.get(t, route)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "<!-- "+file+" -->", w.Body.String())
		})
	}

	assert.Equal(t, http.StatusNotFound, e.get(t, "/secret.txt").Code)
}

func TestSettings(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantCode int
		check    func(t *testing.T, th alarm.Thresholds)
	}{
		{
			name: "gas threshold", target: "/settings?threshold=45", wantCode: http.StatusOK,
			check: func(t *testing.T, th alarm.Thresholds) { assert.Equal(t, 45, th.GasPct) },
		},
		{
			name: "sound threshold", target: "/settings?dbThreshold=72.5", wantCode: http.StatusOK,
			check: func(t *testing.T, th alarm.Thresholds) { assert.Equal(t, 72.5, th.SoundDB) },
		},
		{
			name: "sound correction", target: "/settings?dbCorrection=-40", wantCode: http.StatusOK,
			check: func(t *testing.T, th alarm.Thresholds) { assert.Equal(t, -40.0, th.SoundCorrectionDB) },
		},
		{
			name: "first parameter wins", target: "/settings?dbThreshold=70&threshold=20", wantCode: http.StatusOK,
			check: func(t *testing.T, th alarm.Thresholds) {
				assert.Equal(t, 20, th.GasPct)
				assert.Equal(t, 65.0, th.SoundDB)
			},
		},
		{name: "missing", target: "/settings", wantCode: http.StatusBadRequest},
		{name: "not a number", target: "/settings?threshold=abc", wantCode: http.StatusBadRequest},
		{name: "fractional gas", target: "/settings?threshold=50.5", wantCode: http.StatusBadRequest},
		{name: "out of range", target: "/settings?threshold=150", wantCode: http.StatusBadRequest},
		{name: "NaN", target: "/settings?dbThreshold=NaN", wantCode: http.StatusBadRequest},
		{name: "correction out of range", target: "/settings?dbCorrection=-500", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			w := e.get(t, tt.target)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())

			if tt.check != nil {
				assert.Equal(t, "OK", w.Body.String())
				tt.check(t, e.mon.Thresholds())
			} else {
				assert.Equal(t, alarm.DefaultThresholds(), e.mon.Thresholds(), "rejected write changes nothing")
			}
		})
	}
}

func TestAlarm(t *testing.T) {
	e := newTestEnv(t)

	// gas 65% over the default 60% threshold.
	e.mon.Cycle(context.Background())
	require.True(t, e.mon.Status().Active)

	w := e.get(t, "/alarm?state=off")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ALARM_OFF_RESET", w.Body.String())
	st := e.mon.Status()
	assert.False(t, st.Armed)
	assert.False(t, st.Active)
	assert.False(t, st.NotificationSent)

	w = e.get(t, "/alarm?state=on")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ALARM_ON", w.Body.String())
	assert.Equal(t, alarm.ArmedIdle, e.mon.Status().State())

	w = e.get(t, "/alarm?state=on")
	assert.Equal(t, "ALARM_ON", w.Body.String())
	assert.Equal(t, alarm.ArmedIdle, e.mon.Status().State())

	assert.Equal(t, http.StatusBadRequest, e.get(t, "/alarm").Code)
	assert.Equal(t, http.StatusBadRequest, e.get(t, "/alarm?state=maybe").Code)
}

func TestData(t *testing.T) {
	e := newTestEnv(t)
	e.mon.Cycle(context.Background())
	e.pulse.fn()

	w := e.get(t, "/data")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var d map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, 65.0, d["gasPct"])
	assert.Equal(t, 60.0, d["gasThreshold"])
	assert.Equal(t, true, d["isAlarmActive"])
	assert.Equal(t, "gas", d["trigger"])
	assert.Equal(t, true, d["pps"])

	w = e.get(t, "/data")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, false, d["pps"], "pulse consumed by the previous read")
}

func TestDisplay(t *testing.T) {
	e := newTestEnv(t)
	e.mon.Cycle(context.Background())
	e.pulse.fn()

	w := e.get(t, "/display")
	require.Equal(t, http.StatusOK, w.Code)

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "T:20.0C | H:50.0%", lines[0])
	assert.Equal(t, "!!! ALERT !!!", lines[4])

	assert.True(t, e.mon.Peek().PPS, "display does not consume the pulse")
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.get(t, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ARMED_IDLE", body["state"])
}

func TestCORS(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRun_GracefulShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	e := newTestEnv(t)
	e.srv.cfg.Addr = addr

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.srv.Run(ctx) }()

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return within timeout")
	}
}
