package monitor

import (
	"time"

	"github.com/itohio/envmon/pkg/alarm"
	"github.com/itohio/envmon/pkg/snapshot"
)

// Data is the combined export of snapshot, thresholds and alarm state.
// JSON names are the ones existing dashboards consume.
type Data struct {
	Temperature *float64 `json:"temp"`
	Humidity    *float64 `json:"hum"`
	Lux         float64  `json:"lux"`
	Gas         int      `json:"gas"`
	GasPct      int      `json:"gasPct"`
	Motion      bool     `json:"pirState"`
	SoundDB     float64  `json:"soundDecibel"`

	GasThreshold int     `json:"gasThreshold"`
	DBThreshold  float64 `json:"dbThreshold"`
	DBCorrection float64 `json:"dbCorrection"`

	GPSLat        float64 `json:"gpsLat"`
	GPSLng        float64 `json:"gpsLng"`
	GPSSpeed      float64 `json:"gpsSpeed"`
	GPSSatellites int     `json:"gpsSatellites"`
	GPSHDOP       float64 `json:"gpsHDOP"`
	GPSValid      bool    `json:"gpsValid"`
	PPS           bool    `json:"pps"`
	Time          string  `json:"time"`
	Date          string  `json:"date"`

	AlarmEnabled     bool   `json:"alarmEnabled"`
	AlarmActive      bool   `json:"isAlarmActive"`
	NotificationSent bool   `json:"notificationSent"`
	Trigger          string `json:"trigger"`
	Episode          string `json:"episode,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// State derives the alarm state from the exported flags.
func (d Data) State() alarm.State {
	return alarm.Status{Armed: d.AlarmEnabled, Active: d.AlarmActive}.State()
}

// newData assembles an export. The trigger is computed from th, the same
// thresholds the export reports.
func newData(s snapshot.Snapshot, th alarm.Thresholds, st alarm.Status, pps bool, now time.Time) Data {
	return Data{
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
		Lux:         s.Lux,
		Gas:         s.GasRaw,
		GasPct:      s.GasPct,
		Motion:      s.Motion,
		SoundDB:     s.SoundDB,

		GasThreshold: th.GasPct,
		DBThreshold:  th.SoundDB,
		DBCorrection: th.SoundCorrectionDB,

		GPSLat:        s.GPS.Lat,
		GPSLng:        s.GPS.Lng,
		GPSSpeed:      s.GPS.SpeedKmph,
		GPSSatellites: s.GPS.Satellites,
		GPSHDOP:       s.GPS.HDOP,
		GPSValid:      s.GPS.Valid,
		PPS:           pps,
		Time:          s.GPS.Time,
		Date:          s.GPS.Date,

		AlarmEnabled:     st.Armed,
		AlarmActive:      st.Active,
		NotificationSent: st.NotificationSent,
		Trigger:          alarm.Evaluate(s, th).String(),
		Episode:          st.Episode,

		Timestamp: now,
	}
}
