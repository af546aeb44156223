package alarm

import (
	"testing"

	"github.com/itohio/envmon/pkg/snapshot"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name    string
		gasPct  int
		soundDB float64
		want    Trigger
		str     string
	}{
		{name: "quiet", gasPct: 10, soundDB: 30, want: Trigger{}, str: ""},
		{name: "gas at boundary", gasPct: 60, soundDB: 30, want: Trigger{}, str: ""},
		{name: "gas over", gasPct: 61, soundDB: 30, want: Trigger{Gas: true}, str: "gas"},
		{name: "sound at boundary", gasPct: 10, soundDB: 65, want: Trigger{}, str: ""},
		{name: "sound over", gasPct: 10, soundDB: 65.1, want: Trigger{Sound: true}, str: "sound"},
		{name: "both", gasPct: 90, soundDB: 90, want: Trigger{Gas: true, Sound: true}, str: "gas+sound"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := snapshot.New()
			s.GasPct = tt.gasPct
			s.SoundDB = tt.soundDB

			got := Evaluate(s, th)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Gas || tt.want.Sound, got.Any())
			assert.Equal(t, tt.str, got.String())
		})
	}
}

func TestEvaluate_UsesGivenThresholds(t *testing.T) {
	s := snapshot.New()
	s.GasPct = 65

	assert.True(t, Evaluate(s, Thresholds{GasPct: 60, SoundDB: 65}).Gas)
	assert.False(t, Evaluate(s, Thresholds{GasPct: 70, SoundDB: 65}).Gas)
}

func TestMessage(t *testing.T) {
	r := Reading{GasPct: 65, SoundDB: 72.34}

	assert.Equal(t, "Alert! gas 65%!", Message(Trigger{Gas: true}, r))
	assert.Equal(t, "Alert! noise 72.3 dB!", Message(Trigger{Sound: true}, r))
	assert.Equal(t, "Alert! gas 65% and noise 72.3 dB!", Message(Trigger{Gas: true, Sound: true}, r))
	assert.Equal(t, "Alert! gas 65%, noise 72.3 dB", Message(Trigger{}, r))
}
