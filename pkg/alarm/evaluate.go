package alarm

import (
	"strings"

	"github.com/itohio/envmon/pkg/snapshot"
)

// Trigger is the evaluator output per channel.
type Trigger struct {
	Gas   bool
	Sound bool
}

// Any reports whether any channel is over its limit.
func (t Trigger) Any() bool {
	return t.Gas || t.Sound
}

// String lists the triggered channels, e.g. "gas+sound", or "" when none.
func (t Trigger) String() string {
	var parts []string
	if t.Gas {
		parts = append(parts, "gas")
	}
	if t.Sound {
		parts = append(parts, "sound")
	}
	return strings.Join(parts, "+")
}

// Evaluate compares a snapshot against thresholds. Boundary values do not
// trigger.
func Evaluate(s snapshot.Snapshot, t Thresholds) Trigger {
	return Trigger{
		Gas:   s.GasPct > t.GasPct,
		Sound: s.SoundDB > t.SoundDB,
	}
}
