package entities

import "strconv"

// Playback period bounds and step, in milliseconds
const (
	MinPeriodMillis     = 100
	MaxPeriodMillis     = 2000
	PeriodStepMillis    = 100
	DefaultPeriodMillis = 500
)

// Keys used in the preference store
const (
	PrefRegion     = "selectedRegion"
	PrefCenter     = "center"
	PrefWindVector = "windVector"
	PrefSpeed      = "speed"
)

// PlaybackState is the display cursor and timer configuration of the loop
type PlaybackState struct {
	Cursor       int
	PeriodMillis int
	Running      bool
}

// ClampPeriod bounds a playback period to the supported range
func ClampPeriod(ms int) int {
	if ms < MinPeriodMillis {
		return MinPeriodMillis
	}
	if ms > MaxPeriodMillis {
		return MaxPeriodMillis
	}
	return ms
}

// Preferences is what gets persisted between runs
type Preferences struct {
	Region       string
	Center       bool
	WindVector   bool
	PeriodMillis int
}

// DefaultPreferences returns the preferences of a first run
func DefaultPreferences() Preferences {
	return Preferences{
		Region:       DefaultRegion,
		PeriodMillis: DefaultPeriodMillis,
	}
}

// FormatFlag encodes a boolean preference the way it is stored
func FormatFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// ParseFlag decodes a stored boolean preference
func ParseFlag(s string) bool {
	return s == "1"
}

// LocatorParams returns the template parameters derived from the option flags
func (p Preferences) LocatorParams() map[string]string {
	return map[string]string{
		"center": FormatFlag(p.Center),
		"wv":     FormatFlag(p.WindVector),
	}
}

// ParsePeriod decodes a stored speed value, falling back to the default
func ParsePeriod(s string) int {
	ms, err := strconv.Atoi(s)
	if err != nil || ms <= 0 {
		return DefaultPeriodMillis
	}
	return ClampPeriod(ms)
}
