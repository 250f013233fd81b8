package simulator

import (
	"fmt"
)

// Track is one escalation rule: Threshold qualifying days within the most
// recent Window trading days puts the stock into disposal. A consecutive-day
// rule is a track whose Threshold equals its Window.
type Track struct {
	Name      string `yaml:"name" json:"name"`
	Window    int    `yaml:"window" json:"window"`
	Threshold int    `yaml:"threshold" json:"threshold"`
}

// DefaultTracks are the exchange's standard escalation rules.
var DefaultTracks = []Track{
	{Name: "連續3個營業日", Window: 3, Threshold: 3},
	{Name: "連續5個營業日", Window: 5, Threshold: 5},
	{Name: "最近10個營業日內6日", Window: 10, Threshold: 6},
	{Name: "最近30個營業日內12日", Window: 30, Threshold: 12},
}

// Consecutive reports whether the track requires an unbroken run.
func (t Track) Consecutive() bool {
	return t.Window == t.Threshold
}

// Validate checks the track fits inside a simulation window of size windowSize.
func (t Track) Validate(windowSize int) error {
	if t.Name == "" {
		return fmt.Errorf("track name is empty")
	}
	if t.Window <= 0 || t.Window > windowSize {
		return fmt.Errorf("track %q window %d outside 1..%d", t.Name, t.Window, windowSize)
	}
	if t.Threshold <= 0 || t.Threshold > t.Window {
		return fmt.Errorf("track %q threshold %d outside 1..%d", t.Name, t.Threshold, t.Window)
	}
	return nil
}

// estimate returns how many more qualifying days the track needs, assuming
// every future trading day qualifies, and how many qualifying days already
// sit inside its trailing window. As each future day is added the oldest
// real day slides out of the window.
func (t Track) estimate(bits []bool) (needed, current int) {
	n := len(bits)
	current = countTrue(bits[n-t.Window:])
	for d := 0; d <= t.Threshold; d++ {
		realDays := t.Window - d
		if realDays < 0 {
			realDays = 0
		}
		if countTrue(bits[n-realDays:])+d >= t.Threshold {
			return d, current
		}
	}
	return t.Threshold, current
}

func countTrue(bits []bool) int {
	n := 0
	for _, b := range bits {
		if b {
			n++
		}
	}
	return n
}
