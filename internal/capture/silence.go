package capture

import (
	"math"
	"time"
)

// Detector tracks sustained quiet over per-frame RMS amplitudes. Feed returns
// true once the amplitude has stayed below the threshold for the configured
// window. The signal is advisory; the caller decides whether to stop.
//
// The detector is a pure function of the samples fed to it, so tests drive it
// with synthetic amplitude sequences instead of real audio.
type Detector struct {
	threshold  float64
	window     time.Duration
	quietSince time.Time
	quiet      bool
}

// NewDetector creates a detector that fires after amplitude stays below
// threshold for at least window.
func NewDetector(threshold float64, window time.Duration) *Detector {
	return &Detector{threshold: threshold, window: window}
}

// Feed records one frame's RMS amplitude observed at the given time.
func (d *Detector) Feed(rms float64, at time.Time) bool {
	if rms >= d.threshold {
		d.quiet = false
		return false
	}
	if !d.quiet {
		d.quiet = true
		d.quietSince = at
		return d.window == 0
	}
	return at.Sub(d.quietSince) >= d.window
}

// Reset clears the rolling quiet window.
func (d *Detector) Reset() {
	d.quiet = false
}

// RMS computes the root-mean-square amplitude of a PCM16 frame, normalized
// to 0..1.
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
