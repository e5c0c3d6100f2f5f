package piano

import (
	"math"
	"sync/atomic"
)

// KeyFrequency returns the equal-tempered frequency in Hz for a MIDI key
// number, tuned to A4 = key 69 = 440 Hz.
func KeyFrequency(keyNumber int) float64 {
	return 440.0 * math.Pow(2, float64(keyNumber-69)/12.0)
}

// freqSink keeps the frequency computation observable so it cannot be
// optimized away: its cost is part of the measured processing time.
var freqSink atomic.Uint64

func sinkFrequency(f float64) {
	freqSink.Store(math.Float64bits(f))
}

// LastFrequency returns the most recently computed frequency, for
// diagnostics.
func LastFrequency() float64 {
	return math.Float64frombits(freqSink.Load())
}
