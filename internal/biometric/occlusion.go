package biometric

import "time"

// lowPassFilter is a single-pole IIR low-pass filter used to smooth the
// occlusion-30 signal into something stable enough to drive an LED
// indicator without flickering on per-frame noise. There is no
// precedent for this in the surrounding packages; it is a dozen lines of
// arithmetic, not a concern worth a third-party dependency.
type lowPassFilter struct {
	value  float64
	primed bool
}

func (f *lowPassFilter) reset() {
	f.value = 0
	f.primed = false
}

// add folds a new sample into the filter using time constant rc seconds
// and elapsed time dt seconds, returning the updated filtered value. The
// first sample primes the filter directly, since there is no prior value
// to blend from.
func (f *lowPassFilter) add(sample, dt, rc float64) float64 {
	if !f.primed {
		f.value = sample
		f.primed = true
		return f.value
	}
	alpha := dt / (rc + dt)
	f.value += alpha * (sample - f.value)
	return f.value
}

// instantTimer reports the elapsed time since its last call, returning 0
// on its first call (there is no prior instant to measure from).
type instantTimer struct {
	last time.Time
}

func (t *instantTimer) dtSeconds() float64 {
	now := time.Now()
	if t.last.IsZero() {
		t.last = now
		return 0
	}
	dt := now.Sub(t.last).Seconds()
	t.last = now
	return dt
}
