// Package calibration holds the mirror calibration carried across capture
// sessions, and its durable store: a Redis read-through cache in front of
// a Postgres table, so a session can recalibrate without waiting on a
// database round trip on every frame.
package calibration

// ContinuousCalibrationReducer scales each session's measured mirror
// offset before folding it into the stored calibration, so one noisy
// session cannot swing the calibration far from its running value.
const ContinuousCalibrationReducer = 0.2

// Mirror holds the steering-mirror zero-point offsets a capture session
// nudges after every successful capture.
type Mirror struct {
	HorizontalOffset float64
	VerticalOffset   float64
}

// Calibration is the full set of per-device calibration values. Today it
// only carries the mirror offsets; it is its own type (rather than a bare
// Mirror) so future calibration axes (e.g. per-wavelength exposure) have
// somewhere to live without another migration of every call site.
type Calibration struct {
	Mirror Mirror
}

// Point is one sample of mirror pointing error accumulated during a
// capture, in the same units as Mirror's offsets.
type Point struct {
	Horizontal, Vertical float64
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// minByAbsoluteValue returns the element of values with the smallest
// absolute value, matching the original's "pick whichever axis offset
// errs least, not the average" continuous-calibration rule.
func minByAbsoluteValue(values []float64) float64 {
	min := values[0]
	for _, v := range values[1:] {
		if abs(v) < abs(min) {
			min = v
		}
	}
	return min
}

// ReduceOffsets folds a session's mirror_offsets samples into an existing
// Calibration, picking the least-absolute-value horizontal and vertical
// samples and scaling them by ContinuousCalibrationReducer before adding.
// Panics if points has fewer than two samples, mirroring the
// "must contain at least two points" invariant continuous re-calibration
// only runs after a successful two-eye capture.
func ReduceOffsets(base Calibration, points []Point) Calibration {
	if len(points) < 2 {
		panic("calibration: ReduceOffsets requires at least two points")
	}
	horizontal := make([]float64, len(points))
	vertical := make([]float64, len(points))
	for i, p := range points {
		horizontal[i] = p.Horizontal
		vertical[i] = p.Vertical
	}

	next := base
	next.Mirror.HorizontalOffset += minByAbsoluteValue(horizontal) * ContinuousCalibrationReducer
	next.Mirror.VerticalOffset += minByAbsoluteValue(vertical) * ContinuousCalibrationReducer
	return next
}
