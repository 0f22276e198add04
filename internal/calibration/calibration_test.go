package calibration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReduceOffsetsPicksLeastAbsoluteValue(t *testing.T) {
	base := Calibration{Mirror: Mirror{HorizontalOffset: 1.0, VerticalOffset: -1.0}}
	points := []Point{
		{Horizontal: 0.5, Vertical: -0.1},
		{Horizontal: -0.2, Vertical: 0.3},
	}
	next := ReduceOffsets(base, points)
	require.InDelta(t, 1.0+(-0.2)*ContinuousCalibrationReducer, next.Mirror.HorizontalOffset, 1e-9)
	require.InDelta(t, -1.0+(-0.1)*ContinuousCalibrationReducer, next.Mirror.VerticalOffset, 1e-9)
}

func TestReduceOffsetsPanicsOnFewerThanTwoPoints(t *testing.T) {
	require.Panics(t, func() {
		ReduceOffsets(Calibration{}, []Point{{Horizontal: 1}})
	})
}
