package estimate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIrNetSharpnessReliability(t *testing.T) {
	reliable := IrNetOutput{Sharpness: 1.5, Occlusion30: 0.2}
	require.True(t, reliable.IsSharpnessReliable(1.2))

	belowMin := IrNetOutput{Sharpness: 1.0, Occlusion30: 0.2}
	require.False(t, belowMin.IsSharpnessReliable(1.2))

	nanSharpness := IrNetOutput{Sharpness: math.NaN(), Occlusion30: 0.2}
	require.False(t, nanSharpness.IsSharpnessReliable(1.2))
}

func TestRectangleWellFormed(t *testing.T) {
	require.True(t, Rectangle{Left: 0, Top: 0, Right: 10, Bottom: 10}.IsWellFormed())
	require.False(t, Rectangle{Left: 10, Top: 0, Right: 10, Bottom: 10}.IsWellFormed())
	require.False(t, Rectangle{Left: 0, Top: 0, Right: 0, Bottom: 0}.IsWellFormed())
}

func TestRgbNetAcceptance(t *testing.T) {
	ok := RgbNetOutput{Primary: &PrimaryPrediction{Bbox: Rectangle{Left: 0, Top: 0, Right: 5, Bottom: 5}}}
	require.True(t, ok.IsAcceptable())

	empty := RgbNetOutput{}
	require.False(t, empty.IsAcceptable())

	malformed := RgbNetOutput{Primary: &PrimaryPrediction{Bbox: Rectangle{}}}
	require.False(t, malformed.IsAcceptable())
}
