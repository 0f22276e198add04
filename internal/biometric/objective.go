package biometric

import (
	"math/rand"

	"github.com/orb-project/orb-core/internal/mcu"
)

// Objective is one pass of the capture loop: a target eye, an IR
// illuminator configuration, and the RGB routing mode for that pass.
type Objective struct {
	TargetLeftEye    bool
	IrLedWavelength  mcu.IrLed
	IrLedDuration    uint16
	OnlyRgbNetFrames bool
}

// Wavelength pairs one IR LED wavelength with the illuminator duration to
// drive it at, the unit NewObjectives fans out across both eyes.
type Wavelength struct {
	IrLed    mcu.IrLed
	Duration uint16
}

// NewObjectives builds the objective queue: a coin-flip starting eye
// captured in RGB-Net-only mode, then the other eye in fused mode, each
// phase repeating once per configured wavelength. The starting eye is
// randomized so a systematic bias in session-to-session ordering (e.g.
// always sampling the left eye's illuminator settings first) can't creep
// into aggregate capture-quality metrics.
func NewObjectives(wavelengths []Wavelength) []Objective {
	startLeft := rand.Intn(2) == 0
	var objectives []Objective
	for _, phase := range []struct {
		targetLeftEye    bool
		onlyRgbNetFrames bool
	}{
		{startLeft, true},
		{!startLeft, false},
	} {
		for _, w := range wavelengths {
			objectives = append(objectives, Objective{
				TargetLeftEye:    phase.targetLeftEye,
				IrLedWavelength:  w.IrLed,
				IrLedDuration:    w.Duration,
				OnlyRgbNetFrames: phase.onlyRgbNetFrames,
			})
		}
	}
	return objectives
}
