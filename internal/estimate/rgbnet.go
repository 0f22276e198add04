package estimate

// Point is a 2D pixel coordinate in RGB frame space.
type Point struct {
	X, Y float64
}

// Rectangle is an axis-aligned bounding box in RGB frame space.
type Rectangle struct {
	Left, Top, Right, Bottom float64
}

// IsWellFormed reports whether the box has positive width and height, the
// minimal sanity check the RGB frame-acceptance gate applies before
// trusting a primary prediction.
func (r Rectangle) IsWellFormed() bool {
	return r.Right > r.Left && r.Bottom > r.Top
}

// PrimaryPrediction is RGB-Net's best face/eye prediction for one frame.
type PrimaryPrediction struct {
	Bbox         Rectangle
	EyeLandmarks [2]Point // left, right
}

// RgbNetOutput is the estimate RGB-Net produces for one RGB frame. Primary
// is nil when the model found no usable face in the frame.
type RgbNetOutput struct {
	Primary *PrimaryPrediction
}

// IsAcceptable reports whether this output clears the RGB frame
// acceptance gate: a primary prediction exists and its bounding box is
// well-formed. There is no score gate at this level.
func (o RgbNetOutput) IsAcceptable() bool {
	return o.Primary != nil && o.Primary.Bbox.IsWellFormed()
}
