package estimate

// FaceIdentifierOutput is the fused RGB-Net+face-identifier model's
// validity verdict for the self-custody candidate frame. It is only ever
// produced alongside the RGB-Net prediction it fused with, which is why it
// carries that prediction's bbox and landmarks rather than requiring a
// second pairing lookup.
type FaceIdentifierOutput struct {
	IsValid          bool
	Score            float64
	Error            string
	RgbNetBbox       Rectangle
	RgbNetEyeLandmarks [2]Point
}
