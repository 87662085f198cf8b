package matting

// DefaultReferenceSize is the edge length the network was trained around.
const DefaultReferenceSize = 512

// multiple every network input dimension must be divisible by.
const multiple = 32

// Geometry describes how a source image is resized before inference.
type Geometry struct {
	Height, Width             int
	TargetHeight, TargetWidth int
	ScaleX, ScaleY            float64
}

// ComputeResizeGeometry picks the network input size for a height x width
// image. When the larger side is below referenceSize, or the smaller side
// exceeds it, the larger side is mapped to referenceSize keeping the aspect
// ratio; otherwise the size is kept. Both sides are then floored to a
// multiple of 32.
func ComputeResizeGeometry(height, width, referenceSize int) (Geometry, error) {
	if height <= 0 || width <= 0 {
		return Geometry{}, invalidGeometry(height, width, "dimensions must be positive")
	}
	if referenceSize <= 0 {
		return Geometry{}, invalidGeometry(height, width, "reference size %d must be positive", referenceSize)
	}

	th, tw := height, width
	if max(height, width) < referenceSize || min(height, width) > referenceSize {
		if width >= height {
			tw = referenceSize
			th = int(float64(height) / float64(width) * float64(referenceSize))
		} else {
			th = referenceSize
			tw = int(float64(width) / float64(height) * float64(referenceSize))
		}
	}

	th -= th % multiple
	tw -= tw % multiple
	if th == 0 || tw == 0 {
		return Geometry{}, invalidGeometry(height, width,
			"target %dx%d is empty after flooring to a multiple of %d", tw, th, multiple)
	}

	return Geometry{
		Height:       height,
		Width:        width,
		TargetHeight: th,
		TargetWidth:  tw,
		ScaleX:       float64(tw) / float64(width),
		ScaleY:       float64(th) / float64(height),
	}, nil
}
