package matting

import "fmt"

// InvalidImageError reports input that cannot be turned into a pixel grid:
// empty or undecodable files, unsupported channel counts, empty grids.
type InvalidImageError struct {
	Msg string
	Err error
}

func (e *InvalidImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid image: %s: %v", e.Msg, e.Err)
	}
	return "invalid image: " + e.Msg
}

func (e *InvalidImageError) Unwrap() error { return e.Err }

// InvalidGeometryError reports a resize target that collapses to zero.
type InvalidGeometryError struct {
	Height, Width int
	Msg           string
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid geometry for %dx%d image: %s", e.Width, e.Height, e.Msg)
}

// InferenceError carries the engine's diagnostic when a run fails or
// shapes disagree with what the network expects.
type InferenceError struct {
	Msg string
	Err error
}

func (e *InferenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inference failed: %s: %v", e.Msg, e.Err)
	}
	return "inference failed: " + e.Msg
}

func (e *InferenceError) Unwrap() error { return e.Err }

func invalidImage(err error, format string, args ...any) error {
	return &InvalidImageError{Msg: fmt.Sprintf(format, args...), Err: err}
}

func invalidGeometry(height, width int, format string, args ...any) error {
	return &InvalidGeometryError{Height: height, Width: width, Msg: fmt.Sprintf(format, args...)}
}

func inferenceFailed(err error, format string, args ...any) error {
	return &InferenceError{Msg: fmt.Sprintf(format, args...), Err: err}
}
