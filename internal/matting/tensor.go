package matting

import (
	"image"

	"github.com/Brownie44l1/modnet-matting/internal/resample"
)

// Tensor is a float32 batch in (batch, channel, height, width) layout.
type Tensor struct {
	Shape [4]int64
	Data  []float32
}

// Height and Width of the spatial planes.
func (t *Tensor) Height() int { return int(t.Shape[2]) }
func (t *Tensor) Width() int  { return int(t.Shape[3]) }

// Validate checks the tensor is a single three channel image whose buffer
// matches its shape.
func (t *Tensor) Validate() error {
	if t == nil {
		return inferenceFailed(nil, "nil input tensor")
	}
	if t.Shape[0] != 1 || t.Shape[1] != 3 {
		return inferenceFailed(nil, "input tensor shape %v, want [1 3 H W]", t.Shape)
	}
	if t.Shape[2] <= 0 || t.Shape[3] <= 0 {
		return inferenceFailed(nil, "input tensor shape %v has empty spatial dims", t.Shape)
	}
	if want := t.Shape[0] * t.Shape[1] * t.Shape[2] * t.Shape[3]; int64(len(t.Data)) != want {
		return inferenceFailed(nil, "input tensor holds %d values, shape %v needs %d", len(t.Data), t.Shape, want)
	}
	return nil
}

// Matte is the single channel foreground probability map, values in [0,1].
type Matte struct {
	Height, Width int
	Data          []float32
}

func (m *Matte) validate() error {
	if m == nil || m.Height <= 0 || m.Width <= 0 {
		return inferenceFailed(nil, "empty matte")
	}
	if len(m.Data) != m.Height*m.Width {
		return inferenceFailed(nil, "matte holds %d values, want %d", len(m.Data), m.Height*m.Width)
	}
	return nil
}

// Gray quantises the matte to 8 bits, truncating like an integer cast.
func (m *Matte) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Data {
		switch {
		case v <= 0:
			g.Pix[i] = 0
		case v >= 1:
			g.Pix[i] = 255
		default:
			g.Pix[i] = uint8(v * 255)
		}
	}
	return g
}

// Normalize coerces grid to RGB, area-resizes it to the geometry target and
// maps every value to (v-127.5)/127.5 in NCHW order.
func Normalize(grid *PixelGrid, geo Geometry) (*Tensor, error) {
	rgb, err := Coerce3(grid)
	if err != nil {
		return nil, err
	}
	if rgb.Height != geo.Height || rgb.Width != geo.Width {
		return nil, invalidGeometry(rgb.Height, rgb.Width,
			"geometry was computed for %dx%d", geo.Width, geo.Height)
	}
	if geo.TargetHeight <= 0 || geo.TargetWidth <= 0 {
		return nil, invalidGeometry(rgb.Height, rgb.Width, "empty target %dx%d", geo.TargetWidth, geo.TargetHeight)
	}

	resized, err := resample.Resize(toNRGBA(rgb), geo.TargetWidth, geo.TargetHeight)
	if err != nil {
		return nil, invalidGeometry(rgb.Height, rgb.Width, "%v", err)
	}

	h, w := geo.TargetHeight, geo.TargetWidth
	plane := h * w
	t := &Tensor{
		Shape: [4]int64{1, 3, int64(h), int64(w)},
		Data:  make([]float32, 3*plane),
	}
	for y := 0; y < h; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < w; x++ {
			idx := y*w + x
			for c := 0; c < 3; c++ {
				t.Data[c*plane+idx] = (float32(row[x*4+c]) - 127.5) / 127.5
			}
		}
	}
	return t, nil
}
