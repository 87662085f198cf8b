package resample

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestResize_AreaAveragesWhenShrinking(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			v := uint8(100)
			if x%2 == 1 {
				v = 200
			}
			src.SetGray(x, y, color.Gray{Y: v})
		}
	}

	got, err := Resize(src, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 1), got.Bounds())
	for x := 0; x < 2; x++ {
		c := got.NRGBAAt(x, 0)
		assert.Equal(t, uint8(150), c.R)
		assert.Equal(t, uint8(150), c.G)
		assert.Equal(t, uint8(150), c.B)
		assert.Equal(t, uint8(255), c.A)
	}
}

func TestResize_EnlargesUniformImage(t *testing.T) {
	want := color.NRGBA{R: 10, G: 20, B: 30, A: 255}

	got, err := Resize(solid(3, 2, want), 12, 8)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 12, 8), got.Bounds())
	assert.Equal(t, want, got.NRGBAAt(0, 0))
	assert.Equal(t, want, got.NRGBAAt(11, 7))
	assert.Equal(t, want, got.NRGBAAt(6, 4))
}

func TestResize_MixedAxesUsesInterpolation(t *testing.T) {
	want := color.NRGBA{R: 200, G: 100, B: 50, A: 255}

	got, err := Resize(solid(8, 2, want), 4, 6)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 6), got.Bounds())
	assert.Equal(t, want, got.NRGBAAt(2, 3))
}

func TestResize_SameSizeCopies(t *testing.T) {
	src := solid(5, 5, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	got, err := Resize(src, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, got.Pix)

	got.Pix[0] = 99
	assert.Equal(t, uint8(1), src.Pix[0])
}

func TestResize_RejectsEmptyTargets(t *testing.T) {
	src := solid(4, 4, color.NRGBA{A: 255})

	tests := []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 4},
		{"zero height", 4, 0},
		{"negative", -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resize(src, tt.w, tt.h)
			assert.Error(t, err)
			_, err = Fit(src, tt.w, tt.h)
			assert.Error(t, err)
		})
	}

	_, err := Resize(image.NewNRGBA(image.Rect(0, 0, 0, 0)), 4, 4)
	assert.Error(t, err)
}

func TestFit_StretchesToCanvas(t *testing.T) {
	want := color.NRGBA{R: 0, G: 128, B: 255, A: 255}

	got, err := Fit(solid(7, 3, want), 20, 11)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 11), got.Bounds())
	c := got.NRGBAAt(10, 5)
	assert.InDelta(t, want.R, c.R, 1)
	assert.InDelta(t, want.G, c.G, 1)
	assert.InDelta(t, want.B, c.B, 1)
	assert.InDelta(t, want.A, c.A, 1)
}
