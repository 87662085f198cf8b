// Package resample holds the interpolation policy shared by the matting
// pipeline: area averaging when shrinking, bilinear when enlarging.
package resample

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// Resize scales img to width x height. When neither side grows the pixels
// are box filtered, which averages every source pixel covered by a target
// pixel. Any enlargement falls back to bilinear interpolation.
func Resize(img image.Image, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("resample: empty target %dx%d", width, height)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, errors.New("resample: empty source")
	}

	if width == b.Dx() && height == b.Dy() {
		return imaging.Clone(img), nil
	}
	if width <= b.Dx() && height <= b.Dy() {
		return imaging.Resize(img, width, height, imaging.Box), nil
	}
	return imaging.Clone(resize.Resize(uint(width), uint(height), img, resize.Bilinear)), nil
}

// Fit stretches img over a width x height canvas. It is used for caller
// supplied backgrounds, where smoothness matters more than averaging.
func Fit(img image.Image, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("resample: empty target %dx%d", width, height)
	}
	if img.Bounds().Empty() {
		return nil, errors.New("resample: empty source")
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst, nil
}
