package matting

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// PixelGrid is an interleaved 8-bit image with 1 (gray), 3 (RGB) or
// 4 (RGBA, non-premultiplied) channels.
type PixelGrid struct {
	Height, Width, Channels int
	Pix                     []uint8
}

func (g *PixelGrid) validate() error {
	if g == nil || g.Height <= 0 || g.Width <= 0 {
		return invalidImage(nil, "empty pixel grid")
	}
	if g.Channels != 1 && g.Channels != 3 && g.Channels != 4 {
		return invalidImage(nil, "unsupported channel count %d", g.Channels)
	}
	if len(g.Pix) != g.Height*g.Width*g.Channels {
		return invalidImage(nil, "pixel buffer holds %d values, want %d", len(g.Pix), g.Height*g.Width*g.Channels)
	}
	return nil
}

// Coerce3 returns an RGB copy of g: gray is replicated into every channel,
// alpha is dropped and RGB passes through unchanged.
func Coerce3(g *PixelGrid) (*PixelGrid, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	n := g.Height * g.Width
	out := &PixelGrid{Height: g.Height, Width: g.Width, Channels: 3, Pix: make([]uint8, n*3)}
	switch g.Channels {
	case 1:
		for i := 0; i < n; i++ {
			v := g.Pix[i]
			out.Pix[i*3], out.Pix[i*3+1], out.Pix[i*3+2] = v, v, v
		}
	case 3:
		copy(out.Pix, g.Pix)
	case 4:
		for i := 0; i < n; i++ {
			copy(out.Pix[i*3:i*3+3], g.Pix[i*4:i*4+3])
		}
	}
	return out, nil
}

// FromImage converts a decoded image into a pixel grid, keeping the
// channel layout the source format carries.
func FromImage(img image.Image) (*PixelGrid, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, invalidImage(nil, "image has no pixels")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch img.(type) {
	case *image.Gray, *image.Gray16:
		g := &PixelGrid{Height: h, Width: w, Channels: 1, Pix: make([]uint8, w*h)}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g.Pix[y*w+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			}
		}
		return g, nil
	case *image.NRGBA, *image.RGBA, *image.NRGBA64, *image.RGBA64, *image.Paletted:
		nrgba := imaging.Clone(img)
		return &PixelGrid{Height: h, Width: w, Channels: 4, Pix: nrgba.Pix}, nil
	default:
		nrgba := imaging.Clone(img)
		g := &PixelGrid{Height: h, Width: w, Channels: 3, Pix: make([]uint8, w*h*3)}
		for i := 0; i < w*h; i++ {
			copy(g.Pix[i*3:i*3+3], nrgba.Pix[i*4:i*4+3])
		}
		return g, nil
	}
}

// toNRGBA renders an RGB grid as an opaque image.
func toNRGBA(g *PixelGrid) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for i := 0; i < g.Width*g.Height; i++ {
		copy(img.Pix[i*4:i*4+3], g.Pix[i*3:i*3+3])
		img.Pix[i*4+3] = 255
	}
	return img
}

// Decode reads an encoded image, applying any EXIF orientation.
// Empty or undecodable input yields an InvalidImageError.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, invalidImage(err, "read image")
	}
	if len(data) == 0 {
		return nil, invalidImage(nil, "empty file")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, invalidImage(err, "decode image")
	}
	if img.Bounds().Empty() {
		return nil, invalidImage(nil, "image has no pixels")
	}
	return img, nil
}

// Open decodes the image stored at path.
func Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, invalidImage(err, "open %s", path)
	}
	defer func() {
		_ = f.Close()
	}()
	return Decode(f)
}
