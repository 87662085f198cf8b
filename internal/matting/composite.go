package matting

import (
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/Brownie44l1/modnet-matting/internal/resample"
)

type backgroundKind int

const (
	transparentBackground backgroundKind = iota
	colorBackground
	imageBackground
)

// Background is what replaces pixels whose matte value does not clear the
// threshold. The zero value is fully transparent.
type Background struct {
	kind  backgroundKind
	color color.NRGBA
	image image.Image
}

// Transparent returns the default, fully transparent background.
func Transparent() Background { return Background{} }

// SolidColor fills the background with c.
func SolidColor(c color.Color) Background {
	return Background{kind: colorBackground, color: color.NRGBAModel.Convert(c).(color.NRGBA)}
}

// ImageBackground uses img, which must match the source dimensions.
func ImageBackground(img image.Image) Background {
	return Background{kind: imageBackground, image: img}
}

// FitImageBackground scales img to width x height before using it.
func FitImageBackground(img image.Image, width, height int) (Background, error) {
	fitted, err := resample.Fit(img, width, height)
	if err != nil {
		return Background{}, invalidImage(err, "fit background")
	}
	return ImageBackground(fitted), nil
}

func (b Background) String() string {
	switch b.kind {
	case colorBackground:
		return "color"
	case imageBackground:
		return "image"
	default:
		return "transparent"
	}
}

func (b Background) render(width, height int) (*image.NRGBA, error) {
	switch b.kind {
	case colorBackground:
		return imaging.New(width, height, b.color), nil
	case imageBackground:
		if b.image == nil {
			return nil, invalidImage(nil, "background image is nil")
		}
		if bw, bh := b.image.Bounds().Dx(), b.image.Bounds().Dy(); bw != width || bh != height {
			return nil, invalidImage(nil, "background is %dx%d, source is %dx%d", bw, bh, width, height)
		}
		return imaging.Clone(b.image), nil
	default:
		return image.NewNRGBA(image.Rect(0, 0, width, height)), nil
	}
}

// ParseHexColor parses #rgb, #rrggbb or #rrggbbaa.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, invalidImage(nil, "bad colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, invalidImage(err, "bad colour %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// refine brings the matte back to width x height as 8-bit values.
func refine(matte *Matte, width, height int) (*image.Gray, error) {
	if err := matte.validate(); err != nil {
		return nil, err
	}
	resized, err := resample.Resize(matte.Gray(), width, height)
	if err != nil {
		return nil, invalidGeometry(height, width, "%v", err)
	}
	g := image.NewGray(image.Rect(0, 0, width, height))
	for i := range g.Pix {
		g.Pix[i] = resized.Pix[i*4]
	}
	return g, nil
}

// CompositeForeground keeps every source pixel whose matte value is
// strictly greater than threshold, fully opaque, and takes the background
// pixel everywhere else.
func CompositeForeground(matte *Matte, source *PixelGrid, threshold int, bg Background) (*image.NRGBA, error) {
	rgb, err := Coerce3(source)
	if err != nil {
		return nil, err
	}
	w, h := rgb.Width, rgb.Height

	mask, err := refine(matte, w, h)
	if err != nil {
		return nil, err
	}
	out, err := bg.render(w, h)
	if err != nil {
		return nil, err
	}

	for i, m := range mask.Pix {
		if int(m) > threshold {
			copy(out.Pix[i*4:i*4+3], rgb.Pix[i*3:i*3+3])
			out.Pix[i*4+3] = 255
		}
	}
	return out, nil
}
