package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"golang.org/x/image/draw"

	"github.com/spigell/interview-guard/internal/integrity"
)

// Thumbnail dimensions used for environment comparison.
const (
	ThumbnailWidth  = 32
	ThumbnailHeight = 24
)

// ChestRegion is the fixed crop sampled for clothing colour, as fractions of
// the frame size.
var ChestRegion = Region{X0: 0.35, Y0: 0.65, X1: 0.65, Y1: 0.9}

// Frame is one captured video frame.
type Frame struct {
	Image      image.Image
	Encoded    []byte
	CapturedAt time.Time
}

// Stable reports whether the frame has non-zero dimensions.
func (f *Frame) Stable() bool {
	if f == nil || f.Image == nil {
		return false
	}
	b := f.Image.Bounds()
	return b.Dx() > 0 && b.Dy() > 0
}

// JPEG returns the encoded frame, encoding it when the source did not.
func (f *Frame) JPEG() ([]byte, error) {
	if len(f.Encoded) > 0 {
		return f.Encoded, nil
	}
	if !f.Stable() {
		return nil, fmt.Errorf("%w: empty frame", integrity.ErrInvalidInput)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	f.Encoded = buf.Bytes()
	return f.Encoded, nil
}

// Thumbnail is a downsampled RGB frame.
type Thumbnail struct {
	Width  int
	Height int
	// Pix holds RGB triples, row-major.
	Pix []uint8
}

// Downsample scales the image to a small RGB thumbnail.
func Downsample(img image.Image, width, height int) *Thumbnail {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	pix := make([]uint8, 0, width*height*3)
	for i := 0; i < len(dst.Pix); i += 4 {
		pix = append(pix, dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2])
	}

	return &Thumbnail{Width: width, Height: height, Pix: pix}
}

// PixelDelta returns the mean per-pixel RGB difference between two thumbnails.
func PixelDelta(a, b *Thumbnail) (float64, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("%w: missing thumbnail", integrity.ErrInvalidInput)
	}
	if a.Width != b.Width || a.Height != b.Height || len(a.Pix) != len(b.Pix) {
		return 0, fmt.Errorf("%w: thumbnail sizes differ", integrity.ErrInvalidInput)
	}
	if len(a.Pix) == 0 {
		return 0, nil
	}

	var total float64
	for i := range a.Pix {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		total += float64(d)
	}

	pixels := float64(len(a.Pix) / 3)
	return total / 3 / pixels, nil
}

// Region is a rectangle expressed as fractions of the frame size.
type Region struct {
	X0, Y0, X1, Y1 float64
}

// RegionMean returns the mean colour of the region.
func RegionMean(img image.Image, r Region) integrity.Color {
	b := img.Bounds()
	x0 := b.Min.X + int(float64(b.Dx())*r.X0)
	x1 := b.Min.X + int(float64(b.Dx())*r.X1)
	y0 := b.Min.Y + int(float64(b.Dy())*r.Y0)
	y1 := b.Min.Y + int(float64(b.Dy())*r.Y1)

	var sr, sg, sb, n float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			sr += float64(cr >> 8)
			sg += float64(cg >> 8)
			sb += float64(cb >> 8)
			n++
		}
	}

	if n == 0 {
		return integrity.Color{}
	}
	return integrity.Color{R: sr / n, G: sg / n, B: sb / n}
}
