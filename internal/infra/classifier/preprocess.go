package classifier

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/bryanwahyu/healthwave/internal/domain/failures"
)

// InputSize is the square edge the trained models expect.
const InputSize = 128

// DefaultMaxEdge bounds the width and height of an upload before it is
// decoded into memory.
const DefaultMaxEdge = 4096

// Tensor is one image in height × width × RGB layout, values in [0,1].
type Tensor [][][3]float32

// Preprocess decodes an image, forces 3-channel RGB, stretches it to
// InputSize×InputSize (aspect ratio is not preserved, matching how the
// models were trained) and scales channels by 1/255. Images wider or taller
// than maxEdge pixels are rejected from their header alone.
func Preprocess(data []byte, maxEdge int) (Tensor, error) {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", failures.ErrInvalidInput, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxEdge || cfg.Height > maxEdge {
		return nil, fmt.Errorf("%w: image is %dx%d, limit is %dx%d",
			failures.ErrInvalidInput, cfg.Width, cfg.Height, maxEdge, maxEdge)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", failures.ErrInvalidInput, err)
	}

	rgb := toOpaqueRGB(src)
	dst := image.NewNRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), rgb, rgb.Bounds(), draw.Src, nil)

	t := make(Tensor, InputSize)
	for y := 0; y < InputSize; y++ {
		row := make([][3]float32, InputSize)
		for x := 0; x < InputSize; x++ {
			c := dst.NRGBAAt(x, y)
			row[x] = [3]float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255}
		}
		t[y] = row
	}
	return t, nil
}

// toOpaqueRGB drops alpha without blending, the way an RGB conversion
// keeps the raw colour channels. Grayscale is replicated to all three.
func toOpaqueRGB(src image.Image) *image.NRGBA {
	b := src.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			c.A = 0xff
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}
