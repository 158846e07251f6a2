package vision

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"unicode"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Model input geometry (NHWC).
const (
	InputHeight   = 224
	InputWidth    = 224
	InputChannels = 3
)

// DefaultMaxImagePixels matches Pillow's decompression-bomb threshold.
const DefaultMaxImagePixels int64 = 89478485

var (
	ErrDecode      = errors.New("invalid base64 image payload")
	ErrImageFormat = errors.New("cannot identify image data")
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape [4]int64
	Data  []float32
}

// DecodePayload strips an optional data-URI header (everything up to the
// first comma) and base64-decodes the rest. Padded and unpadded input are both
// accepted; whitespace is ignored.
func DecodePayload(payload string) ([]byte, error) {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	payload = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	enc := base64.StdEncoding
	if len(payload)%4 != 0 && !strings.HasSuffix(payload, "=") {
		enc = base64.RawStdEncoding
	}
	data, err := enc.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	return data, nil
}

// DecodeImage decodes JPEG, PNG, GIF, BMP, TIFF or WebP bytes and returns the
// image with its format name. Images whose header declares more than
// maxPixels pixels are rejected before the raster is allocated; maxPixels <= 0
// disables the check.
func DecodeImage(data []byte, maxPixels int64) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrImageFormat, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); maxPixels > 0 && pixels > maxPixels {
		return nil, "", fmt.Errorf("%w: image size %dx%d exceeds limit of %d pixels",
			ErrImageFormat, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrImageFormat, err)
	}
	if img.Bounds().Empty() {
		return nil, "", fmt.Errorf("%w: image has no pixels", ErrImageFormat)
	}
	return img, format, nil
}

// Preprocess converts img to RGB, stretches it to 224x224 and scales channel
// values to [0, 1]. The result always has shape (1, 224, 224, 3).
func Preprocess(img image.Image) *Tensor {
	dst := image.NewRGBA(image.Rect(0, 0, InputWidth, InputHeight))
	src := toRGB(img)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]float32, InputHeight*InputWidth*InputChannels)
	for y := 0; y < InputHeight; y++ {
		for x := 0; x < InputWidth; x++ {
			c := dst.RGBAAt(x, y)
			i := (y*InputWidth + x) * InputChannels
			out[i] = float32(c.R) / 255.0
			out[i+1] = float32(c.G) / 255.0
			out[i+2] = float32(c.B) / 255.0
		}
	}

	return &Tensor{
		Shape: [4]int64{1, InputHeight, InputWidth, InputChannels},
		Data:  out,
	}
}

// toRGB drops the alpha channel, keeping straight (non-premultiplied) colour
// values. Opaque sources are returned unchanged.
func toRGB(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}

	b := img.Bounds()
	rgb := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			rgb.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return rgb
}
