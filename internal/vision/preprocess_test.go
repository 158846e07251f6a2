package vision

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uniformNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestDecodePayload(t *testing.T) {
	raw := []byte("retina fundus bytes")
	padded := base64.StdEncoding.EncodeToString(raw)
	unpadded := base64.RawStdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		payload string
		want    []byte
		wantErr bool
	}{
		{name: "bare base64", payload: padded, want: raw},
		{name: "data uri prefix", payload: "data:image/png;base64," + padded, want: raw},
		{name: "unpadded", payload: unpadded, want: raw},
		{name: "line-wrapped", payload: padded[:8] + "\n" + padded[8:], want: raw},
		{name: "malformed", payload: "data:image/png;base64,@@not base64@@", wantErr: true},
		{name: "empty", payload: "", wantErr: true},
		{name: "empty after prefix", payload: "data:image/jpeg;base64,", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload(tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDecode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeImage_NotAnImage(t *testing.T) {
	_, _, err := DecodeImage([]byte("definitely not an image"), DefaultMaxImagePixels)
	assert.ErrorIs(t, err, ErrImageFormat)
}

func TestDecodeImage_Formats(t *testing.T) {
	src := uniformNRGBA(16, 9, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	img, format, err := DecodeImage(encodePNG(t, src), DefaultMaxImagePixels)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 16, img.Bounds().Dx())

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))
	_, format, err = DecodeImage(buf.Bytes(), DefaultMaxImagePixels)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

// pngHeader returns a grayscale PNG consisting only of a signature and an
// IHDR chunk declaring w x h pixels.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 4+13)
	copy(ihdr, "IHDR")
	binary.BigEndian.PutUint32(ihdr[4:8], w)
	binary.BigEndian.PutUint32(ihdr[8:12], h)
	ihdr[12] = 8 // bit depth; colour type, compression, filter, interlace stay 0

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(ihdr)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr))
	return buf.Bytes()
}

func TestDecodeImage_PixelLimit(t *testing.T) {
	small := encodePNG(t, uniformNRGBA(10, 10, color.NRGBA{A: 255}))

	tests := []struct {
		name      string
		data      []byte
		maxPixels int64
		wantErr   bool
	}{
		{name: "huge declared size", data: pngHeader(20000, 20000), maxPixels: DefaultMaxImagePixels, wantErr: true},
		{name: "wide strip over limit", data: pngHeader(1<<20, 100), maxPixels: DefaultMaxImagePixels, wantErr: true},
		{name: "exactly at limit", data: small, maxPixels: 100},
		{name: "one pixel over limit", data: small, maxPixels: 99, wantErr: true},
		{name: "limit disabled", data: small, maxPixels: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, _, err := DecodeImage(tt.data, tt.maxPixels)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrImageFormat)
				assert.Contains(t, err.Error(), "exceeds limit")
				assert.Nil(t, img)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 10, img.Bounds().Dx())
		})
	}
}

func TestPreprocess_ShapeAndRange(t *testing.T) {
	palette := color.Palette{color.Black, color.White, color.RGBA{R: 255, A: 255}}
	paletted := image.NewPaletted(image.Rect(0, 0, 33, 17), palette)
	for i := range paletted.Pix {
		paletted.Pix[i] = uint8(i % len(palette))
	}

	gray := image.NewGray(image.Rect(0, 0, 300, 50))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i)
	}

	alpha := uniformNRGBA(64, 480, color.NRGBA{R: 255, G: 0, B: 128, A: 40})

	rgba := image.NewRGBA(image.Rect(5, 5, 1030, 700))
	for i := range rgba.Pix {
		rgba.Pix[i] = 0xff
	}

	tests := []struct {
		name string
		img  image.Image
	}{
		{name: "paletted", img: paletted},
		{name: "grayscale wide", img: gray},
		{name: "alpha tall", img: alpha},
		{name: "rgba large offset bounds", img: rgba},
		{name: "single pixel", img: uniformNRGBA(1, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 255})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tensor := Preprocess(tt.img)

			assert.Equal(t, [4]int64{1, 224, 224, 3}, tensor.Shape)
			require.Len(t, tensor.Data, 224*224*3)
			for i, v := range tensor.Data {
				if v < 0 || v > 1 {
					t.Fatalf("value %f at %d outside [0, 1]", v, i)
				}
			}
		})
	}
}

func TestPreprocess_DropsAlphaWithoutCompositing(t *testing.T) {
	img := uniformNRGBA(50, 80, color.NRGBA{R: 200, G: 100, B: 50, A: 0})

	tensor := Preprocess(img)

	const eps = 1.0 / 255
	for _, px := range [][2]int{{0, 0}, {111, 57}, {223, 223}} {
		i := (px[1]*InputWidth + px[0]) * InputChannels
		assert.InDelta(t, 200.0/255, tensor.Data[i], eps)
		assert.InDelta(t, 100.0/255, tensor.Data[i+1], eps)
		assert.InDelta(t, 50.0/255, tensor.Data[i+2], eps)
	}
}

func TestPreprocess_GrayscaleReplicatedToRGB(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 40, 40))
	for i := range img.Pix {
		img.Pix[i] = 128
	}

	tensor := Preprocess(img)

	const eps = 1.0 / 255
	for i := 0; i < len(tensor.Data); i += 3 {
		assert.InDelta(t, 128.0/255, tensor.Data[i], eps)
		assert.Equal(t, tensor.Data[i], tensor.Data[i+1])
		assert.Equal(t, tensor.Data[i], tensor.Data[i+2])
	}
}

func TestPreprocess_FromDataURI(t *testing.T) {
	src := uniformNRGBA(500, 375, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(encodePNG(t, src))

	data, err := DecodePayload(payload)
	require.NoError(t, err)
	img, _, err := DecodeImage(data, DefaultMaxImagePixels)
	require.NoError(t, err)

	tensor := Preprocess(img)
	assert.InDelta(t, 1.0, tensor.Data[0], 1e-6)
	assert.InDelta(t, 1.0, tensor.Data[len(tensor.Data)-1], 1e-6)
}
