package codec_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bboehmke/imagecached/imagecache/codec"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestDecode_Empty(t *testing.T) {
	_, err := codec.Decode(nil)
	assert.Error(t, err)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := codec.Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestDecodeEncode_RoundTrip(t *testing.T) {
	data := jpegBytes(t, 16, 8)

	img, err := codec.Decode(data)
	require.NoError(t, err)
	assert.EqualValues(t, 16*8*4, img.ByteCost())

	out, err := img.Encode(80)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	// re-decode to confirm the bytes are a valid JPEG of the same size
	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 16, decoded.Bounds().Dx())
	assert.Equal(t, 8, decoded.Bounds().Dy())
}

func TestEncode_DefaultsQualityWhenZero(t *testing.T) {
	img := codec.New(image.NewRGBA(image.Rect(0, 0, 4, 4)))
	out, err := img.Encode(0)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestEncode_FlattensAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	src.Set(0, 0, color.NRGBA{R: 255, A: 0})
	img := codec.New(src)
	out, err := img.Encode(90)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestNilImage_SafeAccessors(t *testing.T) {
	var img *codec.Image
	assert.Zero(t, img.ByteCost())
	assert.Nil(t, img.Raw())
	_, err := img.Encode(80)
	assert.Error(t, err)
}
