// Package codec decodes and re-encodes the opaque pixel buffers the rest
// of imagecache moves around. The default codec is JPEG at a configurable
// quality: lossy, alpha-dropping, the same tradeoff a network-transfer
// compression layer makes for bandwidth rather than pixel-perfect storage.
package codec

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"

	_ "image/gif"  // register format for Decode sniffing
	_ "image/png"  // register format for Decode sniffing

	"github.com/bboehmke/imagecached/imagecache/cacheerr"
)

// DefaultQuality is applied when a caller does not override it: 80 on
// Go's 1-100 jpeg.Options scale.
const DefaultQuality = 80

// Image is the opaque decoded pixel buffer the cache tiers account for and
// move between memory and disk. It intentionally exposes no pixel-editing
// surface: resize/crop/blur/tint are out of scope here.
type Image struct {
	pix  image.Image
	cost int64
}

// Decode parses bytes into an Image. Zero-length or malformed input
// returns cacheerr.InvalidImageData.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, cacheerr.InvalidImageData("empty image data")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, cacheerr.InvalidImageData(err.Error())
	}
	return &Image{pix: img, cost: estimateCost(img)}, nil
}

// New wraps an already-decoded image.Image (used by tests and by any
// caller that decoded outside the cache, e.g. a prefetch warm path).
func New(img image.Image) *Image {
	return &Image{pix: img, cost: estimateCost(img)}
}

// ByteCost is the accounted memory footprint used by the memory tier
// for its cost-bounded eviction.
func (i *Image) ByteCost() int64 {
	if i == nil {
		return 0
	}
	return i.cost
}

// Raw returns the underlying image.Image for the consumer to convert to
// whatever displayable value its platform wants. The core never inspects
// pixels beyond accounting for their size.
func (i *Image) Raw() image.Image {
	if i == nil {
		return nil
	}
	return i.pix
}

// Encode re-encodes the image to JPEG bytes at the given quality
// (1-100). Alpha channels are flattened against opaque black, matching
// jpeg.Encode's own silent alpha drop — documented here rather than
// left implicit.
func (i *Image) Encode(quality int) ([]byte, error) {
	if i == nil || i.pix == nil {
		return nil, cacheerr.InvalidImageData("nil image")
	}
	if quality <= 0 {
		quality = DefaultQuality
	}
	src := i.pix
	if needsFlatten(src) {
		src = flatten(src)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return nil, cacheerr.Unknown(err)
	}
	return buf.Bytes(), nil
}

func needsFlatten(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA:
		return true
	default:
		return false
	}
}

// flatten composites img over opaque black into a new RGBA image, since
// jpeg.Encode can't carry an alpha channel.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.Black, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// estimateCost approximates the in-memory footprint of a decoded image:
// width * height * 4 bytes-per-pixel (RGBA), the same rough accounting
// UIKit/NSCache-backed image caches use for their "cost" parameter.
func estimateCost(img image.Image) int64 {
	b := img.Bounds()
	w := int64(b.Dx())
	h := int64(b.Dy())
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h * 4
}
