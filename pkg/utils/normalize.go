// Package utils holds image helpers for avatar uploads.
package utils

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"

	"github.com/juju/errors"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// NormalizeToJPG decodes jpeg, png or webp input, applies its EXIF
// orientation, scales it down to maxWidth (if > 0) and re-encodes it as JPEG.
func NormalizeToJPG(input []byte, maxWidth int, quality int) ([]byte, error) {
	if len(input) == 0 {
		return nil, errors.NewNotValid(nil, "empty image")
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	img, format, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, errors.NewNotValid(err, "unsupported image format (need jpeg/png/webp)")
	}
	if format == "jpeg" {
		img = applyOrientation(img, readEXIFOrientation(input))
	}
	if maxWidth > 0 {
		img = resizeMaxWidth(img, maxWidth)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errors.Annotate(err, "encode jpeg")
	}
	return out.Bytes(), nil
}

func readEXIFOrientation(input []byte) int {
	x, err := exif.Decode(bytes.NewReader(input))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	ori, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return ori
}

// applyOrientation undoes EXIF orientation 2..8; anything else is returned
// unchanged. Orientations 5..8 swap width and height.
func applyOrientation(src image.Image, ori int) image.Image {
	if ori < 2 || ori > 8 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dw, dh := w, h
	if ori >= 5 {
		dw, dh = h, w
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch ori {
			case 2: // mirror
				dx, dy = w-1-x, y
			case 3: // 180
				dx, dy = w-1-x, h-1-y
			case 4: // flip
				dx, dy = x, h-1-y
			case 5: // transpose
				dx, dy = y, x
			case 6: // 90 cw
				dx, dy = h-1-y, x
			case 7: // transverse
				dx, dy = h-1-y, w-1-x
			case 8: // 90 ccw
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func resizeMaxWidth(src image.Image, maxW int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || w <= maxW {
		return src
	}

	newH := int(math.Round(float64(h) * float64(maxW) / float64(w)))
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
