// Package pageimage decodes and encodes the raster images handed over by
// scanner backends.
package pageimage

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

const DefaultQuality = 90

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Supported reports whether a file name has an extension Decode understands.
func Supported(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Decode reads a JPEG, PNG, BMP or TIFF image.
func Decode(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	log.Debugf("decoded %s image %v", format, img.Bounds())
	return img, nil
}

// EncodeJPEG encodes img with the given quality. Values outside 1..100
// fall back to DefaultQuality.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// JPEGBytes is EncodeJPEG into a fresh buffer.
func JPEGBytes(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := EncodeJPEG(buf, img, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Thumbnail scales img down so that its width is at most maxWidth,
// keeping the aspect ratio. Images that are already small enough are
// returned unchanged.
func Thumbnail(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
