// Package diffio gets diffraction images in and out of files: TIFF and PNG
// (8 or 16 bit, gray or color), and Radiance HDR for float data.
package diffio

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"golang.org/x/image/tiff"

	"github.com/abworrall/diffalign/pkg/emath"
)

var ErrUnknownFormat = errors.New("unknown image format")

// IsImageFile is true for the file extensions ReadImage knows how to read.
func IsImageFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff", ".png", ".hdr":
		return true
	}
	return false
}

// ReadImage loads an image file as a grid of intensities. Gray images keep
// their raw pixel values (0-65535 for 16 bit, 0-255 for 8 bit); color images
// are reduced to luminance (CIE Y), scaled to 0-65535. HDR files give linear
// luminance, unscaled.
func ReadImage(filename string) (*emath.FloatGrid, error) {
	if !IsImageFile(filename) {
		return nil, fmt.Errorf("'%s': %w", filename, ErrUnknownFormat)
	}

	reader, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open+r '%s': %v", filename, err)
	}
	defer reader.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff":
		img, err = tiff.Decode(reader)
	case ".png":
		img, err = png.Decode(reader)
	case ".hdr":
		img, err = rgbe.Decode(reader)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding '%s': %v", filename, err)
	}

	return FromImage(img), nil
}

// FromImage converts any image into a grid of intensities, as per ReadImage.
func FromImage(img image.Image) *emath.FloatGrid {
	b := img.Bounds()
	fg := emath.NewFloatGrid(b.Dx(), b.Dy())
	lum := intensityOf(img)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			fg.Set(x-b.Min.X, y-b.Min.Y, lum(x, y))
		}
	}
	return fg
}

func intensityOf(img image.Image) func(x, y int) float64 {
	switch im := img.(type) {
	case *image.Gray16:
		return func(x, y int) float64 { return float64(im.Gray16At(x, y).Y) }
	case *image.Gray:
		return func(x, y int) float64 { return float64(im.GrayAt(x, y).Y) }
	case hdr.Image:
		return func(x, y int) float64 {
			r, g, b, _ := im.HDRAt(x, y).HDRRGBA()
			_, lum, _ := colorful.LinearRgbToXyz(r, g, b)
			return lum
		}
	}

	return func(x, y int) float64 {
		col, ok := colorful.MakeColor(img.At(x, y))
		if !ok {
			return 0 // fully transparent
		}
		_, lum, _ := col.Xyz()
		return lum * 0xFFFF
	}
}

// MaskFromNonZero treats zero (and NaN) pixels as unmeasured, the way
// masked registration test fixtures are drawn.
func MaskFromNonZero(fg *emath.FloatGrid) *emath.Mask {
	return emath.MaskWhere(fg, func(v float64) bool { return v != 0 && !math.IsNaN(v) })
}
