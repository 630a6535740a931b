package diffio

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
	"golang.org/x/image/tiff"

	"github.com/abworrall/diffalign/pkg/emath"
)

// Write saves the grid in the format its file extension asks for: .tif,
// .tiff or .hdr.
func Write(fg *emath.FloatGrid, filename string) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff":
		return WriteTIFF(fg, filename)
	case ".hdr":
		return WriteHDR(fg, filename)
	}
	return fmt.Errorf("write '%s': %w", filename, ErrUnknownFormat)
}

// WriteTIFF saves a 16 bit grayscale TIFF. Values are rounded and clipped
// to 0-65535; NaNs are written as zero.
func WriteTIFF(fg *emath.FloatGrid, filename string) error {
	img := image.NewGray16(fg.Bounds())
	for y := 0; y < fg.Dy(); y++ {
		for x := 0; x < fg.Dx(); x++ {
			img.SetGray16(x, y, color.Gray16{toU16(fg.Get(x, y))})
		}
	}

	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	}
	defer writer.Close()

	if err := tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("tiff encoding '%s': %v", filename, err)
	}
	return writer.Close()
}

func toU16(v float64) uint16 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 0xFFFF:
		return 0xFFFF
	}
	return uint16(math.Round(v))
}

// WriteHDR outputs a Radiance RGBE file, with the grid values as gray. You
// can load this into photoshop or other HDR tools. RGBE keeps about three
// significant figures; negative values and NaNs are written as zero.
func WriteHDR(fg *emath.FloatGrid, filename string) error {
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	}
	defer writer.Close()

	if err := rgbe.Encode(writer, hdrGrid{fg}); err != nil {
		return fmt.Errorf("encoding RGBE file '%s': %v", filename, err)
	}
	return writer.Close()
}

// hdrGrid presents a grid as an hdr.Image
type hdrGrid struct {
	*emath.FloatGrid
}

// Implement golang's image.Image interface
func (g hdrGrid) ColorModel() color.Model { return hdrcolor.RGBModel }
func (g hdrGrid) At(x, y int) color.Color { return g.HDRAt(x, y) }

// Implement hdr.Image interface
func (g hdrGrid) Size() int { return g.Dx() * g.Dy() }

func (g hdrGrid) HDRAt(x, y int) hdrcolor.Color {
	v := g.Get(x, y)
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	return hdrcolor.RGB{v, v, v}
}
