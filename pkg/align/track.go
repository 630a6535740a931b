package align

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/abworrall/diffalign/pkg/emath"
)

const DefaultPrecision = 1.0 / 10.0

var ErrPrecision = errors.New("precision must be in (0, 1]")

// Centroid finds the 'centre of mass' of the image intensity, as a (row,
// col) position. NaN pixels weigh nothing. If there is no positive
// intensity to speak of, the geometric centre is returned.
func Centroid(fg *emath.FloatGrid) (emath.Shift, error) {
	w, h := fg.Dx(), fg.Dy()
	if w == 0 || h == 0 {
		return emath.Shift{}, fmt.Errorf("centroid of %s: %w", fg.Shape(), emath.ErrEmptyRegion)
	}

	rowSums, rowIdx := make([]float64, h), make([]float64, h)
	colSums, colIdx := make([]float64, w), make([]float64, w)
	total := 0.0
	for y := 0; y < h; y++ {
		rowIdx[y] = float64(y)
		for x := 0; x < w; x++ {
			v := fg.Get(x, y)
			if math.IsNaN(v) {
				continue
			}
			rowSums[y] += v
			colSums[x] += v
			total += v
		}
	}
	for x := 0; x < w; x++ {
		colIdx[x] = float64(x)
	}

	if !(total > 0) || math.IsInf(total, 0) {
		return emath.Shift{Row: float64(h-1) / 2, Col: float64(w-1) / 2}, nil
	}

	return emath.Shift{
		Row: stat.Mean(rowIdx, rowSums),
		Col: stat.Mean(colIdx, colSums),
	}, nil
}

// ITrackPeak follows a single peak through a sequence of images. Each image
// is cropped to rows x cols, and the displacement of the crop's centroid
// from the first image's centroid is yielded, rounded to the nearest
// multiple of precision. The first image always yields a zero shift.
func ITrackPeak(images iter.Seq[*emath.FloatGrid], rows, cols emath.Span, precision float64) iter.Seq2[emath.Shift, error] {
	return func(yield func(emath.Shift, error) bool) {
		if !(precision > 0 && precision <= 1) {
			yield(emath.Shift{}, fmt.Errorf("%v: %w", precision, ErrPrecision))
			return
		}

		var first *emath.Shift
		n := 0
		for img := range images {
			c, err := Centroid(img.Crop(rows, cols))
			if err != nil {
				yield(emath.Shift{}, fmt.Errorf("image %d, rows %s cols %s: %w", n, rows, cols, err))
				return
			}
			n++

			if first == nil {
				first = &c
				if !yield(emath.Shift{}, nil) {
					return
				}
				continue
			}

			if !yield(c.Sub(*first).Round(precision), nil) {
				return
			}
		}
	}
}
