// Package align corrects translational drift in image series: it shifts
// images by sub-pixel amounts, aligns them against a reference (one at a
// time, or lazily over a sequence), and tracks a single bright peak by its
// center of mass.
package align

import (
	"math"

	"github.com/abworrall/diffalign/pkg/emath"
)

// ShiftImage returns a new image whose pixel (r, c) is the input sampled at
// (r - shift.Row, c - shift.Col), with bilinear interpolation. Samples that
// land outside the input get fillValue. Whole pixel shifts copy values
// exactly.
func ShiftImage(img *emath.FloatGrid, shift emath.Shift, fillValue float64) *emath.FloatGrid {
	out := img.NewFromThis()
	w, h := img.Dx(), img.Dy()

	if !shift.IsFinite() || math.Abs(shift.Row) >= float64(h) || math.Abs(shift.Col) >= float64(w) {
		out.Fill(fillValue)
		return out
	}

	src := emath.SourceOf(shift)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx, sy := src.Apply(float64(x), float64(y))
			out.Set(x, y, bilinear(img, sx, sy, fillValue))
		}
	}
	return out
}

// bilinear samples fg at a fractional location. Neighbours with zero weight
// are never read, so a sample that lands exactly on the last row or column
// is still inside.
func bilinear(fg *emath.FloatGrid, x, y, fillValue float64) float64 {
	if x < 0 || y < 0 || x > float64(fg.Dx()-1) || y > float64(fg.Dy()-1) {
		return fillValue
	}

	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)

	v := fg.Get(ix, iy) * (1 - fx) * (1 - fy)
	if fx > 0 {
		v += fg.Get(ix+1, iy) * fx * (1 - fy)
	}
	if fy > 0 {
		v += fg.Get(ix, iy+1) * (1 - fx) * fy
		if fx > 0 {
			v += fg.Get(ix+1, iy+1) * fx * fy
		}
	}
	return v
}
