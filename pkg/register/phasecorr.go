package register

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"

	"github.com/abworrall/diffalign/pkg/emath"
	"github.com/abworrall/diffalign/pkg/fft2d"
)

// Sub-pixel cross-correlation registration, from M. Guizar-Sicairos et al,
// "Efficient subpixel image registration algorithms", Optics Letters 33,
// 156-158 (2008). The whole-pixel peak comes from an ordinary FFT
// cross-correlation; it is then refined by evaluating the DFT of the cross
// power spectrum on a small, finer grid around that peak, which is much
// cheaper than zero-padding the whole spectrum.

const DefaultUpsampleFactor = 10

var ErrUpsampleFactor = errors.New("upsample factor must be at least 1")

// RegisterTranslation estimates the shift that, applied to moving, lines it
// up with reference, to within 1/upsampleFactor of a pixel. The images must
// have the same shape; neither is modified.
func RegisterTranslation(reference, moving *emath.FloatGrid, upsampleFactor int) (emath.Shift, error) {
	if upsampleFactor < 1 {
		return emath.Shift{}, fmt.Errorf("%d: %w", upsampleFactor, ErrUpsampleFactor)
	}
	if !reference.SameShape(moving) {
		return emath.Shift{}, fmt.Errorf("reference %s, moving %s: %w", reference.Shape(), moving.Shape(), emath.ErrShapeMismatch)
	}
	if reference.Len() == 0 {
		return emath.Shift{}, fmt.Errorf("reference %s: %w", reference.Shape(), emath.ErrEmptyRegion)
	}

	rows, cols := reference.Dy(), reference.Dx()
	p := fft2d.NewPlan(rows, cols)
	product := fft2d.MulConj(
		p.Forward(fft2d.FromReal(reference, rows, cols, nil)),
		p.Forward(fft2d.FromReal(moving, rows, cols, nil)),
	)
	xc := p.Inverse(product)

	// Whole pixel peak
	best, bestIdx := -1.0, 0
	for i, v := range xc.Data {
		if a := cmplx.Abs(v); a > best {
			best, bestIdx = a, i
		}
	}
	shift := emath.Shift{
		Row: float64(pixelShift(bestIdx/cols, rows)),
		Col: float64(pixelShift(bestIdx%cols, cols)),
	}

	if upsampleFactor > 1 {
		shift = refine(product, shift, upsampleFactor)
	}

	// A single row (or column) has nothing to register along it.
	if rows == 1 {
		shift.Row = 0
	}
	if cols == 1 {
		shift.Col = 0
	}
	return shift, nil
}

// pixelShift turns a correlation index into a signed shift. Indices past the
// middle of the axis are negative shifts that wrapped around.
func pixelShift(idx, n int) int {
	if idx > n/2 {
		return idx - n
	}
	return idx
}

// refine searches a 1.5 pixel square around shift, in steps of 1/upsample,
// for the highest magnitude of the cross-correlation, and returns its
// location.
func refine(product *fft2d.CGrid, shift emath.Shift, upsample int) emath.Shift {
	u := float64(upsample)
	shift = emath.Shift{Row: math.Round(shift.Row*u) / u, Col: math.Round(shift.Col*u) / u}

	region := int(math.Ceil(u * 1.5))
	dftShift := region / 2

	// kernel[k][f] = exp(-2 pi i * p_k * freq(f) / n), where p_k is the
	// k'th sample position around center. cmplxs.Dot conjugates its first
	// argument, so dotting a kernel row with the spectrum gives the inverse
	// DFT evaluated at p_k.
	kernel := func(n int, center float64) [][]complex128 {
		k := make([][]complex128, region)
		for i := range k {
			pos := center + float64(i-dftShift)/u
			k[i] = make([]complex128, n)
			for f := 0; f < n; f++ {
				k[i][f] = cmplx.Exp(complex(0, -2*math.Pi*pos*float64(fft2d.Freq(f, n))/float64(n)))
			}
		}
		return k
	}
	rowKernel := kernel(product.Rows, shift.Row)
	colKernel := kernel(product.Cols, shift.Col)

	// Along the columns first: partial[c][r] for each sample c, spectrum row r.
	partial := make([][]complex128, region)
	for c := range partial {
		partial[c] = make([]complex128, product.Rows)
		for r := 0; r < product.Rows; r++ {
			partial[c][r] = cmplxs.Dot(colKernel[c], product.Data[r*product.Cols:(r+1)*product.Cols])
		}
	}

	best, bestR, bestC := -1.0, 0, 0
	for r := 0; r < region; r++ {
		for c := 0; c < region; c++ {
			if a := cmplx.Abs(cmplxs.Dot(rowKernel[r], partial[c])); a > best {
				best, bestR, bestC = a, r, c
			}
		}
	}

	return emath.Shift{
		Row: shift.Row + float64(bestR-dftShift)/u,
		Col: shift.Col + float64(bestC-dftShift)/u,
	}
}
