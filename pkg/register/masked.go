package register

import (
	"errors"
	"fmt"
	"math"

	"github.com/abworrall/diffalign/pkg/emath"
	"github.com/abworrall/diffalign/pkg/fft2d"
)

// Masked normalized cross-correlation, from D. Padfield, "Masked Object
// Registration in the Fourier Domain", IEEE Trans. Image Processing 21(5),
// 2012. All the sums over "pixels valid in both images at this offset" are
// done as FFT correlations of masked images against masks.

const DefaultOverlapRatio = 3.0 / 10.0

var ErrOverlapRatio = errors.New("overlap ratio must be in (0, 1]")

const eps = 2.220446049250313e-16 // float64 machine epsilon

// maskedSurface holds the correlation over every candidate offset of moving
// against fixed. Index (x, y) of each grid is the offset
// (y - RowOrigin, x - ColOrigin).
type maskedSurface struct {
	Corr      *emath.FloatGrid // normalized, clipped to [-1, 1], no overlap filtering
	Overlap   *emath.FloatGrid // number of pixels valid in both images
	RowOrigin int
	ColOrigin int
}

func checkOverlapRatio(r float64) error {
	if !(r > 0 && r <= 1) {
		return fmt.Errorf("%v: %w", r, ErrOverlapRatio)
	}
	return nil
}

func correlateMasked(fixed, moving *emath.FloatGrid, fixedMask, movingMask *emath.Mask) (*maskedSurface, error) {
	if err := emath.CheckMask(fixed, fixedMask); err != nil {
		return nil, fmt.Errorf("fixed: %w", err)
	}
	if err := emath.CheckMask(moving, movingMask); err != nil {
		return nil, fmt.Errorf("moving: %w", err)
	}
	if fixed.Len() == 0 || moving.Len() == 0 {
		return nil, fmt.Errorf("fixed %s, moving %s: %w", fixed.Shape(), moving.Shape(), emath.ErrEmptyRegion)
	}
	if fixedMask == nil {
		fixedMask = emath.NewMask(fixed.Dx(), fixed.Dy())
	}
	if movingMask == nil {
		movingMask = emath.NewMask(moving.Dx(), moving.Dy())
	}

	// Every offset where the images touch; anything bigger than this and the
	// circular correlation would wrap around onto itself.
	outRows := fixed.Dy() + moving.Dy() - 1
	outCols := fixed.Dx() + moving.Dx() - 1
	rows, cols := fft2d.FastLen(outRows), fft2d.FastLen(outCols)
	p := fft2d.NewPlan(rows, cols)

	// Invalid pixels are zeroed on the way into the (padded) FFT buffers, so
	// the callers' grids are only ever read.
	maskedBy := func(m *emath.Mask, squared bool) func(x, y int, v float64) float64 {
		return func(x, y int, v float64) float64 {
			if !m.Get(x, y) {
				return 0
			} else if squared {
				return v * v
			}
			return v
		}
	}

	fixedFFT := p.Forward(fft2d.FromReal(fixed, rows, cols, maskedBy(fixedMask, false)))
	fixedSqFFT := p.Forward(fft2d.FromReal(fixed, rows, cols, maskedBy(fixedMask, true)))
	fixedMaskFFT := p.Forward(fft2d.FromReal(fixedMask.Weights(), rows, cols, nil))
	movingFFT := p.Forward(fft2d.FromReal(moving, rows, cols, maskedBy(movingMask, false)))
	movingSqFFT := p.Forward(fft2d.FromReal(moving, rows, cols, maskedBy(movingMask, true)))
	movingMaskFFT := p.Forward(fft2d.FromReal(movingMask.Weights(), rows, cols, nil))

	// xcorr(a, b)[s] = sum_x a[x+s] * b[x]
	xcorr := func(a, b *fft2d.CGrid) *emath.FloatGrid {
		return p.Inverse(fft2d.MulConj(a, b)).Real()
	}

	overlap := xcorr(fixedMaskFFT, movingMaskFFT)
	fixedSum := xcorr(fixedFFT, movingMaskFFT)    // fixed, summed over the overlap
	movingSum := xcorr(fixedMaskFFT, movingFFT)   // moving, summed over the overlap
	product := xcorr(fixedFFT, movingFFT)
	fixedSqSum := xcorr(fixedSqFFT, movingMaskFFT)
	movingSqSum := xcorr(fixedMaskFFT, movingSqFFT)

	surf := &maskedSurface{
		Corr:      emath.NewFloatGrid(outCols, outRows),
		Overlap:   emath.NewFloatGrid(outCols, outRows),
		RowOrigin: moving.Dy() - 1,
		ColOrigin: moving.Dx() - 1,
	}
	numerator := emath.NewFloatGrid(outCols, outRows)
	denom := emath.NewFloatGrid(outCols, outRows)
	maxDenom := 0.0

	for y := 0; y < outRows; y++ {
		py := wrap(y-surf.RowOrigin, rows)
		for x := 0; x < outCols; x++ {
			px := wrap(x-surf.ColOrigin, cols)

			n := math.Max(math.Round(overlap.Get(px, py)), eps)
			fs, ms := fixedSum.Get(px, py), movingSum.Get(px, py)

			num := product.Get(px, py) - fs*ms/n
			fd := math.Max(fixedSqSum.Get(px, py)-fs*fs/n, 0)
			md := math.Max(movingSqSum.Get(px, py)-ms*ms/n, 0)
			d := math.Sqrt(fd * md)

			surf.Overlap.Set(x, y, n)
			numerator.Set(x, y, num)
			denom.Set(x, y, d)
			maxDenom = math.Max(maxDenom, d)
		}
	}

	// Tiny denominators would blow the ratio up; call those offsets uncorrelated.
	tol := 1e3 * eps * maxDenom
	for y := 0; y < outRows; y++ {
		for x := 0; x < outCols; x++ {
			if d := denom.Get(x, y); d > tol {
				surf.Corr.Set(x, y, math.Max(-1, math.Min(1, numerator.Get(x, y)/d)))
			}
		}
	}

	return surf, nil
}

// threshold is the overlap an offset needs to be trusted.
func (s *maskedSurface) threshold(overlapRatio float64) float64 {
	return math.Max(overlapRatio*s.Overlap.Max(), 1)
}

func (s *maskedSurface) trusted(x, y int, thresh float64) bool {
	return s.Overlap.Get(x, y) >= thresh
}

// peak finds the offset with the highest correlation, considering only
// offsets accepted by keep. Ties go to the offset closest to zero.
func (s *maskedSurface) peak(keep func(x, y int) bool) (emath.Shift, bool) {
	found := false
	best, bestDist := math.Inf(-1), math.Inf(1)
	shift := emath.Shift{}

	for y := 0; y < s.Corr.Dy(); y++ {
		for x := 0; x < s.Corr.Dx(); x++ {
			if keep != nil && !keep(x, y) {
				continue
			}
			v := s.Corr.Get(x, y)
			cand := emath.Shift{Row: float64(y - s.RowOrigin), Col: float64(x - s.ColOrigin)}
			dist := cand.Row*cand.Row + cand.Col*cand.Col
			if v > best || (v == best && dist < bestDist) {
				best, bestDist, shift, found = v, dist, cand, true
			}
		}
	}
	return shift, found
}

// CrossCorrelateMasked returns the masked normalized cross-correlation of
// moving against fixed, over every offset at which the two overlap. The
// result is (Hf+Hm-1) rows by (Wf+Wm-1) columns; the value for a shift of
// (row, col) is at x = col + Wm - 1, y = row + Hm - 1. Offsets supported by
// fewer than overlapRatio times the largest overlap are set to zero.
//
// A nil fixedMask means every fixed pixel is valid; a nil movingMask means
// the same as fixedMask if the images have the same shape, else all valid.
func CrossCorrelateMasked(fixed, moving *emath.FloatGrid, fixedMask, movingMask *emath.Mask, overlapRatio float64) (*emath.FloatGrid, error) {
	if err := checkOverlapRatio(overlapRatio); err != nil {
		return nil, err
	}
	movingMask = defaultMovingMask(moving, fixedMask, movingMask)

	surf, err := correlateMasked(fixed, moving, fixedMask, movingMask)
	if err != nil {
		return nil, err
	}

	out := surf.Corr.Copy()
	thresh := surf.threshold(overlapRatio)
	for y := 0; y < out.Dy(); y++ {
		for x := 0; x < out.Dx(); x++ {
			if !surf.trusted(x, y, thresh) {
				out.Set(x, y, 0)
			}
		}
	}
	return out, nil
}

// MaskedRegisterTranslation finds the whole-pixel shift that, applied to
// moving, best lines it up with fixed, looking only at pixels that are
// valid in both masks. Candidate shifts where the valid pixels overlap less
// than overlapRatio times the best possible overlap are not considered; if
// that rules out everything, the best unfiltered candidate is used.
//
// movingMask defaults to fixedMask when nil.
func MaskedRegisterTranslation(fixed, moving *emath.FloatGrid, fixedMask, movingMask *emath.Mask, overlapRatio float64) (emath.Shift, error) {
	if err := checkOverlapRatio(overlapRatio); err != nil {
		return emath.Shift{}, err
	}
	movingMask = defaultMovingMask(moving, fixedMask, movingMask)

	surf, err := correlateMasked(fixed, moving, fixedMask, movingMask)
	if err != nil {
		return emath.Shift{}, err
	}

	thresh := surf.threshold(overlapRatio)
	if shift, ok := surf.peak(func(x, y int) bool { return surf.trusted(x, y, thresh) }); ok {
		return shift, nil
	}

	shift, _ := surf.peak(nil)
	return shift, nil
}

func defaultMovingMask(moving *emath.FloatGrid, fixedMask, movingMask *emath.Mask) *emath.Mask {
	if movingMask == nil && fixedMask != nil && fixedMask.Fits(moving) {
		return fixedMask
	}
	return movingMask
}

// wrap maps a signed offset onto a circular buffer of length n.
func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
