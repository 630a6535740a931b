package align

import (
	"fmt"
	"math"

	"github.com/abworrall/diffalign/pkg/emath"
)

// A Residual says how well an aligned image matches its reference.
type Residual struct {
	MeanAbsDiff float64
	Compared    float64 // fraction of pixels that were comparable

	Diff *emath.FloatGrid // |aligned - reference|, NaN where not compared
}

func (r Residual) String() string {
	return fmt.Sprintf("resid[%.1f%% comparable; err=%.4g]", 100*r.Compared, r.MeanAbsDiff)
}

// CompareAligned works out the per-pixel absolute difference between an
// aligned image and its reference. Pixels are skipped if the mask marks
// them invalid, or if either value is NaN (e.g. fill from ShiftImage), so
// only the overlap that both images have real data for gets compared.
//
// The lower the MeanAbsDiff, the better the alignment; it's zero if
// nothing could be compared.
func CompareAligned(aligned, reference *emath.FloatGrid, mask *emath.Mask) (Residual, error) {
	if !aligned.SameShape(reference) {
		return Residual{}, fmt.Errorf("compare %s with %s: %w", aligned.Shape(), reference.Shape(), emath.ErrShapeMismatch)
	}
	if mask != nil {
		if err := emath.CheckMask(reference, mask); err != nil {
			return Residual{}, err
		}
	}

	diff := reference.NewFromThis()
	totErr, nErr := 0.0, 0
	for y := 0; y < reference.Dy(); y++ {
		for x := 0; x < reference.Dx(); x++ {
			a, b := aligned.Get(x, y), reference.Get(x, y)
			if (mask != nil && !mask.Get(x, y)) || math.IsNaN(a) || math.IsNaN(b) {
				diff.Set(x, y, math.NaN())
				continue
			}
			pixErr := math.Abs(a - b)
			diff.Set(x, y, pixErr)
			totErr += pixErr
			nErr++
		}
	}

	r := Residual{Diff: diff, Compared: float64(nErr) / float64(reference.Len())}
	if nErr > 0 {
		r.MeanAbsDiff = totErr / float64(nErr)
	}
	return r, nil
}
