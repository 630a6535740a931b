package align

import (
	"iter"

	"github.com/abworrall/diffalign/pkg/emath"
	"github.com/abworrall/diffalign/pkg/register"
)

// Align registers image against reference, and returns a copy of image
// shifted into line with it. Pixels uncovered by the shift are set to
// fillValue.
func Align(image, reference *emath.FloatGrid, mask *emath.Mask, fillValue float64, opts ...register.Option) (*emath.FloatGrid, error) {
	shift, err := register.DiffRegister(image, reference, mask, opts...)
	if err != nil {
		return nil, err
	}
	return ShiftImage(image, shift, fillValue), nil
}

// IAlign aligns each image of the sequence against reference, one at a time
// as the result is ranged over. With a nil reference, the first image
// becomes the reference for all the others, and comes out as it went in.
//
// The reference never changes, so errors don't accumulate along the
// sequence. The sequence stops after the first error.
func IAlign(images iter.Seq[*emath.FloatGrid], reference *emath.FloatGrid, mask *emath.Mask, fillValue float64, opts ...register.Option) iter.Seq2[*emath.FloatGrid, error] {
	return func(yield func(*emath.FloatGrid, error) bool) {
		ref := reference
		for img := range images {
			if ref == nil {
				ref = img.Copy()
				if !yield(img.Copy(), nil) {
					return
				}
				continue
			}

			aligned, err := Align(img, ref, mask, fillValue, opts...)
			if !yield(aligned, err) || err != nil {
				return
			}
		}
	}
}
