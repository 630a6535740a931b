// Package register estimates the translation between two images: by
// masked normalized cross-correlation when some pixels can't be trusted,
// and by upsampled cross-correlation (to a fraction of a pixel) when they
// all can.
package register

import (
	"fmt"

	"github.com/abworrall/diffalign/pkg/emath"
)

type Options struct {
	UpsampleFactor int     // sub-pixel resolution of unmasked registration, 1/n px
	OverlapRatio   float64 // of masked registration
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		UpsampleFactor: DefaultUpsampleFactor,
		OverlapRatio:   DefaultOverlapRatio,
	}
}

func WithUpsampleFactor(n int) Option    { return func(o *Options) { o.UpsampleFactor = n } }
func WithOverlapRatio(r float64) Option { return func(o *Options) { o.OverlapRatio = r } }

func NewOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DiffRegister returns the shift that, applied to image with
// align.ShiftImage, lines it up with reference.
//
// Without a mask the images must be the same shape, and the shift has sub
// pixel precision. With a mask, the mask applies to both images (think beam
// block: invalid in every exposure) and the shift is in whole pixels.
func DiffRegister(image, reference *emath.FloatGrid, mask *emath.Mask, opts ...Option) (emath.Shift, error) {
	o := NewOptions(opts...)

	if mask == nil {
		return RegisterTranslation(reference, image, o.UpsampleFactor)
	}

	if err := emath.CheckMask(reference, mask); err != nil {
		return emath.Shift{}, fmt.Errorf("reference: %w", err)
	}
	if err := emath.CheckMask(image, mask); err != nil {
		return emath.Shift{}, fmt.Errorf("image: %w", err)
	}
	return MaskedRegisterTranslation(reference, image, mask, mask, o.OverlapRatio)
}
