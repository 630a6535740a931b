//go:build property
// +build property

package align

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/abworrall/diffalign/pkg/emath"
)

func TestShiftImageProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("zero shift is the identity", prop.ForAll(
		func(w, h int, seed int64) bool {
			arr := randomGrid(w, h, seed)
			out := ShiftImage(arr, emath.Shift{}, math.NaN())
			for i, v := range out.Values() {
				if v != arr.Values()[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 32),
		gen.IntRange(1, 32),
		gen.Int64(),
	))

	properties.Property("whole pixel shifts undo on the interior", prop.ForAll(
		func(w, h, dy, dx int, seed int64) bool {
			arr := randomGrid(w, h, seed)
			s := emath.Shift{Row: float64(dy), Col: float64(dx)}
			back := ShiftImage(ShiftImage(arr, s, -1), s.Neg(), -1)

			for y := 5; y < h-5; y++ {
				for x := 5; x < w-5; x++ {
					if back.Get(x, y) != arr.Get(x, y) {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(11, 40),
		gen.IntRange(11, 40),
		gen.IntRange(-5, 5),
		gen.IntRange(-5, 5),
		gen.Int64(),
	))

	properties.Property("shifting past the edges leaves only fill", prop.ForAll(
		func(w, h int, extraRow, extraCol float64, fill float64) bool {
			arr := randomGrid(w, h, 1)
			s := emath.Shift{Row: float64(h) + extraRow, Col: -float64(w) - extraCol}
			for _, v := range ShiftImage(arr, s, fill).Values() {
				if v != fill {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 32),
		gen.IntRange(1, 32),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.Float64Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}

func TestITrackPeakProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(5678)
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("one shift per image, all zero for a still peak", prop.ForAll(
		func(n int, seed int64) bool {
			img := randomGrid(20, 20, seed)
			images := make([]*emath.FloatGrid, n)
			for i := range images {
				images[i] = img
			}

			count := 0
			for shift, err := range ITrackPeak(seqOf(images...), emath.All, emath.All, DefaultPrecision) {
				if err != nil || shift != (emath.Shift{}) {
					return false
				}
				count++
			}
			return count == n
		},
		gen.IntRange(0, 12),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
