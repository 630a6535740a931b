package fft2d

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/diffalign/pkg/emath"
)

func randomCGrid(rows, cols int, rng *rand.Rand) *CGrid {
	c := NewCGrid(rows, cols)
	for i := range c.Data {
		c.Data[i] = complex(rng.Float64()-0.5, rng.Float64()-0.5)
	}
	return c
}

// naiveDFT is the textbook O(n^4) transform.
func naiveDFT(c *CGrid) *CGrid {
	out := NewCGrid(c.Rows, c.Cols)
	for u := 0; u < c.Rows; u++ {
		for v := 0; v < c.Cols; v++ {
			sum := complex(0, 0)
			for r := 0; r < c.Rows; r++ {
				for k := 0; k < c.Cols; k++ {
					phase := -2 * math.Pi * (float64(u*r)/float64(c.Rows) + float64(v*k)/float64(c.Cols))
					sum += c.At(r, k) * cmplx.Exp(complex(0, phase))
				}
			}
			out.Set(u, v, sum)
		}
	}
	return out
}

func TestForwardMatchesNaiveDFT(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	c := randomCGrid(6, 5, rng)
	orig := c.Copy()

	got := NewPlan(6, 5).Forward(c)
	want := naiveDFT(c)

	for i := range want.Data {
		assert.InDelta(t, real(want.Data[i]), real(got.Data[i]), 1e-9)
		assert.InDelta(t, imag(want.Data[i]), imag(got.Data[i]), 1e-9)
	}
	assert.Equal(t, orig.Data, c.Data, "input must not be modified")
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	c := randomCGrid(12, 18, rng)
	p := NewPlan(12, 18)

	back := p.Inverse(p.Forward(c))
	for i := range c.Data {
		assert.InDelta(t, real(c.Data[i]), real(back.Data[i]), 1e-12)
		assert.InDelta(t, imag(c.Data[i]), imag(back.Data[i]), 1e-12)
	}
}

func TestDeltaHasFlatSpectrum(t *testing.T) {
	fg := emath.NewFloatGrid(4, 4)
	fg.Set(0, 0, 1)
	spectrum := NewPlan(8, 8).Forward(FromReal(fg, 8, 8, nil))
	for _, v := range spectrum.Data {
		assert.InDelta(t, 1.0, real(v), 1e-12)
		assert.InDelta(t, 0.0, imag(v), 1e-12)
	}
}

func TestCrossCorrelationPeak(t *testing.T) {
	// correlating a grid with a copy of itself moved by (+2 rows, +3 cols)
	// peaks at (rows-2, cols-3), i.e. at shift (-2, -3) once wrapped.
	rng := rand.New(rand.NewSource(3))
	a := emath.NewFloatGrid(16, 16)
	b := emath.NewFloatGrid(16, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			a.Set(x, y, rng.Float64())
		}
	}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			b.Set((x+3)%16, (y+2)%16, a.Get(x, y))
		}
	}

	p := NewPlan(16, 16)
	xc := p.Inverse(MulConj(p.Forward(FromReal(a, 16, 16, nil)), p.Forward(FromReal(b, 16, 16, nil)))).Real()

	best, bx, by := math.Inf(-1), 0, 0
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if v := xc.Get(x, y); v > best {
				best, bx, by = v, x, y
			}
		}
	}
	require.Equal(t, -3, Freq(bx, 16))
	require.Equal(t, -2, Freq(by, 16))
}

func TestFastLen(t *testing.T) {
	for n, want := range map[int]int{0: 1, 1: 1, 7: 8, 127: 128, 1023: 1024, 97: 100, 121: 125} {
		assert.Equal(t, want, FastLen(n), "n=%d", n)
	}
}

func TestFreq(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, -2, -1}, []int{Freq(0, 5), Freq(1, 5), Freq(2, 5), Freq(3, 5), Freq(4, 5)})
	assert.Equal(t, []int{0, 1, -2, -1}, []int{Freq(0, 4), Freq(1, 4), Freq(2, 4), Freq(3, 4)})
}

func TestFromRealAppliesFunc(t *testing.T) {
	fg, _ := emath.NewFloatGridFrom(2, []float64{1, 2, 3, 4})
	c := FromReal(fg, 3, 3, func(x, y int, v float64) float64 { return v * v })
	assert.Equal(t, complex(16, 0), c.At(1, 1))
	assert.Equal(t, complex(0, 0), c.At(2, 2))
	assert.Equal(t, 2.0, fg.Get(1, 0))
}
