// Package fft2d does two dimensional discrete Fourier transforms, built
// from gonum's one dimensional complex FFTs: rows first, then columns.
//
// Transforms follow numpy's conventions: Forward is unnormalized, Inverse
// divides by the number of elements, so Inverse(Forward(x)) == x.
package fft2d

import (
	"fmt"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/abworrall/diffalign/pkg/emath"
)

// A CGrid is a row-major grid of complex values.
type CGrid struct {
	Rows int
	Cols int
	Data []complex128
}

func NewCGrid(rows, cols int) *CGrid {
	return &CGrid{Rows: rows, Cols: cols, Data: make([]complex128, rows*cols)}
}

func (c *CGrid) At(row, col int) complex128       { return c.Data[row*c.Cols+col] }
func (c *CGrid) Set(row, col int, v complex128)   { c.Data[row*c.Cols+col] = v }
func (c *CGrid) String() string                   { return fmt.Sprintf("cgrid[%dx%d]", c.Cols, c.Rows) }

func (c *CGrid) Copy() *CGrid {
	c2 := NewCGrid(c.Rows, c.Cols)
	copy(c2.Data, c.Data)
	return c2
}

// FromReal copies a real grid into the top left corner of a rows x cols
// complex grid, zero padding the rest. f, if not nil, is applied to each
// value on the way in.
func FromReal(fg *emath.FloatGrid, rows, cols int, f func(x, y int, v float64) float64) *CGrid {
	c := NewCGrid(rows, cols)
	for y := 0; y < fg.Dy() && y < rows; y++ {
		for x := 0; x < fg.Dx() && x < cols; x++ {
			v := fg.Get(x, y)
			if f != nil {
				v = f(x, y, v)
			}
			c.Data[y*cols+x] = complex(v, 0)
		}
	}
	return c
}

// Real returns the real parts as a FloatGrid.
func (c *CGrid) Real() *emath.FloatGrid {
	vals := cmplxs.Real(make([]float64, len(c.Data)), c.Data)
	fg, _ := emath.NewFloatGridFrom(c.Cols, vals)
	if fg == nil {
		return emath.NewFloatGrid(0, 0)
	}
	return fg
}

// MulConj returns a * conj(b), element-wise. The grids must be the same size.
func MulConj(a, b *CGrid) *CGrid {
	out := NewCGrid(a.Rows, a.Cols)
	cmplxs.MulConjTo(out.Data, a.Data, b.Data)
	return out
}

// A Plan holds the 1D transforms and scratch space for one grid size. A Plan
// is not safe for concurrent use; make one per goroutine.
type Plan struct {
	rows, cols int
	rowFFT     *fourier.CmplxFFT
	colFFT     *fourier.CmplxFFT
	column     []complex128
}

func NewPlan(rows, cols int) *Plan {
	return &Plan{
		rows:   rows,
		cols:   cols,
		rowFFT: fourier.NewCmplxFFT(cols),
		colFFT: fourier.NewCmplxFFT(rows),
		column: make([]complex128, rows),
	}
}

func (p *Plan) String() string { return fmt.Sprintf("plan[%dx%d]", p.cols, p.rows) }

// Forward returns the unnormalized 2D DFT of c. c is not modified.
func (p *Plan) Forward(c *CGrid) *CGrid {
	out := c.Copy()
	p.transform(out, false)
	return out
}

// Inverse returns the normalized inverse 2D DFT of c. c is not modified.
func (p *Plan) Inverse(c *CGrid) *CGrid {
	out := c.Copy()
	p.transform(out, true)
	cmplxs.ScaleReal(1.0/float64(p.rows*p.cols), out.Data)
	return out
}

func (p *Plan) transform(c *CGrid, inverse bool) {
	if c.Rows != p.rows || c.Cols != p.cols {
		panic(fmt.Sprintf("fft2d: %s used on %s", p, c))
	}

	for r := 0; r < p.rows; r++ {
		row := c.Data[r*p.cols : (r+1)*p.cols]
		if inverse {
			p.rowFFT.Sequence(row, row)
		} else {
			p.rowFFT.Coefficients(row, row)
		}
	}

	for col := 0; col < p.cols; col++ {
		for r := 0; r < p.rows; r++ {
			p.column[r] = c.Data[r*p.cols+col]
		}
		if inverse {
			p.colFFT.Sequence(p.column, p.column)
		} else {
			p.colFFT.Coefficients(p.column, p.column)
		}
		for r := 0; r < p.rows; r++ {
			c.Data[r*p.cols+col] = p.column[r]
		}
	}
}

// FastLen returns the smallest n' >= n whose only prime factors are 2, 3 and
// 5; fftpack is quickest on those.
func FastLen(n int) int {
	if n <= 1 {
		return 1
	}
	for m := n; ; m++ {
		k := m
		for _, f := range []int{2, 3, 5} {
			for k%f == 0 {
				k /= f
			}
		}
		if k == 1 {
			return m
		}
	}
}

// Freq returns the signed frequency index for bin k of an n point
// transform: k for the first half, k-n for the second.
func Freq(k, n int) int {
	if k < (n+1)/2 {
		return k
	}
	return k - n
}
