package emath

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg" // Move to https://pkg.go.dev/golang.org/x/image/font#Drawer sometime
	"gonum.org/v1/gonum/floats"
)

// A FloatGrid is a grid of floats, stored row by row. It is the image type
// for everything in this module: x is the column, y is the row.
//
// Nothing in this module writes into a grid it was handed; operations that
// transform an image allocate a new one.
type FloatGrid struct {
	stride int
	values []float64
}

func NewFloatGrid(w, h int) *FloatGrid {
	if w < 0 || h < 0 {
		w, h = 0, 0
	}
	return &FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

// NewFloatGridFrom builds a grid of width w from row-major values. The values
// are copied.
func NewFloatGridFrom(w int, values []float64) (*FloatGrid, error) {
	if w <= 0 || len(values)%w != 0 {
		return nil, fmt.Errorf("%d values into rows of %d: %w", len(values), w, ErrShapeMismatch)
	}
	fg := NewFloatGrid(w, len(values)/w)
	copy(fg.values, values)
	return fg, nil
}

// NewFloatGridFromRows builds a grid from a slice of equal-length rows.
func NewFloatGridFromRows(rows [][]float64) (*FloatGrid, error) {
	if len(rows) == 0 {
		return NewFloatGrid(0, 0), nil
	}
	fg := NewFloatGrid(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != fg.stride {
			return nil, fmt.Errorf("row %d has %d values, want %d: %w", y, len(row), fg.stride, ErrShapeMismatch)
		}
		copy(fg.values[y*fg.stride:], row)
	}
	return fg, nil
}

func (g1 *FloatGrid) NewFromThis() *FloatGrid  { return NewFloatGrid(g1.Dx(), g1.Dy()) }
func (fg *FloatGrid) Set(x, y int, v float64) { fg.values[fg.stride*y+x] = v }
func (fg *FloatGrid) Get(x, y int) float64    { return fg.values[fg.stride*y+x] }
func (fg *FloatGrid) Dx() int                 { return fg.stride }
func (fg *FloatGrid) Len() int                { return len(fg.values) }
func (fg *FloatGrid) Bounds() image.Rectangle { return image.Rect(0, 0, fg.Dx(), fg.Dy()) }

func (fg *FloatGrid) Dy() int {
	if fg.stride == 0 {
		return 0
	}
	return len(fg.values) / fg.stride
}

// SameShape is true if both grids have the same width and height.
func (g1 *FloatGrid) SameShape(g2 *FloatGrid) bool {
	return g1.Dx() == g2.Dx() && g1.Dy() == g2.Dy()
}

// Row returns a copy of row y.
func (fg *FloatGrid) Row(y int) []float64 {
	row := make([]float64, fg.stride)
	copy(row, fg.values[y*fg.stride:(y+1)*fg.stride])
	return row
}

// Values returns a copy of all the values, row by row.
func (fg *FloatGrid) Values() []float64 {
	vals := make([]float64, len(fg.values))
	copy(vals, fg.values)
	return vals
}

func (g1 *FloatGrid) Copy() *FloatGrid {
	g2 := FloatGrid{stride: g1.stride, values: make([]float64, len(g1.values))}
	copy(g2.values, g1.values)
	return &g2
}

// Fill sets every value in the grid to v.
func (fg *FloatGrid) Fill(v float64) {
	for i := range fg.values {
		fg.values[i] = v
	}
}

// Apply returns a new grid holding f(v) for every value in this one.
func (g1 *FloatGrid) Apply(f func(float64) float64) *FloatGrid {
	g2 := g1.NewFromThis()
	for i, v := range g1.values {
		g2.values[i] = f(v)
	}
	return g2
}

// Add returns a new grid, the element-wise sum of both grids.
func (g1 *FloatGrid) Add(g2 *FloatGrid) (*FloatGrid, error) {
	if !g1.SameShape(g2) {
		return nil, fmt.Errorf("add %s and %s: %w", g1.Shape(), g2.Shape(), ErrShapeMismatch)
	}
	out := g1.Copy()
	floats.Add(out.values, g2.values)
	return out, nil
}

// Crop returns a copy of the rows and cols selected by the two spans. The
// result may be empty.
func (g1 *FloatGrid) Crop(rows, cols Span) *FloatGrid {
	r0, r1 := rows.Resolve(g1.Dy())
	c0, c1 := cols.Resolve(g1.Dx())
	g2 := NewFloatGrid(c1-c0, r1-r0)
	for y := r0; y < r1; y++ {
		copy(g2.values[(y-r0)*g2.stride:], g1.values[y*g1.stride+c0:y*g1.stride+c1])
	}
	return g2
}

func (fg *FloatGrid) Max() float64 {
	if len(fg.values) == 0 {
		return math.NaN()
	}
	return floats.Max(fg.values)
}

func (fg *FloatGrid) Min() float64 {
	if len(fg.values) == 0 {
		return math.NaN()
	}
	return floats.Min(fg.values)
}

func (fg *FloatGrid) Sum() float64 { return floats.Sum(fg.values) }

// MAD returns the element-wise median absolute deviation of the grid.
func (fg *FloatGrid) MAD() *FloatGrid {
	return &FloatGrid{stride: fg.stride, values: MAD(fg.values)}
}

// GaussianBlur is a cheap separable [1 2 1]/4 blur, with the edges folded
// back in.
func (g1 *FloatGrid) GaussianBlur() *FloatGrid {
	width := g1.Dx()
	height := g1.Dy()
	g2 := g1.NewFromThis()
	if width < 2 || height < 2 {
		copy(g2.values, g1.values)
		return g2
	}

	T := g1.NewFromThis()

	//--- X blur, build up in T
	for y := 0; y < height; y++ {
		for x := 1; x < width-1; x++ {
			t := 2.0 * g1.Get(x, y)
			t += g1.Get(x-1, y)
			t += g1.Get(x+1, y)
			T.Set(x, y, t/4.0)
		}
		T.Set(0, y, (3.0*g1.Get(0, y)+g1.Get(1, y))/4.0)
		T.Set(width-1, y, (3.0*g1.Get(width-1, y)+g1.Get(width-2, y))/4.0)
	}

	//--- Y blur, read from T and generate output
	for x := 0; x < width; x++ {
		for y := 1; y < height-1; y++ {
			t := 2.0 * T.Get(x, y)
			t += T.Get(x, y-1)
			t += T.Get(x, y+1)
			g2.Set(x, y, t/4.0)
		}
		g2.Set(x, 0, (3.0*T.Get(x, 0)+T.Get(x, 1))/4.0)
		g2.Set(x, height-1, (3.0*T.Get(x, height-1)+T.Get(x, height-2))/4.0)
	}

	return g2
}

func (fg *FloatGrid) Shape() string { return fmt.Sprintf("%dx%d", fg.Dx(), fg.Dy()) }

func (fg *FloatGrid) Stats() string {
	min := math.MaxFloat64
	max := -1.0 * min
	nNaN := 0

	for i := 0; i < len(fg.values); i++ {
		if math.IsNaN(fg.values[i]) {
			nNaN++
			continue
		}
		if fg.values[i] > max {
			max = fg.values[i]
		}
		if fg.values[i] < min {
			min = fg.values[i]
		}
	}
	str := fmt.Sprintf("fg[%dx%d, vals{%f,%f}", fg.Dx(), fg.Dy(), min, max)
	if nNaN > 0 {
		str += fmt.Sprintf(", %d NaN", nNaN)
	}
	return str + "]"
}

// ToImg saves a simple grayscale, based on the range of values in the grid, and gamma scaling the
// gray to look normal for human vision. NaNs are drawn black.
func (fg *FloatGrid) ToImg(title, filename string) error {
	min, max := math.Inf(1), math.Inf(-1)
	for i := 0; i < len(fg.values); i++ {
		if v := fg.values[i]; !math.IsNaN(v) {
			min = math.Min(min, v)
			max = math.Max(max, v)
		}
	}
	span := max - min
	if !(span > 0) {
		span = 1
	}

	img := image.NewRGBA64(image.Rectangle{Max: image.Point{fg.Dx(), fg.Dy()}})
	for x := 0; x < fg.Dx(); x++ {
		for y := 0; y < fg.Dy(); y++ {
			lum := fg.Get(x, y)
			gray := 0.0
			if !math.IsNaN(lum) {
				gray = gammaExpand((lum - min) / span)
			}
			col := color.RGBA64{uint16(gray * 65535.0), uint16(gray * 65535.0), uint16(gray * 65535.0), 0xFFFF}
			img.Set(x, y, col)
		}
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1, 0, 0)
	dc.DrawString(title, 10, 20)
	return dc.SavePNG(filename)
}

// https://www.sjbrown.co.uk/posts/gamma-correct-rendering/ - "linear RGB to sRGB"
// f is assumed to be in the range [0,1]
func gammaExpand(f float64) float64 {
	if f <= 0.0031308 {
		return 12.92 * f
	}
	return 1.055*math.Pow(f, 1.0/2.4) - 0.055
}
