package emath

import (
	"fmt"
	"image"
)

// A Mask flags which pixels of an image can be trusted. true means valid;
// false marks a pixel to ignore (saturated, dead, under the beam block). A
// nil *Mask is treated everywhere as "all valid".
type Mask struct {
	stride int
	values []bool
}

// NewMask returns a mask of the given size with every pixel valid.
func NewMask(w, h int) *Mask {
	if w < 0 || h < 0 {
		w, h = 0, 0
	}
	m := &Mask{stride: w, values: make([]bool, w*h)}
	for i := range m.values {
		m.values[i] = true
	}
	return m
}

// NewMaskFromRows builds a mask from equal-length rows of flags.
func NewMaskFromRows(rows [][]bool) (*Mask, error) {
	if len(rows) == 0 {
		return NewMask(0, 0), nil
	}
	m := NewMask(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != m.stride {
			return nil, fmt.Errorf("mask row %d has %d values, want %d: %w", y, len(row), m.stride, ErrShapeMismatch)
		}
		copy(m.values[y*m.stride:], row)
	}
	return m, nil
}

// MaskWhere returns a mask that is valid wherever f is true for the grid's value.
func MaskWhere(fg *FloatGrid, f func(float64) bool) *Mask {
	m := &Mask{stride: fg.stride, values: make([]bool, len(fg.values))}
	for i, v := range fg.values {
		m.values[i] = f(v)
	}
	return m
}

func (m *Mask) Set(x, y int, v bool) { m.values[m.stride*y+x] = v }
func (m *Mask) Get(x, y int) bool    { return m.values[m.stride*y+x] }
func (m *Mask) Dx() int              { return m.stride }

func (m *Mask) Dy() int {
	if m.stride == 0 {
		return 0
	}
	return len(m.values) / m.stride
}

func (m *Mask) Copy() *Mask {
	m2 := Mask{stride: m.stride, values: make([]bool, len(m.values))}
	copy(m2.values, m.values)
	return &m2
}

// Invalidate marks every pixel inside r as invalid. r is clipped to the mask.
func (m *Mask) Invalidate(r image.Rectangle) {
	r = r.Intersect(image.Rect(0, 0, m.Dx(), m.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Set(x, y, false)
		}
	}
}

// CountValid returns how many pixels are valid.
func (m *Mask) CountValid() int {
	n := 0
	for _, v := range m.values {
		if v {
			n++
		}
	}
	return n
}

// Fits is true if the mask has the same shape as the grid.
func (m *Mask) Fits(fg *FloatGrid) bool {
	return m.Dx() == fg.Dx() && m.Dy() == fg.Dy()
}

// CheckMask returns an error if a non-nil mask does not have the grid's shape.
func CheckMask(fg *FloatGrid, m *Mask) error {
	if m != nil && !m.Fits(fg) {
		return fmt.Errorf("image %s, mask %dx%d: %w", fg.Shape(), m.Dx(), m.Dy(), ErrShapeMismatch)
	}
	return nil
}

// Weights returns the mask as a grid of 1.0 (valid) and 0.0 (invalid).
func (m *Mask) Weights() *FloatGrid {
	fg := NewFloatGrid(m.Dx(), m.Dy())
	for i, v := range m.values {
		if v {
			fg.values[i] = 1.0
		}
	}
	return fg
}

func (m *Mask) String() string {
	return fmt.Sprintf("mask[%dx%d, %d valid]", m.Dx(), m.Dy(), m.CountValid())
}
