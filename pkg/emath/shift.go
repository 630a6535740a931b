package emath

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrEmptyRegion   = errors.New("empty region")
)

// A Shift is a translation in pixels. Row is the vertical (dy) component,
// Col the horizontal (dx) one; positive values move content down and right.
type Shift struct {
	Row float64 `yaml:"row"`
	Col float64 `yaml:"col"`
}

func (s Shift) String() string { return fmt.Sprintf("(%+7.2f,%+7.2f)", s.Row, s.Col) }

func (s Shift) Neg() Shift          { return Shift{-s.Row, -s.Col} }
func (s Shift) Add(s2 Shift) Shift  { return Shift{s.Row + s2.Row, s.Col + s2.Col} }
func (s Shift) Sub(s2 Shift) Shift  { return Shift{s.Row - s2.Row, s.Col - s2.Col} }
func (s Shift) Norm() float64       { return math.Hypot(s.Row, s.Col) }
func (s Shift) IsFinite() bool      { return isFinite(s.Row) && isFinite(s.Col) }

// Round snaps both components to the nearest multiple of step.
func (s Shift) Round(step float64) Shift {
	inv := 1 / step
	return Shift{math.Round(s.Row*inv) / inv, math.Round(s.Col*inv) / inv}
}

// Within is true if both components differ from s2 by at most tol.
func (s Shift) Within(s2 Shift, tol float64) bool {
	return math.Abs(s.Row-s2.Row) <= tol && math.Abs(s.Col-s2.Col) <= tol
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// A Span selects a half-open index range [Start, Stop) along one axis.
// Negative values count back from the end of the axis, and Stop == 0 means
// "up to the end"; so the zero Span selects the whole axis.
type Span struct {
	Start int
	Stop  int
}

// All selects a whole axis.
var All = Span{}

// Resolve returns the concrete [lo, hi) bounds of the span on an axis of
// length n. The result is clipped to the axis and hi is never below lo.
func (s Span) Resolve(n int) (int, int) {
	lo, hi := s.Start, s.Stop
	if lo < 0 {
		lo += n
	}
	if hi <= 0 {
		hi += n
	}
	lo = clampInt(lo, 0, n)
	hi = clampInt(hi, 0, n)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func (s Span) String() string {
	str := ""
	if s.Start != 0 {
		str += fmt.Sprintf("%d", s.Start)
	}
	str += ":"
	if s.Stop != 0 {
		str += fmt.Sprintf("%d", s.Stop)
	}
	return str
}

// ParseSpan reads the "start:stop" form produced by String; either side may
// be empty.
func ParseSpan(str string) (Span, error) {
	s := Span{}
	var err error
	switch {
	case str == "" || str == ":":
		return s, nil
	case str[0] == ':':
		_, err = fmt.Sscanf(str, ":%d", &s.Stop)
	case str[len(str)-1] == ':':
		_, err = fmt.Sscanf(str, "%d:", &s.Start)
	default:
		_, err = fmt.Sscanf(str, "%d:%d", &s.Start, &s.Stop)
	}
	if err != nil {
		return s, fmt.Errorf("span '%s': %v", str, err)
	}
	return s, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
