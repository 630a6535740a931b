package align

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/diffalign/pkg/emath"
)

func TestCompareAligned(t *testing.T) {
	ref := spots(48, 48, 8)

	r, err := CompareAligned(ref.Copy(), ref, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.MeanAbsDiff)
	assert.Equal(t, 1.0, r.Compared)

	moved := ShiftImage(ref, emath.Shift{Row: 3, Col: -2}, math.NaN())
	before, err := CompareAligned(moved, ref, nil)
	require.NoError(t, err)
	assert.Greater(t, before.MeanAbsDiff, 1.0)
	assert.Less(t, before.Compared, 1.0, "fill is not compared")
	assert.True(t, math.IsNaN(before.Diff.Get(0, 0)))

	mask := edgeMask(48, 48, 5)
	aligned, err := Align(moved, ref, mask, math.NaN())
	require.NoError(t, err)
	after, err := CompareAligned(aligned, ref, mask)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, after.MeanAbsDiff, 1e-9)
	assert.Less(t, after.Compared, before.Compared)
	assert.Contains(t, after.String(), "comparable")
}

func TestCompareAlignedNothingToCompare(t *testing.T) {
	ref := spots(16, 16, 9)
	none := emath.NewMask(16, 16)
	none.Invalidate(ref.Bounds())
	r, err := CompareAligned(ref, ref, none)
	require.NoError(t, err)
	assert.Equal(t, Residual{Diff: r.Diff}, r)
}

func TestCompareAlignedErrors(t *testing.T) {
	ref := spots(16, 16, 10)
	_, err := CompareAligned(emath.NewFloatGrid(8, 16), ref, nil)
	assert.True(t, errors.Is(err, emath.ErrShapeMismatch))

	_, err = CompareAligned(ref, ref, emath.NewMask(8, 8))
	assert.True(t, errors.Is(err, emath.ErrShapeMismatch))
}
