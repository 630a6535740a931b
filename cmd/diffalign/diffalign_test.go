package main

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/diffalign/pkg/config"
	"github.com/abworrall/diffalign/pkg/diffio"
	"github.com/abworrall/diffalign/pkg/emath"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	cfg = config.NewConfig()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

// scene is whole-valued, so it survives a trip through a 16 bit TIFF.
func scene(w, h int, seed int64) *emath.FloatGrid {
	rng := rand.New(rand.NewSource(seed))
	fg := emath.NewFloatGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fg.Set(x, y, 1000*rng.Float64())
		}
	}
	fg = fg.GaussianBlur().GaussianBlur()
	for i := 0; i < 10; i++ {
		cx, cy := 8+rng.Float64()*float64(w-16), 8+rng.Float64()*float64(h-16)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				d2 := (float64(x)-cx)*(float64(x)-cx) + (float64(y)-cy)*(float64(y)-cy)
				fg.Set(x, y, fg.Get(x, y)+5000*math.Exp(-d2/8))
			}
		}
	}
	return fg.Apply(math.Round)
}

func translate(fg *emath.FloatGrid, dy, dx int) *emath.FloatGrid {
	out := fg.NewFromThis()
	for y := 0; y < fg.Dy(); y++ {
		for x := 0; x < fg.Dx(); x++ {
			if sx, sy := x-dx, y-dy; sx >= 0 && sy >= 0 && sx < fg.Dx() && sy < fg.Dy() {
				out.Set(x, y, fg.Get(sx, sy))
			}
		}
	}
	return out
}

var edges = []string{"--invalid", "0:6,:", "--invalid", "-6:,:", "--invalid", ":,0:6", "--invalid", ":,-6:"}

func TestParseRegion(t *testing.T) {
	r, err := parseRegion("0:40,100:140")
	require.NoError(t, err)
	assert.Equal(t, config.Region{Rows: emath.Span{Start: 0, Stop: 40}, Cols: emath.Span{Start: 100, Stop: 140}}, r)

	r, err = parseRegion(":,-6:")
	require.NoError(t, err)
	assert.Equal(t, config.Region{Cols: emath.Span{Start: -6}}, r)

	_, err = parseRegion("0:40")
	assert.Error(t, err)
	_, err = parseRegion("x,1:2")
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	ref := scene(64, 64, 1)
	require.NoError(t, diffio.WriteTIFF(ref, filepath.Join(in, "a.tif")))
	require.NoError(t, diffio.WriteTIFF(translate(ref, 2, -3), filepath.Join(in, "b.tif")))
	require.NoError(t, diffio.WriteTIFF(translate(ref, -4, 1), filepath.Join(in, "c.tif")))

	t.Run("register", func(t *testing.T) {
		report := filepath.Join(out, "report.yaml")
		require.NoError(t, run(t, append([]string{"register", "-j", "2", "--report", report, in}, edges...)...))

		c, err := config.Load(report)
		require.NoError(t, err)
		assert.Equal(t, emath.Shift{}, c.Shifts[filepath.Join(in, "a.tif")])
		assert.Equal(t, emath.Shift{Row: -2, Col: 3}, c.Shifts[filepath.Join(in, "b.tif")])
		assert.Equal(t, emath.Shift{Row: 4, Col: -1}, c.Shifts[filepath.Join(in, "c.tif")])
		assert.Len(t, c.Invalid, 4)
	})

	t.Run("align", func(t *testing.T) {
		require.NoError(t, run(t, append([]string{"align", "-o", out, in}, edges...)...))

		for _, name := range []string{"a", "b", "c"} {
			aligned, err := diffio.ReadImage(filepath.Join(out, name+"-aligned.tif"))
			require.NoError(t, err)
			for y := 6; y < 58; y++ {
				for x := 6; x < 58; x++ {
					require.Equal(t, ref.Get(x, y), aligned.Get(x, y), "%s (%d,%d)", name, x, y)
				}
			}
		}
	})

	t.Run("align verbose", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, run(t, append([]string{"align", "-v", "2", "-o", dir, in}, edges...)...))
		for _, name := range []string{"b-aligned.tif", "b-diff.png"} {
			_, err := os.Stat(filepath.Join(dir, name))
			assert.NoError(t, err, name)
		}
	})

	t.Run("track", func(t *testing.T) {
		assert.NoError(t, run(t, "track", "--rows", "8:56", "--cols", "8:56", in))
		assert.Error(t, run(t, "track", "--precision", "3", in))
	})

	t.Run("mad", func(t *testing.T) {
		require.NoError(t, run(t, "mad", "-o", out, "--format", "hdr", filepath.Join(in, "a.tif")))
		_, err := os.Stat(filepath.Join(out, "a-mad.hdr"))
		assert.NoError(t, err)
	})

	t.Run("bad config", func(t *testing.T) {
		assert.Error(t, run(t, "register", "--overlap", "0", in))
		assert.Error(t, run(t, "register", "--config", filepath.Join(in, "nope.yaml"), in))
		assert.Error(t, run(t, "register", filepath.Join(in, "nope")))
	})
}
