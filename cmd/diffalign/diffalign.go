package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abworrall/diffalign/pkg/config"
	"github.com/abworrall/diffalign/pkg/diffio"
	"github.com/abworrall/diffalign/pkg/emath"
)

var (
	cfg = config.NewConfig()

	fConfigFile string
	fReference  string
	fInvalid    []string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "diffalign",
		Short: "Align series of diffraction images",
		Long: `diffalign measures and corrects the drift between images in a series
(files, or directories of TIFF/PNG/HDR files), either by registering each
image against a reference, or by following a single bright peak.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	pf := rootCmd.PersistentFlags()
	pf.IntVarP(&cfg.Verbosity, "verbosity", "v", 0, "how verbose to get")
	pf.StringVar(&fConfigFile, "config", "", "YAML config file; flags override it")
	pf.StringVar(&fReference, "reference", "", "image to align against (default: the first one)")
	pf.Float64Var(&cfg.OverlapRatio, "overlap", cfg.OverlapRatio, "masked registration: fraction of the best overlap a shift needs")
	pf.IntVar(&cfg.UpsampleFactor, "upsample", cfg.UpsampleFactor, "unmasked registration: resolve shifts to 1/n pixel")
	pf.Float64Var(&cfg.FillValue, "fill", cfg.FillValue, "value for pixels shifted in from outside the image")
	pf.BoolVar(&cfg.MaskFromZeros, "maskzeros", cfg.MaskFromZeros, "treat zero pixels in the reference as unmeasured")
	pf.StringArrayVar(&fInvalid, "invalid", nil, "region to ignore in every image, as rows,cols spans (e.g. 0:40,100:140)")
	pf.IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "how many images to register at once")
	pf.StringVarP(&cfg.OutputDir, "outdir", "o", cfg.OutputDir, "where to write images")
	pf.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "output image format: tif, hdr")

	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newAlignCmd())
	rootCmd.AddCommand(newTrackCmd())
	rootCmd.AddCommand(newMADCmd())

	return rootCmd
}

// loadConfig starts from the config file, if there is one, and then applies
// any flags that were set on the command line.
func loadConfig(cmd *cobra.Command, args []string) error {
	if fConfigFile != "" {
		fileCfg, err := config.Load(fConfigFile)
		if err != nil {
			return err
		}

		flagged := cfg
		cfg = fileCfg
		pf := cmd.Flags()
		if pf.Changed("verbosity") {
			cfg.Verbosity = flagged.Verbosity
		}
		if pf.Changed("overlap") {
			cfg.OverlapRatio = flagged.OverlapRatio
		}
		if pf.Changed("upsample") {
			cfg.UpsampleFactor = flagged.UpsampleFactor
		}
		if pf.Changed("fill") {
			cfg.FillValue = flagged.FillValue
		}
		if pf.Changed("maskzeros") {
			cfg.MaskFromZeros = flagged.MaskFromZeros
		}
		if pf.Changed("workers") {
			cfg.Workers = flagged.Workers
		}
		if pf.Changed("outdir") {
			cfg.OutputDir = flagged.OutputDir
		}
		if pf.Changed("format") {
			cfg.OutputFormat = flagged.OutputFormat
		}
		if pf.Changed("precision") {
			cfg.Peak.Precision = flagged.Peak.Precision
		}
	}

	for _, str := range fInvalid {
		r, err := parseRegion(str)
		if err != nil {
			return err
		}
		cfg.Invalid = append(cfg.Invalid, r)
	}

	if err := cfg.Finalize(); err != nil {
		return err
	}

	if cfg.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", cfg.AsYaml())
	}
	return nil
}

func parseRegion(str string) (config.Region, error) {
	rows, cols, ok := strings.Cut(str, ",")
	if !ok {
		return config.Region{}, fmt.Errorf("region '%s': want rows,cols", str)
	}
	r := config.Region{}
	var err error
	if r.Rows, err = emath.ParseSpan(rows); err != nil {
		return r, err
	}
	if r.Cols, err = emath.ParseSpan(cols); err != nil {
		return r, err
	}
	return r, nil
}

// loadSeries expands the args, and loads the reference image: the
// --reference file if given, else the first in the series.
func loadSeries(args []string) (*diffio.Series, *emath.FloatGrid, error) {
	s, err := diffio.NewSeries(args...)
	if err != nil {
		return nil, nil, err
	}
	if s.Len() == 0 {
		return nil, nil, fmt.Errorf("no images found in %v", args)
	}

	refFile := fReference
	if refFile == "" {
		refFile = s.Paths[0]
	}
	ref, err := diffio.ReadImage(refFile)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Verbosity > 0 {
		log.Printf("%d images, reference %s %s\n", s.Len(), refFile, ref.Stats())
	}
	return s, ref, nil
}

// outputName puts a derived file in the output dir, in the output format.
func outputName(path, suffix string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(cfg.OutputDir, base+suffix+"."+cfg.OutputFormat)
}
