package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abworrall/diffalign/pkg/align"
	"github.com/abworrall/diffalign/pkg/diffio"
	"github.com/abworrall/diffalign/pkg/emath"
	"github.com/abworrall/diffalign/pkg/register"
)

func newRegisterCmd() *cobra.Command {
	var report string

	cmd := &cobra.Command{
		Use:   "register <files|dirs>...",
		Short: "Measure the shift of each image against the reference",
		Long: `Registers every image against the reference, and writes a YAML report
holding the configuration and the shift that lines up each file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ref, err := loadSeries(args)
			if err != nil {
				return err
			}
			mask := cfg.Mask(ref)

			var images []*emath.FloatGrid
			for fg := range s.All() {
				images = append(images, fg)
			}
			if err := s.Err(); err != nil {
				return err
			}

			shifts, err := register.RegisterConcurrently(ref, images, mask, cfg.Workers, cfg.RegisterOptions()...)
			if err != nil {
				return err
			}
			for i, path := range s.Paths {
				cfg.Shifts[path] = shifts[i]
				if cfg.Verbosity > 0 {
					log.Printf(" -- %s: %s\n", path, shifts[i])
				}
			}

			if cfg.Verbosity > 1 && mask != nil && len(images) > 1 {
				dumpCorrelation(ref, images[1], mask)
			}

			if report == "" {
				fmt.Print(cfg.AsYaml())
				return nil
			}
			if err := os.WriteFile(report, []byte(cfg.AsYaml()), 0644); err != nil {
				return fmt.Errorf("open+w '%s': %v", report, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&report, "report", "", "write the YAML report here, not to stdout")
	return cmd
}

// dumpCorrelation saves the masked correlation surface as a PNG, so you can
// see how sharp (or not) the peak is.
func dumpCorrelation(ref, img *emath.FloatGrid, mask *emath.Mask) {
	xc, err := register.CrossCorrelateMasked(ref, img, mask, mask, cfg.OverlapRatio)
	if err != nil {
		log.Printf("xcorr: %v\n", err)
		return
	}
	filename := filepath.Join(cfg.OutputDir, "xcorr.png")
	if err := xc.ToImg(fmt.Sprintf("xcorr %s", xc.Stats()), filename); err != nil {
		log.Printf("xcorr: %v\n", err)
		return
	}
	log.Printf("correlation surface written to %s\n", filename)
}

func newAlignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "align <files|dirs>...",
		Short: "Write an aligned copy of each image",
		Long: `Aligns each image against the reference, one image at a time, and
writes the result into the output dir.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ref, err := loadSeries(args)
			if err != nil {
				return err
			}
			mask := cfg.Mask(ref)

			// Without --reference, the series supplies its own, first.
			var iref *emath.FloatGrid
			if fReference != "" {
				iref = ref
			}

			i := 0
			for aligned, err := range align.IAlign(s.All(), iref, mask, cfg.FillValue, cfg.RegisterOptions()...) {
				if err != nil {
					return fmt.Errorf("%s: %v", s.Paths[i], err)
				}
				filename := outputName(s.Paths[i], "-aligned")
				if err := diffio.Write(aligned, filename); err != nil {
					return err
				}
				if cfg.Verbosity > 0 {
					reportResidual(s.Paths[i], aligned, ref, mask)
					log.Printf(" -- %s -> %s\n", s.Paths[i], filename)
				}
				i++
			}
			return s.Err()
		},
	}
}

// reportResidual logs how well an aligned image matches the reference, and
// at higher verbosity saves the difference image next to it.
func reportResidual(path string, aligned, ref *emath.FloatGrid, mask *emath.Mask) {
	r, err := align.CompareAligned(aligned, ref, mask)
	if err != nil {
		log.Printf("residual %s: %v\n", path, err)
		return
	}
	log.Printf(" -- %s: %s\n", path, r)

	if cfg.Verbosity > 1 {
		filename := outputName(path, "-diff")
		filename = strings.TrimSuffix(filename, filepath.Ext(filename)) + ".png"
		if err := r.Diff.ToImg(fmt.Sprintf("%s %s", filepath.Base(path), r), filename); err != nil {
			log.Printf("residual %s: %v\n", path, err)
		}
	}
}

func newTrackCmd() *cobra.Command {
	var rows, cols string

	cmd := &cobra.Command{
		Use:   "track <files|dirs>...",
		Short: "Follow a bright peak through the series",
		Long: `Finds the centre of mass of the given region of each image, and prints
how far it has moved from where it was in the first image.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cmd.Flags().Changed("rows") {
				if cfg.Peak.Rows, err = emath.ParseSpan(rows); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("cols") {
				if cfg.Peak.Cols, err = emath.ParseSpan(cols); err != nil {
					return err
				}
			}

			s, err := diffio.NewSeries(args...)
			if err != nil {
				return err
			}

			i := 0
			for shift, err := range align.ITrackPeak(s.All(), cfg.Peak.Rows, cfg.Peak.Cols, cfg.Peak.Precision) {
				if err != nil {
					return err
				}
				fmt.Printf("%s %s\n", s.Paths[i], shift)
				i++
			}
			return s.Err()
		},
	}

	cmd.Flags().StringVar(&rows, "rows", "", "rows holding the peak, as start:stop")
	cmd.Flags().StringVar(&cols, "cols", "", "cols holding the peak, as start:stop")
	cmd.Flags().Float64Var(&cfg.Peak.Precision, "precision", cfg.Peak.Precision, "round the peak shift to this (0-1 pixel)")
	return cmd
}

func newMADCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mad <files>...",
		Short: "Write the median absolute deviation image of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := diffio.NewSeries(args...)
			if err != nil {
				return err
			}

			i := 0
			for fg := range s.All() {
				filename := outputName(s.Paths[i], "-mad")
				if err := diffio.Write(fg.MAD(), filename); err != nil {
					return err
				}
				if cfg.Verbosity > 0 {
					log.Printf(" -- %s -> %s\n", s.Paths[i], filename)
				}
				i++
			}
			return s.Err()
		},
	}
}
