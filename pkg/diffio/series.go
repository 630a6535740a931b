package diffio

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/abworrall/diffalign/pkg/emath"
)

// A Series is an ordered list of image files, read one at a time as it is
// ranged over, so that long acquisitions never have to fit in memory.
type Series struct {
	Paths []string

	err error
}

// NewSeries builds a series from files and directories; directories are
// walked recursively, and any non-image files in them are skipped. If every
// file carries an EXIF capture time, the series is in capture order;
// otherwise files stay in the order given, with directory contents sorted
// by name.
func NewSeries(args ...string) (*Series, error) {
	s := &Series{}
	if err := s.addFilesAndDirs(args...); err != nil {
		return nil, err
	}
	s.sortByCaptureTime()
	return s, nil
}

func (s *Series) addFilesAndDirs(args ...string) error {
	for _, arg := range args {
		item, err := os.Stat(arg)

		switch {
		case err != nil:
			return fmt.Errorf("load %s: %v", arg, err)

		case item.IsDir():
			// Is a dir, recurse into contents
			contents, err := os.ReadDir(arg)
			if err != nil {
				return fmt.Errorf("readdir %s: %v", arg, err)
			}
			for _, content := range contents {
				name := filepath.Join(arg, content.Name())
				if !content.IsDir() && !IsImageFile(name) {
					continue
				}
				if err := s.addFilesAndDirs(name); err != nil {
					return fmt.Errorf("load %s: %v", arg, err)
				}
			}

		case !IsImageFile(arg):
			return fmt.Errorf("load %s: %w", arg, ErrUnknownFormat)

		default:
			s.Paths = append(s.Paths, arg)
		}
	}

	return nil
}

func (s *Series) sortByCaptureTime() {
	times := map[string]time.Time{}
	for _, path := range s.Paths {
		t, ok := captureTime(path)
		if !ok {
			return
		}
		times[path] = t
	}

	sort.SliceStable(s.Paths, func(i, j int) bool {
		return times[s.Paths[i]].Before(times[s.Paths[j]])
	})
}

// captureTime looks for an EXIF timestamp. Only TIFFs (and the JPEG family)
// carry EXIF; anything else reports false.
func captureTime(filename string) (time.Time, bool) {
	reader, err := os.Open(filename)
	if err != nil {
		return time.Time{}, false
	}
	defer reader.Close()

	ex, err := exif.Decode(reader)
	if err != nil {
		return time.Time{}, false
	}
	t, err := ex.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *Series) Len() int { return len(s.Paths) }

// All reads each image in turn. If a file can't be read the sequence stops
// early, and Err says why.
func (s *Series) All() iter.Seq[*emath.FloatGrid] {
	return func(yield func(*emath.FloatGrid) bool) {
		s.err = nil
		for _, path := range s.Paths {
			fg, err := ReadImage(path)
			if err != nil {
				s.err = err
				return
			}
			if !yield(fg) {
				return
			}
		}
	}
}

// Err returns the error that stopped the last pass over All, if any.
func (s *Series) Err() error { return s.err }
