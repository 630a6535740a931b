package register

import (
	"fmt"
	"log"
	"sync"

	"github.com/abworrall/diffalign/pkg/emath"
)

type registerJob struct {
	Index int
	Image *emath.FloatGrid
	Shift emath.Shift
	Err   error
}

// RegisterConcurrently runs DiffRegister for each image against the same
// reference, spread over nWorkers goroutines. Shifts come back in the same
// order as images. If any registration fails, the error for the earliest
// failing image is returned.
func RegisterConcurrently(reference *emath.FloatGrid, images []*emath.FloatGrid, mask *emath.Mask, nWorkers int, opts ...Option) ([]emath.Shift, error) {
	if nWorkers < 1 {
		nWorkers = 1
	}

	var wg sync.WaitGroup
	jobsChan := make(chan registerJob, len(images))
	resultsChan := make(chan registerJob, len(images))

	// Kick off worker pool
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobsChan {
				job.Shift, job.Err = DiffRegister(job.Image, reference, mask, opts...)
				resultsChan <- job
			}
		}()
	}

	// Feed in jobs
	for i, img := range images {
		jobsChan <- registerJob{Index: i, Image: img}
	}

	close(jobsChan)
	wg.Wait()
	close(resultsChan)

	shifts := make([]emath.Shift, len(images))
	var firstErr error
	firstErrIdx := len(images)
	for result := range resultsChan {
		if result.Err != nil {
			if result.Index < firstErrIdx {
				firstErr, firstErrIdx = result.Err, result.Index
			}
			continue
		}
		shifts[result.Index] = result.Shift
	}
	if firstErr != nil {
		return nil, fmt.Errorf("image %d: %w", firstErrIdx, firstErr)
	}

	log.Printf(" -- registered %d images against %s (%d workers)\n", len(images), reference.Shape(), nWorkers)

	return shifts, nil
}
