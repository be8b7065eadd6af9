// Package parallel splits index ranges across CPU cores.
package parallel

import (
	"runtime"
	"sync"
)

// ParallelizeWithThreshold runs fn sequentially over [0, items) when items is
// at most threshold, and in parallel otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	_ = ParallelizeErr(items, threshold, func(start, end int) error {
		fn(start, end)
		return nil
	})
}

// ParallelizeErr is ParallelizeWithThreshold for range functions that can
// fail. It waits for every range and returns the error of the lowest range
// that failed, so the result does not depend on scheduling.
func ParallelizeErr(items int, threshold int, fn func(start, end int) error) error {
	if items <= 0 {
		return nil
	}
	if items <= threshold {
		return fn(0, items)
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	errs := make([]error, numWorkers)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(w, s, e int) {
			defer wg.Done()
			errs[w] = fn(s, e)
		}(i, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
