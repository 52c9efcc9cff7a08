// util/parallel.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForEachBand splits [0,n) into contiguous bands and calls fn on each of
// them concurrently, with at most GOMAXPROCS bands running at once. fn
// must only write to state that is private to its band; given that, the
// result does not depend on scheduling. The first error returned by fn is
// returned.
func ForEachBand(n int, fn func(start, end int) error) error {
	if n <= 0 {
		return nil
	}

	procs := runtime.GOMAXPROCS(0)
	nbands := min(n, 4*procs)
	per := (n + nbands - 1) / nbands

	var eg errgroup.Group
	eg.SetLimit(procs)
	for start := 0; start < n; start += per {
		end := min(start+per, n)
		eg.Go(func() error { return fn(start, end) })
	}
	return eg.Wait()
}
