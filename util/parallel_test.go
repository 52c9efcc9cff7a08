// util/parallel_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"errors"
	"testing"
)

func TestForEachBand(t *testing.T) {
	for _, n := range []int{0, 1, 7, 1000} {
		counts := make([]int, n)
		err := ForEachBand(n, func(start, end int) error {
			for i := start; i < end; i++ {
				counts[i]++
			}
			return nil
		})
		if err != nil {
			t.Errorf("n=%d: unexpected error %v", n, err)
		}
		for i, c := range counts {
			if c != 1 {
				t.Errorf("n=%d: index %d visited %d times", n, i, c)
			}
		}
	}
}

func TestForEachBandError(t *testing.T) {
	errStop := errors.New("stop")
	err := ForEachBand(100, func(start, end int) error {
		if start == 0 {
			return errStop
		}
		return nil
	})
	if !errors.Is(err, errStop) {
		t.Errorf("got %v, expected %v", err, errStop)
	}
}
