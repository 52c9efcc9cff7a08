// util/prof.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"fmt"
	"os"
	"runtime/pprof"
)

// Profiler writes CPU and heap profiles for a command-line run.
type Profiler struct {
	cpu, mem *os.File
}

// StartProfiler starts CPU profiling to the file cpu and arranges for a
// heap profile to be written to mem when Stop is called. Either name may
// be empty to skip that profile.
func StartProfiler(cpu, mem string) (*Profiler, error) {
	p := &Profiler{}

	var err error
	if cpu != "" {
		if p.cpu, err = os.Create(cpu); err != nil {
			return nil, fmt.Errorf("%s: unable to create CPU profile: %w", cpu, err)
		}
		if err = pprof.StartCPUProfile(p.cpu); err != nil {
			p.cpu.Close()
			return nil, fmt.Errorf("unable to start CPU profile: %w", err)
		}
	}
	if mem != "" {
		if p.mem, err = os.Create(mem); err != nil {
			p.Stop()
			return nil, fmt.Errorf("%s: unable to create memory profile: %w", mem, err)
		}
	}
	return p, nil
}

// Stop finishes the profiles. It may be called more than once.
func (p *Profiler) Stop() error {
	if p == nil {
		return nil
	}

	var err error
	if p.cpu != nil {
		pprof.StopCPUProfile()
		err = p.cpu.Close()
		p.cpu = nil
	}
	if p.mem != nil {
		if werr := pprof.WriteHeapProfile(p.mem); werr != nil && err == nil {
			err = werr
		}
		p.mem.Close()
		p.mem = nil
	}
	return err
}
