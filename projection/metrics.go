// projection/metrics.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package projection

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by a CoordinateCache.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Lookups      *prometheus.CounterVec
	Builds       prometheus.Counter
	BuildSeconds prometheus.Histogram
	StoreErrors  prometheus.Counter
}

// Lookup results, used as values of the "result" label.
const (
	lookupMemory = "memory"
	lookupDisk   = "disk"
	lookupMiss   = "miss"
)

// NewMetrics registers the cache metrics with reg, or with the default
// Prometheus registry if reg is nil. Registering twice with the same
// registry returns the existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	lookups, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skycam_coordinate_cache_lookups_total",
		Help: "Coordinate cache lookups, labeled by the tier that satisfied them or \"miss\".",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	builds, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skycam_coordinate_cache_builds_total",
		Help: "Number of coordinate mappings computed from a lens model.",
	}))
	if err != nil {
		return nil, err
	}
	seconds, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skycam_coordinate_cache_build_seconds",
		Help:    "Time taken to compute a coordinate mapping.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}))
	if err != nil {
		return nil, err
	}
	storeErrors, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skycam_coordinate_cache_store_errors_total",
		Help: "Number of coordinate mappings that could not be written to disk.",
	}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Lookups:      lookups,
		Builds:       builds,
		BuildSeconds: seconds,
		StoreErrors:  storeErrors,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return c, fmt.Errorf("collector %T already registered with incompatible type", c)
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) lookup(result string) {
	if m != nil {
		m.Lookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) built(d time.Duration) {
	if m != nil {
		m.Builds.Inc()
		m.BuildSeconds.Observe(d.Seconds())
	}
}

func (m *Metrics) storeFailed() {
	if m != nil {
		m.StoreErrors.Inc()
	}
}
