// projection/cache.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package projection

import (
	"errors"
	"fmt"
	"io/fs"
	gomath "math"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/calib"
	"github.com/mmp/skycam/lens"
	"github.com/mmp/skycam/log"
	"github.com/mmp/skycam/math"
	"github.com/mmp/skycam/util"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// CacheSuffix is the file extension of persisted coordinate mappings.
const CacheSuffix = ".msgpack.zst"

// CacheKey identifies a coordinate mapping: the calibration it was
// computed from and every setting that changes it.
type CacheKey struct {
	Category    string  `msgpack:"category"`
	Resolution  int     `msgpack:"resolution"`
	CloudHeight float64 `msgpack:"cloud_height"`
	SquareSize  float64 `msgpack:"square_size"`
	MaxZenith   float64 `msgpack:"max_zenith"`
	Fingerprint uint64  `msgpack:"fingerprint"`
}

func MakeCacheKey(cal *calib.AngleCalibration, s Settings) CacheKey {
	return CacheKey{
		Category:    cal.Category(),
		Resolution:  s.Resolution,
		CloudHeight: s.CloudHeight,
		SquareSize:  s.SquareSize,
		MaxZenith:   s.MaxZenith,
		Fingerprint: cal.Fingerprint(),
	}
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s/r%d/h%g/s%g/z%g/%016x", k.Category, k.Resolution, k.CloudHeight, k.SquareSize,
		k.MaxZenith, k.Fingerprint)
}

// Slot returns the name of the file that holds the key's mapping.
func (k CacheKey) Slot() string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(k.String())) + CacheSuffix
}

// CacheEntry is a computed coordinate mapping: for each output cell, in
// row-major order, the fractional source pixel (SourceX = column,
// SourceY = row) that it samples. Cells that image nothing are NaN.
type CacheEntry struct {
	Key          CacheKey  `msgpack:"key"`
	SourceHeight int       `msgpack:"source_height"`
	SourceWidth  int       `msgpack:"source_width"`
	Resolution   int       `msgpack:"resolution"`
	SourceX      []float32 `msgpack:"source_x"`
	SourceY      []float32 `msgpack:"source_y"`
}

// Source returns the source pixel for output cell (x, y).
func (e *CacheEntry) Source(x, y int) (px, py float64) {
	i := y*e.Resolution + x
	return float64(e.SourceX[i]), float64(e.SourceY[i])
}

// Valid returns the number of output cells that have a source pixel.
func (e *CacheEntry) Valid() int {
	n := 0
	for _, x := range e.SourceX {
		if !math.IsNaN(x) {
			n++
		}
	}
	return n
}

// check returns an error describing why e can't be used for key with a
// source image of the given shape.
func (e *CacheEntry) check(key CacheKey, height, width int) error {
	if e.Key != key {
		return fmt.Errorf("entry key %s", e.Key)
	}
	if e.SourceHeight != height || e.SourceWidth != width {
		return fmt.Errorf("entry source shape %dx%d, calibration %dx%d", e.SourceHeight, e.SourceWidth,
			height, width)
	}
	n := key.Resolution * key.Resolution
	if e.Resolution != key.Resolution || len(e.SourceX) != n || len(e.SourceY) != n {
		return fmt.Errorf("entry resolution %d with %d/%d samples", e.Resolution, len(e.SourceX), len(e.SourceY))
	}
	return nil
}

type CacheStats struct {
	MemoryHits int64
	DiskHits   int64
	Misses     int64
	Builds     int64
}

func (s CacheStats) String() string {
	return fmt.Sprintf("memory hits %d, disk hits %d, misses %d, builds %d", s.MemoryHits, s.DiskHits,
		s.Misses, s.Builds)
}

// CoordinateCache maps CacheKeys to CacheEntries. Entries are looked up
// in memory, then on disk, and are otherwise computed and written to
// disk. Every key has its own file and nothing is ever evicted from disk.
// A CoordinateCache is safe for concurrent use; concurrent requests for
// the same missing key compute it once.
type CoordinateCache struct {
	dir     string
	lg      *log.Logger
	metrics *Metrics
	mem     *expirable.LRU[CacheKey, *CacheEntry]
	group   singleflight.Group

	memHits, diskHits, misses, builds atomic.Int64
}

type cacheOptions struct {
	lg      *log.Logger
	size    int
	ttl     time.Duration
	metrics *Metrics
}

type CacheOption func(*cacheOptions)

func WithCacheLogger(lg *log.Logger) CacheOption {
	return func(o *cacheOptions) { o.lg = lg }
}

// WithMemorySize sets the number of entries held in memory; the default
// is 4.
func WithMemorySize(n int) CacheOption {
	return func(o *cacheOptions) { o.size = n }
}

// WithMemoryTTL causes in-memory entries to be dropped after the given
// duration. Entries remain on disk.
func WithMemoryTTL(d time.Duration) CacheOption {
	return func(o *cacheOptions) { o.ttl = d }
}

func WithMetrics(m *Metrics) CacheOption {
	return func(o *cacheOptions) { o.metrics = m }
}

// NewCoordinateCache returns a cache that persists entries in dir. If dir
// is empty, entries are only held in memory.
func NewCoordinateCache(dir string, opts ...CacheOption) *CoordinateCache {
	o := cacheOptions{size: 4}
	for _, opt := range opts {
		opt(&o)
	}

	return &CoordinateCache{
		dir:     dir,
		lg:      o.lg,
		metrics: o.metrics,
		mem:     expirable.NewLRU[CacheKey, *CacheEntry](o.size, nil, o.ttl),
	}
}

func (c *CoordinateCache) Dir() string { return c.dir }

// Path returns the file that holds key's entry; it is empty for a
// memory-only cache.
func (c *CoordinateCache) Path(key CacheKey) string {
	if c.dir == "" {
		return ""
	}
	return filepath.Join(c.dir, key.Slot())
}

func (c *CoordinateCache) Stats() CacheStats {
	return CacheStats{
		MemoryHits: c.memHits.Load(),
		DiskHits:   c.diskHits.Load(),
		Misses:     c.misses.Load(),
		Builds:     c.builds.Load(),
	}
}

// GetOrBuild returns the entry for the given calibration and settings.
// If the entry has to be built, lm is used to invert the calibration; lm
// may be nil, in which case a lens model is fit to cal when needed. A
// freshly built entry is returned even if it can't be written to disk.
func (c *CoordinateCache) GetOrBuild(cal *calib.AngleCalibration, lm *lens.Model, s Settings) (*CacheEntry, error) {
	if cal == nil {
		return nil, fmt.Errorf("%w: nil calibration", skycam.ErrInvalidInput)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if lm != nil && lm.Calibration().Fingerprint() != cal.Fingerprint() {
		return nil, fmt.Errorf("%w: lens model was fit to calibration %s, not %s", skycam.ErrConfiguration,
			lm.Calibration(), cal)
	}

	key := MakeCacheKey(cal, s)
	if e, ok := c.mem.Get(key); ok {
		c.memHits.Add(1)
		c.metrics.lookup(lookupMemory)
		return e, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if e, ok := c.mem.Peek(key); ok {
			return e, nil
		}

		if e := c.load(key, cal); e != nil {
			c.diskHits.Add(1)
			c.metrics.lookup(lookupDisk)
			c.mem.Add(key, e)
			return e, nil
		}

		c.misses.Add(1)
		c.metrics.lookup(lookupMiss)

		if lm == nil {
			var err error
			if lm, err = lens.New(cal, lens.WithLogger(c.lg)); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		e, err := build(key, cal, lm, s)
		if err != nil {
			return nil, err
		}
		c.builds.Add(1)
		c.metrics.built(time.Since(start))
		c.lg.Info("built coordinate mapping", "key", key.String(), "elapsed", time.Since(start),
			"valid_cells", e.Valid())

		if path := c.Path(key); path != "" {
			if err := util.StoreObject(path, e); err != nil {
				c.metrics.storeFailed()
				c.lg.Warnf("%s: unable to store coordinate mapping: %v", path, err)
			} else {
				c.lg.Debugf("%s: stored coordinate mapping", path)
			}
		}

		c.mem.Add(key, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CacheEntry), nil
}

// load returns the entry for key stored on disk, or nil if there isn't
// one or it can't be used.
func (c *CoordinateCache) load(key CacheKey, cal *calib.AngleCalibration) *CacheEntry {
	path := c.Path(key)
	if path == "" {
		return nil
	}

	var e CacheEntry
	if _, err := util.RetrieveObject(path, &e); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.lg.Debugf("%s: no cached coordinate mapping", path)
		} else {
			c.lg.Warnf("%s: unreadable coordinate mapping, rebuilding: %v", path, err)
		}
		return nil
	}

	height, width := cal.Shape()
	if err := e.check(key, height, width); err != nil {
		c.lg.Warnf("%s: stale coordinate mapping, rebuilding: %v", path, err)
		return nil
	}
	c.lg.Debugf("%s: loaded coordinate mapping", path)
	return &e
}

// build computes the entry for key by finding the source pixel that
// images the direction of each output cell.
func build(key CacheKey, cal *calib.AngleCalibration, lm *lens.Model, s Settings) (*CacheEntry, error) {
	height, width := cal.Shape()
	n := s.Resolution
	e := &CacheEntry{
		Key:          key,
		SourceHeight: height,
		SourceWidth:  width,
		Resolution:   n,
		SourceX:      make([]float32, n*n),
		SourceY:      make([]float32, n*n),
	}

	nan := float32(gomath.NaN())
	g := s.Grid()
	err := util.ForEachBand(n, func(start, end int) error {
		for y := start; y < end; y++ {
			for x := range n {
				i := y*n + x
				e.SourceX[i], e.SourceY[i] = nan, nan

				az, zen := g.CellToAngles(float64(x), float64(y))
				if !(zen <= s.MaxZenith) {
					continue
				}
				if px, py := lm.PixelAt(az, zen); !gomath.IsNaN(px) && !gomath.IsNaN(py) {
					e.SourceX[i], e.SourceY[i] = float32(px), float32(py)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", skycam.ErrProjection, err)
	}
	return e, nil
}
