// projection/service.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package projection

import (
	"fmt"
	gomath "math"
	"sync"
	"time"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/calib"
	"github.com/mmp/skycam/lens"
	"github.com/mmp/skycam/log"
	"github.com/mmp/skycam/math"
	"github.com/mmp/skycam/util"
)

// Service rectifies images from a single camera. The coordinate mapping
// is obtained from its CoordinateCache either when the Service is created
// or, if LazyInit is given, the first time it is needed.
type Service struct {
	cal      *calib.AngleCalibration
	settings Settings
	cache    *CoordinateCache
	lg       *log.Logger
	lazy     bool

	mu    sync.Mutex
	lens  *lens.Model
	entry *CacheEntry
}

type ServiceOption func(*Service)

// LazyInit defers fitting the lens model and loading or building the
// coordinate mapping until the first call to Project.
func LazyInit() ServiceOption {
	return func(s *Service) { s.lazy = true }
}

// WithCache sets the cache that the mapping is taken from. By default
// each Service has its own memory-only cache.
func WithCache(c *CoordinateCache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithLens provides an already-fit lens model for the calibration.
func WithLens(m *lens.Model) ServiceOption {
	return func(s *Service) { s.lens = m }
}

func WithLogger(lg *log.Logger) ServiceOption {
	return func(s *Service) { s.lg = lg }
}

func NewService(cal *calib.AngleCalibration, settings Settings, opts ...ServiceOption) (*Service, error) {
	if cal == nil {
		return nil, fmt.Errorf("%w: nil calibration", skycam.ErrInvalidInput)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	s := &Service{cal: cal, settings: settings}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewCoordinateCache("", WithCacheLogger(s.lg))
	}
	if s.lens != nil && s.lens.Calibration().Fingerprint() != cal.Fingerprint() {
		return nil, fmt.Errorf("%w: lens model was fit to calibration %s, not %s", skycam.ErrConfiguration,
			s.lens.Calibration(), cal)
	}
	s.lg = s.lg.With("category", cal.Category())

	if !s.lazy {
		if err := s.EnsureInitialized(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Service) Calibration() *calib.AngleCalibration { return s.cal }
func (s *Service) Settings() Settings                    { return s.settings }
func (s *Service) Grid() Grid                            { return s.settings.Grid() }

// Initialized reports whether the coordinate mapping is available.
func (s *Service) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry != nil
}

// EnsureInitialized fits the lens model and obtains the coordinate mapping
// if that hasn't already been done. A failure is not remembered; a later
// call tries again.
func (s *Service) EnsureInitialized() error {
	_, err := s.mapping()
	return err
}

// Lens returns the service's lens model, fitting it if necessary.
func (s *Service) Lens() (*lens.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fitLens()
}

func (s *Service) fitLens() (*lens.Model, error) {
	if s.lens == nil {
		lm, err := lens.New(s.cal, lens.WithLogger(s.lg))
		if err != nil {
			return nil, err
		}
		s.lens = lm
	}
	return s.lens, nil
}

func (s *Service) mapping() (*CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry != nil {
		return s.entry, nil
	}

	start := time.Now()
	lm, err := s.fitLens()
	if err != nil {
		return nil, err
	}
	e, err := s.cache.GetOrBuild(s.cal, lm, s.settings)
	if err != nil {
		return nil, err
	}

	height, width := s.cal.Shape()
	if e.SourceHeight != height || e.SourceWidth != width {
		return nil, fmt.Errorf("%w: coordinate mapping is for %dx%d images but the calibration is %dx%d",
			skycam.ErrConfiguration, e.SourceHeight, e.SourceWidth, height, width)
	}

	s.entry = e
	s.lg.Info("projection initialized", "settings", s.settings.String(), "elapsed", time.Since(start))
	return e, nil
}

func (s *Service) checkImage(img *Raster) error {
	if err := img.check(); err != nil {
		return err
	}
	if height, width := s.cal.Shape(); img.Height != height || img.Width != width {
		return fmt.Errorf("%w: %dx%d image doesn't match %dx%d calibration", skycam.ErrInvalidInput,
			img.Height, img.Width, height, width)
	}
	return nil
}

// Project rectifies img, which must have the calibration's shape. The
// result is Resolution x Resolution with img's channel count; each value
// is bilinearly interpolated from img, rounded and clamped to [0,255].
// Cells that image nothing are 0.
func (s *Service) Project(img *Raster) (*Raster, error) {
	if err := s.checkImage(img); err != nil {
		return nil, err
	}
	e, err := s.mapping()
	if err != nil {
		return nil, err
	}

	out := NewRaster(e.Resolution, e.Resolution, img.Channels)
	err = s.sample(e, img, func(i, c int, v float64) {
		out.Pix[i*img.Channels+c] = uint8(math.Clamp(gomath.Round(v), 0, 255))
	})
	return out, err
}

// ProjectFloat is like Project but returns the interpolated values without
// rounding.
func (s *Service) ProjectFloat(img *Raster) (*FloatRaster, error) {
	if err := s.checkImage(img); err != nil {
		return nil, err
	}
	e, err := s.mapping()
	if err != nil {
		return nil, err
	}

	out := NewFloatRaster(e.Resolution, e.Resolution, img.Channels)
	err = s.sample(e, img, func(i, c int, v float64) {
		out.Pix[i*img.Channels+c] = float32(v)
	})
	return out, err
}

// sample interpolates img at the source pixel of every output cell that
// has one and passes the result for each channel to set.
func (s *Service) sample(e *CacheEntry, img *Raster, set func(cell, channel int, v float64)) error {
	nc := img.Channels
	err := util.ForEachBand(e.Resolution, func(start, end int) error {
		for i := start * e.Resolution; i < end*e.Resolution; i++ {
			cell, ok := math.LocateBilinear(float64(e.SourceX[i]), float64(e.SourceY[i]), img.Width, img.Height)
			if !ok {
				continue
			}
			idx, wt := cell.Indices(img.Width), cell.Weights()
			for c := range nc {
				var v float64
				for k := range 4 {
					if wt[k] != 0 {
						v += wt[k] * float64(img.Pix[idx[k]*nc+c])
					}
				}
				set(i, c, v)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", skycam.ErrProjection, err)
	}
	return nil
}
