// calib/loader.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package calib

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/util"
)

// FileSuffix is appended to the category name to form the name of a
// calibration file.
const FileSuffix = ".cal.msgpack.zst"

// Loader provides the calibration for a camera category.
type Loader interface {
	Load(category string) (*AngleCalibration, error)
}

// calibrationFile is the on-disk representation of an AngleCalibration.
type calibrationFile struct {
	Category string    `msgpack:"category"`
	Height   int       `msgpack:"height"`
	Width    int       `msgpack:"width"`
	Azimuth  []float64 `msgpack:"azimuth"`
	Zenith   []float64 `msgpack:"zenith"`
}

func checkCategory(category string) error {
	if category == "" || strings.ContainsAny(category, `/\`) || category == "." || category == ".." {
		return fmt.Errorf("%w: invalid calibration category %q", skycam.ErrInvalidInput, category)
	}
	return nil
}

// WriteFile stores cal at path in the format that ReadFile and
// FileLoader understand.
func WriteFile(path string, cal *AngleCalibration) error {
	return util.StoreObject(path, calibrationFile{
		Category: cal.category,
		Height:   cal.height,
		Width:    cal.width,
		Azimuth:  cal.azimuth,
		Zenith:   cal.zenith,
	})
}

// ReadFile loads and validates a calibration written by WriteFile.
func ReadFile(path string) (*AngleCalibration, error) {
	var f calibrationFile
	if _, err := util.RetrieveObject(path, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", skycam.ErrCalibration, path, err)
	}
	return New(f.Category, f.Height, f.Width, f.Azimuth, f.Zenith)
}

///////////////////////////////////////////////////////////////////////////
// FileLoader

// FileLoader loads calibrations from files named <category>.cal.msgpack.zst
// in Dir. Loaded calibrations are retained so that repeated loads of the
// same category return the same instance.
type FileLoader struct {
	Dir string

	mu     sync.Mutex
	loaded map[string]*AngleCalibration
}

func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{Dir: dir, loaded: make(map[string]*AngleCalibration)}
}

func (l *FileLoader) Path(category string) string {
	return filepath.Join(l.Dir, category+FileSuffix)
}

func (l *FileLoader) Load(category string) (*AngleCalibration, error) {
	if err := checkCategory(category); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cal, ok := l.loaded[category]; ok {
		return cal, nil
	}

	cal, err := ReadFile(l.Path(category))
	if err != nil {
		return nil, err
	}
	if cal.Category() != category {
		return nil, fmt.Errorf("%w: %s holds calibration for %q", skycam.ErrCalibration, l.Path(category),
			cal.Category())
	}

	if l.loaded == nil {
		l.loaded = make(map[string]*AngleCalibration)
	}
	l.loaded[category] = cal
	return cal, nil
}

// Store writes cal to the loader's directory.
func (l *FileLoader) Store(cal *AngleCalibration) error {
	if err := checkCategory(cal.Category()); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.loaded, cal.Category())

	return WriteFile(l.Path(cal.Category()), cal)
}

// Categories returns the sorted names of the calibrations available in
// the loader's directory.
func (l *FileLoader) Categories() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, err
	}

	var cats []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), FileSuffix); ok && !e.IsDir() {
			cats = append(cats, name)
		}
	}
	slices.Sort(cats)
	return cats, nil
}

///////////////////////////////////////////////////////////////////////////
// MemoryLoader

// MemoryLoader serves calibrations held in memory, keyed by category.
type MemoryLoader map[string]*AngleCalibration

func (m MemoryLoader) Load(category string) (*AngleCalibration, error) {
	if cal, ok := m[category]; ok {
		return cal, nil
	}
	return nil, fmt.Errorf("%w: no calibration for category %q", skycam.ErrCalibration, category)
}
