// cmd/skycam/commands.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/aircraft"
	"github.com/mmp/skycam/calib"
	"github.com/mmp/skycam/geodesy"
	"github.com/mmp/skycam/lens"
	"github.com/mmp/skycam/math"
	"github.com/mmp/skycam/projection"
	"github.com/mmp/skycam/util"

	"github.com/goforj/godump"
	"github.com/paulmach/orb/geojson"
	_ "golang.org/x/image/tiff"
)

func parseArgs(fs *flag.FlagSet, args []string, min, max int) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < min || fs.NArg() > max {
		fs.Usage()
		return fmt.Errorf("%w: expected %d to %d arguments, got %d", skycam.ErrInvalidInput, min, max, fs.NArg())
	}
	return nil
}

func (env *environment) calibration(category string) (*calib.AngleCalibration, error) {
	if category == "" {
		category = env.cfg.Category
	}
	return calib.NewFileLoader(env.cfg.CalibrationDir).Load(category)
}

func (env *environment) projector(cal *calib.AngleCalibration) (*aircraft.Projector, error) {
	lm, err := lens.New(cal, lens.WithLogger(env.lg))
	if err != nil {
		return nil, err
	}
	return aircraft.NewProjector(lm, env.cfg.Camera,
		aircraft.WithEngine(geodesy.NewEngine(env.cfg.EarthModel())),
		aircraft.WithGrid(env.cfg.Projection.Grid()),
		aircraft.WithLogger(env.lg))
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func rectify(env *environment, args []string) error {
	fs := flag.NewFlagSet("rectify", flag.ContinueOnError)
	lazy := fs.Bool("lazy", false, "Defer building the coordinate mapping until the image has been read")
	floatOut := fs.String("float", "", "Also write unquantized values to this msgpack+zstd file")
	if err := parseArgs(fs, args, 2, 2); err != nil {
		return err
	}
	in, out := fs.Arg(0), fs.Arg(1)

	cal, err := env.calibration("")
	if err != nil {
		return err
	}

	cache := projection.NewCoordinateCache(env.cfg.CacheDir,
		projection.WithCacheLogger(env.lg),
		projection.WithMemorySize(env.cfg.MemoryCacheSize),
		projection.WithMetrics(env.metrics))
	opts := []projection.ServiceOption{projection.WithCache(cache), projection.WithLogger(env.lg)}
	if *lazy {
		opts = append(opts, projection.LazyInit())
	}

	start := time.Now()
	svc, err := projection.NewService(cal, env.cfg.Projection, opts...)
	if err != nil {
		return err
	}

	img, err := readImage(in)
	if err != nil {
		return err
	}
	raster := projection.RasterFromImage(img)

	rect, err := svc.Project(raster)
	if err != nil {
		return err
	}
	if err := writePNG(out, rect.Image()); err != nil {
		return err
	}

	if *floatOut != "" {
		fr, err := svc.ProjectFloat(raster)
		if err != nil {
			return err
		}
		if err := util.StoreObject(*floatOut, fr); err != nil {
			return err
		}
	}

	env.lg.Info("rectified", "input", in, "output", out, "settings", svc.Settings().String(),
		"cache", cache.Stats().String(), "elapsed", time.Since(start))
	fmt.Printf("%s: %dx%d, %d channels (%s)\n", out, rect.Width, rect.Height, rect.Channels, cache.Stats())
	return nil
}

func overlay(env *environment, args []string) error {
	fs := flag.NewFlagSet("overlay", flag.ContinueOnError)
	grid := fs.Bool("grid", false, "Give positions in the rectified grid rather than the raw image")
	out := fs.String("o", "", "Output file (default stdout)")
	if err := parseArgs(fs, args, 1, 1); err != nil {
		return err
	}

	var data []byte
	var err error
	if fs.Arg(0) == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(fs.Arg(0))
	}
	if err != nil {
		return err
	}
	features, err := aircraft.UnmarshalFeatures(data)
	if err != nil {
		return err
	}

	cal, err := env.calibration("")
	if err != nil {
		return err
	}
	p, err := env.projector(cal)
	if err != nil {
		return err
	}
	project := p.ProjectGeometry
	if *grid {
		project = p.ProjectGeometryToGrid
	}

	fc := geojson.NewFeatureCollection()
	for i, f := range features {
		g, err := project(f.Geometry)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		if !aircraft.Finite(g) {
			env.lg.Warnf("feature %d (%v): not entirely visible; skipping", i, f.ID)
			fmt.Fprintf(os.Stderr, "skycam overlay: feature %d is not visible from the camera\n", i)
			continue
		}

		gf := geojson.NewFeature(g)
		gf.ID = f.ID
		for k, v := range f.Properties {
			gf.Properties[k] = v
		}
		fc.Append(gf)
	}

	b, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if *out == "" {
		_, err = os.Stdout.Write(b)
		return err
	}
	return os.WriteFile(*out, b, 0o644)
}

func locate(env *environment, args []string) error {
	fs := flag.NewFlagSet("locate", flag.ContinueOnError)
	grid := fs.Bool("grid", false, "Take the position in the rectified grid rather than the raw image")
	if err := parseArgs(fs, args, 3, 3); err != nil {
		return err
	}

	var v [3]float64
	for i := range v {
		var err error
		if v[i], err = strconv.ParseFloat(fs.Arg(i), 64); err != nil {
			return fmt.Errorf("%w: %s: %v", skycam.ErrInvalidInput, fs.Arg(i), err)
		}
	}

	cal, err := env.calibration("")
	if err != nil {
		return err
	}
	p, err := env.projector(cal)
	if err != nil {
		return err
	}

	toLonLat := p.PixelsToLonLat
	if *grid {
		toLonLat = p.GridToLonLat
	}
	lon, lat, err := toLonLat([]float64{v[0]}, []float64{v[1]}, []float64{v[2]})
	if err != nil {
		return err
	}
	if !math.AllFinite(lon[0], lat[0]) {
		return fmt.Errorf("%w: (%g, %g) doesn't see the ground at %gm", skycam.ErrProjection, v[0], v[1], v[2])
	}
	fmt.Printf("%.6f %.6f\n", lon[0], lat[0])
	return nil
}

func synth(env *environment, args []string) error {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	size := fs.Int("size", 1024, "Image width and height in pixels")
	fov := fs.Float64("fov", 90, "Largest zenith angle imaged, in degrees")
	distortion := fs.Float64("distortion", 0, "Radial distortion")
	mirror := fs.Bool("mirror", true, "Image east on the left, as a camera looking up sees it")
	if err := parseArgs(fs, args, 0, 1); err != nil {
		return err
	}

	category := env.cfg.Category
	if fs.NArg() == 1 {
		category = fs.Arg(0)
	}

	cal, err := calib.Synthesize(calib.Equidistant{
		Category:    category,
		Height:      *size,
		Width:       *size,
		FieldOfView: *fov,
		Distortion:  *distortion,
		Mirror:      *mirror,
	})
	if err != nil {
		return err
	}

	l := calib.NewFileLoader(env.cfg.CalibrationDir)
	if err := l.Store(cal); err != nil {
		return err
	}
	env.lg.Info("wrote synthetic calibration", "path", l.Path(category), "calibration", cal.String())
	fmt.Println(l.Path(category))
	return nil
}

func info(env *environment, args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	if err := parseArgs(fs, args, 0, 1); err != nil {
		return err
	}

	cal, err := env.calibration(fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Println(cal)

	lm, err := lens.New(cal, lens.WithLogger(env.lg))
	if err != nil {
		return fmt.Errorf("unable to fit a lens model: %w", err)
	}
	fit := lm.Fit()
	fit.Zeniths, fit.Radii = nil, nil
	godump.Dump(fit)
	fmt.Printf("%s is at the top of the image\n", math.Compass(fit.AzimuthOffset))
	var edges []string
	for i := range 4 {
		edges = append(edges, math.ShortCompass(fit.AzimuthOffset+fit.Handedness*90*float64(i)))
	}
	fmt.Printf("image edges clockwise from the top face %s\n", strings.Join(edges, ", "))

	key := projection.MakeCacheKey(cal, env.cfg.Projection)
	fmt.Printf("cache key %s\n", key)
	if path := projection.NewCoordinateCache(env.cfg.CacheDir).Path(key); path != "" {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("cached mapping %s\n", path)
		} else {
			fmt.Printf("no cached mapping at %s\n", path)
		}
	}
	return nil
}

func showConfig(env *environment, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	if err := parseArgs(fs, args, 0, 0); err != nil {
		return err
	}
	godump.Dump(env.cfg)
	return nil
}
