// projection/raster.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package projection

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/mmp/skycam"
)

// Raster is an 8-bit image with interleaved channels, stored row-major:
// the value of channel c at (x, y) is Pix[(y*Width+x)*Channels+c].
type Raster struct {
	Width, Height, Channels int
	Pix                     []uint8
}

func NewRaster(width, height, channels int) *Raster {
	return &Raster{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}
}

func (r *Raster) At(x, y, c int) uint8 {
	return r.Pix[(y*r.Width+x)*r.Channels+c]
}

func (r *Raster) Set(x, y, c int, v uint8) {
	r.Pix[(y*r.Width+x)*r.Channels+c] = v
}

func (r *Raster) check() error {
	if r == nil {
		return fmt.Errorf("%w: nil image", skycam.ErrInvalidInput)
	}
	if r.Width <= 0 || r.Height <= 0 || r.Channels <= 0 {
		return fmt.Errorf("%w: image shape %dx%dx%d", skycam.ErrInvalidInput, r.Height, r.Width, r.Channels)
	}
	if len(r.Pix) != r.Width*r.Height*r.Channels {
		return fmt.Errorf("%w: %d pixel values for a %dx%dx%d image", skycam.ErrInvalidInput, len(r.Pix),
			r.Height, r.Width, r.Channels)
	}
	return nil
}

// RasterFromImage converts img to a Raster. Grayscale images give a single
// channel and everything else gives three (RGB); alpha is discarded.
func RasterFromImage(img image.Image) *Raster {
	b := img.Bounds()
	switch im := img.(type) {
	case *image.Gray:
		r := NewRaster(b.Dx(), b.Dy(), 1)
		for y := range b.Dy() {
			copy(r.Pix[y*r.Width:(y+1)*r.Width], im.Pix[y*im.Stride:])
		}
		return r

	case *image.Gray16:
		r := NewRaster(b.Dx(), b.Dy(), 1)
		for y := range b.Dy() {
			for x := range b.Dx() {
				r.Pix[y*r.Width+x] = uint8(im.Gray16At(b.Min.X+x, b.Min.Y+y).Y >> 8)
			}
		}
		return r
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	r := NewRaster(b.Dx(), b.Dy(), 3)
	rb := rgba.Bounds()
	for y := range rb.Dy() {
		for x := range rb.Dx() {
			s := rgba.Pix[y*rgba.Stride+4*x:]
			copy(r.Pix[(y*r.Width+x)*3:], s[:3])
		}
	}
	return r
}

// Image returns r as an image.Image: Gray for one channel and RGBA
// otherwise. With two channels the second is used as alpha; channels
// beyond the fourth are dropped.
func (r *Raster) Image() image.Image {
	if r.Channels == 1 {
		g := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
		copy(g.Pix, r.Pix)
		return g
	}

	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := range r.Height {
		for x := range r.Width {
			p := r.Pix[(y*r.Width+x)*r.Channels:]
			var c color.RGBA
			switch r.Channels {
			case 2:
				c = color.RGBA{R: p[0], G: p[0], B: p[0], A: p[1]}
			case 3:
				c = color.RGBA{R: p[0], G: p[1], B: p[2], A: 255}
			default:
				c = color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// FloatRaster is a Raster with unquantized float32 values.
type FloatRaster struct {
	Width, Height, Channels int
	Pix                     []float32
}

func NewFloatRaster(width, height, channels int) *FloatRaster {
	return &FloatRaster{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float32, width*height*channels),
	}
}

func (r *FloatRaster) At(x, y, c int) float32 {
	return r.Pix[(y*r.Width+x)*r.Channels+c]
}
