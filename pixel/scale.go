package pixel

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Filter selects the resampling kernel used when scaling a frame.
type Filter uint8

const (
	// FilterNone disables resampling; the frame is delivered at its
	// native size.
	FilterNone Filter = iota

	// FilterNearest picks the nearest source pixel. Fastest, blocky.
	FilterNearest

	// FilterBilinear interpolates linearly between the four neighbors.
	FilterBilinear

	// FilterBicubic uses the Catmull-Rom cubic kernel.
	FilterBicubic

	// FilterLanczos uses a Lanczos-3 windowed sinc kernel. Sharpest
	// results, most expensive.
	FilterLanczos
)

// String returns the filter name.
func (f Filter) String() string {
	switch f {
	case FilterNone:
		return "none"
	case FilterNearest:
		return "nearest"
	case FilterBilinear:
		return "bilinear"
	case FilterBicubic:
		return "bicubic"
	case FilterLanczos:
		return "lanczos"
	default:
		return fmt.Sprintf("filter(%d)", uint8(f))
	}
}

// ParseFilter maps a filter name to its Filter value. Unknown names fall
// back to FilterNone with ok=false.
func ParseFilter(name string) (Filter, bool) {
	switch name {
	case "none", "":
		return FilterNone, true
	case "nearest":
		return FilterNearest, true
	case "bilinear":
		return FilterBilinear, true
	case "bicubic":
		return FilterBicubic, true
	case "lanczos":
		return FilterLanczos, true
	default:
		return FilterNone, false
	}
}

// ErrBadScaleSize is returned when a scale target dimension is not positive.
var ErrBadScaleSize = errors.New("pixel: scale dimensions must be positive")

// lanczos3 is a Lanczos windowed sinc with support 3, expressed as a
// draw.Kernel so it plugs into the same scaler machinery as the stock
// kernels.
var lanczos3 = &draw.Kernel{
	Support: 3.0,
	At: func(t float64) float64 {
		if t < 0 {
			t = -t
		}
		if t >= 3.0 {
			return 0
		}
		if t == 0 {
			return 1
		}
		pt := math.Pi * t
		return 3.0 * math.Sin(pt) * math.Sin(pt/3.0) / (pt * pt)
	},
}

// scaler returns the resampler for a filter. FilterNone has no scaler;
// callers must special-case it.
func scaler(f Filter) draw.Interpolator {
	switch f {
	case FilterNearest:
		return draw.NearestNeighbor
	case FilterBilinear:
		return draw.BiLinear
	case FilterLanczos:
		return lanczos3
	default:
		return draw.CatmullRom
	}
}

// ScaleBGRAPremultiplied resamples a straight-RGBA frame to width x height
// and returns it as premultiplied BGRA. FilterNone, or a target matching
// the source size, skips resampling and only converts. The source buffer
// is not modified.
//
// Resampling runs in premultiplied space, so semi-transparent pixels the
// kernel produces along transparency edges are already correct; the final
// step is a pure channel swap.
func ScaleBGRAPremultiplied(src *Buffer, width, height int, filter Filter) (*Buffer, error) {
	if filter == FilterNone || (width == src.Width() && height == src.Height()) {
		return ToBGRAPremultiplied(src), nil
	}
	if width <= 0 || height <= 0 {
		return nil, ErrBadScaleSize
	}

	srcImg := &image.RGBA{
		Pix:    src.Bytes(),
		Stride: src.Stride(),
		Rect:   image.Rect(0, 0, src.Width(), src.Height()),
	}
	dstImg := &image.RGBA{
		Pix:    getBytes(width * height * 4),
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}

	scaler(filter).Scale(dstImg, dstImg.Rect, srcImg, srcImg.Rect, draw.Src, nil)

	SwapRB(dstImg.Pix, width*height)
	return NewBufferBytes(dstImg.Pix, width, height, FormatBGRAPremultiplied), nil
}

// SwapRB exchanges the R and B channels in place, turning premultiplied
// RGBA into premultiplied BGRA (and vice versa).
func SwapRB(pix []byte, pixelCount int) {
	for i := 0; i < pixelCount; i++ {
		o := i * 4
		pix[o], pix[o+2] = pix[o+2], pix[o]
	}
}
