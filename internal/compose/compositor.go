// Package compose turns the palette-indexed frames of a decoded GIF into
// fully-resolved RGBA frames, one index at a time.
//
// GIF frames are deltas: each one draws a sub-region over the running
// canvas, and a per-frame disposal method dictates what happens to that
// region before the next draw. Composition is therefore strictly
// order-dependent; the Compositor enforces the one-step-forward contract
// and must be Reset before returning to frame 0.
package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"

	"github.com/StanleySweet/gifbolt-go/pixel"
)

// Errors.
var (
	// ErrNonSequential is returned when ComposeNext is called with an
	// index other than LastComposed()+1. Skipping or rewinding is a
	// caller bug; a Reset is required to return to frame 0.
	ErrNonSequential = errors.New("compose: non-sequential frame index")

	// ErrFrameOutOfRange is returned for indices outside [0, FrameCount).
	ErrFrameOutOfRange = errors.New("compose: frame index out of range")
)

// Compositor owns the running canvas for one decoded GIF.
//
// It is not safe for concurrent use; callers serialize access (the frame
// cache holds the lock for both the prefetch and fallback paths).
type Compositor struct {
	g      *gif.GIF
	width  int
	height int

	// canvas is the full-size accumulator successive frames draw onto.
	canvas *image.RGBA

	// snapshot holds the region a restore-to-previous frame will put
	// back, captured just before that frame was drawn. Present only
	// between composing such a frame and the next one.
	snapshot *image.RGBA

	prevBounds   image.Rectangle
	prevDisposal byte

	lastComposed int

	// background is the fill used for restore-to-background and the
	// initial clear. The zero value means fully transparent.
	background      color.RGBA
	hasTransparency bool
}

// New creates a compositor over a decoded GIF. The canvas is cleared and
// ready to compose frame 0.
func New(g *gif.GIF) *Compositor {
	w, h := g.Config.Width, g.Config.Height
	if w <= 0 || h <= 0 {
		// Header omitted the logical screen size; take the union of
		// the frame regions instead.
		var union image.Rectangle
		for _, frame := range g.Image {
			union = union.Union(frame.Bounds())
		}
		w, h = union.Max.X, union.Max.Y
	}

	c := &Compositor{
		g:               g,
		width:           w,
		height:          h,
		canvas:          image.NewRGBA(image.Rect(0, 0, w, h)),
		lastComposed:    -1,
		hasTransparency: anyTransparent(g),
	}

	// A background fill only makes sense when the stream defines an
	// opaque background and no frame punches holes in it; every other
	// renderer treats the backdrop as transparent, and so do we.
	if !c.hasTransparency {
		if p, ok := g.Config.ColorModel.(color.Palette); ok && int(g.BackgroundIndex) < len(p) {
			c.background = rgbaOf(p[g.BackgroundIndex])
		}
	}

	c.clear()
	return c
}

// anyTransparent reports whether any frame's palette carries a fully
// transparent entry, which is how the decoder exposes a transparency index.
func anyTransparent(g *gif.GIF) bool {
	for _, frame := range g.Image {
		for _, col := range frame.Palette {
			if _, _, _, a := col.RGBA(); a == 0 {
				return true
			}
		}
	}
	return false
}

func rgbaOf(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

// Size returns the canvas dimensions.
func (c *Compositor) Size() (width, height int) {
	return c.width, c.height
}

// FrameCount returns the number of frames in the stream.
func (c *Compositor) FrameCount() int {
	return len(c.g.Image)
}

// LastComposed returns the index of the last composed frame, or -1 when
// nothing has been composed since the last reset.
func (c *Compositor) LastComposed() int {
	return c.lastComposed
}

// HasTransparency reports whether any frame uses a transparency index.
func (c *Compositor) HasTransparency() bool {
	return c.hasTransparency
}

// Background returns the fill color used for restore-to-background
// disposal. The zero value means fully transparent.
func (c *Compositor) Background() color.RGBA {
	return c.background
}

// ComposeNext composes the frame at index, which must be exactly
// LastComposed()+1, and returns a copy of the resolved canvas as a
// straight-RGBA buffer. The returned buffer is independent of the
// accumulator and owned by the caller.
func (c *Compositor) ComposeNext(index int) (*pixel.Buffer, error) {
	if index < 0 || index >= len(c.g.Image) {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameOutOfRange, index, len(c.g.Image))
	}
	if index != c.lastComposed+1 {
		return nil, fmt.Errorf("%w: composed through %d, requested %d",
			ErrNonSequential, c.lastComposed, index)
	}

	if index > 0 {
		c.disposePrevious()
	}

	frame := c.g.Image[index]
	bounds := frame.Bounds().Intersect(c.canvas.Rect)
	disposal := c.disposalOf(index)

	// A restore-to-previous frame needs the pixels it is about to cover
	// saved before the draw.
	if disposal == gif.DisposalPrevious {
		c.snapshot = copyRegion(c.canvas, bounds)
	}

	blit(c.canvas, frame, bounds)

	c.prevBounds = bounds
	c.prevDisposal = disposal
	c.lastComposed = index

	// The accumulator keeps mutating on subsequent calls, so the cache
	// gets its own copy.
	out := pixel.NewBuffer(c.width, c.height, pixel.FormatRGBA)
	copy(out.Bytes(), c.canvas.Pix)
	return out, nil
}

// Reset clears the canvas and rewinds the compositor to its pre-frame-0
// state. Required before composing index 0 again after a playback wrap.
func (c *Compositor) Reset() {
	c.clear()
	c.snapshot = nil
	c.prevBounds = image.Rectangle{}
	c.prevDisposal = 0
	c.lastComposed = -1
}

// disposePrevious applies the previous frame's disposal method to its
// region before the next frame is drawn.
func (c *Compositor) disposePrevious() {
	switch c.prevDisposal {
	case gif.DisposalBackground:
		fillRegion(c.canvas, c.prevBounds, c.background)
	case gif.DisposalPrevious:
		if c.snapshot != nil {
			restoreRegion(c.canvas, c.snapshot)
		}
	}
	c.snapshot = nil
}

func (c *Compositor) disposalOf(index int) byte {
	if index < len(c.g.Disposal) {
		return c.g.Disposal[index]
	}
	return gif.DisposalNone
}

func (c *Compositor) clear() {
	if c.background == (color.RGBA{}) {
		pix := c.canvas.Pix
		for i := range pix {
			pix[i] = 0
		}
		return
	}
	fillRegion(c.canvas, c.canvas.Rect, c.background)
}

// blit resolves the frame's indexed pixels through its palette and writes
// them into the canvas region. Pixels mapping to the transparency index
// are skipped, letting the prior canvas content show through.
func blit(dst *image.RGBA, frame *image.Paletted, bounds image.Rectangle) {
	if bounds.Empty() {
		return
	}

	var lut [256][4]byte
	var opaque [256]bool
	for i, col := range frame.Palette {
		r, g, b, a := col.RGBA()
		if a == 0 {
			continue
		}
		lut[i] = [4]byte{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
		opaque[i] = true
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		si := frame.PixOffset(bounds.Min.X, y)
		di := dst.PixOffset(bounds.Min.X, y)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if idx := frame.Pix[si]; opaque[idx] {
				px := &lut[idx]
				dst.Pix[di] = px[0]
				dst.Pix[di+1] = px[1]
				dst.Pix[di+2] = px[2]
				dst.Pix[di+3] = px[3]
			}
			si++
			di += 4
		}
	}
}

// fillRegion overwrites a canvas region with a single color. A zero color
// clears the region to transparent.
func fillRegion(dst *image.RGBA, r image.Rectangle, col color.RGBA) {
	r = r.Intersect(dst.Rect)
	if r.Empty() {
		return
	}

	// Fill the first row pixel by pixel, then replicate it.
	first := dst.PixOffset(r.Min.X, r.Min.Y)
	rowLen := r.Dx() * 4
	row := dst.Pix[first : first+rowLen]
	for i := 0; i < rowLen; i += 4 {
		row[i] = col.R
		row[i+1] = col.G
		row[i+2] = col.B
		row[i+3] = col.A
	}
	for y := r.Min.Y + 1; y < r.Max.Y; y++ {
		o := dst.PixOffset(r.Min.X, y)
		copy(dst.Pix[o:o+rowLen], row)
	}
}

// copyRegion snapshots a canvas region into a standalone image that
// remembers its own bounds.
func copyRegion(src *image.RGBA, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(r)
	rowLen := r.Dx() * 4
	for y := r.Min.Y; y < r.Max.Y; y++ {
		so := src.PixOffset(r.Min.X, y)
		do := out.PixOffset(r.Min.X, y)
		copy(out.Pix[do:do+rowLen], src.Pix[so:so+rowLen])
	}
	return out
}

// restoreRegion writes a snapshot back into the canvas at the bounds it
// was taken from.
func restoreRegion(dst *image.RGBA, snap *image.RGBA) {
	r := snap.Rect.Intersect(dst.Rect)
	rowLen := r.Dx() * 4
	for y := r.Min.Y; y < r.Max.Y; y++ {
		so := snap.PixOffset(r.Min.X, y)
		do := dst.PixOffset(r.Min.X, y)
		copy(dst.Pix[do:do+rowLen], snap.Pix[so:so+rowLen])
	}
}
