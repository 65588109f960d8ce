package compose

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"testing"

	"github.com/StanleySweet/gifbolt-go/pixel"
)

var (
	black = color.RGBA{0, 0, 0, 255}
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	transparent = color.RGBA{0, 0, 0, 0}
)

// solidFrame builds a paletted frame covering r with every pixel set to c.
func solidFrame(r image.Rectangle, c color.Color) *image.Paletted {
	return image.NewPaletted(r, color.Palette{c})
}

// newGIF assembles a decoded-GIF value with a 4x4 logical screen and an
// opaque global palette, the shape image/gif.DecodeAll produces.
func newGIF(frames []*image.Paletted, disposal []byte) *gif.GIF {
	return &gif.GIF{
		Image:    frames,
		Delay:    make([]int, len(frames)),
		Disposal: disposal,
		Config: image.Config{
			ColorModel: color.Palette{black, red, green, blue},
			Width:      4,
			Height:     4,
		},
		BackgroundIndex: 0,
	}
}

func pixelAt(t *testing.T, b *pixel.Buffer, x, y int) color.RGBA {
	t.Helper()
	o := (y*b.Width() + x) * 4
	p := b.Bytes()
	return color.RGBA{p[o], p[o+1], p[o+2], p[o+3]}
}

func composeThrough(t *testing.T, c *Compositor, index int) *pixel.Buffer {
	t.Helper()
	var out *pixel.Buffer
	for i := c.LastComposed() + 1; i <= index; i++ {
		buf, err := c.ComposeNext(i)
		if err != nil {
			t.Fatalf("ComposeNext(%d): %v", i, err)
		}
		if i < index {
			_ = buf.Release()
			continue
		}
		out = buf
	}
	return out
}

func TestComposeSequentialContract(t *testing.T) {
	full := image.Rect(0, 0, 4, 4)
	c := New(newGIF([]*image.Paletted{
		solidFrame(full, red),
		solidFrame(full, green),
		solidFrame(full, blue),
	}, nil))

	if _, err := c.ComposeNext(1); !errors.Is(err, ErrNonSequential) {
		t.Errorf("expected ErrNonSequential for a skip, got %v", err)
	}
	if _, err := c.ComposeNext(-1); !errors.Is(err, ErrFrameOutOfRange) {
		t.Errorf("expected ErrFrameOutOfRange for -1, got %v", err)
	}
	if _, err := c.ComposeNext(3); !errors.Is(err, ErrFrameOutOfRange) {
		t.Errorf("expected ErrFrameOutOfRange past the end, got %v", err)
	}

	buf, err := c.ComposeNext(0)
	if err != nil {
		t.Fatalf("ComposeNext(0): %v", err)
	}
	_ = buf.Release()

	// Rewinding without a reset is a contract violation too.
	if _, err := c.ComposeNext(0); !errors.Is(err, ErrNonSequential) {
		t.Errorf("expected ErrNonSequential for a rewind, got %v", err)
	}

	if got := c.LastComposed(); got != 0 {
		t.Errorf("expected LastComposed 0, got %d", got)
	}
}

func TestComposeDisposalBackground(t *testing.T) {
	// Frame 0 paints everything red and asks for its region to be
	// restored to the background. Frame 1 paints a small green square
	// with the same disposal. Frame 2 touches one corner. After frame 2
	// the red and green must both have been replaced by background.
	g := newGIF([]*image.Paletted{
		solidFrame(image.Rect(0, 0, 4, 4), red),
		solidFrame(image.Rect(1, 1, 3, 3), green),
		solidFrame(image.Rect(0, 0, 1, 1), blue),
	}, []byte{gif.DisposalBackground, gif.DisposalBackground, gif.DisposalNone})

	c := New(g)
	if got := c.Background(); got != black {
		t.Fatalf("expected opaque black background, got %v", got)
	}

	buf := composeThrough(t, c, 1)
	// Frame 0's full-canvas region was restored before frame 1 drew.
	if got := pixelAt(t, buf, 0, 0); got != black {
		t.Errorf("expected background at (0,0) after frame 1, got %v", got)
	}
	if got := pixelAt(t, buf, 1, 1); got != green {
		t.Errorf("expected green at (1,1) after frame 1, got %v", got)
	}
	_ = buf.Release()

	buf = composeThrough(t, c, 2)
	if got := pixelAt(t, buf, 0, 0); got != blue {
		t.Errorf("expected blue at (0,0) after frame 2, got %v", got)
	}
	if got := pixelAt(t, buf, 2, 2); got != black {
		t.Errorf("expected green square restored to background, got %v", got)
	}
	_ = buf.Release()
}

func TestComposeDisposalPrevious(t *testing.T) {
	// Frame 1 covers part of the red canvas and asks for those pixels
	// back afterwards; frame 2 must see the red restored.
	g := newGIF([]*image.Paletted{
		solidFrame(image.Rect(0, 0, 4, 4), red),
		solidFrame(image.Rect(1, 1, 3, 3), green),
		solidFrame(image.Rect(0, 0, 1, 1), blue),
	}, []byte{gif.DisposalNone, gif.DisposalPrevious, gif.DisposalNone})

	c := New(g)

	buf := composeThrough(t, c, 1)
	if got := pixelAt(t, buf, 2, 2); got != green {
		t.Errorf("expected green at (2,2) while frame 1 shows, got %v", got)
	}
	_ = buf.Release()

	buf = composeThrough(t, c, 2)
	if got := pixelAt(t, buf, 2, 2); got != red {
		t.Errorf("expected red restored at (2,2) after frame 2, got %v", got)
	}
	if got := pixelAt(t, buf, 0, 0); got != blue {
		t.Errorf("expected blue at (0,0) after frame 2, got %v", got)
	}
	_ = buf.Release()
}

func TestComposeTransparencySkip(t *testing.T) {
	// Frame 1 is almost entirely transparent; only its (0,0) pixel may
	// land, everything else shows the prior canvas through.
	overlay := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{transparent, blue})
	overlay.SetColorIndex(0, 0, 1)

	g := newGIF([]*image.Paletted{
		solidFrame(image.Rect(0, 0, 4, 4), red),
		overlay,
	}, []byte{gif.DisposalNone, gif.DisposalNone})

	c := New(g)
	buf := composeThrough(t, c, 1)
	if got := pixelAt(t, buf, 0, 0); got != blue {
		t.Errorf("expected blue at (0,0), got %v", got)
	}
	if got := pixelAt(t, buf, 3, 3); got != red {
		t.Errorf("expected red showing through at (3,3), got %v", got)
	}
	_ = buf.Release()
}

func TestComposeTransparentBackdrop(t *testing.T) {
	// Any transparency in the stream disables the background fill, even
	// with a valid background index: the backdrop stays fully clear.
	frame := image.NewPaletted(image.Rect(1, 1, 3, 3), color.Palette{transparent, green})
	for y := 1; y < 3; y++ {
		for x := 1; x < 3; x++ {
			frame.SetColorIndex(x, y, 1)
		}
	}

	g := newGIF([]*image.Paletted{frame}, nil)
	c := New(g)

	if !c.HasTransparency() {
		t.Fatal("expected transparency to be detected")
	}
	if got := c.Background(); got != transparent {
		t.Fatalf("expected clear background, got %v", got)
	}

	buf := composeThrough(t, c, 0)
	if got := pixelAt(t, buf, 0, 0); got != transparent {
		t.Errorf("expected untouched backdrop to stay clear, got %v", got)
	}
	if got := pixelAt(t, buf, 1, 1); got != green {
		t.Errorf("expected green inside the frame region, got %v", got)
	}
	_ = buf.Release()
}

func TestComposeResetDeterminism(t *testing.T) {
	g := newGIF([]*image.Paletted{
		solidFrame(image.Rect(0, 0, 4, 4), red),
		solidFrame(image.Rect(1, 1, 3, 3), green),
		solidFrame(image.Rect(0, 0, 2, 2), blue),
	}, []byte{gif.DisposalNone, gif.DisposalPrevious, gif.DisposalBackground})

	c := New(g)

	first := make([][]byte, 3)
	for i := 0; i < 3; i++ {
		buf, err := c.ComposeNext(i)
		if err != nil {
			t.Fatalf("first pass ComposeNext(%d): %v", i, err)
		}
		first[i] = buf.AppendTo(nil)
		_ = buf.Release()
	}

	c.Reset()
	if got := c.LastComposed(); got != -1 {
		t.Fatalf("expected LastComposed -1 after reset, got %d", got)
	}

	for i := 0; i < 3; i++ {
		buf, err := c.ComposeNext(i)
		if err != nil {
			t.Fatalf("second pass ComposeNext(%d): %v", i, err)
		}
		if !bytes.Equal(first[i], buf.Bytes()) {
			t.Errorf("frame %d differs after reset", i)
		}
		_ = buf.Release()
	}
}

func TestComposeCanvasSizeFallback(t *testing.T) {
	// No logical screen size in the header: the canvas takes the union
	// of the frame regions.
	g := &gif.GIF{
		Image: []*image.Paletted{
			solidFrame(image.Rect(2, 2, 6, 5), red),
			solidFrame(image.Rect(0, 0, 3, 3), green),
		},
		Delay: []int{0, 0},
	}

	c := New(g)
	w, h := c.Size()
	if w != 6 || h != 5 {
		t.Errorf("expected 6x5 canvas, got %dx%d", w, h)
	}
}

func TestComposeBufferIndependence(t *testing.T) {
	g := newGIF([]*image.Paletted{
		solidFrame(image.Rect(0, 0, 4, 4), red),
		solidFrame(image.Rect(0, 0, 4, 4), green),
	}, nil)

	c := New(g)
	frame0 := composeThrough(t, c, 0)
	frame1 := composeThrough(t, c, 1)

	// The canvas mutated for frame 1; frame 0's copy must not have.
	if got := pixelAt(t, frame0, 2, 2); got != red {
		t.Errorf("expected frame 0 buffer to stay red, got %v", got)
	}
	if got := pixelAt(t, frame1, 2, 2); got != green {
		t.Errorf("expected frame 1 buffer to be green, got %v", got)
	}
	_ = frame0.Release()
	_ = frame1.Release()
}
