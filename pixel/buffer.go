// Package pixel provides reference-counted pixel buffers for composited
// animation frames, plus the format conversions and scaling used to hand
// frames to callers and GPU surfaces.
package pixel

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Format identifies the byte layout of a Buffer.
type Format uint8

const (
	// FormatRGBA is straight (non-premultiplied) alpha in R,G,B,A byte order.
	FormatRGBA Format = iota

	// FormatBGRAPremultiplied is premultiplied alpha in B,G,R,A byte order,
	// the layout hardware surfaces consume directly.
	FormatBGRAPremultiplied
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatRGBA:
		return "rgba"
	case FormatBGRAPremultiplied:
		return "bgra-premultiplied"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// Errors.
var (
	// ErrBufferReleased is returned when a handle is released twice or
	// used after release.
	ErrBufferReleased = errors.New("pixel: buffer already released")
)

// payload is the shared backing store behind one or more Buffer handles.
// It is freed (returned to the pool) when the last handle releases it.
type payload struct {
	data []byte
	refs atomic.Int32
}

// Buffer is a handle over reference-counted pixel memory.
//
// Multiple handles may alias the same underlying frame: Retain returns a
// new handle and bumps the shared count; Release must be called exactly
// once per handle. Releasing a handle twice returns ErrBufferReleased and
// leaves other live handles untouched. Bytes borrows the memory and is
// valid only until the handle's Release; use CopyTo or AppendTo for a
// caller-owned copy.
type Buffer struct {
	p        *payload
	width    int
	height   int
	stride   int
	format   Format
	released atomic.Bool
}

// NewBuffer allocates a buffer of width*height pixels in the given format.
// The pixel memory comes from a pool and is zeroed.
func NewBuffer(width, height int, format Format) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	stride := width * 4
	data := getBytes(stride * height)
	for i := range data {
		data[i] = 0
	}
	return newBuffer(data, width, height, stride, format)
}

// NewBufferBytes wraps existing pixel memory in a buffer handle without
// copying. The caller hands over ownership; the memory is pooled on final
// release, so it must have come from a plain allocation or getBytes.
func NewBufferBytes(data []byte, width, height int, format Format) *Buffer {
	return newBuffer(data, width, height, width*4, format)
}

func newBuffer(data []byte, width, height, stride int, format Format) *Buffer {
	p := &payload{data: data}
	p.refs.Store(1)
	return &Buffer{
		p:      p,
		width:  width,
		height: height,
		stride: stride,
		format: format,
	}
}

// Retain returns a new handle sharing this buffer's memory and increments
// the reference count. The new handle must be released independently.
func (b *Buffer) Retain() *Buffer {
	if b.released.Load() {
		return nil
	}
	b.p.refs.Add(1)
	return &Buffer{
		p:      b.p,
		width:  b.width,
		height: b.height,
		stride: b.stride,
		format: b.format,
	}
}

// Release drops this handle's reference. The underlying memory is recycled
// when the last handle is released. Releasing the same handle twice
// returns ErrBufferReleased and does not disturb other handles.
func (b *Buffer) Release() error {
	if !b.released.CompareAndSwap(false, true) {
		return ErrBufferReleased
	}
	if b.p.refs.Add(-1) == 0 {
		putBytes(b.p.data)
		b.p.data = nil
	}
	return nil
}

// Released reports whether this handle has been released.
func (b *Buffer) Released() bool {
	return b.released.Load()
}

// Bytes borrows the underlying pixel memory. The slice is valid only until
// this handle is released; it returns nil after release.
func (b *Buffer) Bytes() []byte {
	if b.released.Load() {
		return nil
	}
	return b.p.data
}

// Len returns the byte length of the pixel memory.
func (b *Buffer) Len() int {
	if b.released.Load() {
		return 0
	}
	return len(b.p.data)
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.height }

// Stride returns the byte distance between rows.
func (b *Buffer) Stride() int { return b.stride }

// Format returns the buffer's pixel format.
func (b *Buffer) Format() Format { return b.format }

// CopyTo copies the pixel bytes into dst and returns the number of bytes
// copied. This is the explicit opt-in copy, as opposed to borrowing via
// Bytes. Returns 0 after release.
func (b *Buffer) CopyTo(dst []byte) int {
	if b.released.Load() {
		return 0
	}
	return copy(dst, b.p.data)
}

// AppendTo appends the pixel bytes to dst and returns the extended slice.
func (b *Buffer) AppendTo(dst []byte) []byte {
	if b.released.Load() {
		return dst
	}
	return append(dst, b.p.data...)
}

// minBytesPooled keeps tiny slices out of the pool; below this size the
// allocator is cheaper than pool bookkeeping.
const minBytesPooled = 256

// bytePool recycles frame-sized pixel slices. Animation frames within one
// stream share a single size, so a plain pool with a capacity check wastes
// very little.
var bytePool = sync.Pool{
	New: func() any {
		b := make([]byte, 0)
		return &b
	},
}

// getBytes returns a slice of exactly n bytes, reusing pooled memory when
// its capacity suffices.
func getBytes(n int) []byte {
	bp := bytePool.Get().(*[]byte)
	b := *bp
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

// putBytes returns a slice to the pool.
func putBytes(b []byte) {
	if cap(b) < minBytesPooled {
		return
	}
	b = b[:cap(b)]
	bytePool.Put(&b)
}
