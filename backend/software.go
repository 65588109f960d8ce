package backend

import "sync"

// SoftwareSurface is the CPU fallback: a plain pixel store with no
// native handle. It keeps playback working on machines with no usable
// GPU and gives tests something deterministic to assert against.
//
// Unlike the GPU surfaces it is safe for concurrent use; a UI thread may
// snapshot while the playback goroutine updates.
type SoftwareSurface struct {
	mu        sync.Mutex
	width     int
	height    int
	pix       []byte // premultiplied BGRA, width*height*4
	destroyed bool
}

var _ Surface = (*SoftwareSurface)(nil)

// init registers the software backend on package import.
func init() {
	Register(BackendSoftware, PrioritySoftware, func(width, height int) (Surface, error) {
		return NewSoftwareSurface(width, height)
	}, nil)
}

// NewSoftwareSurface creates a CPU-backed surface with the given
// dimensions.
func NewSoftwareSurface(width, height int) (*SoftwareSurface, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrBadSurfaceSize
	}
	return &SoftwareSurface{
		width:  width,
		height: height,
		pix:    make([]byte, width*height*4),
	}, nil
}

// Width returns the surface width.
func (s *SoftwareSurface) Width() int { return s.width }

// Height returns the surface height.
func (s *SoftwareSurface) Height() int { return s.height }

// Update copies pix into the surface. The slice is not retained.
func (s *SoftwareSurface) Update(pix []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	if len(pix) != len(s.pix) {
		return ErrBadUpdateSize
	}
	copy(s.pix, pix)
	return nil
}

// NativeHandle returns nil; a software surface has no device texture.
func (s *SoftwareSurface) NativeHandle() any { return nil }

// Snapshot returns a copy of the current content, or nil after Destroy.
func (s *SoftwareSurface) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	out := make([]byte, len(s.pix))
	copy(out, s.pix)
	return out
}

// Destroy releases the pixel store. Idempotent.
func (s *SoftwareSurface) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.pix = nil
}
