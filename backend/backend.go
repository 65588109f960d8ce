package backend

import "errors"

// Backend name constants.
const (
	// BackendSoftware is the name of the CPU-based software backend.
	BackendSoftware = "software"
	// BackendWGPU is the name of the Pure Go GPU backend (gogpu/wgpu).
	BackendWGPU = "wgpu"
	// BackendHost is the name of the embedder-provided backend
	// (gpucontext.TextureDrawer).
	BackendHost = "host"
)

// Standard priorities. Higher is preferred during auto-selection.
const (
	// PriorityHost ranks an embedder-registered device first: frames
	// land directly in textures the host UI composites.
	PriorityHost = 150
	// PriorityGPU ranks hardware backends above software.
	PriorityGPU = 100
	// PrioritySoftware is the always-available fallback.
	PrioritySoftware = 10
)

// Common backend errors.
var (
	// ErrSurfaceDestroyed is returned when a surface is used after Destroy.
	ErrSurfaceDestroyed = errors.New("backend: surface destroyed")

	// ErrBadUpdateSize is returned when Update is called with a pixel
	// slice that does not match the surface dimensions.
	ErrBadUpdateSize = errors.New("backend: pixel data does not match surface size")

	// ErrBadSurfaceSize is returned for non-positive surface dimensions.
	ErrBadSurfaceSize = errors.New("backend: surface dimensions must be positive")
)

// Surface is one uploadable texture owned by a backend.
//
// Update takes a full frame of premultiplied BGRA bytes, width*height*4
// of them; partial updates are not supported because GIF frames always
// resolve to the full canvas. Implementations copy or upload the data
// before returning, so the caller may reuse the slice immediately.
//
// A Surface is owned by the goroutine driving playback. Destroy is
// idempotent; every other method fails with ErrSurfaceDestroyed after it.
type Surface interface {
	// Width returns the surface width in pixels.
	Width() int

	// Height returns the surface height in pixels.
	Height() int

	// Update replaces the surface content with a full frame of
	// premultiplied BGRA pixels.
	Update(pix []byte) error

	// NativeHandle returns the backend's texture object for zero-copy
	// embedding, or nil when the backend has none (software).
	NativeHandle() any

	// Destroy releases the surface's resources.
	Destroy()
}

// Factory creates a Surface with the given dimensions.
// Implementations validate dimensions and return descriptive errors.
type Factory func(width, height int) (Surface, error)

// Backend is the object form of a surface provider. Most backends
// register a bare Factory in init; an embedder whose provider carries
// state (a device, a swapchain) can implement Backend and hand it to
// RegisterBackend instead.
type Backend interface {
	// Name returns the registry name surfaces are requested under.
	Name() string

	// CreateSurface creates a surface with the given dimensions.
	CreateSurface(width, height int) (Surface, error)
}

// RegisterBackend adds b to the global registry at the given priority.
// A nil available func means always available.
func RegisterBackend(b Backend, priority int, available func() bool) {
	Register(b.Name(), priority, b.CreateSurface, available)
}
