// Package host adapts an embedding application's GPU device into a frame
// surface. The embedder shares its gpucontext.TextureDrawer (for gogpu
// applications, dc.AsTextureDrawer()) via Register, which places the
// backend at the top of the registry; frames then land in textures the
// host UI composites directly.
//
//	app.OnDraw(func(dc *gogpu.Context) {
//	    host.Register(dc.AsTextureDrawer())
//	    ...
//	})
//
// Only the embedder has the device, so unlike the software and wgpu
// backends this one never self-registers.
package host

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/StanleySweet/gifbolt-go/backend"
	"github.com/StanleySweet/gifbolt-go/pixel"
)

// Host backend errors.
var (
	// ErrNoDrawer is returned when a surface is requested with no drawer
	// registered.
	ErrNoDrawer = errors.New("host: no drawer registered")

	// ErrNoCreator is returned when the registered drawer exposes no
	// texture creator.
	ErrNoCreator = errors.New("host: drawer has no texture creator")

	// ErrNoTexture is returned by Draw before the first Update has
	// created a texture.
	ErrNoTexture = errors.New("host: no texture uploaded yet")

	// ErrNotDrawable is returned when the host texture does not satisfy
	// gpucontext.Texture.
	ErrNotDrawable = errors.New("host: texture is not drawable")
)

var (
	drawerMu sync.Mutex
	drawer   gpucontext.TextureDrawer
)

// Register shares the embedding application's device with the backend
// registry at the highest standard priority. Calling it again replaces
// the drawer; existing surfaces keep the one they were created with.
func Register(dc gpucontext.TextureDrawer) {
	drawerMu.Lock()
	drawer = dc
	drawerMu.Unlock()

	backend.Register(backend.BackendHost, backend.PriorityHost, newSurface, available)
	backend.Logger().Debug("host: backend registered")
}

// Unregister removes the host backend from the registry and drops the
// drawer reference.
func Unregister() {
	drawerMu.Lock()
	drawer = nil
	drawerMu.Unlock()

	backend.Unregister(backend.BackendHost)
}

func available() bool {
	drawerMu.Lock()
	defer drawerMu.Unlock()
	return drawer != nil && drawer.TextureCreator() != nil
}

func newSurface(width, height int) (backend.Surface, error) {
	drawerMu.Lock()
	dc := drawer
	drawerMu.Unlock()

	if dc == nil {
		return nil, ErrNoDrawer
	}
	creator := dc.TextureCreator()
	if creator == nil {
		return nil, ErrNoCreator
	}

	return newSurfaceFuncs(width, height,
		creator.NewTextureFromRGBA,
		func(tex any, x, y float32) error {
			gpuTex, ok := tex.(gpucontext.Texture)
			if !ok {
				return ErrNotDrawable
			}
			return dc.DrawTexture(gpuTex, x, y)
		},
	)
}

// updateData matches gpucontext.TextureUpdater, probed on host textures
// so repeat frames update in place instead of recreating the texture.
type updateData interface {
	UpdateData(data []byte) error
}

// premultipliedMarker matches the optional SetPremultiplied probe on host
// textures.
type premultipliedMarker interface {
	SetPremultiplied(bool)
}

// textureDestroyer matches the optional Destroy on host textures.
type textureDestroyer interface {
	Destroy()
}

// Surface uploads frames into a texture owned by the host device. The
// texture is created lazily on the first Update: host texture creators
// need initial pixel data.
type Surface struct {
	mu sync.Mutex

	newTexture  func(width, height int, data []byte) (any, error)
	drawTexture func(tex any, x, y float32) error

	texture   any
	scratch   []byte // premultiplied RGBA staging, width*height*4
	width     int
	height    int
	destroyed bool
}

var _ backend.Surface = (*Surface)(nil)

// newSurfaceFuncs builds a Surface on narrowed creation and draw
// functions. The registry path wraps the registered drawer; tests
// substitute fakes.
func newSurfaceFuncs(width, height int, newTexture func(int, int, []byte) (any, error), drawTexture func(any, float32, float32) error) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, backend.ErrBadSurfaceSize
	}
	return &Surface{
		newTexture:  newTexture,
		drawTexture: drawTexture,
		width:       width,
		height:      height,
	}, nil
}

// Width returns the surface width in pixels.
func (s *Surface) Width() int { return s.width }

// Height returns the surface height in pixels.
func (s *Surface) Height() int { return s.height }

// Update hands width*height*4 bytes of premultiplied BGRA to the host
// device. Host texture creators take RGBA, so the channels are swapped
// into a staging buffer first; pix is never modified. The first call
// creates the texture, later calls update it in place when the host
// texture supports that, and recreate-then-destroy otherwise.
func (s *Surface) Update(pix []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return backend.ErrSurfaceDestroyed
	}
	if len(pix) != s.width*s.height*4 {
		return backend.ErrBadUpdateSize
	}

	if s.scratch == nil {
		s.scratch = make([]byte, s.width*s.height*4)
	}
	copy(s.scratch, pix)
	pixel.SwapRB(s.scratch, s.width*s.height)

	if s.texture != nil {
		if updater, ok := s.texture.(updateData); ok {
			return updater.UpdateData(s.scratch)
		}
	}

	tex, err := s.newTexture(s.width, s.height, s.scratch)
	if err != nil {
		return fmt.Errorf("host: texture creation failed: %w", err)
	}

	// Frame data is premultiplied alpha; mark the texture so the host
	// composites it with a one-factor blend.
	if pt, ok := tex.(premultipliedMarker); ok {
		pt.SetPremultiplied(true)
	}

	// Texture creation waits for the GPU internally, so the old texture
	// is no longer referenced by in-flight work and can go now.
	old := s.texture
	s.texture = tex
	if old != nil {
		if destroyer, ok := old.(textureDestroyer); ok {
			destroyer.Destroy()
		}
	}
	return nil
}

// Draw asks the host device to composite the current texture at (x, y).
func (s *Surface) Draw(x, y float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return backend.ErrSurfaceDestroyed
	}
	if s.texture == nil {
		return ErrNoTexture
	}
	return s.drawTexture(s.texture, x, y)
}

// NativeHandle returns the host texture object, nil until the first
// Update and after Destroy. Embedders assert it to gpucontext.Texture.
func (s *Surface) NativeHandle() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return nil
	}
	return s.texture
}

// Destroy releases the host texture. Idempotent.
func (s *Surface) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.destroyed = true

	if s.texture != nil {
		if destroyer, ok := s.texture.(textureDestroyer); ok {
			destroyer.Destroy()
		}
		s.texture = nil
	}
	s.scratch = nil
}
