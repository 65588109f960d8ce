//go:build !nogpu

package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/types"

	"github.com/StanleySweet/gifbolt-go/backend"
	"github.com/StanleySweet/gifbolt-go/pixel"
)

// Surface is a GPU texture surface. Update uploads premultiplied BGRA
// pixels into a BGRA8Unorm texture and blocks until the upload completes,
// so callers may reuse or release the pixel slice immediately after.
//
// The surface belongs to the goroutine that created it. Destroy releases
// the texture but leaves the shared device open.
type Surface struct {
	mu        sync.Mutex
	dev       *sharedDevice
	texture   hal.Texture
	premul    *premultiplyPipeline
	scratch   []byte
	width     int
	height    int
	destroyed bool
}

var _ backend.Surface = (*Surface)(nil)

// NewSurface creates a GPU surface of the given size, opening the shared
// device on first use.
func NewSurface(width, height int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, backend.ErrBadSurfaceSize
	}

	dev, err := acquireDevice()
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w", err)
	}

	texture, err := dev.device.CreateTexture(&hal.TextureDescriptor{
		Label: "gifbolt_frame",
		Size: hal.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     types.TextureDimension2D,
		Format:        types.TextureFormatBGRA8Unorm,
		Usage:         types.TextureUsageCopySrc | types.TextureUsageCopyDst | types.TextureUsageStorageBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture: %w", err)
	}

	// Pipeline creation failure is not fatal: UpdateRGBA falls back to
	// the same conversion on the CPU.
	premul, err := newPremultiplyPipeline(dev.device)
	if err != nil {
		backend.Logger().Warn("wgpu: premultiply pipeline unavailable, conversions stay on the CPU", "error", err)
		premul = nil
	}

	return &Surface{
		dev:     dev,
		texture: texture,
		premul:  premul,
		width:   width,
		height:  height,
	}, nil
}

// Width returns the surface width in pixels.
func (s *Surface) Width() int { return s.width }

// Height returns the surface height in pixels.
func (s *Surface) Height() int { return s.height }

// Update uploads width*height*4 bytes of premultiplied BGRA into the
// texture and waits for the upload to complete.
func (s *Surface) Update(pix []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return backend.ErrSurfaceDestroyed
	}
	if len(pix) != s.width*s.height*4 {
		return fmt.Errorf("%w: got %d bytes, want %d", backend.ErrBadUpdateSize, len(pix), s.width*s.height*4)
	}
	return s.uploadLocked(pix)
}

// UpdateRGBA uploads straight-alpha RGBA pixels, converting them to
// premultiplied BGRA on the way in. This is the direct path for callers
// holding raw frame data; the conversion uses the compute pipeline's
// arithmetic (on the CPU until the HAL exposes buffer mapping).
func (s *Surface) UpdateRGBA(pix []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return backend.ErrSurfaceDestroyed
	}
	if len(pix) != s.width*s.height*4 {
		return fmt.Errorf("%w: got %d bytes, want %d", backend.ErrBadUpdateSize, len(pix), s.width*s.height*4)
	}

	if s.scratch == nil {
		s.scratch = make([]byte, s.width*s.height*4)
	}
	if s.premul != nil {
		s.premul.Convert(pix, s.scratch, s.width*s.height)
	} else {
		pixel.ConvertBGRAPremultiplied(pix, s.scratch, s.width*s.height)
	}
	return s.uploadLocked(s.scratch)
}

// uploadLocked writes pix into the texture and blocks on a fence until
// the queue has consumed it. Callers hold s.mu.
func (s *Surface) uploadLocked(pix []byte) error {
	s.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  s.texture,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: 0, Y: 0, Z: 0},
			Aspect:   types.TextureAspectAll,
		},
		pix,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(s.width * 4),
			RowsPerImage: uint32(s.height),
		},
		&hal.Extent3D{
			Width:              uint32(s.width),
			Height:             uint32(s.height),
			DepthOrArrayLayers: 1,
		},
	)

	// Fence-synchronized empty submit, so the staging copy is done
	// before the pixel slice goes back to the caller.
	fence, err := s.dev.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer s.dev.device.DestroyFence(fence)

	if err := s.dev.queue.Submit(nil, fence, 1); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}

	// Wait for completion (timeout 5 seconds).
	if _, err := s.dev.device.Wait(fence, 1, 5_000_000_000); err != nil {
		return fmt.Errorf("wgpu: wait for upload: %w", err)
	}
	return nil
}

// NativeHandle returns the hal.Texture holding the current frame, or nil
// after Destroy.
func (s *Surface) NativeHandle() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return nil
	}
	return s.texture
}

// Destroy releases the texture and pipeline. The shared device stays
// open for other surfaces. Destroy is idempotent.
func (s *Surface) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.destroyed = true

	if s.premul != nil {
		s.premul.Destroy()
		s.premul = nil
	}
	if s.texture != nil {
		s.dev.device.DestroyTexture(s.texture)
		s.texture = nil
	}
	s.scratch = nil
}
