// Package wgpu provides a hardware surface backend on the gogpu/wgpu HAL.
//
// Frames are uploaded into a BGRA8 texture with queue.WriteTexture followed
// by a fence-synchronized submit, so Update returns only after the pixels
// are visible to the GPU. A naga-compiled compute pipeline for straight
// RGBA to premultiplied BGRA conversion is created alongside each surface;
// until the HAL exposes buffer mapping for readback the conversion itself
// runs on the CPU with the same arithmetic as the shader.
//
// The backend registers itself under the name "wgpu" at priority 100 and
// reports available when a Vulkan device can be opened. Builds with the
// nogpu tag compile this package to documentation only, leaving the
// registry to fall back to the software backend.
package wgpu
