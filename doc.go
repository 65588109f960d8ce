// Package gifbolt provides a decode-cache-playback engine for animated GIFs.
//
// # Overview
//
// gifbolt decodes an animation once, composes frames on demand through a
// disposal-aware compositor, keeps a bounded adaptive cache of finished
// frames, and prefetches ahead of playback on a background goroutine.
// Finished pixels are delivered as refcounted buffers in straight RGBA or
// premultiplied BGRA, optionally scaled, and can be pushed into a GPU
// texture through a pluggable surface backend.
//
// # Quick Start
//
//	import "github.com/StanleySweet/gifbolt-go"
//
//	dec := gifbolt.New()
//	if err := dec.LoadFile("spinner.gif"); err != nil {
//	    log.Fatal(err)
//	}
//	defer dec.Close()
//
//	buf, err := dec.FrameBGRAPremultiplied(0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer buf.Release()
//	// buf.Bytes() is the composited first frame, ready for a texture.
//
// For driving a texture directly, Renderer ties a Decoder, a playback
// state machine, and a backend surface together:
//
//	r := gifbolt.NewRenderer()
//	if err := r.LoadFile("spinner.gif"); err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//	r.Play()
//	for {
//	    complete, err := r.AdvanceAndUpdateSurface()
//	    if err != nil || complete {
//	        break
//	    }
//	    time.Sleep(r.CurrentDelay())
//	}
//
// # Architecture
//
// The library is organized into:
//   - Public API: Decoder, Player, Renderer, Metadata
//   - pixel: refcounted pixel buffers, format conversion, scaling
//   - cache: bounded adaptive frame cache and background prefetcher
//   - backend: surface registry with software, wgpu and host backends
//   - internal/compose: sequential disposal-aware frame composition
//
// # Concurrency
//
// A Decoder may be shared between a playback goroutine and the built-in
// prefetcher; frame access is internally synchronized. Surfaces belong to
// the goroutine that renders with them.
package gifbolt

// Version information
const (
	// Version is the current version of the library
	Version = "1.0.0"

	// VersionMajor is the major version
	VersionMajor = 1

	// VersionMinor is the minor version
	VersionMinor = 0

	// VersionPatch is the patch version
	VersionPatch = 0
)
