// Package backend abstracts where resolved GIF frames end up: a GPU
// texture, a host-provided device, or plain CPU memory.
//
// A backend is a named Factory in a priority registry. The renderer asks
// for "the best surface you can give me at these dimensions" and the
// registry walks candidates from highest priority down, so a machine
// without a GPU degrades to the software surface instead of failing.
//
// Three backends ship with the module:
//
//   - software (priority 10): always available, no native handle. Lives
//     in this package so the registry is never empty.
//   - wgpu (priority 100): a device-owning texture on the Pure Go WebGPU
//     stack. Opt in with a blank import of backend/wgpu; excluded from
//     builds with the nogpu tag.
//   - host (priority 150): textures created through an embedder's
//     gpucontext.TextureDrawer. Registered explicitly via host.Register
//     because only the embedding application has the device.
//
// Third-party backends register the same way the built-in ones do:
//
//	func init() {
//	    backend.Register("mybackend", 120, newMySurface, myProbe)
//	}
package backend
