package pixel

import (
	"runtime"
	"sync"

	"github.com/StanleySweet/gifbolt-go/internal/parallel"
)

// ParallelThreshold is the pixel count above which conversions run in
// chunks on the worker pool. Below it (~316x316) thread handoff costs more
// than the conversion itself.
const ParallelThreshold = 100000

var (
	convertPoolOnce sync.Once
	convertPool     *parallel.WorkerPool
)

// convertWorkers returns the shared conversion pool, created on first use
// with min(GOMAXPROCS, parallel.MaxWorkers) workers.
func convertWorkers() *parallel.WorkerPool {
	convertPoolOnce.Do(func() {
		convertPool = parallel.NewWorkerPool(runtime.GOMAXPROCS(0))
	})
	return convertPool
}

// convertChunk converts pixels [start, end) from straight RGBA to
// premultiplied BGRA in a single pass. Fully transparent pixels are zeroed
// in all four bytes to avoid color bleed; fully opaque pixels only swap
// R and B.
func convertChunk(src, dst []byte, start, end int) {
	for i := start; i < end; i++ {
		o := i * 4
		r := src[o]
		g := src[o+1]
		b := src[o+2]
		alpha := src[o+3]

		switch {
		case alpha == 0:
			dst[o] = 0
			dst[o+1] = 0
			dst[o+2] = 0
			dst[o+3] = 0
		case alpha < 255:
			factor := float32(alpha) / 255.0
			dst[o] = uint8(float32(b) * factor)
			dst[o+1] = uint8(float32(g) * factor)
			dst[o+2] = uint8(float32(r) * factor)
			dst[o+3] = alpha
		default:
			dst[o] = b
			dst[o+1] = g
			dst[o+2] = r
			dst[o+3] = alpha
		}
	}
}

// ConvertBGRAPremultiplied converts straight RGBA bytes into premultiplied
// BGRA bytes in a single pass. dst and src must both hold pixelCount*4
// bytes. Large images are converted in parallel chunks.
func ConvertBGRAPremultiplied(src, dst []byte, pixelCount int) {
	if pixelCount <= 0 {
		return
	}

	if pixelCount < ParallelThreshold {
		convertChunk(src, dst, 0, pixelCount)
		return
	}

	pool := convertWorkers()
	chunks := parallel.Split(pixelCount, pool.Workers())
	jobs := make([]func(), len(chunks))
	for i, c := range chunks {
		c := c
		jobs[i] = func() { convertChunk(src, dst, c.Start, c.End) }
	}
	pool.ExecuteAll(jobs)
}

// ToBGRAPremultiplied returns a new buffer holding src converted from
// straight RGBA to premultiplied BGRA. The source buffer is not modified
// and keeps its own lifetime.
func ToBGRAPremultiplied(src *Buffer) *Buffer {
	w, h := src.Width(), src.Height()
	out := NewBufferBytes(getBytes(w*h*4), w, h, FormatBGRAPremultiplied)
	ConvertBGRAPremultiplied(src.Bytes(), out.Bytes(), w*h)
	return out
}
