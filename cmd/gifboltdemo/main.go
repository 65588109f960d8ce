// Command gifboltdemo plays a GIF animation through the gifbolt engine,
// printing playback statistics and optionally dumping composed frames
// as PNG files.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gifbolt "github.com/StanleySweet/gifbolt-go"
	"github.com/StanleySweet/gifbolt-go/backend"
	"github.com/StanleySweet/gifbolt-go/pixel"
)

func main() {
	var (
		backends = flag.String("backends", "", "comma-separated backend order (default: best available)")
		repeat   = flag.String("repeat", "", `repeat policy: "Forever", "3x", or empty for stream metadata`)
		passes   = flag.Int("passes", 1, "number of passes to play (0 = honor the repeat count)")
		dumpDir  = flag.String("dump", "", "directory to write per-frame PNGs to")
		verbose  = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <gif_file>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	path := flag.Arg(0)

	if *verbose {
		gifbolt.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	opts := []gifbolt.Option{gifbolt.WithRepeatPolicy(*repeat)}
	if *backends != "" {
		var names []string
		for _, name := range strings.Split(*backends, ",") {
			names = append(names, strings.TrimSpace(name))
		}
		opts = append(opts, gifbolt.WithBackendOrder(names...))
	}

	r := gifbolt.NewRenderer(opts...)
	defer r.Close()

	log.Printf("Loading %s", path)
	if err := r.LoadFile(path); err != nil {
		log.Fatalf("Failed to load %s: %v", path, err)
	}

	printProperties(r.Decoder())

	if err := play(r, *passes, *dumpDir); err != nil {
		log.Fatalf("Playback failed: %v", err)
	}

	fmt.Println("Animation complete.")
}

func printProperties(d *gifbolt.Decoder) {
	m := d.Metadata()
	loop := fmt.Sprint(m.LoopCount)
	if m.Looping {
		loop = "forever"
	}
	fmt.Printf("Properties:\n")
	fmt.Printf("  Dimensions:       %dx%d\n", m.Width, m.Height)
	fmt.Printf("  Frames:           %d\n", m.FrameCount)
	fmt.Printf("  Loops:            %s\n", loop)
	fmt.Printf("  Has transparency: %v\n", m.HasTransparency)
	fmt.Printf("  Cache capacity:   %d frames\n", d.CacheCapacity())
	fmt.Printf("  Backends:         %s\n", strings.Join(backend.Available(), ", "))
}

// play runs the render loop: show the first frame, then advance on the
// stream's own timing until the pass budget or the repeat count runs
// out. Frames of the first pass are dumped when dir is set.
func play(r *gifbolt.Renderer, passes int, dir string) error {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	frameCount := r.Decoder().FrameCount()
	if err := r.UpdateSurface(0); err != nil {
		return err
	}
	if err := dumpFrame(r, dir); err != nil {
		return err
	}

	r.Play()

	shown := 1
	windowShown := 0
	windowStart := time.Now()
	for {
		time.Sleep(r.CurrentDelay())

		complete, err := r.AdvanceAndUpdateSurface()
		if err != nil {
			return err
		}
		if complete {
			return nil
		}
		shown++
		windowShown++

		if shown <= frameCount {
			if err := dumpFrame(r, dir); err != nil {
				return err
			}
		}

		if elapsed := time.Since(windowStart); elapsed >= time.Second {
			stats := r.Decoder().CacheStats()
			fmt.Printf("FPS: %3.0f | Frame: %d/%d | Cached: %d | Hit rate: %.0f%%\n",
				float64(windowShown)/elapsed.Seconds(),
				r.CurrentFrame()+1, frameCount,
				stats.Len, stats.HitRate*100)
			windowShown = 0
			windowStart = time.Now()
		}

		if passes > 0 && shown >= passes*frameCount {
			return nil
		}
	}
}

// dumpFrame writes the software surface's content as a PNG named after
// the current frame. GPU-resident surfaces are skipped.
func dumpFrame(r *gifbolt.Renderer, dir string) error {
	if dir == "" {
		return nil
	}
	s, ok := r.Surface().(*backend.SoftwareSurface)
	if !ok {
		return nil
	}
	pix := s.Snapshot()
	pixel.SwapRB(pix, len(pix)/4)
	img := &image.RGBA{
		Pix:    pix,
		Stride: s.Width() * 4,
		Rect:   image.Rect(0, 0, s.Width(), s.Height()),
	}

	name := filepath.Join(dir, fmt.Sprintf("frame_%04d.png", r.CurrentFrame()))
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
