// preview composites a single display frame to PNG without any hardware,
// for checking themes and frame packs on a development machine.
package main

import (
	"flag"
	"image/png"
	"log"
	"os"

	"github.com/filbot/iss-tracker/internal/fix"
	"github.com/filbot/iss-tracker/internal/frames"
	"github.com/filbot/iss-tracker/internal/render"
	"github.com/filbot/iss-tracker/internal/theme"
)

func main() {
	cachePath := flag.String("cache", "var/cache/frames.bin", "frame pack path")
	themePath := flag.String("theme", "theme.yaml", "theme file, defaults when absent")
	lat := flag.Float64("lat", 0, "satellite latitude in degrees")
	lon := flag.Float64("lon", 0, "satellite longitude in degrees")
	alt := flag.Float64("alt", 420, "altitude in km")
	vel := flag.Float64("vel", 27600, "velocity in km/h")
	idx := flag.Int("frame", 0, "frame index to composite")
	out := flag.String("out", "preview.png", "output PNG path")
	flag.Parse()

	th, err := theme.LoadOrDefault(*themePath)
	if err != nil {
		log.Fatalf("theme: %v", err)
	}

	pack, err := os.Open(*cachePath)
	if err != nil {
		log.Fatalf("frame pack: %v", err)
	}
	set, err := frames.Read(pack)
	pack.Close()
	if err != nil {
		log.Fatalf("frame pack: %v", err)
	}

	comp := render.NewCompositor(set, th, nil)
	i := ((*idx % set.Count) + set.Count) % set.Count
	buf := comp.Composite(i, fix.Fix{
		Latitude:    *lat,
		Longitude:   *lon,
		AltitudeKm:  alt,
		VelocityKmh: vel,
	})

	img, err := render.DecodeImage(buf, set.Width, set.Height)
	if err != nil {
		log.Fatalf("decode: %v", err)
	}

	dst, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create: %v", err)
	}
	if err := png.Encode(dst, img); err != nil {
		dst.Close()
		log.Fatalf("png encode: %v", err)
	}
	if err := dst.Close(); err != nil {
		log.Fatalf("close: %v", err)
	}

	log.Printf("wrote %s: frame %d at %.2f, %.2f", *out, i, *lat, *lon)
}
