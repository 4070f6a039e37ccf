// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// framepack builds the pre-rendered globe frame pack from a directory of
// numbered PNG frames, and inspects existing packs.
//
//	framepack -src renders/ -out var/cache/frames.bin
//	framepack -info var/cache/frames.bin
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/filbot/iss-tracker/internal/frames"
	"github.com/filbot/iss-tracker/internal/render"
)

func main() {
	src := flag.String("src", "", "directory of PNG frames to pack")
	out := flag.String("out", "frames.bin", "output pack path")
	info := flag.String("info", "", "print pack info and exit")
	flag.Parse()

	switch {
	case *info != "":
		if err := printInfo(*info); err != nil {
			log.Fatalf("fatal: %v", err)
		}
	case *src != "":
		if err := pack(*src, *out); err != nil {
			log.Fatalf("fatal: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// pack encodes the PNGs in srcDir, in name order, into a single pack.
// Every frame must share the geometry of the first one.
func pack(srcDir, outPath string) error {
	paths, err := filepath.Glob(filepath.Join(srcDir, "*.png"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PNG frames in %s", srcDir)
	}
	sort.Strings(paths)

	var set *frames.Set
	for i, path := range paths {
		img, err := loadPNG(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		b := img.Bounds()
		if set == nil {
			set = frames.NewSet(b.Dx(), b.Dy(), len(paths))
		} else if b.Dx() != set.Width || b.Dy() != set.Height {
			return fmt.Errorf("%s: %dx%d does not match first frame %dx%d",
				path, b.Dx(), b.Dy(), set.Width, set.Height)
		}
		if err := set.SetFrame(i, render.EncodeImage(img)); err != nil {
			return err
		}
	}

	if err := frames.SavePack(outPath, set); err != nil {
		return err
	}
	log.Printf("packed %d frames of %dx%d into %s", set.Count, set.Width, set.Height, outPath)
	return nil
}

func printInfo(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	set, err := frames.Read(f)
	if err != nil {
		return err
	}

	st, err := f.Stat()
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d frames, %dx%d, %s\n",
		path, set.Count, set.Width, set.Height, humanize.Bytes(uint64(st.Size())))
	fmt.Printf("frame 0 faces longitude %.1f, step %.2f degrees\n",
		set.ViewLongitude(0), 360/float64(set.Count))
	return nil
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}
