// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/filbot/iss-tracker/internal/render"
)

// PreviewSink implements Driver without hardware. Frames land as PNG
// files on a fixed cadence so rendering can be checked on a dev box.
type PreviewSink struct {
	dir    string
	width  int
	height int
	every  time.Duration

	lastSave time.Time
	saved    int

	now func() time.Time
}

func NewPreviewSink(dir string, width, height int, every time.Duration) (*PreviewSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("preview dir: %w", err)
	}
	return &PreviewSink{
		dir:    dir,
		width:  width,
		height: height,
		every:  every,
		now:    time.Now,
	}, nil
}

// Blit enforces the same length contract as the hardware path, then
// saves at most one PNG per cadence interval.
func (s *PreviewSink) Blit(frame []byte) error {
	if want := s.width * s.height * 2; len(frame) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrFrameSize, len(frame), want)
	}
	now := s.now()
	if !s.lastSave.IsZero() && now.Sub(s.lastSave) < s.every {
		return nil
	}
	img, err := render.DecodeImage(frame, s.width, s.height)
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, fmt.Sprintf("frame-%d.png", now.Unix()))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing preview: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding preview: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.lastSave = now
	s.saved++
	return nil
}

func (s *PreviewSink) Maintain() {}

func (s *PreviewSink) Reinit() error { return nil }

func (s *PreviewSink) Close() error {
	log.Printf("display: preview sink wrote %d frames to %s", s.saved, s.dir)
	return nil
}
