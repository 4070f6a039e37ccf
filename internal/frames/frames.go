// Package frames loads the pre-rendered globe animation. Rendering the
// rotating planet on a Pi Zero is too slow to do per tick, so an offline
// tool bakes every rotation step into one RGB565 pack that the compositor
// copies from at runtime.
package frames

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	packMagic   = "ISSF"
	packVersion = 1
	headerSize  = 12
)

// Set is a loaded frame pack. Frames are stored back to back as RGB565
// big-endian pixels, one full screen each.
type Set struct {
	Width  int
	Height int
	Count  int

	data []byte
}

// NewSet allocates an empty pack for the given geometry.
func NewSet(width, height, count int) *Set {
	return &Set{
		Width:  width,
		Height: height,
		Count:  count,
		data:   make([]byte, width*height*2*count),
	}
}

// FrameSize returns the byte length of a single frame.
func (s *Set) FrameSize() int {
	return s.Width * s.Height * 2
}

// Frame returns the pixel data of frame i. The returned slice aliases the
// pack; callers must copy before mutating.
func (s *Set) Frame(i int) []byte {
	size := s.FrameSize()
	return s.data[i*size : (i+1)*size]
}

// SetFrame copies buf into frame i.
func (s *Set) SetFrame(i int, buf []byte) error {
	size := s.FrameSize()
	if len(buf) != size {
		return fmt.Errorf("frame %d: got %d bytes, want %d", i, len(buf), size)
	}
	copy(s.data[i*size:(i+1)*size], buf)
	return nil
}

// ViewLongitude returns the sub-view longitude frame i was rendered at.
// Frame 0 faces longitude -180 and the set spans one full rotation.
func (s *Set) ViewLongitude(i int) float64 {
	return float64(i)*360/float64(s.Count) - 180
}

// Read parses a frame pack from r, rejecting trailing bytes so a
// truncated or concatenated file cannot slip through.
func Read(r io.Reader) (*Set, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if string(hdr[0:4]) != packMagic {
		return nil, errors.New("bad magic, not a frame pack")
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != packVersion {
		return nil, fmt.Errorf("unsupported pack version %d", v)
	}
	width := int(binary.LittleEndian.Uint16(hdr[6:8]))
	height := int(binary.LittleEndian.Uint16(hdr[8:10]))
	count := int(binary.LittleEndian.Uint16(hdr[10:12]))
	if width <= 0 || height <= 0 || count <= 0 {
		return nil, fmt.Errorf("empty geometry %dx%d, %d frames", width, height, count)
	}

	set := NewSet(width, height, count)
	if _, err := io.ReadFull(r, set.data); err != nil {
		return nil, fmt.Errorf("reading %d frames: %w", count, err)
	}
	var extra [1]byte
	if n, _ := io.ReadFull(r, extra[:]); n != 0 {
		return nil, errors.New("trailing bytes after last frame")
	}
	return set, nil
}

// Write serializes the pack to w.
func Write(w io.Writer, s *Set) error {
	var hdr [headerSize]byte
	copy(hdr[0:4], packMagic)
	binary.LittleEndian.PutUint16(hdr[4:6], packVersion)
	binary.LittleEndian.PutUint16(hdr[6:8], uint16(s.Width))
	binary.LittleEndian.PutUint16(hdr[8:10], uint16(s.Height))
	binary.LittleEndian.PutUint16(hdr[10:12], uint16(s.Count))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := w.Write(s.data); err != nil {
		return fmt.Errorf("writing frames: %w", err)
	}
	return nil
}

// Load reads the pack at path and checks it against the configured
// geometry. Callers treat a mismatch as fatal.
func Load(path string, wantWidth, wantHeight, wantCount int) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening frame pack: %w", err)
	}
	defer f.Close()

	set, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("frame pack %s: %w", path, err)
	}
	if set.Width != wantWidth || set.Height != wantHeight || set.Count != wantCount {
		return nil, fmt.Errorf("frame pack %s: %dx%d with %d frames does not match configured %dx%d with %d frames",
			path, set.Width, set.Height, set.Count, wantWidth, wantHeight, wantCount)
	}
	return set, nil
}

// SavePack writes the pack to path.
func SavePack(path string, s *Set) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating frame pack: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := Write(w, s); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing frame pack: %w", err)
	}
	return f.Close()
}
