package frames

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func buildSet(t *testing.T, width, height, count int) *Set {
	t.Helper()
	s := NewSet(width, height, count)
	for i := 0; i < count; i++ {
		frame := make([]byte, s.FrameSize())
		for j := range frame {
			frame[j] = byte(i)
		}
		if err := s.SetFrame(i, frame); err != nil {
			t.Fatalf("SetFrame(%d): %v", i, err)
		}
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	s := buildSet(t, 4, 3, 5)

	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Width != 4 || got.Height != 3 || got.Count != 5 {
		t.Fatalf("geometry = %dx%d/%d", got.Width, got.Height, got.Count)
	}
	for i := 0; i < 5; i++ {
		frame := got.Frame(i)
		if len(frame) != got.FrameSize() {
			t.Fatalf("frame %d length = %d", i, len(frame))
		}
		for _, b := range frame {
			if b != byte(i) {
				t.Fatalf("frame %d contains byte %d", i, b)
			}
		}
	}
}

func TestReadRejectsCorruptPacks(t *testing.T) {
	s := buildSet(t, 2, 2, 2)
	var good bytes.Buffer
	if err := Write(&good, s); err != nil {
		t.Fatalf("Write: %v", err)
	}

	corrupt := func(mutate func([]byte) []byte) []byte {
		raw := append([]byte(nil), good.Bytes()...)
		return mutate(raw)
	}

	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{
			"bad magic",
			corrupt(func(b []byte) []byte { b[0] = 'X'; return b }),
			"bad magic",
		},
		{
			"bad version",
			corrupt(func(b []byte) []byte { b[4] = 9; return b }),
			"version",
		},
		{
			"truncated payload",
			corrupt(func(b []byte) []byte { return b[:len(b)-3] }),
			"reading",
		},
		{
			"trailing bytes",
			corrupt(func(b []byte) []byte { return append(b, 0xAA) }),
			"trailing",
		},
		{
			"zero frames",
			corrupt(func(b []byte) []byte { b[10], b[11] = 0, 0; return b[:headerSize] }),
			"geometry",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(tt.raw))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadChecksGeometry(t *testing.T) {
	s := buildSet(t, 4, 3, 5)
	path := filepath.Join(t.TempDir(), "frames.bin")
	if err := SavePack(path, s); err != nil {
		t.Fatalf("SavePack: %v", err)
	}

	if _, err := Load(path, 4, 3, 5); err != nil {
		t.Errorf("Load with matching geometry: %v", err)
	}
	if _, err := Load(path, 4, 3, 6); err == nil {
		t.Error("Load accepted wrong frame count")
	}
	if _, err := Load(path, 8, 3, 5); err == nil {
		t.Error("Load accepted wrong width")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.bin"), 4, 3, 5); err == nil {
		t.Error("Load accepted missing file")
	}
}

func TestSetFrameLength(t *testing.T) {
	s := NewSet(4, 3, 2)
	if err := s.SetFrame(0, make([]byte, 5)); err == nil {
		t.Error("SetFrame accepted short buffer")
	}
	if err := s.SetFrame(0, make([]byte, s.FrameSize())); err != nil {
		t.Errorf("SetFrame: %v", err)
	}
}

func TestViewLongitude(t *testing.T) {
	s := NewSet(1, 1, 144)
	tests := []struct {
		i    int
		want float64
	}{
		{0, -180},
		{72, 0},
		{36, -90},
		{143, 177.5},
	}
	for _, tt := range tests {
		if got := s.ViewLongitude(tt.i); got != tt.want {
			t.Errorf("ViewLongitude(%d) = %v, want %v", tt.i, got, tt.want)
		}
	}
}
