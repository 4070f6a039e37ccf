package render

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func TestPackRGB565Primaries(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		want    uint16
	}{
		{0, 0, 0, 0x0000},
		{255, 255, 255, 0xFFFF},
		{255, 0, 0, 0xF800},
		{0, 255, 0, 0x07E0},
		{0, 0, 255, 0x001F},
	}
	for _, tt := range tests {
		if got := PackRGB565(tt.r, tt.g, tt.b); got != tt.want {
			t.Errorf("PackRGB565(%d, %d, %d) = %#04x, want %#04x", tt.r, tt.g, tt.b, got, tt.want)
		}
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	for v := 0; v < 256; v += 15 {
		c := uint8(v)
		r, g, b := UnpackRGB565(PackRGB565(c, c, c))
		if diff(r, c) > 7 || diff(b, c) > 7 {
			t.Errorf("red/blue quantization off at %d: got %d/%d", c, r, b)
		}
		if diff(g, c) > 3 {
			t.Errorf("green quantization off at %d: got %d", c, g)
		}
	}
	// Extremes survive exactly.
	if r, g, b := UnpackRGB565(PackRGB565(255, 255, 255)); r != 255 || g != 255 || b != 255 {
		t.Errorf("white round-trips to (%d, %d, %d)", r, g, b)
	}
	if r, g, b := UnpackRGB565(PackRGB565(0, 0, 0)); r != 0 || g != 0 || b != 0 {
		t.Errorf("black round-trips to (%d, %d, %d)", r, g, b)
	}
}

func diff(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d
}

func TestPutPixelBigEndian(t *testing.T) {
	buf := make([]byte, 4)
	PutPixel(buf, 2, 0xF81F)
	if buf[2] != 0xF8 || buf[3] != 0x1F {
		t.Errorf("bytes = %#02x %#02x, want high byte first", buf[2], buf[3])
	}
	if got := PixelAt(buf, 2); got != 0xF81F {
		t.Errorf("PixelAt = %#04x", got)
	}
}

func TestEncodeDecodeImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(1, 0, color.RGBA{0, 255, 0, 255})
	img.SetRGBA(0, 1, color.RGBA{0, 0, 255, 255})
	img.SetRGBA(1, 1, color.RGBA{255, 255, 255, 255})

	buf := EncodeImage(img)
	want := []byte{0xF8, 0x00, 0x07, 0xE0, 0x00, 0x1F, 0xFF, 0xFF}
	if !bytes.Equal(buf, want) {
		t.Fatalf("EncodeImage = %x, want %x", buf, want)
	}

	back, err := DecodeImage(buf, 2, 2)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if got := back.RGBAAt(0, 0); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("(0,0) = %v", got)
	}
	if got := back.RGBAAt(1, 1); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("(1,1) = %v", got)
	}

	if _, err := DecodeImage(buf, 3, 2); err == nil {
		t.Error("DecodeImage accepted mismatched geometry")
	}
}
