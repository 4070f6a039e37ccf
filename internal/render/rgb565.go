// Package render builds the frames the display shows: the pre-rendered
// globe base, the satellite marker with its horizon fade, the optional
// ground-observer dot and the two HUD strips.
//
// All buffers are RGB565 big-endian, the panel's native wire format.
package render

import (
	"fmt"
	"image"
	"image/color"
)

// PackRGB565 converts 8-bit RGB to the panel's 16-bit 5-6-5 format.
func PackRGB565(r, g, b uint8) uint16 {
	return uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3
}

// UnpackRGB565 expands a packed pixel back to 8-bit components. The low
// bits replicate the high ones so full white round-trips to full white.
func UnpackRGB565(p uint16) (r, g, b uint8) {
	r5 := uint8(p >> 11)
	g6 := uint8((p >> 5) & 0x3F)
	b5 := uint8(p & 0x1F)
	r = r5<<3 | r5>>2
	g = g6<<2 | g6>>4
	b = b5<<3 | b5>>2
	return r, g, b
}

// PutPixel writes one packed pixel at a byte offset, high byte first.
func PutPixel(buf []byte, offset int, p uint16) {
	buf[offset] = byte(p >> 8)
	buf[offset+1] = byte(p)
}

// PixelAt reads one packed pixel at a byte offset.
func PixelAt(buf []byte, offset int) uint16 {
	return uint16(buf[offset])<<8 | uint16(buf[offset+1])
}

// EncodeImage packs an image into a fresh RGB565 buffer, row major.
func EncodeImage(img image.Image) []byte {
	b := img.Bounds()
	out := make([]byte, b.Dx()*b.Dy()*2)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			PutPixel(out, i, PackRGB565(uint8(r>>8), uint8(g>>8), uint8(bl>>8)))
			i += 2
		}
	}
	return out
}

// DecodeImage expands an RGB565 buffer into an RGBA image, the preview
// and web paths' format.
func DecodeImage(buf []byte, width, height int) (*image.RGBA, error) {
	if len(buf) != width*height*2 {
		return nil, fmt.Errorf("buffer is %d bytes, want %d for %dx%d", len(buf), width*height*2, width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b := UnpackRGB565(PixelAt(buf, i))
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
			i += 2
		}
	}
	return img, nil
}
