// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package epaper holds the legacy e-paper output path: a bitplane
// encoder for red/black panels and a driver over the Waveshare hat.
package epaper

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Encoder converts RGB frames into the red and black bitplanes the
// panel expects. Geometry errors are programmer errors and fail fast
// at construction.
type Encoder struct {
	width   int
	height  int
	hasRed  bool
	logical int
	padLeft int

	byteLen  int
	rowBytes int
}

func NewEncoder(width, height, logicalWidth, padLeft, padRight int, hasRed bool) (*Encoder, error) {
	if padLeft+logicalWidth+padRight != width {
		return nil, fmt.Errorf("epaper: pad %d + logical %d + pad %d != width %d",
			padLeft, logicalWidth, padRight, width)
	}
	if width%8 != 0 {
		return nil, fmt.Errorf("epaper: width %d is not byte aligned", width)
	}
	return &Encoder{
		width:    width,
		height:   height,
		hasRed:   hasRed,
		logical:  logicalWidth,
		padLeft:  padLeft,
		byteLen:  width * height / 8,
		rowBytes: width / 8,
	}, nil
}

// Encode scales the image to the logical width, pastes it on a white
// canvas between the pads and thresholds every pixel. In the red plane
// a cleared bit is red; in the black plane a cleared bit is black.
func (e *Encoder) Encode(img image.Image) (red, black []byte) {
	canvas := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	portrait := image.Rect(e.padLeft, 0, e.padLeft+e.logical, e.height)
	xdraw.CatmullRom.Scale(canvas, portrait, img, img.Bounds(), xdraw.Src, nil)

	red = bytes.Repeat([]byte{0xFF}, e.byteLen)
	black = make([]byte, e.byteLen)

	for y := 0; y < e.height; y++ {
		rowOffset := y * e.rowBytes
		for x := 0; x < e.width; x++ {
			c := canvas.RGBAAt(x, y)
			idx := rowOffset + x/8
			bit := byte(1) << (7 - x%8)

			if e.hasRed && isRedish(c.R, c.G, c.B) {
				red[idx] &^= bit
				continue
			}
			if isWhitish(c.R, c.G, c.B) {
				black[idx] |= bit
			}
		}
	}
	return red, black
}

// isRedish matches colors near the marker red #ED1C24.
func isRedish(r, g, b uint8) bool {
	dr := int(r) - 0xED
	dg := int(g) - 0x1C
	db := int(b) - 0x24
	return dr*dr+dg*dg+db*db < 65*65
}

func isWhitish(r, g, b uint8) bool {
	return 0.299*float64(r)+0.587*float64(g)+0.114*float64(b) >= 190
}
