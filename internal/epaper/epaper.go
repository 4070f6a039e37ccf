// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package epaper

import (
	"fmt"
	"image"
	"image/color"
	"log"

	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/waveshare2in13v2"
)

// Display drives the Waveshare 2.13" hat. The panel itself is
// black/white; red-plane pixels render black so red markers stay
// visible.
type Display struct {
	port spi.PortCloser
	dev  *waveshare2in13v2.Dev
	enc  *Encoder
}

// NewDisplay opens the SPI port, brings the panel up and clears it.
func NewDisplay(spiDevice string, enc *Encoder) (*Display, error) {
	port, err := spireg.Open(spiDevice)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", spiDevice, err)
	}
	opts := waveshare2in13v2.EPD2in13v2
	dev, err := waveshare2in13v2.NewHat(port, &opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("epaper hat: %w", err)
	}
	if err := dev.Init(); err != nil {
		port.Close()
		return nil, fmt.Errorf("epaper init: %w", err)
	}
	if err := dev.Clear(color.White); err != nil {
		log.Printf("epaper: clear: %v", err)
	}
	return &Display{port: port, dev: dev, enc: enc}, nil
}

// Render encodes the portrait into bitplanes and pushes the visible
// logical columns to the panel.
func (d *Display) Render(img image.Image) error {
	red, black := d.enc.Encode(img)
	plane := &planeImage{
		red:      red,
		black:    black,
		width:    d.enc.width,
		height:   d.enc.height,
		rowBytes: d.enc.rowBytes,
	}
	if err := d.dev.Draw(d.dev.Bounds(), plane, image.Pt(d.enc.padLeft, 0)); err != nil {
		return fmt.Errorf("epaper draw: %w", err)
	}
	return nil
}

// Close puts the panel into deep sleep and releases the bus.
func (d *Display) Close() error {
	if err := d.dev.Halt(); err != nil {
		log.Printf("epaper: halt: %v", err)
	}
	return d.port.Close()
}

// planeImage exposes the encoded bitplanes as a black/white image for
// the device driver. A cleared bit in either plane reads black.
type planeImage struct {
	red      []byte
	black    []byte
	width    int
	height   int
	rowBytes int
}

func (p *planeImage) ColorModel() color.Model { return color.GrayModel }

func (p *planeImage) Bounds() image.Rectangle { return image.Rect(0, 0, p.width, p.height) }

func (p *planeImage) At(x, y int) color.Color {
	idx := y*p.rowBytes + x/8
	bit := byte(1) << (7 - x%8)
	if p.black[idx]&bit == 0 || p.red[idx]&bit == 0 {
		return color.Black
	}
	return color.White
}
