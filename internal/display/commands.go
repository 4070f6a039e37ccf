// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

// ST7796 command bytes, straight from the datasheet.
const (
	cmdSWReset       byte = 0x01
	cmdReadPowerMode byte = 0x0A
	cmdSleepIn       byte = 0x10
	cmdSleepOut      byte = 0x11
	cmdInvertOff     byte = 0x20
	cmdInvertOn      byte = 0x21
	cmdDisplayOff    byte = 0x28
	cmdDisplayOn     byte = 0x29
	cmdColAddrSet    byte = 0x2A
	cmdRowAddrSet    byte = 0x2B
	cmdMemWrite      byte = 0x2C
	cmdMadCtl        byte = 0x36
	cmdPixelFormat   byte = 0x3A
)

// Memory access control bits (MADCTL).
const (
	madMY  byte = 0x80 // row address order
	madMX  byte = 0x40 // column address order
	madMV  byte = 0x20 // row/column exchange
	madML  byte = 0x10 // vertical refresh order
	madBGR byte = 0x08 // BGR subpixel order
	madMH  byte = 0x04 // horizontal refresh order
)

// Power mode bits read back via cmdReadPowerMode.
const (
	pmDisplayOn byte = 0x04
	pmSleepOut  byte = 0x10
)

// 16-bit packed color for cmdPixelFormat.
const pixelFormat16bpp byte = 0x55

// madctlFor maps a rotation to its memory access register value. The BGR
// bit rides along here; a wrong value swaps red and blue panel-wide.
func madctlFor(rotation int, bgr bool) byte {
	var v byte
	switch rotation {
	case 90:
		v = madMV | madMY
	case 180:
		v = madMX | madMY
	case 270:
		v = madMV | madMX
	}
	if bgr {
		v |= madBGR
	}
	return v
}
