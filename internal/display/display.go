// Package display drives the output device: an ST7796 LCD over SPI in
// production, or a PNG preview sink when developing without hardware.
package display

import "errors"

// ErrFrameSize reports a blit buffer whose length does not match the
// panel geometry. The buffer never reaches the bus in that case.
var ErrFrameSize = errors.New("frame length does not match panel geometry")

// Driver is what the control loop draws to once per tick.
type Driver interface {
	// Blit sends one full frame of packed pixels to the device.
	Blit(frame []byte) error
	// Maintain runs at most one due maintenance action.
	Maintain()
	// Reinit forces a full reinitialization after repeated render failures.
	Reinit() error
	Close() error
}
