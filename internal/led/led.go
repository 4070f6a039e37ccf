// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package led drives the status LED: a relaxed random heartbeat while
// idle, a fast steady blink while the daemon is busy.
package led

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

type stepResult int

const (
	stepDone stepResult = iota
	stepWake
	stepStop
)

// Controller blinks a single GPIO LED from a background goroutine.
type Controller struct {
	pin gpio.PinIO

	mu   sync.Mutex
	busy bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// New resolves the pin by name and starts the blink loop.
func New(pinName string) (*Controller, error) {
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("led: no such pin %q", pinName)
	}
	return newController(pin), nil
}

func newController(pin gpio.PinIO) *Controller {
	c := &Controller{
		pin:  pin,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if err := pin.Out(gpio.Low); err != nil {
		log.Printf("led: %v", err)
	}
	go c.loop()
	return c
}

// SetBusy switches between the heartbeat and busy patterns. A mode
// change interrupts the current blink phase instead of waiting it out.
func (c *Controller) SetBusy(busy bool) {
	c.mu.Lock()
	changed := c.busy != busy
	c.busy = busy
	c.mu.Unlock()
	if !changed {
		return
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) isBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Close stops the blink loop and leaves the pin low. The loop gets a
// bounded wait; shutdown proceeds either way.
func (c *Controller) Close() {
	close(c.stop)
	select {
	case <-c.done:
	case <-time.After(time.Second):
		log.Printf("led: blink loop did not stop in time")
	}
	if err := c.pin.Out(gpio.Low); err != nil {
		log.Printf("led: %v", err)
	}
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		var on, off time.Duration
		if c.isBusy() {
			on, off = 50*time.Millisecond, 50*time.Millisecond
		} else {
			on = randDuration(50*time.Millisecond, 200*time.Millisecond)
			off = randDuration(50*time.Millisecond, 550*time.Millisecond)
		}
		switch c.step(gpio.High, on) {
		case stepStop:
			return
		case stepWake:
			continue
		}
		if c.step(gpio.Low, off) == stepStop {
			return
		}
	}
}

// step drives the pin and waits out one blink phase.
func (c *Controller) step(level gpio.Level, d time.Duration) stepResult {
	if err := c.pin.Out(level); err != nil {
		log.Printf("led: %v", err)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.stop:
		return stepStop
	case <-c.wake:
		return stepWake
	case <-t.C:
		return stepDone
	}
}

func randDuration(min, max time.Duration) time.Duration {
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
