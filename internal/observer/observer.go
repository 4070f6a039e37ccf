// Package observer tracks the ground observer's location: a fixed
// configured spot, optionally refined live from a serial NMEA GPS.
package observer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// Observer holds the last known position. The zero value reports no
// position until a GPS fix arrives.
type Observer struct {
	mu  sync.RWMutex
	lat float64
	lon float64
	ok  bool
}

// NewFixed returns an observer pinned to a configured location.
func NewFixed(lat, lon float64) *Observer {
	return &Observer{lat: lat, lon: lon, ok: true}
}

// New returns an observer with no position yet.
func New() *Observer {
	return &Observer{}
}

// Position reports the current location. ok is false until one is known.
func (o *Observer) Position() (lat, lon float64, ok bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lat, o.lon, o.ok
}

func (o *Observer) set(lat, lon float64) {
	o.mu.Lock()
	o.lat, o.lon, o.ok = lat, lon, true
	o.mu.Unlock()
}

// RunSerial reads RMC sentences from a GPS on the given port until the
// context ends. Each valid fix updates the observer position.
func (o *Observer) RunSerial(ctx context.Context, portName string, baud uint) error {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return fmt.Errorf("opening gps port %s: %w", portName, err)
	}
	defer port.Close()
	log.Printf("observer: gps open on %s at %d baud", portName, baud)

	// The reader blocks in Read; closing the port is what unblocks it.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	return o.readLoop(ctx, port)
}

// readLoop consumes NMEA lines from r. Split from RunSerial so tests
// can feed sentences without a serial port.
func (o *Observer) readLoop(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("gps read: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}
		sentence, err := nmea.Parse(line)
		if err != nil {
			// Noisy or partial sentences are normal on a GPS feed.
			continue
		}
		if sentence.DataType() != nmea.TypeRMC {
			continue
		}
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC {
			continue
		}
		o.set(m.Latitude, m.Longitude)
	}
}
