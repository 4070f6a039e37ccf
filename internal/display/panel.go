// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// PanelConfig carries the wiring and geometry for one ST7796 panel.
// Whether a busy line exists varies by panel revision; an empty BusyPin
// means the panel has none.
type PanelConfig struct {
	Device    string
	SpeedHz   int
	ChunkSize int

	Width  int
	Height int

	ResetPin     string
	DCPin        string
	BacklightPin string
	BusyPin      string

	Rotation int // 0, 90, 180 or 270
	BGR      bool
	Inverted bool

	HealthInterval      time.Duration
	LightReinitInterval time.Duration
	FullReinitInterval  time.Duration

	// Hand-tuned against flaky units; see the matching config keys.
	ZeroReadDisableCount int
	BusRecoveryThreshold int
}

// Panel owns the SPI port and control lines for one ST7796. All methods
// are called from the control loop only; nothing here is safe for
// concurrent use.
type Panel struct {
	cfg PanelConfig

	port spi.PortCloser
	conn spi.Conn

	reset     gpio.PinIO
	dc        gpio.PinIO
	backlight gpio.PinIO
	busy      gpio.PinIO // nil when the panel has no busy line

	booted bool

	lastHealth      time.Time
	lastLightReinit time.Time
	lastFullReinit  time.Time

	zeroReads      int
	healthDisabled bool
	blitFailures   int

	openPort func() (spi.PortCloser, spi.Conn, error)
	now      func() time.Time
	sleep    func(time.Duration)
}

// NewPanel opens the bus and control lines and brings the panel up.
func NewPanel(cfg PanelConfig) (*Panel, error) {
	p := &Panel{
		cfg:   cfg,
		now:   time.Now,
		sleep: time.Sleep,
	}
	p.openPort = func() (spi.PortCloser, spi.Conn, error) {
		port, err := spireg.Open(cfg.Device)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", cfg.Device, err)
		}
		conn, err := port.Connect(physic.Frequency(cfg.SpeedHz)*physic.Hertz, spi.Mode0, 8)
		if err != nil {
			port.Close()
			return nil, nil, fmt.Errorf("configuring %s: %w", cfg.Device, err)
		}
		return port, conn, nil
	}

	if p.reset = gpioreg.ByName(cfg.ResetPin); p.reset == nil {
		return nil, fmt.Errorf("display: no such pin %q", cfg.ResetPin)
	}
	if p.dc = gpioreg.ByName(cfg.DCPin); p.dc == nil {
		return nil, fmt.Errorf("display: no such pin %q", cfg.DCPin)
	}
	if p.backlight = gpioreg.ByName(cfg.BacklightPin); p.backlight == nil {
		return nil, fmt.Errorf("display: no such pin %q", cfg.BacklightPin)
	}
	if cfg.BusyPin != "" {
		if p.busy = gpioreg.ByName(cfg.BusyPin); p.busy == nil {
			return nil, fmt.Errorf("display: no such pin %q", cfg.BusyPin)
		}
		if err := p.busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("busy pin: %w", err)
		}
	}

	if err := p.start(); err != nil {
		return nil, err
	}
	return p, nil
}

// start opens the bus and runs the boot init. The port is released again
// if initialization fails partway.
func (p *Panel) start() error {
	port, conn, err := p.openPort()
	if err != nil {
		return err
	}
	p.port, p.conn = port, conn

	if err := p.fullInit(); err != nil {
		p.port.Close()
		p.port, p.conn = nil, nil
		return err
	}

	now := p.now()
	p.lastHealth, p.lastLightReinit, p.lastFullReinit = now, now, now
	return nil
}

// fullInit replays the documented bring-up sequence: hardware reset,
// software reset, sleep out, pixel format, orientation, inversion, full
// window, display on. The first pass also lights the backlight and
// floods the panel black to prove the pipe.
func (p *Panel) fullInit() error {
	if err := p.hwReset(); err != nil {
		return err
	}
	if err := p.writeCmd(cmdSWReset); err != nil {
		return err
	}
	p.sleep(120 * time.Millisecond)
	if err := p.waitReady(); err != nil {
		return err
	}
	if err := p.writeCmd(cmdSleepOut); err != nil {
		return err
	}
	p.sleep(120 * time.Millisecond)
	if err := p.configure(); err != nil {
		return err
	}
	if err := p.writeCmd(cmdDisplayOn); err != nil {
		return err
	}
	if !p.booted {
		if err := p.backlight.Out(gpio.High); err != nil {
			return fmt.Errorf("backlight pin: %w", err)
		}
		if err := p.flood(0x0000); err != nil {
			return err
		}
		p.booted = true
	}
	return nil
}

// configure resends the stateless registers. This is the whole of a
// light reinit: it corrects silent register drift without a visible
// flash or sleep-state change.
func (p *Panel) configure() error {
	if err := p.writeCmd(cmdPixelFormat, pixelFormat16bpp); err != nil {
		return err
	}
	if err := p.writeCmd(cmdMadCtl, madctlFor(p.cfg.Rotation, p.cfg.BGR)); err != nil {
		return err
	}
	inv := cmdInvertOff
	if p.cfg.Inverted {
		inv = cmdInvertOn
	}
	if err := p.writeCmd(inv); err != nil {
		return err
	}
	return p.setWindow(0, 0, p.cfg.Width-1, p.cfg.Height-1)
}

func (p *Panel) hwReset() error {
	steps := []struct {
		level  gpio.Level
		settle time.Duration
	}{
		{gpio.High, 5 * time.Millisecond},
		{gpio.Low, 20 * time.Millisecond},
		{gpio.High, 150 * time.Millisecond},
	}
	for _, s := range steps {
		if err := p.reset.Out(s.level); err != nil {
			return fmt.Errorf("reset pin: %w", err)
		}
		p.sleep(s.settle)
	}
	return nil
}

func (p *Panel) waitReady() error {
	if p.busy == nil {
		return nil
	}
	deadline := p.now().Add(500 * time.Millisecond)
	for p.busy.Read() == gpio.High {
		if !p.now().Before(deadline) {
			return fmt.Errorf("display: busy line stuck high")
		}
		p.sleep(time.Millisecond)
	}
	return nil
}

// writeCmd sends a command byte with DC low, then any argument bytes
// with DC high.
func (p *Panel) writeCmd(cmd byte, args ...byte) error {
	if p.conn == nil {
		return fmt.Errorf("display: bus not open")
	}
	if err := p.dc.Out(gpio.Low); err != nil {
		return fmt.Errorf("dc pin: %w", err)
	}
	if err := p.conn.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("command %#02x: %w", cmd, err)
	}
	if len(args) == 0 {
		return nil
	}
	if err := p.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("dc pin: %w", err)
	}
	if err := p.conn.Tx(args, nil); err != nil {
		return fmt.Errorf("command %#02x args: %w", cmd, err)
	}
	return nil
}

// writeData streams pixel bytes with DC high, split into chunks no
// larger than the bus's single-transfer limit.
func (p *Panel) writeData(data []byte) error {
	if err := p.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("dc pin: %w", err)
	}
	for off := 0; off < len(data); off += p.cfg.ChunkSize {
		end := off + p.cfg.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := p.conn.Tx(data[off:end], nil); err != nil {
			return fmt.Errorf("pixel data at %d: %w", off, err)
		}
	}
	return nil
}

func (p *Panel) setWindow(x0, y0, x1, y1 int) error {
	if err := p.writeCmd(cmdColAddrSet, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	return p.writeCmd(cmdRowAddrSet, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1))
}

func (p *Panel) flood(c uint16) error {
	if err := p.setWindow(0, 0, p.cfg.Width-1, p.cfg.Height-1); err != nil {
		return err
	}
	if err := p.writeCmd(cmdMemWrite); err != nil {
		return err
	}
	row := make([]byte, p.cfg.Width*2)
	for i := 0; i < len(row); i += 2 {
		row[i] = byte(c >> 8)
		row[i+1] = byte(c)
	}
	for y := 0; y < p.cfg.Height; y++ {
		if err := p.writeData(row); err != nil {
			return err
		}
	}
	return nil
}

// Blit validates the frame length before touching the bus, then streams
// it inside a full-extent window. Failures trigger bus recovery; the
// error is still returned so the control loop can count it.
func (p *Panel) Blit(frame []byte) error {
	if want := p.cfg.Width * p.cfg.Height * 2; len(frame) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrFrameSize, len(frame), want)
	}
	if err := p.blit(frame); err != nil {
		p.blitFailures++
		log.Printf("display: blit failed (%d consecutive): %v", p.blitFailures, err)
		p.recover()
		return err
	}
	p.blitFailures = 0
	return nil
}

func (p *Panel) blit(frame []byte) error {
	if p.conn == nil {
		if err := p.reopenBus(); err != nil {
			return err
		}
	}
	if err := p.setWindow(0, 0, p.cfg.Width-1, p.cfg.Height-1); err != nil {
		return err
	}
	if err := p.writeCmd(cmdMemWrite); err != nil {
		return err
	}
	return p.writeData(frame)
}

// recover reopens the bus after a blit failure. Once failures reach the
// threshold it also hardware-resets and replays full initialization.
// Recovery errors are logged, never raised; the next tick retries.
func (p *Panel) recover() {
	if err := p.reopenBus(); err != nil {
		log.Printf("display: bus reopen failed: %v", err)
	}
	if p.blitFailures < p.cfg.BusRecoveryThreshold {
		return
	}
	log.Printf("display: %d consecutive blit failures, resetting panel", p.blitFailures)
	if err := p.fullInit(); err != nil {
		log.Printf("display: panel reset failed: %v", err)
		return
	}
	p.blitFailures = 0
}

func (p *Panel) reopenBus() error {
	if p.port != nil {
		if err := p.port.Close(); err != nil {
			log.Printf("display: closing bus: %v", err)
		}
		p.port, p.conn = nil, nil
	}
	port, conn, err := p.openPort()
	if err != nil {
		return err
	}
	p.port, p.conn = port, conn
	return nil
}

// Maintain fires at most the single highest-priority due action: health
// check, then scheduled full reinit, then light reinit.
func (p *Panel) Maintain() {
	now := p.now()
	if !p.healthDisabled && p.cfg.HealthInterval > 0 && now.Sub(p.lastHealth) >= p.cfg.HealthInterval {
		p.lastHealth = now
		p.checkHealth()
		return
	}
	if p.cfg.FullReinitInterval > 0 && now.Sub(p.lastFullReinit) >= p.cfg.FullReinitInterval {
		p.lastFullReinit = now
		p.lastLightReinit = now
		log.Printf("display: scheduled full reinit")
		if err := p.fullInit(); err != nil {
			log.Printf("display: full reinit failed: %v", err)
		}
		return
	}
	if p.cfg.LightReinitInterval > 0 && now.Sub(p.lastLightReinit) >= p.cfg.LightReinitInterval {
		p.lastLightReinit = now
		log.Printf("display: refreshing panel registers")
		if err := p.lightReinit(); err != nil {
			log.Printf("display: light reinit failed: %v", err)
		}
		return
	}
}

func (p *Panel) lightReinit() error {
	return p.configure()
}

// checkHealth reads the power mode register back. Units that cannot be
// read return all zeros; after enough consecutive zero reads the check
// is disabled for the rest of the session and the timed reinits carry
// the load alone.
func (p *Panel) checkHealth() {
	mode, err := p.readPowerMode()
	if err != nil {
		log.Printf("display: power mode read failed: %v", err)
		return
	}
	if mode == 0 {
		p.zeroReads++
		if p.zeroReads >= p.cfg.ZeroReadDisableCount {
			p.healthDisabled = true
			log.Printf("display: %d zero power mode reads, disabling health checks", p.zeroReads)
		}
		return
	}
	p.zeroReads = 0
	if mode&(pmDisplayOn|pmSleepOut) != pmDisplayOn|pmSleepOut {
		log.Printf("display: unhealthy power mode %#02x, reinitializing", mode)
		if err := p.fullInit(); err != nil {
			log.Printf("display: reinit failed: %v", err)
		}
	}
}

func (p *Panel) readPowerMode() (byte, error) {
	if p.conn == nil {
		return 0, fmt.Errorf("display: bus not open")
	}
	if err := p.dc.Out(gpio.Low); err != nil {
		return 0, fmt.Errorf("dc pin: %w", err)
	}
	var r [2]byte
	if err := p.conn.Tx([]byte{cmdReadPowerMode, 0x00}, r[:]); err != nil {
		return 0, fmt.Errorf("power mode: %w", err)
	}
	return r[1], nil
}

// Reinit is the control loop's escalation after repeated render
// failures: reopen the bus and replay full initialization.
func (p *Panel) Reinit() error {
	log.Printf("display: reinitializing after render failures")
	if err := p.reopenBus(); err != nil {
		log.Printf("display: bus reopen failed: %v", err)
	}
	return p.fullInit()
}

// Close powers the panel down. Every step runs even when an earlier one
// fails; only the final bus release reports an error.
func (p *Panel) Close() error {
	if err := p.backlight.Out(gpio.Low); err != nil {
		log.Printf("display: backlight off failed: %v", err)
	}
	if err := p.flood(0x0000); err != nil {
		log.Printf("display: clearing panel failed: %v", err)
	}
	if err := p.writeCmd(cmdDisplayOff); err != nil {
		log.Printf("display: display off failed: %v", err)
	}
	if err := p.writeCmd(cmdSleepIn); err != nil {
		log.Printf("display: sleep in failed: %v", err)
	}
	if err := p.reset.Out(gpio.Low); err != nil {
		log.Printf("display: reset low failed: %v", err)
	}
	if p.port != nil {
		err := p.port.Close()
		p.port, p.conn = nil, nil
		if err != nil {
			return fmt.Errorf("closing %s: %w", p.cfg.Device, err)
		}
	}
	return nil
}
