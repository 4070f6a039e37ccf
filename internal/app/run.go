package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"periph.io/x/host/v3"

	"github.com/filbot/iss-tracker/internal/config"
	"github.com/filbot/iss-tracker/internal/display"
	"github.com/filbot/iss-tracker/internal/epaper"
	"github.com/filbot/iss-tracker/internal/fix"
	"github.com/filbot/iss-tracker/internal/frames"
	"github.com/filbot/iss-tracker/internal/led"
	"github.com/filbot/iss-tracker/internal/observer"
	"github.com/filbot/iss-tracker/internal/render"
	"github.com/filbot/iss-tracker/internal/staticmap"
	"github.com/filbot/iss-tracker/internal/telemetry"
	"github.com/filbot/iss-tracker/internal/theme"
	"github.com/filbot/iss-tracker/internal/watchdog"
)

// Run wires the daemon together and blocks until ctx is canceled or the
// render loop gives up.
func Run(ctx context.Context) error {
	cfg := config.Get()

	if cfg.DisplayMode != "preview" || cfg.LEDEnabled {
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("failed to initialize periph: %w", err)
		}
	}

	// Fix history store. Losing it costs the warm start and the record,
	// not the daemon.
	var recorder telemetry.Recorder
	var store *fix.Store
	if cfg.StateDir != "" {
		st, err := fix.OpenStore(filepath.Join(cfg.StateDir, "fixes.db"))
		if err != nil {
			log.Printf("run: fix history unavailable: %v", err)
		} else {
			store = st
			recorder = st
			defer st.Close()
		}
	}

	source := fix.NewHTTPSource(endpoints(cfg),
		time.Duration(cfg.FixConnectTimeoutMS)*time.Millisecond,
		time.Duration(cfg.FixReadTimeoutMS)*time.Millisecond)

	est := telemetry.New(source, recorder, telemetry.Config{
		PollInterval:        time.Duration(cfg.PollIntervalSec) * time.Second,
		MaxBackoff:          time.Duration(cfg.MaxBackoffSec) * time.Second,
		MinVelocityInterval: time.Duration(cfg.MinVelocityIntervalSec) * time.Second,
		Staleness:           time.Duration(cfg.EstimatorStaleSec) * time.Second,
	})
	if store != nil {
		last, fetchedAt, err := store.Latest()
		switch {
		case err != nil:
			log.Printf("run: warm start skipped: %v", err)
		case last != nil:
			est.Prime(last, fetchedAt)
			log.Printf("run: warm start from stored fix %.2f, %.2f", last.Latitude, last.Longitude)
		}
	}
	est.Start(ctx)
	defer est.Stop()

	busy := func(bool) {}
	if cfg.LEDEnabled {
		lights, err := led.New(cfg.LEDPin)
		if err != nil {
			log.Printf("run: status LED unavailable: %v", err)
		} else {
			defer lights.Close()
			busy = lights.SetBusy
		}
	}

	var obs *observer.Observer
	if cfg.ObserverEnabled {
		obs = observer.NewFixed(cfg.ObserverLat, cfg.ObserverLon)
	} else if cfg.ObserverGPSPort != "" {
		obs = observer.New()
	}
	if obs != nil && cfg.ObserverGPSPort != "" {
		go func() {
			if err := obs.RunSerial(ctx, cfg.ObserverGPSPort, uint(cfg.ObserverGPSBaud)); err != nil {
				log.Printf("run: observer GPS: %v", err)
			}
		}()
	}

	if cfg.MQTTBroker != "" {
		go func() {
			if err := RunPublisher(ctx, est); err != nil {
				log.Printf("run: publisher: %v", err)
			}
		}()
	}

	var web *WebView
	if cfg.WebEnabled {
		web = NewWebView(est, cfg.DisplayWidth, cfg.DisplayHeight)
		go func() {
			if err := web.Run(ctx, cfg.WebPort); err != nil {
				log.Printf("run: web view: %v", err)
			}
		}()
	}

	defer watchdog.Stopping()

	if cfg.DisplayMode == "epaper" {
		watchdog.Ready()
		return runEpaper(ctx, est, busy)
	}

	th, err := theme.LoadOrDefault(cfg.ThemePath)
	if err != nil {
		return fmt.Errorf("loading theme: %w", err)
	}
	set, err := frames.Load(cfg.FrameCachePath, cfg.DisplayWidth, cfg.DisplayHeight, th.Globe.NumFrames)
	if err != nil {
		return fmt.Errorf("loading frame cache: %w", err)
	}

	var obsSource render.ObserverSource
	if obs != nil {
		obsSource = obs
	}
	comp := render.NewCompositor(set, th, obsSource)

	drv, err := newDriver(cfg)
	if err != nil {
		return fmt.Errorf("opening display: %w", err)
	}
	defer func() {
		if cerr := drv.Close(); cerr != nil {
			log.Printf("run: closing display: %v", cerr)
		}
	}()

	var onFrame func([]byte)
	if web != nil {
		onFrame = web.SetFrame
	}

	interval := time.Duration(th.Globe.RotationPeriodSec / float64(th.Globe.NumFrames) * float64(time.Second))
	log.Printf("run: %s display, %d frames every %v", cfg.DisplayMode, th.Globe.NumFrames, interval)

	watchdog.Ready()
	return runLoop(ctx, loopConfig{
		frameInterval:   interval,
		estimatorCheck:  time.Duration(cfg.EstimatorCheckSec) * time.Second,
		watchdogPing:    watchdog.PingInterval(),
		reinitThreshold: cfg.RenderReinitThreshold,
		abortThreshold:  cfg.RenderAbortThreshold,
	}, est, comp, drv, busy, onFrame)
}

// endpoints builds the ordered upstream list, primary first. The API key
// applies to the primary only; the public fallbacks take none.
func endpoints(cfg *config.Config) []fix.Endpoint {
	eps := []fix.Endpoint{{URL: cfg.FixURLPrimary, APIKey: cfg.FixAPIKey}}
	for _, u := range cfg.FixURLFallbacks {
		eps = append(eps, fix.Endpoint{URL: u})
	}
	return eps
}

// newDriver opens the configured frame sink.
func newDriver(cfg *config.Config) (display.Driver, error) {
	if cfg.DisplayMode == "preview" {
		sink, err := display.NewPreviewSink(cfg.PreviewDir, cfg.DisplayWidth, cfg.DisplayHeight,
			time.Duration(cfg.PreviewEverySec)*time.Second)
		if err != nil {
			return nil, err
		}
		return sink, nil
	}

	panel, err := display.NewPanel(display.PanelConfig{
		Device:               cfg.SPIDevice,
		SpeedHz:              cfg.SPISpeedHz,
		ChunkSize:            cfg.SPIChunkBytes,
		Width:                cfg.DisplayWidth,
		Height:               cfg.DisplayHeight,
		ResetPin:             cfg.PinReset,
		DCPin:                cfg.PinDC,
		BacklightPin:         cfg.PinBacklight,
		BusyPin:              cfg.PinBusy,
		Rotation:             cfg.DisplayRotation,
		BGR:                  cfg.DisplayBGR,
		Inverted:             cfg.DisplayInverted,
		HealthInterval:       time.Duration(cfg.HealthCheckSec) * time.Second,
		LightReinitInterval:  time.Duration(cfg.LightReinitMin) * time.Minute,
		FullReinitInterval:   time.Duration(cfg.FullReinitMin) * time.Minute,
		ZeroReadDisableCount: cfg.ZeroReadDisableCount,
		BusRecoveryThreshold: cfg.BusRecoveryThreshold,
	})
	if err != nil {
		return nil, err
	}
	return panel, nil
}

// runEpaper is the slow legacy output path: a Mapbox portrait of the
// current position pushed to the e-paper hat whenever the satellite
// moves beyond the refresh radius.
func runEpaper(ctx context.Context, est *telemetry.Estimator, busy func(bool)) error {
	cfg := config.Get()

	enc, err := epaper.NewEncoder(cfg.EPDWidth, cfg.EPDHeight, cfg.EPDLogicalWidth,
		cfg.EPDPadLeft, cfg.EPDPadRight, cfg.EPDHasRed)
	if err != nil {
		return err
	}
	maps, err := staticmap.New(staticmap.Config{
		Token:           cfg.MapboxToken,
		Username:        cfg.MapboxUsername,
		Style:           cfg.MapboxStyle,
		Zoom:            cfg.MapboxZoom,
		TileSize:        cfg.MapboxTileDim,
		HiDPI:           cfg.MapboxHiDPI,
		Bearing:         cfg.MapboxBearing,
		RefreshRadiusKm: cfg.MapboxRadiusKm,
		HourlyQuota:     cfg.MapboxHourlyQuota,
		Fallback:        cfg.MapboxFallback,
		WorkWidth:       cfg.EPDWidth,
		Height:          cfg.EPDHeight,
		TrimLeft:        cfg.EPDPadLeft,
		TrimRight:       cfg.EPDPadRight,
		CacheDir:        cfg.CacheDir,
		StateDir:        cfg.StateDir,
	})
	if err != nil {
		return fmt.Errorf("static map client: %w", err)
	}
	disp, err := epaper.NewDisplay(cfg.SPIDevice, enc)
	if err != nil {
		return fmt.Errorf("opening e-paper display: %w", err)
	}
	defer func() {
		if cerr := disp.Close(); cerr != nil {
			log.Printf("epaper: closing display: %v", cerr)
		}
	}()

	rendered := false
	refresh := func() {
		pos := est.Estimate()
		if rendered && !maps.NeedsRefresh(pos.Latitude, pos.Longitude) {
			return
		}
		busy(true)
		img, err := maps.Portrait(ctx, pos.Latitude, pos.Longitude, false)
		if err != nil {
			busy(false)
			log.Printf("epaper: portrait: %v", err)
			return
		}
		err = disp.Render(img)
		busy(false)
		if err != nil {
			log.Printf("epaper: render: %v", err)
			return
		}
		rendered = true
	}

	// The panel comes up cleared, so the first pass always draws.
	refresh()

	ticker := time.NewTicker(time.Duration(cfg.EstimatorCheckSec) * time.Second)
	defer ticker.Stop()

	var pingC <-chan time.Time
	if d := watchdog.PingInterval(); d > 0 {
		ping := time.NewTicker(d)
		defer ping.Stop()
		pingC = ping.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pingC:
			watchdog.Ping()
		case <-ticker.C:
			est.RestartIfNeeded(ctx)
			refresh()
		}
	}
}
