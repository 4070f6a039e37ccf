// Package telemetry turns an unreliable low-rate position feed into a
// smooth high-rate one. A background loop polls the fix source; between
// confirmed fixes, queries are answered by dead reckoning along the last
// observed ground-track velocity.
package telemetry

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/filbot/iss-tracker/internal/fix"
	"github.com/filbot/iss-tracker/internal/geo"
)

// Recorder receives every confirmed fix, typically backed by the SQLite
// history store. Recorder failures are logged, never raised.
type Recorder interface {
	Append(f *fix.Fix, fetchedAt time.Time) error
}

// Config tunes the estimator. Zero values fall back to defaults.
type Config struct {
	PollInterval        time.Duration
	MaxBackoff          time.Duration
	MinVelocityInterval time.Duration
	Staleness           time.Duration // extra heartbeat age tolerated beyond a planned sleep
	DefaultFix          fix.Fix
	DefaultLonVelocity  float64 // degrees per second, used until two fixes exist
}

// An orbit takes roughly 92 minutes; the default eastward drift follows it.
const defaultLonVelocity = 360.0 / 5520.0

// Estimator polls a fix source and answers position queries between
// polls. All queries are answered from memory; nothing here blocks on the
// network.
type Estimator struct {
	source   fix.Source
	recorder Recorder
	cfg      Config

	mu         sync.Mutex
	lastFix    *fix.Fix
	lastFetch  time.Time
	lonVel     float64 // degrees per second eastward
	latVel     float64 // degrees per second northward
	failures   int
	heartbeat  time.Time
	sleepUntil time.Time
	startedAt  time.Time

	running  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce *sync.Once

	updates chan fix.Fix

	now func() time.Time
}

// New builds an estimator over the given source. recorder may be nil.
func New(source fix.Source, recorder Recorder, cfg Config) *Estimator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	if cfg.MinVelocityInterval <= 0 {
		cfg.MinVelocityInterval = time.Second
	}
	if cfg.Staleness <= 0 {
		cfg.Staleness = 3 * time.Minute
	}
	if cfg.DefaultLonVelocity == 0 {
		cfg.DefaultLonVelocity = defaultLonVelocity
	}
	if cfg.DefaultFix.AltitudeKm == nil {
		alt := 420.0
		cfg.DefaultFix.AltitudeKm = &alt
	}
	if cfg.DefaultFix.VelocityKmh == nil {
		vel := 27600.0
		cfg.DefaultFix.VelocityKmh = &vel
	}

	return &Estimator{
		source:   source,
		recorder: recorder,
		cfg:      cfg,
		lonVel:   cfg.DefaultLonVelocity,
		updates:  make(chan fix.Fix, 8),
		now:      time.Now,
	}
}

// Prime seeds the estimator with a persisted fix so the first frames
// after a restart continue from the last known position. It does nothing
// once a live fix has been confirmed.
func (e *Estimator) Prime(f *fix.Fix, fetchedAt time.Time) {
	if f == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastFix != nil {
		return
	}
	e.lastFix = f.Clone()
	e.lastFetch = fetchedAt
}

// Start launches the poll loop. It may be called again after Stop.
func (e *Estimator) Start(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.mu.Lock()
	now := e.now()
	if e.startedAt.IsZero() {
		e.startedAt = now
	}
	e.heartbeat = now
	e.sleepUntil = now
	stop := make(chan struct{})
	done := make(chan struct{})
	e.stop = stop
	e.done = done
	e.stopOnce = &sync.Once{}
	e.mu.Unlock()

	go e.run(ctx, stop, done)
}

// Stop halts the poll loop and waits briefly for it to exit.
func (e *Estimator) Stop() {
	e.mu.Lock()
	stop, done, once := e.stop, e.done, e.stopOnce
	e.mu.Unlock()
	if stop == nil {
		return
	}
	once.Do(func() { close(stop) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		log.Printf("telemetry: poll loop did not stop in time")
	}
}

func (e *Estimator) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	defer e.running.Store(false)

	// Fetch first, then sleep; the display should not wait a full poll
	// interval for its first real position.
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-timer.C:
		}

		delay := e.pollOnce(ctx)

		e.mu.Lock()
		e.sleepUntil = e.now().Add(delay)
		e.mu.Unlock()
		timer.Reset(delay)
	}
}

// pollOnce performs one fetch round and returns the delay before the next.
func (e *Estimator) pollOnce(ctx context.Context) time.Duration {
	f, err := e.source.Next(ctx)
	now := e.now()

	e.mu.Lock()
	e.heartbeat = now

	if err != nil {
		// last_fetch keeps its old value; estimates age until a fix lands.
		e.failures++
		n := e.failures
		e.mu.Unlock()
		if ctx.Err() == nil {
			log.Printf("telemetry: fetch failed (%d consecutive): %v", n, err)
		}
		return backoffDelay(e.cfg.PollInterval, e.cfg.MaxBackoff, n)
	}

	if e.lastFix != nil {
		dt := now.Sub(e.lastFetch).Seconds()
		if dt >= e.cfg.MinVelocityInterval.Seconds() {
			e.lonVel = geo.WrapLongitude(f.Longitude-e.lastFix.Longitude) / dt
			e.latVel = (f.Latitude - e.lastFix.Latitude) / dt
		}
	}
	e.lastFix = f.Clone()
	e.lastFetch = now
	e.failures = 0
	e.mu.Unlock()

	log.Printf("telemetry: fix (%.2f, %.2f)", f.Latitude, f.Longitude)
	e.notify(f)
	if e.recorder != nil {
		if err := e.recorder.Append(f, now); err != nil {
			log.Printf("telemetry: recording fix: %v", err)
		}
	}
	return e.cfg.PollInterval
}

// backoffDelay doubles the poll interval per consecutive failure, capped
// at max.
func backoffDelay(base, max time.Duration, failures int) time.Duration {
	d := base
	for i := 1; i < failures && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d
}

// Estimate returns the current best position. With no confirmed fix yet
// it extrapolates the default fix from the start time instead.
func (e *Estimator) Estimate() fix.Fix {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	base := e.lastFix
	origin := e.lastFetch
	if base == nil {
		base = &e.cfg.DefaultFix
		origin = e.startedAt
	}

	var dt float64
	if !origin.IsZero() {
		dt = now.Sub(origin).Seconds()
		if dt < 0 {
			dt = 0
		}
	}

	out := *base.Clone()
	out.Longitude = geo.WrapLongitude(base.Longitude + e.lonVel*dt)
	out.Latitude = geo.ClampLatitude(base.Latitude + e.latVel*dt)
	out.DataAgeSec = dt
	return out
}

// LastConfirmed returns the newest confirmed fix and its fetch time, or
// nil before the first one.
func (e *Estimator) LastConfirmed() (*fix.Fix, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastFix.Clone(), e.lastFetch
}

// Updates yields confirmed fixes as they arrive. The channel drops when
// full; a slow consumer never stalls the poll loop.
func (e *Estimator) Updates() <-chan fix.Fix {
	return e.updates
}

func (e *Estimator) notify(f *fix.Fix) {
	select {
	case e.updates <- *f.Clone():
	default:
	}
}

// Healthy reports whether the poll loop is alive. A loop inside a planned
// sleep (including backoff) counts as alive; one overdue by more than the
// staleness budget does not.
func (e *Estimator) Healthy() bool {
	if !e.running.Load() {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.now().After(e.sleepUntil.Add(e.cfg.Staleness))
}

// RestartIfNeeded replaces a dead poll loop. Confirmed state survives;
// only the goroutine is restarted. Reports whether a restart happened.
func (e *Estimator) RestartIfNeeded(ctx context.Context) bool {
	if e.Healthy() {
		return false
	}
	log.Printf("telemetry: poll loop unhealthy, restarting")
	e.Stop()
	e.Start(ctx)
	return true
}

// Status is a diagnostic snapshot for the web view.
type Status struct {
	Running     bool      `json:"running"`
	Healthy     bool      `json:"healthy"`
	Failures    int       `json:"failures"`
	LastPoll    time.Time `json:"last_poll"`
	LastFetch   time.Time `json:"last_fetch"`
	LonVelocity float64   `json:"lon_velocity_deg_s"`
	LatVelocity float64   `json:"lat_velocity_deg_s"`
}

// CurrentStatus snapshots the estimator internals.
func (e *Estimator) CurrentStatus() Status {
	healthy := e.Healthy()
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Running:     e.running.Load(),
		Healthy:     healthy,
		Failures:    e.failures,
		LastPoll:    e.heartbeat,
		LastFetch:   e.lastFetch,
		LonVelocity: e.lonVel,
		LatVelocity: e.latVel,
	}
}
