package render

import (
	"github.com/filbot/iss-tracker/internal/fix"
	"github.com/filbot/iss-tracker/internal/frames"
	"github.com/filbot/iss-tracker/internal/geo"
	"github.com/filbot/iss-tracker/internal/theme"
)

// ObserverSource reports where the ground observer is, if anywhere.
type ObserverSource interface {
	Position() (lat, lon float64, ok bool)
}

// Compositor assembles display frames: a bulk copy of the pre-rendered
// globe, the satellite marker, the optional observer dot and the two HUD
// strips spliced over the top and bottom rows.
type Compositor struct {
	set      *frames.Set
	th       *theme.Theme
	hud      *HudRenderer
	observer ObserverSource

	buf      []byte
	cx, cy   int
	radiusPx int
	horizon  float64
}

// NewCompositor builds a compositor over a loaded frame set. observer may
// be nil.
func NewCompositor(set *frames.Set, th *theme.Theme, observer ObserverSource) *Compositor {
	short := set.Width
	if set.Height < short {
		short = set.Height
	}
	return &Compositor{
		set:      set,
		th:       th,
		hud:      NewHudRenderer(th, set.Width),
		observer: observer,
		buf:      make([]byte, set.FrameSize()),
		cx:       set.Width / 2,
		cy:       set.Height / 2,
		radiusPx: int(float64(short) * th.Globe.Scale / 2),
		horizon:  geo.HorizonThreshold(th.Globe.OrbitScale),
	}
}

// FrameCount returns the number of rotation steps in the loaded set.
func (c *Compositor) FrameCount() int {
	return c.set.Count
}

// Size returns the frame geometry in pixels.
func (c *Compositor) Size() (width, height int) {
	return c.set.Width, c.set.Height
}

// Composite renders rotation step idx with the given estimate. The
// returned buffer is reused on the next call; the caller hands it to the
// display before then.
func (c *Compositor) Composite(idx int, est fix.Fix) []byte {
	copy(c.buf, c.set.Frame(idx))
	viewLon := c.set.ViewLongitude(idx)

	if c.observer != nil {
		if lat, lon, ok := c.observer.Position(); ok {
			c.drawObserver(lat, lon, viewLon)
		}
	}

	m := &c.th.Marker
	x, y, cosC := geo.ProjectOrtho(est.Latitude, est.Longitude, viewLon,
		c.th.Globe.OrbitScale, c.cx, c.cy, c.radiusPx)
	opacity := markerOpacity(cosC, thresholds{
		horizon:         c.horizon,
		fadeStart:       m.FadeStart,
		orbitScale:      c.th.Globe.OrbitScale,
		occlusionFactor: m.OcclusionFactor,
	})
	drawMarker(c.buf, c.set.Width, c.set.Height, x, y, m, opacity)

	v := ValuesFromFix(est)
	top := c.hud.Strip(&c.th.Hud.Top, v)
	bottom := c.hud.Strip(&c.th.Hud.Bottom, v)
	c.splice(top, 0)
	c.splice(bottom, c.set.Height-c.th.Hud.BarHeightFor(&c.th.Hud.Bottom))

	return c.buf
}

// drawObserver paints the ground observer dot. Observers sit on the
// surface, so the plain horizon at cosC 0 applies.
func (c *Compositor) drawObserver(lat, lon, viewLon float64) {
	m := &c.th.Marker
	x, y, cosC := geo.ProjectOrtho(lat, lon, viewLon, 1.0, c.cx, c.cy, c.radiusPx)
	opacity := markerOpacity(cosC, thresholds{
		horizon:         0,
		fadeStart:       m.FadeStart,
		orbitScale:      1,
		occlusionFactor: m.OcclusionFactor,
	})
	if opacity < m.OpacityCutoff {
		return
	}
	fillCircle(c.buf, c.set.Width, c.set.Height, x, y, m.ObserverRadius, m.ObserverColor, opacity)
}

// splice copies a rendered strip over the frame rows starting at startRow.
func (c *Compositor) splice(strip []byte, startRow int) {
	copy(c.buf[startRow*c.set.Width*2:], strip)
}
