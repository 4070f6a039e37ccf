package render

import (
	"math"

	"github.com/filbot/iss-tracker/internal/theme"
)

// thresholds carries the visibility geometry for one marker.
type thresholds struct {
	horizon         float64 // cosC at the limb for the marker's altitude
	fadeStart       float64 // cosC where the fade reaches full opacity
	orbitScale      float64
	occlusionFactor float64
}

// markerOpacity maps view-axis depth to 0..1 opacity. Below the horizon
// the marker is gone; between horizon and fadeStart it fades linearly; a
// far-side point that still projects inside the disk is additionally
// dimmed toward occlusionFactor the deeper it sits behind the planet.
func markerOpacity(cosC float64, th thresholds) float64 {
	if cosC <= th.horizon {
		return 0
	}
	opacity := 1.0
	if cosC < th.fadeStart {
		opacity = (cosC - th.horizon) / (th.fadeStart - th.horizon)
	}
	if cosC < 0 {
		sinC := math.Sqrt(1 - cosC*cosC)
		if r := th.orbitScale * sinC; r < 1 {
			opacity *= th.occlusionFactor + (1-th.occlusionFactor)*r
		}
	}
	return opacity
}

// drawMarker paints the satellite marker: concentric glow rings from the
// outside in, a solid core, and a center dot once the marker is solid
// enough. The whole marker shrinks toward MinSizeScale as it fades.
func drawMarker(buf []byte, width, height, x, y int, m *theme.Marker, opacity float64) {
	if opacity < m.OpacityCutoff {
		return
	}
	sizeScale := m.MinSizeScale + (m.MaxSizeScale-m.MinSizeScale)*opacity

	for i := 0; i < m.RingCount; i++ {
		radius := scaleRadius(m.OuterRingRadius-i*m.RingStep, sizeScale)
		brightness := m.RingBrightnessBase + i*m.RingBrightnessStep
		if brightness > 255 {
			brightness = 255
		}
		fillCircle(buf, width, height, x, y, radius, m.Glow, float64(brightness)/255*opacity)
	}

	fillCircle(buf, width, height, x, y, scaleRadius(m.CoreRadius, sizeScale), m.Core, opacity)

	if opacity >= m.CenterDotOpacityThreshold {
		fillCircle(buf, width, height, x, y, 1, m.Center, opacity)
	}
}

func scaleRadius(radius int, scale float64) int {
	return int(math.Round(float64(radius) * scale))
}

// fillCircle alpha-blends a filled circle into an RGB565 buffer, clipped
// to the buffer bounds.
func fillCircle(buf []byte, width, height, cx, cy, radius int, c theme.RGB, alpha float64) {
	if radius < 0 || alpha <= 0 {
		return
	}
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		y := cy + dy
		if y < 0 || y >= height {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			x := cx + dx
			if x < 0 || x >= width {
				continue
			}
			if dx*dx+dy*dy > r2 {
				continue
			}
			blendPixel(buf, (y*width+x)*2, c, alpha)
		}
	}
}

// blendPixel mixes a color over the existing pixel at the given alpha.
func blendPixel(buf []byte, offset int, c theme.RGB, alpha float64) {
	if alpha <= 0 {
		return
	}
	if alpha >= 1 {
		PutPixel(buf, offset, PackRGB565(c.R, c.G, c.B))
		return
	}
	br, bg, bb := UnpackRGB565(PixelAt(buf, offset))
	r := uint8(float64(c.R)*alpha + float64(br)*(1-alpha) + 0.5)
	g := uint8(float64(c.G)*alpha + float64(bg)*(1-alpha) + 0.5)
	b := uint8(float64(c.B)*alpha + float64(bb)*(1-alpha) + 0.5)
	PutPixel(buf, offset, PackRGB565(r, g, b))
}
