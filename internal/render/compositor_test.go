package render

import (
	"testing"

	"github.com/filbot/iss-tracker/internal/fix"
	"github.com/filbot/iss-tracker/internal/frames"
	"github.com/filbot/iss-tracker/internal/theme"
)

type fixedObserver struct {
	lat, lon float64
	ok       bool
}

func (o fixedObserver) Position() (float64, float64, bool) { return o.lat, o.lon, o.ok }

// compositorTheme shrinks the HUD bars so most of a 64x64 frame stays
// globe, and drops the font search list for hermetic output.
func compositorTheme() *theme.Theme {
	th := theme.Default()
	th.Hud.FontSearchPaths = nil
	barHeight := 8
	th.Hud.Top.Height = &barHeight
	th.Hud.Bottom.Height = &barHeight
	return th
}

func testSet(t *testing.T, w, h, n int) *frames.Set {
	t.Helper()
	set := frames.NewSet(w, h, n)
	frame := make([]byte, set.FrameSize())
	ocean := PackRGB565(10, 130, 209)
	for i := 0; i < len(frame); i += 2 {
		PutPixel(frame, i, ocean)
	}
	for i := 0; i < n; i++ {
		if err := set.SetFrame(i, frame); err != nil {
			t.Fatal(err)
		}
	}
	return set
}

func TestCompositeBaseCopyAndHud(t *testing.T) {
	set := testSet(t, 64, 64, 4)
	c := NewCompositor(set, compositorTheme(), nil)

	if c.FrameCount() != 4 {
		t.Fatalf("FrameCount = %d", c.FrameCount())
	}
	if w, h := c.Size(); w != 64 || h != 64 {
		t.Fatalf("Size = %dx%d", w, h)
	}

	// Facing the viewer dead center on this rotation step.
	est := fix.Fix{Latitude: 0, Longitude: set.ViewLongitude(1)}
	buf := c.Composite(1, est)
	if len(buf) != set.FrameSize() {
		t.Fatalf("frame length = %d, want %d", len(buf), set.FrameSize())
	}

	white := PackRGB565(255, 255, 255)
	ocean := PackRGB565(10, 130, 209)
	if got := PixelAt(buf, 0); got != white {
		t.Errorf("top strip border missing, got %#04x", got)
	}
	if got := PixelAt(buf, 56*64*2); got != white {
		t.Errorf("bottom strip border missing, got %#04x", got)
	}
	if got := PixelAt(buf, (12*64+2)*2); got != ocean {
		t.Errorf("base frame overwritten away from overlays, got %#04x", got)
	}
	if got := PixelAt(buf, (55*64+2)*2); got != ocean {
		t.Errorf("bottom strip spliced too high, got %#04x", got)
	}
	if got := PixelAt(buf, (32*64+32)*2); got != white {
		t.Errorf("marker center dot missing, got %#04x", got)
	}
}

func TestCompositeBufferReused(t *testing.T) {
	set := testSet(t, 64, 64, 4)
	c := NewCompositor(set, compositorTheme(), nil)
	est := fix.Fix{Latitude: 0, Longitude: 0}

	b1 := c.Composite(0, est)
	b2 := c.Composite(1, est)
	if &b1[0] != &b2[0] {
		t.Error("Composite allocated a new buffer per call")
	}
}

func TestCompositeFarSideMarkerHidden(t *testing.T) {
	set := testSet(t, 64, 64, 4)
	c := NewCompositor(set, compositorTheme(), nil)

	// Frame 0 faces -180; an estimate at the antipode is fully behind.
	est := fix.Fix{Latitude: 0, Longitude: 0}
	buf := c.Composite(0, est)

	white := PackRGB565(255, 255, 255)
	red := PackRGB565(255, 0, 0)
	for row := 8; row < 56; row++ {
		for x := 0; x < 64; x++ {
			got := PixelAt(buf, (row*64+x)*2)
			if got == white || got == red {
				t.Fatalf("marker pixel %#04x at (%d, %d) for a hidden satellite", got, x, row)
			}
		}
	}
}

func TestCompositeObserver(t *testing.T) {
	set := testSet(t, 64, 64, 4)
	th := compositorTheme()
	viewLon := set.ViewLongitude(2)

	c := NewCompositor(set, th, fixedObserver{lat: 0, lon: viewLon, ok: true})
	// Keep the satellite near the top so it stays clear of the dot.
	est := fix.Fix{Latitude: 80, Longitude: viewLon}
	buf := c.Composite(2, est)

	green := PackRGB565(9, 222, 27)
	if got := PixelAt(buf, (32*64+32)*2); got != green {
		t.Errorf("observer dot = %#04x, want green", got)
	}

	// On the far side the dot disappears.
	c = NewCompositor(set, th, fixedObserver{lat: 0, lon: set.ViewLongitude(0), ok: true})
	buf = c.Composite(2, est)
	if got := PixelAt(buf, (32*64+32)*2); got == green {
		t.Error("far-side observer still drawn")
	}

	// No position yet: nothing drawn.
	c = NewCompositor(set, th, fixedObserver{ok: false})
	buf = c.Composite(2, est)
	if got := PixelAt(buf, (32*64+32)*2); got == green {
		t.Error("observer drawn without a position")
	}
}
