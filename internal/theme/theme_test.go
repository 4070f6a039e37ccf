package theme

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeTheme(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "theme.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing theme: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	th := Default()
	if th.Globe.Scale != 0.70 || th.Globe.OrbitScale != 1.10 {
		t.Errorf("globe scales = %v/%v", th.Globe.Scale, th.Globe.OrbitScale)
	}
	if th.Globe.NumFrames != 144 || th.Globe.RotationPeriodSec != 14.0 {
		t.Errorf("rotation = %d frames / %vs", th.Globe.NumFrames, th.Globe.RotationPeriodSec)
	}
	if th.Globe.Ocean != (RGB{10, 130, 209}) {
		t.Errorf("ocean = %v", th.Globe.Ocean)
	}
	if th.Marker.OuterRingRadius != 7 || th.Marker.RingCount != 3 || th.Marker.CoreRadius != 3 {
		t.Errorf("marker geometry = %d/%d/%d",
			th.Marker.OuterRingRadius, th.Marker.RingCount, th.Marker.CoreRadius)
	}
	if th.Hud.BarHeight != 48 || th.Hud.LabelColor != (RGB{9, 222, 27}) {
		t.Errorf("hud = height %d label %v", th.Hud.BarHeight, th.Hud.LabelColor)
	}
	if len(th.Hud.Top.Cells) != 3 || len(th.Hud.Bottom.Cells) != 3 {
		t.Fatalf("cells = %d/%d, want 3/3", len(th.Hud.Top.Cells), len(th.Hud.Bottom.Cells))
	}
	if th.Hud.Top.Cells[2].Field != "over" || th.Hud.Top.Cells[2].Width != 0 {
		t.Errorf("last top cell = %+v, want right-aligned over", th.Hud.Top.Cells[2])
	}
	if th.Hud.Bottom.Cells[1].Unit != "km/h" || th.Hud.Bottom.Cells[1].Width != 115 {
		t.Errorf("vel cell = %+v", th.Hud.Bottom.Cells[1])
	}
	if err := th.validate(); err != nil {
		t.Errorf("default theme does not validate: %v", err)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	th, err := LoadOrDefault("")
	if err != nil || th.Globe.NumFrames != 144 {
		t.Errorf("empty path: theme=%v err=%v", th.Globe.NumFrames, err)
	}
	th, err = LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil || th.Globe.NumFrames != 144 {
		t.Errorf("missing file: theme=%v err=%v", th.Globe.NumFrames, err)
	}
}

func TestLoadOrDefaultMerges(t *testing.T) {
	path := writeTheme(t, strings.Join([]string{
		"globe:",
		"  ocean: [0, 60, 120]",
		"  num_frames: 72",
		"marker:",
		"  fade_start: 0.1",
		"hud:",
		"  top:",
		"    background: [20, 20, 20]",
	}, "\n"))
	th, err := LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if th.Globe.Ocean != (RGB{0, 60, 120}) {
		t.Errorf("ocean = %v, want override", th.Globe.Ocean)
	}
	if th.Globe.NumFrames != 72 {
		t.Errorf("num_frames = %d, want 72", th.Globe.NumFrames)
	}
	// Untouched keys keep their defaults.
	if th.Globe.Land != (RGB{87, 32, 0}) {
		t.Errorf("land = %v, want default", th.Globe.Land)
	}
	if th.Marker.FadeStart != 0.1 {
		t.Errorf("fade_start = %v, want 0.1", th.Marker.FadeStart)
	}
	if th.Marker.OcclusionFactor != 0.3 {
		t.Errorf("occlusion_factor = %v, want default", th.Marker.OcclusionFactor)
	}
	if th.Hud.Top.Background == nil || *th.Hud.Top.Background != (RGB{20, 20, 20}) {
		t.Errorf("top background = %v, want override", th.Hud.Top.Background)
	}
	if th.Hud.Bottom.Background != nil {
		t.Errorf("bottom background = %v, want inherit", th.Hud.Bottom.Background)
	}
	if len(th.Hud.Top.Cells) != 3 {
		t.Errorf("cells = %d, want default 3", len(th.Hud.Top.Cells))
	}
}

func TestLoadOrDefaultRejectsBadTheme(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"broken yaml", "globe: ["},
		{"two-component color", "globe:\n  ocean: [1, 2]"},
		{"out-of-range color", "globe:\n  ocean: [0, 0, 300]"},
		{"zero scale", "globe:\n  scale: 0"},
		{"orbit below surface", "globe:\n  orbit_scale: 0.9"},
		{"unknown cell field", "hud:\n  top:\n    cells:\n      - field: fuel\n        label: FUEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadOrDefault(writeTheme(t, tt.contents)); err == nil {
				t.Error("bad theme accepted")
			}
		})
	}
}

func TestRGBUnmarshal(t *testing.T) {
	var c RGB
	if err := yaml.Unmarshal([]byte("[255, 0, 17]"), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c != (RGB{255, 0, 17}) {
		t.Errorf("c = %v", c)
	}
	if err := yaml.Unmarshal([]byte(`"red"`), &c); err == nil {
		t.Error("string color accepted")
	}
}

func TestResolveCascade(t *testing.T) {
	h := &Default().Hud
	bar := Bar{}
	cell := Cell{Field: "lat", Label: "LAT"}

	style := h.Resolve(&bar, &cell)
	if style.LabelColor != h.LabelColor || style.ValueSize != h.ValueSize {
		t.Errorf("hud-level style = %+v", style)
	}

	barColor := RGB{200, 0, 0}
	bar.LabelColor = &barColor
	style = h.Resolve(&bar, &cell)
	if style.LabelColor != barColor {
		t.Errorf("bar override ignored: %+v", style)
	}

	cellColor := RGB{0, 200, 0}
	cellSize := 9
	cell.LabelColor = &cellColor
	cell.LabelSize = &cellSize
	style = h.Resolve(&bar, &cell)
	if style.LabelColor != cellColor || style.LabelSize != 9 {
		t.Errorf("cell override ignored: %+v", style)
	}
	// Fields without cell overrides still inherit.
	if style.ValueColor != h.ValueColor {
		t.Errorf("value color = %v, want hud default", style.ValueColor)
	}
}

func TestBarResolvers(t *testing.T) {
	h := &Default().Hud
	bar := Bar{}
	if got := h.BarHeightFor(&bar); got != 48 {
		t.Errorf("height = %d, want 48", got)
	}
	height := 32
	border := RGB{1, 2, 3}
	bar.Height = &height
	bar.Border = &border
	if got := h.BarHeightFor(&bar); got != 32 {
		t.Errorf("height = %d, want 32", got)
	}
	if got := h.BarBorder(&bar); got != border {
		t.Errorf("border = %v, want %v", got, border)
	}
	if got := h.BarBackground(&bar); got != h.Background {
		t.Errorf("background = %v, want inherited", got)
	}
}
