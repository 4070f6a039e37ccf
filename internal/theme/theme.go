// Package theme describes everything about how the tracker looks: globe
// palette and rotation, marker geometry, HUD layout and fonts. Values come
// from an optional YAML file layered over built-in defaults, so a theme
// file only needs the keys it changes.
package theme

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// RGB is a display color. In YAML it is written as a three-element
// sequence, e.g. [10, 130, 209].
type RGB struct {
	R, G, B uint8
}

// UnmarshalYAML decodes a [r, g, b] sequence with 0-255 components.
func (c *RGB) UnmarshalYAML(value *yaml.Node) error {
	var parts []int
	if err := value.Decode(&parts); err != nil {
		return fmt.Errorf("color must be a [r, g, b] sequence: %w", err)
	}
	if len(parts) != 3 {
		return fmt.Errorf("color must have 3 components, got %d", len(parts))
	}
	for _, p := range parts {
		if p < 0 || p > 255 {
			return fmt.Errorf("color component %d out of range 0-255", p)
		}
	}
	c.R, c.G, c.B = uint8(parts[0]), uint8(parts[1]), uint8(parts[2])
	return nil
}

// Theme is the full visual configuration.
type Theme struct {
	Globe  Globe  `yaml:"globe"`
	Marker Marker `yaml:"marker"`
	Hud    Hud    `yaml:"hud"`
}

// Globe controls the pre-rendered planet frames and the rotation cadence.
type Globe struct {
	Scale             float64 `yaml:"scale"`
	OrbitScale        float64 `yaml:"orbit_scale"`
	NumFrames         int     `yaml:"num_frames"`
	RotationPeriodSec float64 `yaml:"rotation_period_sec"`
	Background        RGB     `yaml:"background"`
	Ocean             RGB     `yaml:"ocean"`
	Land              RGB     `yaml:"land"`
	LandBorder        RGB     `yaml:"land_border"`
	Coastline         RGB     `yaml:"coastline"`
	Grid              RGB     `yaml:"grid"`
}

// Marker controls the satellite marker and the optional ground-observer dot.
type Marker struct {
	Glow   RGB `yaml:"glow"`
	Core   RGB `yaml:"core"`
	Center RGB `yaml:"center"`

	OuterRingRadius    int `yaml:"outer_ring_radius"`
	RingStep           int `yaml:"ring_step"`
	RingCount          int `yaml:"ring_count"`
	CoreRadius         int `yaml:"core_radius"`
	RingBrightnessBase int `yaml:"ring_brightness_base"`
	RingBrightnessStep int `yaml:"ring_brightness_step"`

	MinSizeScale              float64 `yaml:"min_size_scale"`
	MaxSizeScale              float64 `yaml:"max_size_scale"`
	CenterDotOpacityThreshold float64 `yaml:"center_dot_opacity_threshold"`
	FadeStart                 float64 `yaml:"fade_start"`
	OpacityCutoff             float64 `yaml:"opacity_cutoff"`
	OcclusionFactor           float64 `yaml:"occlusion_factor"`

	ObserverColor  RGB `yaml:"observer_color"`
	ObserverRadius int `yaml:"observer_radius"`
}

// Hud carries the defaults for both bars. Bars and cells override
// individual values; a nil pointer means inherit from the level above.
type Hud struct {
	Grid    int `yaml:"grid"`
	LabelY  int `yaml:"label_y"`
	ValueY  int `yaml:"value_y"`
	UnitGap int `yaml:"unit_gap"`

	BarHeight  int `yaml:"bar_height"`
	Background RGB `yaml:"background"`
	Border     RGB `yaml:"border"`

	LabelColor RGB `yaml:"label_color"`
	LabelSize  int `yaml:"label_size"`
	ValueColor RGB `yaml:"value_color"`
	ValueSize  int `yaml:"value_size"`
	UnitColor  RGB `yaml:"unit_color"`
	UnitSize   int `yaml:"unit_size"`

	Top    Bar `yaml:"top"`
	Bottom Bar `yaml:"bottom"`

	FontSearchPaths []string `yaml:"font_search_paths"`
}

// Bar is one HUD strip.
type Bar struct {
	Height     *int `yaml:"height"`
	Background *RGB `yaml:"background"`
	Border     *RGB `yaml:"border"`

	LabelColor *RGB `yaml:"label_color"`
	LabelSize  *int `yaml:"label_size"`
	ValueColor *RGB `yaml:"value_color"`
	ValueSize  *int `yaml:"value_size"`
	UnitColor  *RGB `yaml:"unit_color"`
	UnitSize   *int `yaml:"unit_size"`

	Cells []Cell `yaml:"cells"`
}

// Cell is one field inside a bar. Field selects which telemetry value the
// renderer binds to it; Width 0 means the cell claims the rest of the bar
// and draws right-aligned.
type Cell struct {
	Field string `yaml:"field"`
	Label string `yaml:"label"`
	Unit  string `yaml:"unit"`
	Width int    `yaml:"width"`

	LabelColor *RGB `yaml:"label_color"`
	LabelSize  *int `yaml:"label_size"`
	ValueColor *RGB `yaml:"value_color"`
	ValueSize  *int `yaml:"value_size"`
	UnitColor  *RGB `yaml:"unit_color"`
	UnitSize   *int `yaml:"unit_size"`
}

// CellStyle is a cell's fully resolved look after walking the
// cell > bar > hud cascade.
type CellStyle struct {
	LabelColor RGB
	LabelSize  int
	ValueColor RGB
	ValueSize  int
	UnitColor  RGB
	UnitSize   int
}

// Resolve walks the cascade for one cell of one bar.
func (h *Hud) Resolve(bar *Bar, cell *Cell) CellStyle {
	return CellStyle{
		LabelColor: pickRGB(cell.LabelColor, bar.LabelColor, h.LabelColor),
		LabelSize:  pickInt(cell.LabelSize, bar.LabelSize, h.LabelSize),
		ValueColor: pickRGB(cell.ValueColor, bar.ValueColor, h.ValueColor),
		ValueSize:  pickInt(cell.ValueSize, bar.ValueSize, h.ValueSize),
		UnitColor:  pickRGB(cell.UnitColor, bar.UnitColor, h.UnitColor),
		UnitSize:   pickInt(cell.UnitSize, bar.UnitSize, h.UnitSize),
	}
}

// BarHeightFor resolves a bar's height.
func (h *Hud) BarHeightFor(bar *Bar) int {
	if bar.Height != nil {
		return *bar.Height
	}
	return h.BarHeight
}

// BarBackground resolves a bar's fill color.
func (h *Hud) BarBackground(bar *Bar) RGB {
	if bar.Background != nil {
		return *bar.Background
	}
	return h.Background
}

// BarBorder resolves a bar's border color.
func (h *Hud) BarBorder(bar *Bar) RGB {
	if bar.Border != nil {
		return *bar.Border
	}
	return h.Border
}

func pickRGB(cell, bar *RGB, hud RGB) RGB {
	if cell != nil {
		return *cell
	}
	if bar != nil {
		return *bar
	}
	return hud
}

func pickInt(cell, bar *int, hud int) int {
	if cell != nil {
		return *cell
	}
	if bar != nil {
		return *bar
	}
	return hud
}

func intp(v int) *int { return &v }

// Default returns the built-in theme.
func Default() *Theme {
	return &Theme{
		Globe: Globe{
			Scale:             0.70,
			OrbitScale:        1.10,
			NumFrames:         144,
			RotationPeriodSec: 14.0,
			Background:        RGB{0, 0, 0},
			Ocean:             RGB{10, 130, 209},
			Land:              RGB{87, 32, 0},
			LandBorder:        RGB{64, 25, 3},
			Coastline:         RGB{136, 136, 136},
			Grid:              RGB{255, 255, 255},
		},
		Marker: Marker{
			Glow:   RGB{255, 0, 0},
			Core:   RGB{255, 0, 0},
			Center: RGB{255, 255, 255},

			OuterRingRadius:    7,
			RingStep:           2,
			RingCount:          3,
			CoreRadius:         3,
			RingBrightnessBase: 50,
			RingBrightnessStep: 40,

			MinSizeScale:              0.6,
			MaxSizeScale:              1.0,
			CenterDotOpacityThreshold: 0.5,
			FadeStart:                 0.05,
			OpacityCutoff:             0.05,
			OcclusionFactor:           0.3,

			ObserverColor:  RGB{9, 222, 27},
			ObserverRadius: 3,
		},
		Hud: Hud{
			Grid:    8,
			LabelY:  6,
			ValueY:  22,
			UnitGap: 2,

			BarHeight:  48,
			Background: RGB{0, 0, 0},
			Border:     RGB{255, 255, 255},

			LabelColor: RGB{9, 222, 27},
			LabelSize:  11,
			ValueColor: RGB{255, 255, 255},
			ValueSize:  17,
			UnitColor:  RGB{255, 255, 255},
			UnitSize:   15,

			Top: Bar{
				Cells: []Cell{
					{Field: "lat", Label: "LAT", Width: 85},
					{Field: "lon", Label: "LON", Width: 100},
					// Area names run long; a smaller face keeps them
					// inside the remaining cell.
					{Field: "over", Label: "OVER", ValueSize: intp(13)},
				},
			},
			Bottom: Bar{
				Cells: []Cell{
					{Field: "alt", Label: "ALT", Unit: "km", Width: 85},
					{Field: "vel", Label: "VEL", Unit: "km/h", Width: 115},
					{Field: "age", Label: "AGE", Unit: "s"},
				},
			},

			FontSearchPaths: []string{
				"B612Mono-Bold.otf",
				"B612Mono-Regular.otf",
				"/usr/share/fonts/truetype/dejavu/DejaVuSansMono-Bold.ttf",
				"/usr/share/fonts/truetype/dejavu/DejaVuSansMono.ttf",
				"/usr/share/fonts/truetype/liberation/LiberationMono-Bold.ttf",
				"/usr/share/fonts/truetype/liberation/LiberationMono-Regular.ttf",
				"/usr/share/fonts/truetype/freefont/FreeMonoBold.ttf",
				"/usr/share/fonts/truetype/freefont/FreeMono.ttf",
				"/System/Library/Fonts/Menlo.ttc",
				"/System/Library/Fonts/Monaco.ttf",
			},
		},
	}
}

// LoadOrDefault loads a theme file over the defaults. An empty path or a
// missing file yields the defaults; a present but unparseable file is an
// error so a typo does not silently reset the look.
func LoadOrDefault(path string) (*Theme, error) {
	th := Default()
	if path == "" {
		return th, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return th, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading theme %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, th); err != nil {
		return nil, fmt.Errorf("parsing theme %s: %w", path, err)
	}
	if err := th.validate(); err != nil {
		return nil, fmt.Errorf("theme %s: %w", path, err)
	}
	return th, nil
}

func (t *Theme) validate() error {
	g := &t.Globe
	if g.Scale <= 0 || g.Scale > 1 {
		return fmt.Errorf("globe scale must be in (0, 1], got %v", g.Scale)
	}
	if g.OrbitScale < 1 {
		return fmt.Errorf("globe orbit_scale must be at least 1, got %v", g.OrbitScale)
	}
	if g.NumFrames < 1 {
		return fmt.Errorf("globe num_frames must be at least 1, got %d", g.NumFrames)
	}
	if g.RotationPeriodSec <= 0 {
		return fmt.Errorf("globe rotation_period_sec must be positive, got %v", g.RotationPeriodSec)
	}
	m := &t.Marker
	if m.FadeStart < 0 || m.FadeStart > 1 {
		return fmt.Errorf("marker fade_start must be in [0, 1], got %v", m.FadeStart)
	}
	if m.MinSizeScale <= 0 || m.MaxSizeScale < m.MinSizeScale {
		return fmt.Errorf("marker size scales %v..%v invalid", m.MinSizeScale, m.MaxSizeScale)
	}
	if m.OcclusionFactor < 0 || m.OcclusionFactor > 1 {
		return fmt.Errorf("marker occlusion_factor must be in [0, 1], got %v", m.OcclusionFactor)
	}
	h := &t.Hud
	if h.BarHeight < 1 {
		return fmt.Errorf("hud bar_height must be positive, got %d", h.BarHeight)
	}
	if h.LabelSize < 1 || h.ValueSize < 1 || h.UnitSize < 1 {
		return fmt.Errorf("hud font sizes must be positive")
	}
	for _, bar := range []*Bar{&h.Top, &h.Bottom} {
		if len(bar.Cells) == 0 {
			return fmt.Errorf("hud bars must have at least one cell")
		}
		for i := range bar.Cells {
			switch bar.Cells[i].Field {
			case "lat", "lon", "alt", "vel", "age", "over":
			default:
				return fmt.Errorf("unknown hud cell field %q", bar.Cells[i].Field)
			}
		}
	}
	return nil
}
