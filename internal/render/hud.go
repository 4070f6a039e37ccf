package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/filbot/iss-tracker/internal/fix"
	"github.com/filbot/iss-tracker/internal/geo"
	"github.com/filbot/iss-tracker/internal/theme"
)

// Values is the formatted text for every HUD field. Equal Values render
// byte-identical strips, so the formatted text doubles as the cache key.
type Values struct {
	Lat, Lon, Alt, Vel, Age, Over string
}

// ValuesFromFix formats an estimate for display.
func ValuesFromFix(f fix.Fix) Values {
	return Values{
		Lat:  FormatLat(f.Latitude),
		Lon:  FormatLon(f.Longitude),
		Alt:  FormatQuantity(f.AltitudeKm),
		Vel:  FormatQuantity(f.VelocityKmh),
		Age:  FormatAge(f.DataAgeSec),
		Over: geo.AreaName(f.Latitude, f.Longitude),
	}
}

func (v Values) field(name string) string {
	switch name {
	case "lat":
		return v.Lat
	case "lon":
		return v.Lon
	case "alt":
		return v.Alt
	case "vel":
		return v.Vel
	case "age":
		return v.Age
	case "over":
		return v.Over
	}
	return ""
}

// FormatLat renders latitude with its hemisphere, e.g. "10.00°N".
func FormatLat(lat float64) string {
	dir := "N"
	if lat < 0 {
		dir = "S"
		lat = -lat
	}
	return fmt.Sprintf("%.2f°%s", lat, dir)
}

// FormatLon renders longitude with its hemisphere, e.g. "20.00°E".
func FormatLon(lon float64) string {
	dir := "E"
	if lon < 0 {
		dir = "W"
		lon = -lon
	}
	return fmt.Sprintf("%.2f°%s", lon, dir)
}

// FormatQuantity renders a rounded optional value with thousands
// separators, or "---" when the source never reported one.
func FormatQuantity(v *float64) string {
	if v == nil {
		return "---"
	}
	return humanize.Comma(int64(math.Round(*v)))
}

// FormatAge renders whole seconds.
func FormatAge(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%d", int(sec))
}

// HudRenderer rasterizes the HUD strips. Rendered strips are cached by
// their displayed text; between telemetry changes the same backing buffer
// comes back without touching a font.
type HudRenderer struct {
	th    *theme.Theme
	width int

	ttf   *truetype.Font // nil means basicfont fallback
	faces map[int]font.Face

	cache   map[string][]byte
	renders int // strips actually rasterized; read by tests
}

// NewHudRenderer loads the first usable font from the theme's search
// list, falling back to the built-in bitmap face.
func NewHudRenderer(th *theme.Theme, width int) *HudRenderer {
	h := &HudRenderer{
		th:    th,
		width: width,
		faces: make(map[int]font.Face),
		cache: make(map[string][]byte),
	}
	for _, path := range th.Hud.FontSearchPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		f, err := freetype.ParseFont(data)
		if err != nil {
			log.Printf("render: skipping font %s: %v", path, err)
			continue
		}
		h.ttf = f
		log.Printf("render: using font %s", path)
		break
	}
	if h.ttf == nil {
		log.Printf("render: no theme font found, using built-in face")
	}
	return h
}

func (h *HudRenderer) face(size int) font.Face {
	if h.ttf == nil {
		return basicfont.Face7x13
	}
	if f, ok := h.faces[size]; ok {
		return f
	}
	f := truetype.NewFace(h.ttf, &truetype.Options{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	h.faces[size] = f
	return f
}

// Strip returns the rendered bar for the given values. Cache hits return
// the previous buffer; callers splice it into the frame every tick either
// way.
func (h *HudRenderer) Strip(bar *theme.Bar, v Values) []byte {
	var key strings.Builder
	fmt.Fprintf(&key, "%p", bar)
	for i := range bar.Cells {
		key.WriteByte(0x1f)
		key.WriteString(v.field(bar.Cells[i].Field))
	}
	if cached, ok := h.cache[key.String()]; ok {
		return cached
	}

	buf := h.rasterize(bar, v)
	if len(h.cache) >= 256 {
		h.cache = make(map[string][]byte)
	}
	h.cache[key.String()] = buf
	h.renders++
	return buf
}

func (h *HudRenderer) rasterize(bar *theme.Bar, v Values) []byte {
	hud := &h.th.Hud
	height := hud.BarHeightFor(bar)
	img := image.NewRGBA(image.Rect(0, 0, h.width, height))

	bg := hud.BarBackground(bar)
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{bg.R, bg.G, bg.B, 255}}, image.Point{}, draw.Src)

	border := hud.BarBorder(bar)
	bc := color.RGBA{border.R, border.G, border.B, 255}
	for x := 0; x < h.width; x++ {
		img.SetRGBA(x, 0, bc)
		img.SetRGBA(x, height-1, bc)
	}

	x := hud.Grid
	for i := range bar.Cells {
		cell := &bar.Cells[i]
		style := hud.Resolve(bar, cell)
		if cell.Width > 0 {
			h.drawCell(img, x, cell, style, v.field(cell.Field), false)
			x += cell.Width
		} else {
			// Width 0: claim the rest of the bar, right-aligned.
			h.drawCell(img, h.width-hud.Grid, cell, style, v.field(cell.Field), true)
		}
	}
	return EncodeImage(img)
}

// drawCell draws label, value and unit for one cell. x is the cell's left
// edge, or its right edge when rightAlign is set.
func (h *HudRenderer) drawCell(img *image.RGBA, x int, cell *theme.Cell, style theme.CellStyle, value string, rightAlign bool) {
	hud := &h.th.Hud

	labelFace := h.face(style.LabelSize)
	valueFace := h.face(style.ValueSize)
	labelBase := hud.LabelY + labelFace.Metrics().Ascent.Ceil()
	valueBase := hud.ValueY + valueFace.Metrics().Ascent.Ceil()

	valueWidth := font.MeasureString(valueFace, value).Ceil()
	var unitFace font.Face
	unitAdvance := 0
	if cell.Unit != "" {
		unitFace = h.face(style.UnitSize)
		unitAdvance = hud.UnitGap + font.MeasureString(unitFace, cell.Unit).Ceil()
	}

	labelX, valueX := x, x
	if rightAlign {
		labelX = x - font.MeasureString(labelFace, cell.Label).Ceil()
		valueX = x - valueWidth - unitAdvance
	}

	drawString(img, labelFace, cell.Label, labelX, labelBase, style.LabelColor)
	drawString(img, valueFace, value, valueX, valueBase, style.ValueColor)
	if cell.Unit != "" {
		drawString(img, unitFace, cell.Unit, valueX+valueWidth+hud.UnitGap, valueBase, style.UnitColor)
	}
}

func drawString(img *image.RGBA, face font.Face, s string, x, baseline int, c theme.RGB) {
	d := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{color.RGBA{c.R, c.G, c.B, 255}},
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}
