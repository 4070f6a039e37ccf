// Package staticmap fetches Mapbox static tiles and produces the
// portrait map imagery behind the e-paper backend: tile addressing,
// portrait cropping, disk caching, an hourly request budget and a
// static-image fallback.
package staticmap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/filbot/iss-tracker/internal/geo"
)

// Config mirrors the MAPBOX_* configuration keys plus the portrait
// geometry of the panel this feeds.
type Config struct {
	Token    string
	Username string
	Style    string
	Zoom     int
	TileSize int
	HiDPI    bool
	Bearing  float64

	RefreshRadiusKm float64
	HourlyQuota     int
	Fallback        bool
	PinColor        string

	WorkWidth int
	Height    int
	TrimLeft  int
	TrimRight int

	CacheDir string
	StateDir string
}

// TileAddress locates a position inside the slippy tile grid, with the
// sub-tile pixel offset at the configured tile dimensions.
type TileAddress struct {
	Z, X, Y int
	PixelX  float64
	PixelY  float64
	Scale   int
}

// mapState is persisted as mapbox.json between runs. Field names match
// the original state file so upgrades warm-start cleanly.
type mapState struct {
	LastLat      *float64 `json:"last_lat"`
	LastLon      *float64 `json:"last_lon"`
	HourStarted  float64  `json:"hour_started"`
	RequestsHour int      `json:"requests_this_hour"`
	PortraitPath string   `json:"current_portrait_path"`
}

// Client downloads and caches map imagery.
type Client struct {
	cfg     Config
	client  *http.Client
	baseURL string

	tileDir     string
	portraitDir string
	stateFile   string

	st  mapState
	now func() time.Time
}

// New builds a client and prepares its cache directories.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("staticmap: mapbox token required")
	}
	c := &Client{
		cfg:         cfg,
		client:      &http.Client{Timeout: 30 * time.Second},
		baseURL:     "https://api.mapbox.com",
		tileDir:     filepath.Join(cfg.CacheDir, "tiles", cfg.Style, strconv.Itoa(cfg.Zoom)),
		portraitDir: filepath.Join(cfg.CacheDir, "portraits", cfg.Style, strconv.Itoa(cfg.Zoom)),
		stateFile:   filepath.Join(cfg.StateDir, "mapbox.json"),
		now:         time.Now,
	}
	if err := os.MkdirAll(c.tileDir, 0o755); err != nil {
		return nil, fmt.Errorf("tile cache: %w", err)
	}
	if err := os.MkdirAll(c.portraitDir, 0o755); err != nil {
		return nil, fmt.Errorf("portrait cache: %w", err)
	}
	c.loadState()
	return c, nil
}

func (c *Client) loadState() {
	data, err := os.ReadFile(c.stateFile)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &c.st); err != nil {
		log.Printf("staticmap: ignoring bad state file: %v", err)
	}
}

func (c *Client) persistState() {
	data, err := json.MarshalIndent(&c.st, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.stateFile), 0o755); err != nil {
		log.Printf("staticmap: state dir: %v", err)
		return
	}
	if err := os.WriteFile(c.stateFile, data, 0o644); err != nil {
		log.Printf("staticmap: persisting state: %v", err)
	}
}

// NeedsRefresh reports whether the satellite moved far enough from the
// last rendered position to justify new imagery.
func (c *Client) NeedsRefresh(lat, lon float64) bool {
	if c.st.LastLat == nil || c.st.LastLon == nil {
		return true
	}
	return geo.HaversineKm(lat, lon, *c.st.LastLat, *c.st.LastLon) >= c.cfg.RefreshRadiusKm
}

// Portrait returns the portrait map image for a position, from cache
// when the position has not moved beyond the refresh radius.
func (c *Client) Portrait(ctx context.Context, lat, lon float64, force bool) (image.Image, error) {
	if !force && !c.NeedsRefresh(lat, lon) && c.st.PortraitPath != "" {
		if img, err := loadImage(c.st.PortraitPath); err == nil {
			c.recordUsage(lat, lon, c.st.PortraitPath)
			return img, nil
		}
	}

	addr := c.TileAddress(lat, lon)
	cached := c.portraitPath(addr)
	if !force {
		if img, err := loadImage(cached); err == nil {
			c.recordUsage(lat, lon, cached)
			return img, nil
		}
	}

	portrait, err := c.buildPortrait(ctx, addr, force)
	if err != nil {
		if !c.cfg.Fallback {
			return nil, err
		}
		log.Printf("staticmap: tile fetch failed (%v), using static image fallback", err)
		if portrait, err = c.fallbackPortrait(ctx, lat, lon); err != nil {
			return nil, err
		}
	}

	if err := savePNG(cached, portrait); err != nil {
		log.Printf("staticmap: caching portrait: %v", err)
	}
	c.recordUsage(lat, lon, cached)
	return portrait, nil
}

// TileAddress maps a position to Web Mercator tile coordinates. The
// sub-tile pixel offset is clamped inside the tile.
func (c *Client) TileAddress(lat, lon float64) TileAddress {
	n := math.Exp2(float64(c.cfg.Zoom))
	scale := 1
	if c.cfg.HiDPI {
		scale = 2
	}
	latRad := lat * math.Pi / 180

	xf := (lon + 180) / 360 * n
	yf := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n

	tileX := int(math.Floor(xf))
	tileY := int(math.Floor(yf))

	tileDim := float64(c.cfg.TileSize * scale)
	px := math.Max(0, math.Min(tileDim-1, (xf-float64(tileX))*tileDim))
	py := math.Max(0, math.Min(tileDim-1, (yf-float64(tileY))*tileDim))

	return TileAddress{Z: c.cfg.Zoom, X: tileX, Y: tileY, PixelX: px, PixelY: py, Scale: scale}
}

func (c *Client) tileURL(addr TileAddress) string {
	suffix := ""
	if c.cfg.HiDPI {
		suffix = "@2x"
	}
	return fmt.Sprintf("%s/styles/v1/%s/%s/tiles/%d/%d/%d/%d%s?access_token=%s",
		c.baseURL, c.cfg.Username, c.cfg.Style, c.cfg.TileSize,
		addr.Z, addr.X, addr.Y, suffix, c.cfg.Token)
}

func (c *Client) staticImageURL(lat, lon float64) string {
	pin := strings.TrimPrefix(c.cfg.PinColor, "#")
	if pin == "" {
		pin = "ED1C24"
	}
	return fmt.Sprintf("%s/styles/v1/%s/%s/static/pin-s+%s(%.6f,%.6f)/%.6f,%.6f,%d,%.1f/%dx%d?access_token=%s&logo=false&attribution=false",
		c.baseURL, c.cfg.Username, c.cfg.Style, pin, lon, lat, lon, lat,
		c.cfg.Zoom, c.cfg.Bearing, c.cfg.WorkWidth, c.cfg.Height, c.cfg.Token)
}

func (c *Client) tilePath(addr TileAddress) string {
	suffix := ""
	if c.cfg.HiDPI {
		suffix = "@2x"
	}
	return filepath.Join(c.tileDir, fmt.Sprintf("%d_%d%s.png", addr.X, addr.Y, suffix))
}

func (c *Client) portraitPath(addr TileAddress) string {
	return filepath.Join(c.portraitDir,
		fmt.Sprintf("%d_%d_%d_%d.png", addr.X, addr.Y, int(addr.PixelX), int(addr.PixelY)))
}

func (c *Client) buildPortrait(ctx context.Context, addr TileAddress, force bool) (image.Image, error) {
	tile, err := c.loadTile(ctx, addr, force)
	if err != nil {
		return nil, err
	}
	return c.renderPortrait(tile, addr), nil
}

func (c *Client) loadTile(ctx context.Context, addr TileAddress, force bool) (image.Image, error) {
	path := c.tilePath(addr)
	if !force {
		if img, err := loadImage(path); err == nil {
			return img, nil
		}
	}
	body, err := c.fetch(ctx, c.tileURL(addr))
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		log.Printf("staticmap: caching tile: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decoding tile: %w", err)
	}
	return img, nil
}

// fetch performs one budgeted download. The quota check runs before the
// request; the counter advances only on success.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := c.enforceQuota(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// The URL carries the access token; report only the host.
		return nil, fmt.Errorf("staticmap: %s returned %s", req.URL.Host, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	c.st.RequestsHour++
	c.persistState()
	return body, nil
}

func (c *Client) enforceQuota() error {
	now := float64(c.now().Unix())
	if now-c.st.HourStarted >= 3600 {
		c.st.HourStarted = now
		c.st.RequestsHour = 0
		return nil
	}
	if c.cfg.HourlyQuota > 0 && c.st.RequestsHour >= c.cfg.HourlyQuota {
		return fmt.Errorf("staticmap: hourly request budget exhausted (%d)", c.st.RequestsHour)
	}
	return nil
}

// renderPortrait crops the square tile to the portrait aspect centered
// on the position, scales it to the working size and trims the side
// margins.
func (c *Client) renderPortrait(tile image.Image, addr TileAddress) image.Image {
	b := tile.Bounds()
	tileDim := b.Dx()

	aspect := float64(c.cfg.WorkWidth) / float64(c.cfg.Height)
	cropH := tileDim
	cropW := int(math.Round(float64(cropH) * aspect))
	if cropW < 1 {
		cropW = 1
	}
	if cropW > tileDim {
		cropW = tileDim
	}

	left := int(math.Round(addr.PixelX)) - cropW/2
	top := int(math.Round(addr.PixelY)) - cropH/2
	left = clampInt(left, 0, tileDim-cropW)
	top = clampInt(top, 0, tileDim-cropH)

	out := image.NewRGBA(image.Rect(0, 0, c.cfg.WorkWidth, c.cfg.Height))
	src := image.Rect(b.Min.X+left, b.Min.Y+top, b.Min.X+left+cropW, b.Min.Y+top+cropH)
	xdraw.CatmullRom.Scale(out, out.Bounds(), tile, src, xdraw.Src, nil)
	return c.trimPortrait(out)
}

func (c *Client) trimPortrait(img *image.RGBA) image.Image {
	b := img.Bounds()
	return img.SubImage(image.Rect(b.Min.X+c.cfg.TrimLeft, b.Min.Y, b.Max.X-c.cfg.TrimRight, b.Max.Y))
}

func (c *Client) fallbackPortrait(ctx context.Context, lat, lon float64) (image.Image, error) {
	body, err := c.fetch(ctx, c.staticImageURL(lat, lon))
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decoding static image: %w", err)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return c.trimPortrait(rgba), nil
}

func (c *Client) recordUsage(lat, lon float64, portraitPath string) {
	c.st.LastLat, c.st.LastLon = &lat, &lon
	c.st.PortraitPath = portraitPath
	c.persistState()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func savePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
