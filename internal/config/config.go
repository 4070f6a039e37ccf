package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// Position sources, highest priority first
	FixURLPrimary       string
	FixURLFallbacks     []string
	FixAPIKey           string
	FixConnectTimeoutMS int // milliseconds
	FixReadTimeoutMS    int // milliseconds

	// Estimator
	PollIntervalSec        int // seconds
	MaxBackoffSec          int // seconds
	MinVelocityIntervalSec int // seconds
	EstimatorStaleSec      int // seconds
	EstimatorCheckSec      int // seconds

	// Display selection: "lcd", "epaper" or "preview"
	DisplayMode   string
	DisplayWidth  int
	DisplayHeight int

	// LCD panel wiring
	SPIDevice       string
	SPISpeedHz      int
	SPIChunkBytes   int
	PinReset        string
	PinDC           string
	PinBacklight    string
	PinBusy         string // empty = busy line not wired
	DisplayRotation int    // degrees: 0, 90, 180 or 270
	DisplayBGR      bool
	DisplayInverted bool

	// Panel maintenance cadence
	HealthCheckSec       int // seconds
	LightReinitMin       int // minutes
	FullReinitMin        int // minutes
	ZeroReadDisableCount int
	BusRecoveryThreshold int

	// Render loop escalation
	RenderReinitThreshold int
	RenderAbortThreshold  int

	// Pre-rendered globe frames and theme
	FrameCachePath string
	ThemePath      string

	// Filesystem layout
	StateDir        string
	PreviewDir      string
	PreviewEverySec int // seconds
	CacheDir        string

	// Status LED
	LEDEnabled bool
	LEDPin     string

	// Ground observer marker
	ObserverEnabled bool
	ObserverLat     float64
	ObserverLon     float64
	ObserverGPSPort string // empty = fixed position only
	ObserverGPSBaud int

	// MQTT publishing; empty broker disables it
	MQTTBroker    string
	MQTTClientID  string
	TopicFix      string
	TopicEstimate string

	// Web view
	WebEnabled bool
	WebPort    int

	// Mapbox static maps for the e-paper mode
	MapboxToken       string
	MapboxUsername    string
	MapboxStyle       string
	MapboxZoom        int
	MapboxTileDim     int
	MapboxHiDPI       bool
	MapboxBearing     float64
	MapboxRadiusKm    float64
	MapboxHourlyQuota int
	MapboxFallback    bool

	// E-paper panel geometry
	EPDWidth        int
	EPDHeight       int
	EPDLogicalWidth int
	EPDPadLeft      int
	EPDPadRight     int
	EPDHasRed       bool
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot access it directly,
//     which prevents external code from modifying config without proper locking.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
//
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaultConfig returns a Config pre-filled with the values the daemon
// runs with when a key is absent from the file. A minimal config file
// can therefore be empty.
func defaultConfig() *Config {
	return &Config{
		FixURLPrimary:       "https://api.wheretheiss.at/v1/satellites/25544",
		FixURLFallbacks:     []string{"http://api.open-notify.org/iss-now.json"},
		FixConnectTimeoutMS: 2000,
		FixReadTimeoutMS:    10000,

		PollIntervalSec:        10,
		MaxBackoffSec:          300,
		MinVelocityIntervalSec: 1,
		EstimatorStaleSec:      180,
		EstimatorCheckSec:      30,

		DisplayMode:   "lcd",
		DisplayWidth:  320,
		DisplayHeight: 480,

		SPIDevice:     "/dev/spidev0.0",
		SPISpeedHz:    40000000,
		SPIChunkBytes: 4096,
		PinReset:      "GPIO27",
		PinDC:         "GPIO25",
		PinBacklight:  "GPIO18",
		DisplayBGR:    true,

		HealthCheckSec:       60,
		LightReinitMin:       15,
		FullReinitMin:        60,
		ZeroReadDisableCount: 3,
		BusRecoveryThreshold: 3,

		RenderReinitThreshold: 5,
		RenderAbortThreshold:  20,

		FrameCachePath: "var/cache/frames.bin",
		ThemePath:      "theme.yaml",

		StateDir:        "var/state",
		PreviewDir:      "var/previews",
		PreviewEverySec: 5,
		CacheDir:        "var/cache",

		LEDPin:          "GPIO12",
		ObserverGPSBaud: 9600,

		MQTTClientID:  "iss-tracker",
		TopicFix:      "iss/fix",
		TopicEstimate: "iss/estimate",

		WebPort: 8080,

		MapboxUsername:    "mapbox",
		MapboxStyle:       "dark-v11",
		MapboxZoom:        2,
		MapboxTileDim:     512,
		MapboxHiDPI:       true,
		MapboxRadiusKm:    400,
		MapboxHourlyQuota: 60,
		MapboxFallback:    true,

		EPDWidth:        128,
		EPDHeight:       250,
		EPDLogicalWidth: 122,
		EPDPadLeft:      3,
		EPDPadRight:     3,
		EPDHasRed:       true,
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys not present in the file keep their default values.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaultConfig()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Position sources
	case "FIX_URL_PRIMARY":
		c.FixURLPrimary = value
	case "FIX_URL_FALLBACKS":
		c.FixURLFallbacks = splitList(value)
	case "FIX_API_KEY":
		c.FixAPIKey = value
	case "FIX_CONNECT_TIMEOUT_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid FIX_CONNECT_TIMEOUT_MS %q: %w", value, err)
		}
		c.FixConnectTimeoutMS = ms
	case "FIX_READ_TIMEOUT_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid FIX_READ_TIMEOUT_MS %q: %w", value, err)
		}
		c.FixReadTimeoutMS = ms

	// Estimator
	case "POLL_INTERVAL_SEC":
		sec, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid POLL_INTERVAL_SEC %q: %w", value, err)
		}
		c.PollIntervalSec = sec
	case "MAX_BACKOFF_SEC":
		sec, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAX_BACKOFF_SEC %q: %w", value, err)
		}
		c.MaxBackoffSec = sec
	case "MIN_VELOCITY_INTERVAL_SEC":
		sec, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MIN_VELOCITY_INTERVAL_SEC %q: %w", value, err)
		}
		c.MinVelocityIntervalSec = sec
	case "ESTIMATOR_STALE_SEC":
		sec, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ESTIMATOR_STALE_SEC %q: %w", value, err)
		}
		c.EstimatorStaleSec = sec
	case "ESTIMATOR_CHECK_SEC":
		sec, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ESTIMATOR_CHECK_SEC %q: %w", value, err)
		}
		c.EstimatorCheckSec = sec

	// Display selection
	case "DISPLAY_MODE":
		c.DisplayMode = value
	case "DISPLAY_WIDTH":
		px, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_WIDTH %q: %w", value, err)
		}
		c.DisplayWidth = px
	case "DISPLAY_HEIGHT":
		px, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_HEIGHT %q: %w", value, err)
		}
		c.DisplayHeight = px

	// LCD panel wiring
	case "SPI_DEVICE":
		c.SPIDevice = value
	case "SPI_SPEED_HZ":
		hz, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SPI_SPEED_HZ %q: %w", value, err)
		}
		c.SPISpeedHz = hz
	case "SPI_CHUNK_BYTES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SPI_CHUNK_BYTES %q: %w", value, err)
		}
		c.SPIChunkBytes = n
	case "PIN_RESET":
		c.PinReset = value
	case "PIN_DC":
		c.PinDC = value
	case "PIN_BACKLIGHT":
		c.PinBacklight = value
	case "PIN_BUSY":
		c.PinBusy = value
	case "DISPLAY_ROTATION":
		deg, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_ROTATION %q: %w", value, err)
		}
		if deg != 0 && deg != 90 && deg != 180 && deg != 270 {
			return fmt.Errorf("DISPLAY_ROTATION must be 0, 90, 180 or 270, got %d", deg)
		}
		c.DisplayRotation = deg
	case "DISPLAY_BGR":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_BGR %q: %w", value, err)
		}
		c.DisplayBGR = b
	case "DISPLAY_INVERTED":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_INVERTED %q: %w", value, err)
		}
		c.DisplayInverted = b

	// Panel maintenance cadence
	case "HEALTH_CHECK_SEC":
		sec, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HEALTH_CHECK_SEC %q: %w", value, err)
		}
		c.HealthCheckSec = sec
	case "LIGHT_REINIT_MIN":
		min, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LIGHT_REINIT_MIN %q: %w", value, err)
		}
		c.LightReinitMin = min
	case "FULL_REINIT_MIN":
		min, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid FULL_REINIT_MIN %q: %w", value, err)
		}
		c.FullReinitMin = min
	case "ZERO_READ_DISABLE_COUNT":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ZERO_READ_DISABLE_COUNT %q: %w", value, err)
		}
		c.ZeroReadDisableCount = n
	case "BUS_RECOVERY_THRESHOLD":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BUS_RECOVERY_THRESHOLD %q: %w", value, err)
		}
		c.BusRecoveryThreshold = n

	// Render loop escalation
	case "RENDER_REINIT_THRESHOLD":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RENDER_REINIT_THRESHOLD %q: %w", value, err)
		}
		c.RenderReinitThreshold = n
	case "RENDER_ABORT_THRESHOLD":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RENDER_ABORT_THRESHOLD %q: %w", value, err)
		}
		c.RenderAbortThreshold = n

	// Frames and theme
	case "FRAME_CACHE_PATH":
		c.FrameCachePath = value
	case "THEME_PATH":
		c.ThemePath = value

	// Filesystem layout
	case "STATE_DIR":
		c.StateDir = value
	case "PREVIEW_DIR":
		c.PreviewDir = value
	case "PREVIEW_EVERY_SEC":
		sec, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PREVIEW_EVERY_SEC %q: %w", value, err)
		}
		c.PreviewEverySec = sec
	case "CACHE_DIR":
		c.CacheDir = value

	// Status LED
	case "LED_ENABLED":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid LED_ENABLED %q: %w", value, err)
		}
		c.LEDEnabled = b
	case "LED_PIN":
		c.LEDPin = value

	// Ground observer marker
	case "OBSERVER_LAT":
		lat, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid OBSERVER_LAT %q: %w", value, err)
		}
		c.ObserverLat = lat
		c.ObserverEnabled = true
	case "OBSERVER_LON":
		lon, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid OBSERVER_LON %q: %w", value, err)
		}
		c.ObserverLon = lon
		c.ObserverEnabled = true
	case "OBSERVER_GPS_PORT":
		c.ObserverGPSPort = value
	case "OBSERVER_GPS_BAUD":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid OBSERVER_GPS_BAUD %q: %w", value, err)
		}
		c.ObserverGPSBaud = rate

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_FIX":
		c.TopicFix = value
	case "TOPIC_ESTIMATE":
		c.TopicEstimate = value

	// Web view
	case "WEB_ENABLED":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_ENABLED %q: %w", value, err)
		}
		c.WebEnabled = b
	case "WEB_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_PORT %q: %w", value, err)
		}
		c.WebPort = port

	// Mapbox
	case "MAPBOX_TOKEN":
		c.MapboxToken = value
	case "MAPBOX_USERNAME":
		c.MapboxUsername = value
	case "MAPBOX_STYLE":
		c.MapboxStyle = value
	case "MAPBOX_ZOOM":
		zoom, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAPBOX_ZOOM %q: %w", value, err)
		}
		c.MapboxZoom = zoom
	case "MAPBOX_TILE_DIM":
		dim, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAPBOX_TILE_DIM %q: %w", value, err)
		}
		c.MapboxTileDim = dim
	case "MAPBOX_HIDPI":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid MAPBOX_HIDPI %q: %w", value, err)
		}
		c.MapboxHiDPI = b
	case "MAPBOX_BEARING":
		deg, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MAPBOX_BEARING %q: %w", value, err)
		}
		c.MapboxBearing = deg
	case "MAPBOX_RADIUS_KM":
		km, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MAPBOX_RADIUS_KM %q: %w", value, err)
		}
		c.MapboxRadiusKm = km
	case "MAPBOX_HOURLY_QUOTA":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAPBOX_HOURLY_QUOTA %q: %w", value, err)
		}
		c.MapboxHourlyQuota = n
	case "MAPBOX_FALLBACK":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid MAPBOX_FALLBACK %q: %w", value, err)
		}
		c.MapboxFallback = b

	// E-paper panel geometry
	case "EPD_WIDTH":
		px, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid EPD_WIDTH %q: %w", value, err)
		}
		c.EPDWidth = px
	case "EPD_HEIGHT":
		px, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid EPD_HEIGHT %q: %w", value, err)
		}
		c.EPDHeight = px
	case "EPD_LOGICAL_WIDTH":
		px, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid EPD_LOGICAL_WIDTH %q: %w", value, err)
		}
		c.EPDLogicalWidth = px
	case "EPD_PAD_LEFT":
		px, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid EPD_PAD_LEFT %q: %w", value, err)
		}
		c.EPDPadLeft = px
	case "EPD_PAD_RIGHT":
		px, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid EPD_PAD_RIGHT %q: %w", value, err)
		}
		c.EPDPadRight = px
	case "EPD_HAS_RED":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid EPD_HAS_RED %q: %w", value, err)
		}
		c.EPDHasRed = b

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks cross-field consistency. Presence is rarely an issue
// because defaults cover almost every key.
func (c *Config) validate() error {
	if c.FixURLPrimary == "" {
		return fmt.Errorf("FIX_URL_PRIMARY is required")
	}
	if c.PollIntervalSec < 1 {
		return fmt.Errorf("POLL_INTERVAL_SEC must be at least 1, got %d", c.PollIntervalSec)
	}
	if c.MaxBackoffSec < c.PollIntervalSec {
		return fmt.Errorf("MAX_BACKOFF_SEC (%d) must be at least POLL_INTERVAL_SEC (%d)",
			c.MaxBackoffSec, c.PollIntervalSec)
	}
	if c.MinVelocityIntervalSec < 1 {
		return fmt.Errorf("MIN_VELOCITY_INTERVAL_SEC must be at least 1, got %d", c.MinVelocityIntervalSec)
	}
	switch c.DisplayMode {
	case "lcd", "epaper", "preview":
	default:
		return fmt.Errorf("DISPLAY_MODE must be \"lcd\", \"epaper\" or \"preview\", got %q", c.DisplayMode)
	}
	if c.DisplayWidth <= 0 || c.DisplayHeight <= 0 {
		return fmt.Errorf("DISPLAY_WIDTH and DISPLAY_HEIGHT must be positive, got %dx%d",
			c.DisplayWidth, c.DisplayHeight)
	}
	if c.SPIChunkBytes < 2 {
		return fmt.Errorf("SPI_CHUNK_BYTES must be at least 2, got %d", c.SPIChunkBytes)
	}
	if c.RenderAbortThreshold <= c.RenderReinitThreshold {
		return fmt.Errorf("RENDER_ABORT_THRESHOLD (%d) must be greater than RENDER_REINIT_THRESHOLD (%d)",
			c.RenderAbortThreshold, c.RenderReinitThreshold)
	}
	if c.LEDEnabled && c.LEDPin == "" {
		return fmt.Errorf("LED_PIN is required when LED_ENABLED is set")
	}
	if c.ObserverEnabled {
		if c.ObserverLat < -90 || c.ObserverLat > 90 {
			return fmt.Errorf("OBSERVER_LAT must be in [-90, 90], got %v", c.ObserverLat)
		}
		if c.ObserverLon < -180 || c.ObserverLon > 180 {
			return fmt.Errorf("OBSERVER_LON must be in [-180, 180], got %v", c.ObserverLon)
		}
	}
	if c.WebEnabled && (c.WebPort < 1 || c.WebPort > 65535) {
		return fmt.Errorf("WEB_PORT must be in 1-65535, got %d", c.WebPort)
	}
	if c.DisplayMode == "epaper" {
		if c.MapboxToken == "" {
			return fmt.Errorf("MAPBOX_TOKEN is required when DISPLAY_MODE is \"epaper\"")
		}
		if c.EPDLogicalWidth <= 0 || c.EPDLogicalWidth > c.EPDWidth {
			return fmt.Errorf("EPD_LOGICAL_WIDTH must be in 1-%d, got %d", c.EPDWidth, c.EPDLogicalWidth)
		}
		if c.EPDPadLeft < 0 || c.EPDPadRight < 0 ||
			c.EPDPadLeft+c.EPDLogicalWidth+c.EPDPadRight != c.EPDWidth {
			return fmt.Errorf("EPD padding %d+%d does not fill %d columns around %d logical ones",
				c.EPDPadLeft, c.EPDPadRight, c.EPDWidth, c.EPDLogicalWidth)
		}
	}
	return nil
}

// splitList parses a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
