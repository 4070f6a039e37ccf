package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# empty on purpose\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FixURLPrimary != "https://api.wheretheiss.at/v1/satellites/25544" {
		t.Errorf("FixURLPrimary = %q", cfg.FixURLPrimary)
	}
	if len(cfg.FixURLFallbacks) != 1 || cfg.FixURLFallbacks[0] != "http://api.open-notify.org/iss-now.json" {
		t.Errorf("FixURLFallbacks = %v", cfg.FixURLFallbacks)
	}
	if cfg.PollIntervalSec != 10 || cfg.MaxBackoffSec != 300 {
		t.Errorf("poll/backoff = %d/%d, want 10/300", cfg.PollIntervalSec, cfg.MaxBackoffSec)
	}
	if cfg.DisplayMode != "lcd" || cfg.DisplayWidth != 320 || cfg.DisplayHeight != 480 {
		t.Errorf("display defaults = %q %dx%d", cfg.DisplayMode, cfg.DisplayWidth, cfg.DisplayHeight)
	}
	if !cfg.DisplayBGR {
		t.Error("DisplayBGR should default to true")
	}
	if cfg.RenderReinitThreshold != 5 || cfg.RenderAbortThreshold != 20 {
		t.Errorf("render thresholds = %d/%d, want 5/20",
			cfg.RenderReinitThreshold, cfg.RenderAbortThreshold)
	}
	if cfg.ObserverEnabled {
		t.Error("ObserverEnabled should default to false")
	}
	if cfg.MQTTBroker != "" {
		t.Errorf("MQTTBroker = %q, want empty", cfg.MQTTBroker)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, strings.Join([]string{
		"# tracker config",
		"",
		"FIX_URL_PRIMARY=http://localhost:9000/fix",
		"FIX_URL_FALLBACKS=http://a.example/one, http://b.example/two,",
		"POLL_INTERVAL_SEC=5",
		"MAX_BACKOFF_SEC=60",
		"DISPLAY_MODE=preview",
		"DISPLAY_ROTATION=180",
		"DISPLAY_BGR=false",
		"SPI_SPEED_HZ=20000000",
		"PIN_BUSY=GPIO24",
		"OBSERVER_LAT=48.85",
		"OBSERVER_LON=2.35",
		"MQTT_BROKER=tcp://localhost:1883",
		"MAPBOX_ZOOM=3",
	}, "\n")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FixURLPrimary != "http://localhost:9000/fix" {
		t.Errorf("FixURLPrimary = %q", cfg.FixURLPrimary)
	}
	want := []string{"http://a.example/one", "http://b.example/two"}
	if len(cfg.FixURLFallbacks) != len(want) {
		t.Fatalf("FixURLFallbacks = %v, want %v", cfg.FixURLFallbacks, want)
	}
	for i := range want {
		if cfg.FixURLFallbacks[i] != want[i] {
			t.Errorf("FixURLFallbacks[%d] = %q, want %q", i, cfg.FixURLFallbacks[i], want[i])
		}
	}
	if cfg.PollIntervalSec != 5 || cfg.MaxBackoffSec != 60 {
		t.Errorf("poll/backoff = %d/%d", cfg.PollIntervalSec, cfg.MaxBackoffSec)
	}
	if cfg.DisplayMode != "preview" || cfg.DisplayRotation != 180 || cfg.DisplayBGR {
		t.Errorf("display = %q rot=%d bgr=%v", cfg.DisplayMode, cfg.DisplayRotation, cfg.DisplayBGR)
	}
	if cfg.SPISpeedHz != 20000000 || cfg.PinBusy != "GPIO24" {
		t.Errorf("spi = %d busy=%q", cfg.SPISpeedHz, cfg.PinBusy)
	}
	if !cfg.ObserverEnabled || cfg.ObserverLat != 48.85 || cfg.ObserverLon != 2.35 {
		t.Errorf("observer = %v (%v, %v)", cfg.ObserverEnabled, cfg.ObserverLat, cfg.ObserverLon)
	}
	if cfg.MQTTBroker != "tcp://localhost:1883" {
		t.Errorf("MQTTBroker = %q", cfg.MQTTBroker)
	}
	if cfg.MapboxZoom != 3 {
		t.Errorf("MapboxZoom = %v", cfg.MapboxZoom)
	}
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	_, err := Load(writeConfig(t, "POLL_INTERVAL_SEC 10\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid config line 1") {
		t.Errorf("err = %v, want invalid line error", err)
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "NO_SUCH_KEY=1\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("err = %v, want unknown key error", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"non-numeric interval", "POLL_INTERVAL_SEC=soon"},
		{"bad rotation", "DISPLAY_ROTATION=45"},
		{"bad bool", "DISPLAY_BGR=maybe"},
		{"bad float", "OBSERVER_LAT=north"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.line+"\n")); err == nil {
				t.Errorf("Load accepted %q", tt.line)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"defaults pass",
			func(c *Config) {},
			"",
		},
		{
			"missing primary url",
			func(c *Config) { c.FixURLPrimary = "" },
			"FIX_URL_PRIMARY",
		},
		{
			"backoff below poll",
			func(c *Config) { c.MaxBackoffSec = 5 },
			"MAX_BACKOFF_SEC",
		},
		{
			"bad display mode",
			func(c *Config) { c.DisplayMode = "oled" },
			"DISPLAY_MODE",
		},
		{
			"abort not above reinit",
			func(c *Config) { c.RenderAbortThreshold = 5 },
			"RENDER_ABORT_THRESHOLD",
		},
		{
			"led without pin",
			func(c *Config) { c.LEDEnabled = true; c.LEDPin = "" },
			"LED_PIN",
		},
		{
			"observer out of range",
			func(c *Config) { c.ObserverEnabled = true; c.ObserverLat = 120 },
			"OBSERVER_LAT",
		},
		{
			"epaper without token",
			func(c *Config) { c.DisplayMode = "epaper" },
			"MAPBOX_TOKEN",
		},
		{
			"epaper pad mismatch",
			func(c *Config) {
				c.DisplayMode = "epaper"
				c.MapboxToken = "pk.test"
				c.EPDPadLeft = 4
			},
			"padding",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a , b ,, c ")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if splitList("") != nil {
		t.Errorf("splitList(\"\") = %v, want nil", splitList(""))
	}
}
