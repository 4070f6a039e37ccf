package geo

import (
	"math"
	"testing"
)

func TestWrapLongitude(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{-180, 180},
		{190, -170},
		{-190, 170},
		{360, 0},
		{540, 180},
		{-540, 180},
		{359, -1},
		{-359, 1},
	}
	for _, tt := range tests {
		if got := WrapLongitude(tt.in); got != tt.want {
			t.Errorf("WrapLongitude(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWrapLongitudeDelta(t *testing.T) {
	// Crossing the antimeridian eastward is a short positive step.
	got := WrapLongitude(-179.5 - 179.5)
	if got != 1 {
		t.Errorf("delta across seam = %v, want 1", got)
	}
}

func TestClampLatitude(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{89.9, 89.9},
		{90, 90},
		{91, 90},
		{120, 90},
		{-90, -90},
		{-91, -90},
	}
	for _, tt := range tests {
		if got := ClampLatitude(tt.in); got != tt.want {
			t.Errorf("ClampLatitude(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCosC(t *testing.T) {
	if got := CosC(0, 10, 10); math.Abs(got-1) > 1e-12 {
		t.Errorf("sub-view point cosC = %v, want 1", got)
	}
	if got := CosC(0, 100, 10); math.Abs(got) > 1e-12 {
		t.Errorf("limb cosC = %v, want 0", got)
	}
	if got := CosC(0, 190, 10); math.Abs(got+1) > 1e-12 {
		t.Errorf("antipode cosC = %v, want -1", got)
	}
}

func TestHorizonThreshold(t *testing.T) {
	if got := HorizonThreshold(1); got != 0 {
		t.Errorf("threshold at scale 1 = %v, want 0", got)
	}
	got := HorizonThreshold(1.10)
	want := -math.Sqrt(1 - 1/(1.10*1.10))
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("threshold at scale 1.10 = %v, want %v", got, want)
	}
	if got >= 0 || got <= -1 {
		t.Errorf("threshold %v outside (-1, 0)", got)
	}
}

func TestProjectOrtho(t *testing.T) {
	const cx, cy, r = 160, 240, 112

	x, y, cosC := ProjectOrtho(0, 30, 30, 1.10, cx, cy, r)
	if x != cx || y != cy {
		t.Errorf("sub-view point projected to (%d, %d), want (%d, %d)", x, y, cx, cy)
	}
	if math.Abs(cosC-1) > 1e-12 {
		t.Errorf("sub-view cosC = %v, want 1", cosC)
	}

	// North pole lands straight up, scaled by the orbit factor.
	x, y, _ = ProjectOrtho(90, 0, 0, 1.10, cx, cy, r)
	wantY := cy - int(math.Round(1.10*r))
	if x != cx || y != wantY {
		t.Errorf("pole projected to (%d, %d), want (%d, %d)", x, y, cx, wantY)
	}

	// East of the view longitude moves right on screen.
	x, _, _ = ProjectOrtho(0, 40, 30, 1.10, cx, cy, r)
	if x <= cx {
		t.Errorf("eastward point x = %d, want > %d", x, cx)
	}
}

func TestHaversineKm(t *testing.T) {
	// One degree along the equator.
	got := HaversineKm(0, 0, 0, 1)
	want := 6371.0 * math.Pi / 180
	if math.Abs(got-want) > 0.01 {
		t.Errorf("one equatorial degree = %v km, want %v", got, want)
	}
	if got := HaversineKm(48.8566, 2.3522, 48.8566, 2.3522); got != 0 {
		t.Errorf("zero distance = %v, want 0", got)
	}
}

func TestAreaName(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     string
	}{
		{"antarctica", -80, 0, "Antarctica"},
		{"australia", -25, 135, "Australia"},
		{"south america", -10, -55, "South America"},
		{"north america", 40, -100, "North America"},
		{"africa", 0, 20, "Africa"},
		{"europe", 50, 10, "Europe"},
		{"asia", 35, 100, "Asia"},
		{"indonesia catch-all", 0, 120, "Asia"},
		{"alaska is land not arctic", 70, -150, "North America"},
		{"arctic", 85, 0, "Arctic"},
		{"southern", -70, 100, "Southern"},
		{"atlantic", 30, -40, "Atlantic"},
		{"indian", -20, 80, "Indian"},
		{"pacific", 0, -160, "Pacific"},
		{"unwrapped east pacific", 0, 200, "Pacific"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AreaName(tt.lat, tt.lon); got != tt.want {
				t.Errorf("AreaName(%v, %v) = %q, want %q", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     string
	}{
		{40, -100, "North America"},
		{85, 0, "the Arctic Circle"},
		{0, -160, "the Pacific Ocean"},
		{-70, 100, "the Southern Ocean"},
		{30, -40, "the Atlantic Ocean"},
		{-20, 80, "the Indian Ocean"},
	}
	for _, tt := range tests {
		if got := Describe(tt.lat, tt.lon); got != tt.want {
			t.Errorf("Describe(%v, %v) = %q, want %q", tt.lat, tt.lon, got, tt.want)
		}
	}
}
