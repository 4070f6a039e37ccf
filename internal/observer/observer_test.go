package observer

import (
	"context"
	"math"
	"strings"
	"testing"
)

func approx(t *testing.T, got, want, tol float64, what string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func TestFixedPosition(t *testing.T) {
	o := NewFixed(40.4, -3.7)
	lat, lon, ok := o.Position()
	if !ok {
		t.Fatal("fixed observer reports no position")
	}
	approx(t, lat, 40.4, 1e-9, "lat")
	approx(t, lon, -3.7, 1e-9, "lon")
}

func TestNoPositionUntilFix(t *testing.T) {
	o := New()
	if _, _, ok := o.Position(); ok {
		t.Fatal("empty observer reports a position")
	}
}

func TestReadLoopParsesRMC(t *testing.T) {
	feed := strings.Join([]string{
		"garbage line",
		"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,",
		"$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A",
	}, "\r\n") + "\r\n"

	o := New()
	err := o.readLoop(context.Background(), strings.NewReader(feed))
	if err == nil {
		t.Fatal("readLoop returned nil at end of stream")
	}

	lat, lon, ok := o.Position()
	if !ok {
		t.Fatal("no position after a valid RMC sentence")
	}
	approx(t, lat, 48.1173, 1e-4, "lat")
	approx(t, lon, 11.516667, 1e-4, "lon")
}

func TestReadLoopSkipsInvalidFixes(t *testing.T) {
	// Validity V: receiver has no lock, the coordinates are not usable.
	feed := "$GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*7D\r\n"

	o := New()
	o.readLoop(context.Background(), strings.NewReader(feed))
	if _, _, ok := o.Position(); ok {
		t.Fatal("position set from an invalid fix")
	}
}

func TestReadLoopTakesLatestFix(t *testing.T) {
	feed := "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A\r\n" +
		"$GNRMC,001031.00,A,4404.13993,N,12118.86023,W,0.146,,100117,,,A*7B\r\n"

	o := New()
	o.readLoop(context.Background(), strings.NewReader(feed))

	lat, lon, _ := o.Position()
	approx(t, lat, 44.069, 1e-3, "lat")
	approx(t, lon, -121.3143, 1e-3, "lon")
}

func TestReadLoopHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New()
	err := o.readLoop(ctx, strings.NewReader(""))
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
