package fix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/filbot/iss-tracker/internal/geo"
)

// Source yields confirmed position fixes from somewhere upstream.
type Source interface {
	Next(ctx context.Context) (*Fix, error)
}

// ErrAllSourcesFailed reports that every configured endpoint failed in one
// round. The wrapped message carries the per-endpoint reasons.
var ErrAllSourcesFailed = errors.New("all position sources failed")

// Endpoint is one upstream position service, tried in slice order.
type Endpoint struct {
	URL    string
	APIKey string // optional bearer token
}

type httpSource struct {
	endpoints []Endpoint
	client    *http.Client
	now       func() time.Time
}

// NewHTTPSource builds a Source that walks the endpoints in priority
// order on every call and returns the first fix that parses. It keeps no
// state between calls; a primary that recovers is picked up immediately.
func NewHTTPSource(endpoints []Endpoint, connectTimeout, readTimeout time.Duration) Source {
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &httpSource{
		endpoints: endpoints,
		client: &http.Client{
			Timeout: readTimeout,
			Transport: &http.Transport{
				DialContext:     dialer.DialContext,
				MaxIdleConns:    4,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		now: time.Now,
	}
}

func (s *httpSource) Next(ctx context.Context) (*Fix, error) {
	var failures []string
	for _, ep := range s.endpoints {
		f, err := s.fetch(ctx, ep)
		if err == nil {
			return f, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		failures = append(failures, fmt.Sprintf("%s: %v", ep.URL, err))
	}
	return nil, fmt.Errorf("%w: %s", ErrAllSourcesFailed, strings.Join(failures, "; "))
}

func (s *httpSource) fetch(ctx context.Context, ep Endpoint) (*Fix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return decodePayload(body, s.now())
}

// flexFloat decodes numbers that some services quote as strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f = flexFloat(v)
	return nil
}

// wirePayload is a superset of the response shapes the supported services
// return: flat latitude/longitude with optional extras, a nested
// iss_position object with string coordinates, or a positions list.
type wirePayload struct {
	Latitude  *flexFloat `json:"latitude"`
	Longitude *flexFloat `json:"longitude"`
	Altitude  *flexFloat `json:"altitude"`
	Velocity  *flexFloat `json:"velocity"`
	Timestamp *flexFloat `json:"timestamp"`

	ISSPosition *struct {
		Latitude  flexFloat `json:"latitude"`
		Longitude flexFloat `json:"longitude"`
	} `json:"iss_position"`

	Positions []struct {
		SatLatitude  flexFloat  `json:"satlatitude"`
		SatLongitude flexFloat  `json:"satlongitude"`
		SatAltitude  *flexFloat `json:"sataltitude"`
		Timestamp    *flexFloat `json:"timestamp"`
	} `json:"positions"`
}

// decodePayload recognizes the response shape and normalizes it into a Fix.
func decodePayload(data []byte, now time.Time) (*Fix, error) {
	var w wirePayload
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	var f *Fix
	switch {
	case len(w.Positions) > 0:
		p := w.Positions[0]
		f = &Fix{Latitude: float64(p.SatLatitude), Longitude: float64(p.SatLongitude)}
		if p.SatAltitude != nil {
			v := float64(*p.SatAltitude)
			f.AltitudeKm = &v
		}
		if p.Timestamp != nil {
			f.Timestamp = float64(*p.Timestamp)
		}
	case w.ISSPosition != nil:
		f = &Fix{
			Latitude:  float64(w.ISSPosition.Latitude),
			Longitude: float64(w.ISSPosition.Longitude),
		}
		if w.Timestamp != nil {
			f.Timestamp = float64(*w.Timestamp)
		}
	case w.Latitude != nil && w.Longitude != nil:
		f = &Fix{Latitude: float64(*w.Latitude), Longitude: float64(*w.Longitude)}
		if w.Altitude != nil {
			v := float64(*w.Altitude)
			f.AltitudeKm = &v
		}
		if w.Velocity != nil {
			v := float64(*w.Velocity)
			f.VelocityKmh = &v
		}
		if w.Timestamp != nil {
			f.Timestamp = float64(*w.Timestamp)
		}
	default:
		return nil, errors.New("unrecognized response shape")
	}

	if !isFinite(f.Latitude) || !isFinite(f.Longitude) {
		return nil, errors.New("coordinates are not finite")
	}
	if f.Latitude < -90 || f.Latitude > 90 {
		return nil, fmt.Errorf("latitude %v out of range", f.Latitude)
	}
	f.Longitude = geo.WrapLongitude(f.Longitude)
	if f.Timestamp == 0 {
		f.Timestamp = float64(now.Unix())
	}
	return f, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
