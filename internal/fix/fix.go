package fix

// Fix represents a single satellite position report suitable for JSON and MQTT.
type Fix struct {
	Latitude    float64  `json:"lat"`                    // decimal degrees, [-90, 90]
	Longitude   float64  `json:"lon"`                    // decimal degrees, (-180, 180]
	AltitudeKm  *float64 `json:"altitude_km,omitempty"`  // nil when the source omits it
	VelocityKmh *float64 `json:"velocity_kmh,omitempty"` // nil when the source omits it
	Timestamp   float64  `json:"timestamp"`              // unix seconds as reported upstream
	DataAgeSec  float64  `json:"data_age_sec"`           // seconds since the last confirmed fetch
}

// Clone returns a deep copy so callers can hold a Fix without sharing the
// optional field pointers.
func (f *Fix) Clone() *Fix {
	if f == nil {
		return nil
	}
	out := *f
	if f.AltitudeKm != nil {
		v := *f.AltitudeKm
		out.AltitudeKm = &v
	}
	if f.VelocityKmh != nil {
		v := *f.VelocityKmh
		out.VelocityKmh = &v
	}
	return &out
}
