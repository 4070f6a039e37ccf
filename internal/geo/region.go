package geo

// landRegion is a coarse bounding box over a continent. Boxes overlap;
// lookup order resolves the ties, so the slice order below is load-bearing.
type landRegion struct {
	name           string
	minLat, maxLat float64
	minLon, maxLon float64
}

var landRegions = []landRegion{
	{"Antarctica", -90, -75, -180, 180},
	{"Australia", -50, -10, 110, 180},
	{"South America", -60, 15, -85, -35},
	{"North America", 15, 85, -170, -50},
	{"Africa", -35, 38, -20, 55},
	{"Europe", 35, 72, -25, 60},
	{"Asia", 5, 80, 60, 180},
	{"Asia", -10, 30, 90, 160},
}

// AreaName returns the bare name of the continent or ocean under the
// given coordinate. Longitude is taken as-is; callers wanting wrap
// semantics normalize first.
func AreaName(lat, lon float64) string {
	for _, r := range landRegions {
		if lat >= r.minLat && lat <= r.maxLat && lon >= r.minLon && lon <= r.maxLon {
			return r.name
		}
	}
	switch {
	case lat > 65:
		return "Arctic"
	case lat < -60:
		return "Southern"
	case lon >= -80 && lon <= 20:
		return "Atlantic"
	case lon > 20 && lon <= 100:
		return "Indian"
	default:
		return "Pacific"
	}
}

// Describe renders an area name as display prose: continents pass
// through bare, oceans gain the article and suffix.
func Describe(lat, lon float64) string {
	name := AreaName(lat, lon)
	switch name {
	case "Arctic":
		return "the Arctic Circle"
	case "Southern", "Atlantic", "Indian", "Pacific":
		return "the " + name + " Ocean"
	default:
		return name
	}
}
