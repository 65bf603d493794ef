package models

// GeoPoint represents a GeoJSON Point.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`               // Always "Point"
	Coordinates []float64 `bson:"coordinates" json:"coordinates"` // [longitude, latitude]
}

// NewGeoPoint builds a GeoJSON point from a latitude/longitude pair.
func NewGeoPoint(lat, lng float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

// Valid reports whether the point carries a usable [lng, lat] pair.
func (g GeoPoint) Valid() bool {
	return len(g.Coordinates) == 2
}

func (g GeoPoint) Lat() float64 {
	if !g.Valid() {
		return 0
	}
	return g.Coordinates[1]
}

func (g GeoPoint) Lng() float64 {
	if !g.Valid() {
		return 0
	}
	return g.Coordinates[0]
}

// PageRequest carries offset pagination parameters parsed from the query string.
type PageRequest struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// Normalize clamps page/limit to sane bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

func (p PageRequest) Skip() int64 {
	n := p.Normalize()
	return int64((n.Page - 1) * n.Limit)
}
