package models

// Place is a named GeoJSON point. Coordinates are stored as [lng, lat] so
// the 2dsphere index can serve proximity queries.
type Place struct {
	Name        string    `json:"name" bson:"name"`
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

func NewPlace(name string, lat, lng float64) Place {
	return Place{
		Name:        name,
		Type:        "Point",
		Coordinates: []float64{lng, lat},
	}
}

func (p Place) Latitude() float64 {
	if len(p.Coordinates) >= 2 {
		return p.Coordinates[1]
	}
	return 0
}

func (p Place) Longitude() float64 {
	if len(p.Coordinates) >= 1 {
		return p.Coordinates[0]
	}
	return 0
}
