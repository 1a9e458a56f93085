package model

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// CompetitorFeatures renders the analysed location and its competitor set as
// a GeoJSON FeatureCollection for the dashboard map layer. The first feature
// is the analysed location (role "origin"); each competitor follows in the
// engine's order (role "competitor").
func CompetitorFeatures(r *AnalysisResult) (*geojson.FeatureCollection, error) {
	if r == nil || r.TrafficScore == nil || r.ExistingCompetitors == nil {
		return nil, eris.New("model: result has no location or competitor data")
	}

	origin := geom.NewPointFlat(geom.XY, []float64{
		r.TrafficScore.Coordinates.Longitude,
		r.TrafficScore.Coordinates.Latitude,
	})
	bounds := geom.NewBounds(geom.XY).Extend(origin)

	features := []*geojson.Feature{{
		ID:       "origin",
		Geometry: origin,
		Properties: map[string]interface{}{
			"role":              "origin",
			"traffic_score":     r.TrafficScore.TrafficScore,
			"total_competitors": r.ExistingCompetitors.Data.TotalCompetitors,
		},
	}}

	for i, c := range r.ExistingCompetitors.Data.Competitors {
		pt := geom.NewPointFlat(geom.XY, []float64{c.Longitude, c.Latitude})
		bounds.Extend(pt)
		features = append(features, &geojson.Feature{
			ID:       "competitor-" + strconv.Itoa(i+1),
			Geometry: pt,
			Properties: map[string]interface{}{
				"role":     "competitor",
				"name":     c.Name,
				"type":     c.Type,
				"distance": c.Distance,
				"address":  c.Address,
			},
		})
	}

	return &geojson.FeatureCollection{
		BBox:     bounds,
		Features: features,
	}, nil
}
