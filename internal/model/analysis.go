package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
)

// Request defaults applied when a parameter is absent or unusable.
const (
	DefaultLatitude     = 40.7128
	DefaultLongitude    = -74.0060
	DefaultBusinessType = "supermarket"
	DefaultRadiusKm     = 2.0
)

// AnalysisRequest is a validated, normalized analysis request.
type AnalysisRequest struct {
	Latitude     float64 `json:"lat"`
	Longitude    float64 `json:"lon"`
	BusinessType string  `json:"businessType"`
	RadiusKm     float64 `json:"radiusKm"`
}

// AnalysisResult is the engine's success payload as consumed by the dashboard.
// Error is set instead of the sections when the engine reports an internal
// failure while still exiting cleanly.
type AnalysisResult struct {
	TrafficScore        *TrafficScore        `json:"Traffic_Score,omitempty"`
	MarketFactor        *MarketFactor        `json:"Market_Factor,omitempty"`
	PopulationAnalysis  *PopulationAnalysis  `json:"Population_Analysis,omitempty"`
	IncomeData          *IncomeData          `json:"Income_Data,omitempty"`
	ExistingCompetitors *ExistingCompetitors `json:"Existing_Competitors,omitempty"`
	CulturalFit         *CulturalFit         `json:"Cultural_Fit,omitempty"`
	Error               string               `json:"error,omitempty"`
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TrafficScore summarizes foot-traffic potential around the location.
type TrafficScore struct {
	Coordinates      Coordinates   `json:"coordinates"`
	TrafficScore     float64       `json:"traffic_score"`
	TopPOICategories []POICategory `json:"top_poi_categories"`
}

// POICategory is one ranked point-of-interest category count.
type POICategory struct {
	Rank     int    `json:"rank"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// MarketFactor is the friction multiplier and its component indices.
type MarketFactor struct {
	MarketFactor float64            `json:"market_factor"`
	Components   MarketComponents   `json:"components"`
	Weights      map[string]float64 `json:"weights,omitempty"`
	Confidence   float64            `json:"confidence"`
	Notes        string             `json:"notes"`
}

// MarketComponents holds the four named market indices.
type MarketComponents struct {
	RentIndex          float64 `json:"rent_index"`
	RegulatoryIndex    float64 `json:"regulatory_index"`
	SeasonalityIndex   float64 `json:"seasonality_index"`
	CompetitionDensity float64 `json:"competition_density"`
}

// PopulationAnalysis is the demand-side analysis for the business type.
type PopulationAnalysis struct {
	Multiplier       float64     `json:"multiplier"`
	Confidence       float64     `json:"confidence"`
	Population       float64     `json:"population"`
	CompetitionCount int         `json:"competition_count"`
	IncomeIndex      float64     `json:"income_index"`
	Notes            string      `json:"notes"`
	Coordinates      *[2]float64 `json:"coordinates,omitempty"` // [lat, lon]
	RadiusKm         float64     `json:"radius_km"`
}

// IncomeData wraps the yearly income series.
type IncomeData struct {
	Data []IncomePoint `json:"data"`
}

// IncomePoint is one year of the income series.
type IncomePoint struct {
	Year            Year    `json:"year"`
	Value           float64 `json:"value"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// Year is a calendar year the engine may emit as either a JSON string or number.
type Year string

// UnmarshalJSON accepts "2021" and 2021.
func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*y = Year(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrap(err, "model: year must be a string or number")
	}
	*y = Year(n.String())
	return nil
}

// ExistingCompetitors wraps the competitor set.
type ExistingCompetitors struct {
	Data CompetitorSet `json:"data"`
}

// CompetitorSet lists nearby competitors with summary statistics.
type CompetitorSet struct {
	TotalCompetitors int                  `json:"total_competitors"`
	Competitors      []Competitor         `json:"competitors"`
	Statistics       CompetitorStatistics `json:"statistics"`
}

// Competitor is one existing business of the same category.
type Competitor struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Distance  float64 `json:"distance"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// CompetitorStatistics summarizes the competitor set.
type CompetitorStatistics struct {
	Closest         *ClosestCompetitor `json:"closest,omitempty"`
	AverageDistance float64            `json:"average_distance"`
	BusinessDensity float64            `json:"business_density"`
}

// ClosestCompetitor names the nearest competitor.
type ClosestCompetitor struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// CulturalFit scores how well the business type fits the area.
type CulturalFit struct {
	Location         string   `json:"location"`
	BusinessType     string   `json:"business_type,omitempty"`
	AnalysisRadiusKm float64  `json:"analysis_radius_km,omitempty"`
	CulturalFitScore float64  `json:"cultural_fit_score"`
	SentimentRatio   float64  `json:"sentiment_ratio"`
	Insights         []string `json:"insights"`
}

// Validate checks the structural invariants of a success payload: every
// section present, every numeric field finite, and a non-empty chronological
// income series.
func (r *AnalysisResult) Validate() error {
	if r == nil {
		return eris.New("model: empty result")
	}
	switch {
	case r.TrafficScore == nil:
		return missingSection("Traffic_Score")
	case r.MarketFactor == nil:
		return missingSection("Market_Factor")
	case r.PopulationAnalysis == nil:
		return missingSection("Population_Analysis")
	case r.IncomeData == nil:
		return missingSection("Income_Data")
	case r.ExistingCompetitors == nil:
		return missingSection("Existing_Competitors")
	case r.CulturalFit == nil:
		return missingSection("Cultural_Fit")
	}

	var fc finiteChecker
	ts := r.TrafficScore
	fc.check("Traffic_Score.coordinates.latitude", ts.Coordinates.Latitude)
	fc.check("Traffic_Score.coordinates.longitude", ts.Coordinates.Longitude)
	fc.check("Traffic_Score.traffic_score", ts.TrafficScore)

	mf := r.MarketFactor
	fc.check("Market_Factor.market_factor", mf.MarketFactor)
	fc.check("Market_Factor.components.rent_index", mf.Components.RentIndex)
	fc.check("Market_Factor.components.regulatory_index", mf.Components.RegulatoryIndex)
	fc.check("Market_Factor.components.seasonality_index", mf.Components.SeasonalityIndex)
	fc.check("Market_Factor.components.competition_density", mf.Components.CompetitionDensity)
	fc.check("Market_Factor.confidence", mf.Confidence)
	for k, w := range mf.Weights {
		fc.check("Market_Factor.weights."+k, w)
	}

	pa := r.PopulationAnalysis
	fc.check("Population_Analysis.multiplier", pa.Multiplier)
	fc.check("Population_Analysis.confidence", pa.Confidence)
	fc.check("Population_Analysis.population", pa.Population)
	fc.check("Population_Analysis.income_index", pa.IncomeIndex)
	fc.check("Population_Analysis.radius_km", pa.RadiusKm)
	if pa.Coordinates != nil {
		fc.check("Population_Analysis.coordinates[0]", pa.Coordinates[0])
		fc.check("Population_Analysis.coordinates[1]", pa.Coordinates[1])
	}

	for i, p := range r.IncomeData.Data {
		fc.check("Income_Data.data["+strconv.Itoa(i)+"].value", p.Value)
		fc.check("Income_Data.data["+strconv.Itoa(i)+"].confidence_score", p.ConfidenceScore)
	}

	cs := r.ExistingCompetitors.Data
	for i, c := range cs.Competitors {
		prefix := "Existing_Competitors.data.competitors[" + strconv.Itoa(i) + "]."
		fc.check(prefix+"distance", c.Distance)
		fc.check(prefix+"latitude", c.Latitude)
		fc.check(prefix+"longitude", c.Longitude)
	}
	if cs.Statistics.Closest != nil {
		fc.check("Existing_Competitors.data.statistics.closest.distance", cs.Statistics.Closest.Distance)
	}
	fc.check("Existing_Competitors.data.statistics.average_distance", cs.Statistics.AverageDistance)
	fc.check("Existing_Competitors.data.statistics.business_density", cs.Statistics.BusinessDensity)

	cf := r.CulturalFit
	fc.check("Cultural_Fit.analysis_radius_km", cf.AnalysisRadiusKm)
	fc.check("Cultural_Fit.cultural_fit_score", cf.CulturalFitScore)
	fc.check("Cultural_Fit.sentiment_ratio", cf.SentimentRatio)

	if fc.err != nil {
		return fc.err
	}

	return validateIncomeSeries(r.IncomeData.Data)
}

func missingSection(name string) error {
	return eris.Errorf("model: missing section %s", name)
}

// finiteChecker records the first non-finite field it sees.
type finiteChecker struct {
	err error
}

func (f *finiteChecker) check(field string, v float64) {
	if f.err != nil {
		return
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		f.err = eris.Errorf("model: %s is not finite (%v)", field, v)
	}
}

func validateIncomeSeries(series []IncomePoint) error {
	if len(series) == 0 {
		return eris.New("model: Income_Data.data is empty")
	}
	for i := 1; i < len(series); i++ {
		if yearLess(series[i].Year, series[i-1].Year) {
			return eris.Errorf("model: Income_Data.data not chronological at index %d (%s after %s)",
				i, series[i].Year, series[i-1].Year)
		}
	}
	return nil
}

// yearLess compares numerically when both years parse, lexically otherwise.
func yearLess(a, b Year) bool {
	ai, aErr := strconv.Atoi(string(a))
	bi, bErr := strconv.Atoi(string(b))
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}
