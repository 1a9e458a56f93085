package analysis

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/sells-group/market-intel/internal/model"
)

// RawParams carries the four inbound parameters as received. A nil field
// means the parameter was absent.
type RawParams struct {
	Lat          *string
	Lon          *string
	BusinessType *string
	RadiusKm     *string
}

// RawParamsFromQuery reads lat, lon, businessType and radiusKm from a query
// string. Missing keys and empty values are both treated as absent.
func RawParamsFromQuery(q url.Values) RawParams {
	get := func(key string) *string {
		v := q.Get(key)
		if v == "" {
			return nil
		}
		return &v
	}
	return RawParams{
		Lat:          get("lat"),
		Lon:          get("lon"),
		BusinessType: get("businessType"),
		RadiusKm:     get("radiusKm"),
	}
}

// ParseParams normalizes raw inbound parameters into a request. Numeric
// fields are parsed permissively: absent or non-numeric values fall back to
// the defaults, while explicit zero is kept. NaN, infinities and out-of-range
// coordinates are rejected with a ValidationError.
func ParseParams(raw RawParams) (model.AnalysisRequest, error) {
	lat, err := parseCoordinate("latitude", raw.Lat, model.DefaultLatitude, 90)
	if err != nil {
		return model.AnalysisRequest{}, err
	}
	lon, err := parseCoordinate("longitude", raw.Lon, model.DefaultLongitude, 180)
	if err != nil {
		return model.AnalysisRequest{}, err
	}

	radius, ok, err := parseFloat("radius", raw.RadiusKm)
	if err != nil {
		return model.AnalysisRequest{}, err
	}
	if !ok || radius <= 0 {
		radius = model.DefaultRadiusKm
	}

	businessType := model.DefaultBusinessType
	if raw.BusinessType != nil {
		if bt := strings.TrimSpace(*raw.BusinessType); bt != "" {
			businessType = bt
		}
	}

	return model.AnalysisRequest{
		Latitude:     lat,
		Longitude:    lon,
		BusinessType: businessType,
		RadiusKm:     radius,
	}, nil
}

func parseCoordinate(name string, raw *string, def, limit float64) (float64, error) {
	v, ok, err := parseFloat(name, raw)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	if v < -limit || v > limit {
		return 0, invalidParams(name + " must be between " +
			strconv.FormatFloat(-limit, 'f', -1, 64) + " and " +
			strconv.FormatFloat(limit, 'f', -1, 64))
	}
	return v, nil
}

// parseFloat returns ok=false when the value is absent or not a number.
// A value that parses to NaN or an infinity is an error.
func parseFloat(name string, raw *string) (float64, bool, error) {
	if raw == nil {
		return 0, false, nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// ParseFloat reports overflow as ErrRange with v = ±Inf.
		if !math.IsInf(v, 0) {
			return 0, false, nil
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, invalidParams(name + " must be a finite number")
	}
	return v, true, nil
}

func invalidParams(details string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "Latitude, longitude, and radius must be valid numbers",
		Details: details,
	}
}
