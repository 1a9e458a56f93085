package analysis

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-intel/internal/model"
)

func strp(s string) *string { return &s }

func TestParseParams_Defaults(t *testing.T) {
	t.Parallel()

	req, err := ParseParams(RawParams{})
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisRequest{
		Latitude:     40.7128,
		Longitude:    -74.0060,
		BusinessType: "supermarket",
		RadiusKm:     2.0,
	}, req)
}

func TestParseParams_Deterministic(t *testing.T) {
	t.Parallel()

	raw := RawParams{Lat: strp("34.0522"), Lon: strp("-118.2437"), BusinessType: strp("restaurant"), RadiusKm: strp("5")}
	first, err := ParseParams(raw)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ParseParams(raw)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, model.AnalysisRequest{Latitude: 34.0522, Longitude: -118.2437, BusinessType: "restaurant", RadiusKm: 5}, first)
}

func TestParseParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     RawParams
		want    model.AnalysisRequest
		wantErr bool
	}{
		{
			name: "explicit zero coordinates are kept",
			raw:  RawParams{Lat: strp("0"), Lon: strp("0")},
			want: model.AnalysisRequest{Latitude: 0, Longitude: 0, BusinessType: "supermarket", RadiusKm: 2},
		},
		{
			name: "non-numeric falls back",
			raw:  RawParams{Lat: strp("north"), Lon: strp("west"), RadiusKm: strp("wide")},
			want: model.AnalysisRequest{Latitude: 40.7128, Longitude: -74.0060, BusinessType: "supermarket", RadiusKm: 2},
		},
		{
			name: "blank values fall back",
			raw:  RawParams{Lat: strp("  "), BusinessType: strp("   ")},
			want: model.AnalysisRequest{Latitude: 40.7128, Longitude: -74.0060, BusinessType: "supermarket", RadiusKm: 2},
		},
		{
			name: "zero radius falls back",
			raw:  RawParams{RadiusKm: strp("0")},
			want: model.AnalysisRequest{Latitude: 40.7128, Longitude: -74.0060, BusinessType: "supermarket", RadiusKm: 2},
		},
		{
			name: "negative radius falls back",
			raw:  RawParams{RadiusKm: strp("-3")},
			want: model.AnalysisRequest{Latitude: 40.7128, Longitude: -74.0060, BusinessType: "supermarket", RadiusKm: 2},
		},
		{
			name: "whitespace trimmed",
			raw:  RawParams{Lat: strp(" 51.5 "), BusinessType: strp(" cafe ")},
			want: model.AnalysisRequest{Latitude: 51.5, Longitude: -74.0060, BusinessType: "cafe", RadiusKm: 2},
		},
		{
			name: "full precision preserved",
			raw:  RawParams{Lat: strp("12.345678901234"), RadiusKm: strp("0.25")},
			want: model.AnalysisRequest{Latitude: 12.345678901234, Longitude: -74.0060, BusinessType: "supermarket", RadiusKm: 0.25},
		},
		{
			name: "boundary coordinates",
			raw:  RawParams{Lat: strp("-90"), Lon: strp("180")},
			want: model.AnalysisRequest{Latitude: -90, Longitude: 180, BusinessType: "supermarket", RadiusKm: 2},
		},
		{name: "NaN latitude", raw: RawParams{Lat: strp("NaN")}, wantErr: true},
		{name: "NaN longitude", raw: RawParams{Lon: strp("nan")}, wantErr: true},
		{name: "NaN radius", raw: RawParams{RadiusKm: strp("NaN")}, wantErr: true},
		{name: "infinite radius", raw: RawParams{RadiusKm: strp("Inf")}, wantErr: true},
		{name: "overflowing latitude", raw: RawParams{Lat: strp("1e400")}, wantErr: true},
		{name: "latitude out of range", raw: RawParams{Lat: strp("90.5")}, wantErr: true},
		{name: "longitude out of range", raw: RawParams{Lon: strp("-181")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseParams(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindValidation), "got %v", err)
				var aerr *Error
				require.ErrorAs(t, err, &aerr)
				assert.Empty(t, aerr.Raw)
				assert.Empty(t, aerr.Stderr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRawParamsFromQuery(t *testing.T) {
	t.Parallel()

	q := url.Values{}
	q.Set("lat", "34.0522")
	q.Set("lon", "")
	q.Set("businessType", "restaurant")

	raw := RawParamsFromQuery(q)
	require.NotNil(t, raw.Lat)
	assert.Equal(t, "34.0522", *raw.Lat)
	assert.Nil(t, raw.Lon)
	require.NotNil(t, raw.BusinessType)
	assert.Equal(t, "restaurant", *raw.BusinessType)
	assert.Nil(t, raw.RadiusKm)
}

func TestArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  model.AnalysisRequest
		want []string
	}{
		{
			name: "los angeles",
			req:  model.AnalysisRequest{Latitude: 34.0522, Longitude: -118.2437, BusinessType: "restaurant", RadiusKm: 5},
			want: []string{"34.0522", "-118.2437", "restaurant", "5"},
		},
		{
			name: "defaults",
			req:  model.AnalysisRequest{Latitude: 40.7128, Longitude: -74.006, BusinessType: "supermarket", RadiusKm: 2},
			want: []string{"40.7128", "-74.006", "supermarket", "2"},
		},
		{
			name: "no rounding",
			req:  model.AnalysisRequest{Latitude: 0.1234567890123, Longitude: 0, BusinessType: "gym", RadiusKm: 0.001},
			want: []string{"0.1234567890123", "0", "gym", "0.001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Arguments(tt.req))
		})
	}
}
