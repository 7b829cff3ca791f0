package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		override string
		region   string
		country  string
		want     float64
	}{
		{name: "region exact", region: "europe-west9", want: 80},
		{name: "region case insensitive", region: "EU-West-1", want: 275},
		{name: "region wins over country", region: "eu-central-1", country: "FR", want: 420},
		{name: "unknown region falls to country", region: "mars-north-1", country: "fr", want: 80},
		{name: "override when no country hint", override: "DE", want: 420},
		{name: "explicit country beats override", override: "DE", country: "NL", want: 230},
		{name: "unknown explicit country does not consult override", override: "DE", country: "ZZ", want: DefaultIntensity},
		{name: "nothing known", want: DefaultIntensity},
		{name: "unknown region and override", region: "nowhere", override: "XX", want: DefaultIntensity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.override)
			assert.InDelta(t, tt.want, r.Resolve(tt.region, tt.country), 1e-12)
		})
	}
}

func TestResolveNilResolver(t *testing.T) {
	var r *Resolver
	assert.InDelta(t, 80.0, r.Resolve("europe-west9", ""), 1e-12)
	assert.InDelta(t, 270.0, r.Resolve("", "gb"), 1e-12)
	assert.InDelta(t, DefaultIntensity, r.Resolve("", ""), 1e-12)
}

func TestWithTables(t *testing.T) {
	r := NewResolver("SE").WithTables(
		map[string]float64{"EU-NORTH-1": 9},
		map[string]float64{"se": 13},
	)

	assert.InDelta(t, 9.0, r.Resolve("eu-north-1", ""), 1e-12)
	assert.InDelta(t, 13.0, r.Resolve("", ""), 1e-12)
	assert.InDelta(t, DefaultIntensity, r.Resolve("europe-west9", "FR"), 1e-12, "custom tables replace the built-ins")
}

func TestTablesWithinValidRange(t *testing.T) {
	for region, g := range RegionIntensity {
		assert.Greater(t, g, 0.0, "region %s", region)
		assert.Less(t, g, 2000.0, "region %s should be gCO2e/kWh", region)
	}
	for country, g := range CountryIntensity {
		assert.Greater(t, g, 0.0, "country %s", country)
		assert.Less(t, g, 2000.0, "country %s should be gCO2e/kWh", country)
	}
	assert.Greater(t, DefaultIntensity, 0.0)
}
