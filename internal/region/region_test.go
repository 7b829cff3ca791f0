package region_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var table = region.Table{
	{Region: "eu-west-1", DisplayName: "Ireland", GCO2PerKWh: 275},
	{Region: "eu-central-1", DisplayName: "Frankfurt", GCO2PerKWh: 420},
	{Region: "europe-west4", DisplayName: "Netherlands", GCO2PerKWh: 230},
	{Region: "europe-west9", DisplayName: "Paris", GCO2PerKWh: 80},
	{Region: "northeurope", DisplayName: "Ireland (Azure)", GCO2PerKWh: 275},
}

func TestCompare(t *testing.T) {
	alts, err := region.Compare(table, "eu-west-1", 0.92)
	require.NoError(t, err)
	require.Len(t, alts, 2)

	assert.Equal(t, "europe-west9", alts[0].Region)
	assert.InDelta(t, 70.909, alts[0].PctSaved, 1e-3)
	assert.InDelta(t, 0.92*195/1000, alts[0].KgSaved, 1e-12)

	assert.Equal(t, "europe-west4", alts[1].Region)
	assert.InDelta(t, 45.0/275*100, alts[1].PctSaved, 1e-9)

	for _, a := range alts {
		assert.Less(t, a.GCO2PerKWh, 275.0)
	}
}

func TestCompareCleanestHasNoAlternatives(t *testing.T) {
	alts, err := region.Compare(table, "europe-west9", 1)
	require.NoError(t, err)
	assert.Empty(t, alts)
}

func TestCompareUnknownRegion(t *testing.T) {
	_, err := region.Compare(table, "mars-north-1", 1)
	assert.True(t, errors.HasCode(err, errors.ErrLookupFailed))
}

func TestLoadTableJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region_factors.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"region": "eu-west-1", "display_name": "Ireland", "gco2_per_kwh": 275},
  {"region": "europe-west9", "display_name": "Paris", "gco2_per_kwh": 80}
]`), 0o644))

	tbl, err := region.LoadTable(path)
	require.NoError(t, err)
	require.Len(t, tbl, 2)
	assert.Equal(t, region.Factor{Region: "europe-west9", DisplayName: "Paris", GCO2PerKWh: 80}, tbl[1])
	assert.Equal(t, map[string]float64{"eu-west-1": 275, "europe-west9": 80}, tbl.Intensities())
}

func TestLoadTableYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`- region: EU-West-1
  display_name: Ireland
  gco2_per_kwh: 275
- region: europe-west9
  display_name: Paris
  gco2_per_kwh: 80
`), 0o644))

	tbl, err := region.LoadTable(path)
	require.NoError(t, err)
	require.Len(t, tbl, 2)

	f, ok := tbl.Lookup("eu-west-1")
	require.True(t, ok)
	assert.Equal(t, "Ireland", f.DisplayName)
}

func TestLoadTableErrors(t *testing.T) {
	_, err := region.LoadTable(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.HasCode(err, errors.ErrIO))

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"region": 1`), 0o644))
	_, err = region.LoadTable(path)
	assert.True(t, errors.HasCode(err, errors.ErrMalformed))
}
