// Package region ranks cloud regions by grid intensity and estimates the
// emissions saved by moving a workload.
package region

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Factor is one row of a region table.
type Factor struct {
	Region      string  `json:"region" yaml:"region"`
	DisplayName string  `json:"display_name" yaml:"display_name"`
	GCO2PerKWh  float64 `json:"gco2_per_kwh" yaml:"gco2_per_kwh"`
}

// Table is a read-only list of region factors.
type Table []Factor

// Alternative is a region cleaner than the current one.
type Alternative struct {
	Factor
	PctSaved float64
	KgSaved  float64
}

// LoadTable reads a region table. Files ending in .yaml or .yml are parsed
// as YAML, anything else as a JSON array.
func LoadTable(path string) (Table, error) {
	errFactory := errors.New()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrIO, err)
	}

	var table Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &table)
	default:
		err = json.Unmarshal(b, &table)
	}
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrMalformed, err).WithMessage("invalid region table " + path)
	}

	return table, nil
}

// Lookup returns the factor for a region id, matched case-insensitively.
func (t Table) Lookup(region string) (Factor, bool) {
	for _, f := range t {
		if strings.EqualFold(f.Region, region) {
			return f, true
		}
	}

	return Factor{}, false
}

// Intensities returns the table as a region to gCO2e/kWh map.
func (t Table) Intensities() map[string]float64 {
	out := make(map[string]float64, len(t))
	for _, f := range t {
		out[strings.ToLower(f.Region)] = f.GCO2PerKWh
	}

	return out
}

// Compare lists the regions with strictly lower intensity than current,
// cleanest first, with the percentage and mass of CO2e saved for energyKWh.
// An unknown current region is a lookup_failed error.
func Compare(table Table, current string, energyKWh float64) ([]Alternative, error) {
	cur, ok := table.Lookup(current)
	if !ok {
		return nil, errors.New().WithData(errors.ErrLookupFailed, current).
			WithMessage("current region not in table")
	}

	var out []Alternative
	for _, f := range table {
		if f.GCO2PerKWh >= cur.GCO2PerKWh {
			continue
		}

		diff := cur.GCO2PerKWh - f.GCO2PerKWh
		out = append(out, Alternative{
			Factor:   f,
			PctSaved: diff / cur.GCO2PerKWh * 100,
			KgSaved:  energyKWh * diff / 1000,
		})
	}

	slices.SortStableFunc(out, func(a, b Alternative) int {
		return cmp.Compare(a.GCO2PerKWh, b.GCO2PerKWh)
	})

	return out, nil
}
