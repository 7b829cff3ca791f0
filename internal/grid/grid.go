// Package grid resolves a region or country hint to a grid carbon intensity
// in grams CO2e per kWh.
package grid

import (
	"strings"
)

// DefaultIntensity is the conservative fallback used when neither the region
// nor the country is known.
const DefaultIntensity = 300.0

// RegionIntensity maps cloud region ids to grid intensity in gCO2e/kWh.
// Keys are lower case.
var RegionIntensity = map[string]float64{
	// AWS
	"eu-west-1":    275, // Ireland
	"eu-west-2":    270, // London
	"eu-central-1": 420, // Frankfurt
	// GCP
	"europe-west9": 80,  // Paris
	"europe-west4": 230, // Netherlands
	// Azure
	"northeurope": 275, // Ireland
	"westeurope":  230, // Netherlands
}

// CountryIntensity maps ISO 3166 alpha-2 country codes to grid intensity in
// gCO2e/kWh. Keys are upper case.
var CountryIntensity = map[string]float64{
	"IE": 275,
	"GB": 270,
	"UK": 270,
	"FR": 80,
	"NL": 230,
	"DE": 420,
}

// Resolver looks up grid intensity. The zero value uses the built-in tables
// and no country override.
type Resolver struct {
	// CountryOverride is the process-wide country code consulted when the
	// caller does not pass one.
	CountryOverride string

	regions   map[string]float64
	countries map[string]float64
}

// NewResolver returns a Resolver backed by the built-in tables.
func NewResolver(countryOverride string) *Resolver {
	return &Resolver{CountryOverride: countryOverride}
}

// WithTables returns a copy of r that resolves against the given tables
// instead of the built-in ones. Nil tables fall back to the built-ins.
func (r *Resolver) WithTables(regions, countries map[string]float64) *Resolver {
	c := *r
	if regions != nil {
		c.regions = make(map[string]float64, len(regions))
		for k, v := range regions {
			c.regions[strings.ToLower(k)] = v
		}
	}
	if countries != nil {
		c.countries = make(map[string]float64, len(countries))
		for k, v := range countries {
			c.countries[strings.ToUpper(k)] = v
		}
	}

	return &c
}

// Resolve returns the grid intensity for the hints. The region hint is
// matched case-insensitively first, then the country (explicit hint, else the
// override), and DefaultIntensity when nothing matches. It never fails.
func (r *Resolver) Resolve(regionHint, countryHint string) float64 {
	if g, ok := r.lookupRegion(regionHint); ok {
		return g
	}

	country := countryHint
	if strings.TrimSpace(country) == "" && r != nil {
		country = r.CountryOverride
	}
	if g, ok := r.lookupCountry(country); ok {
		return g
	}

	return DefaultIntensity
}

func (r *Resolver) lookupRegion(region string) (float64, bool) {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" {
		return 0, false
	}

	table := RegionIntensity
	if r != nil && r.regions != nil {
		table = r.regions
	}
	g, ok := table[region]

	return g, ok
}

func (r *Resolver) lookupCountry(country string) (float64, bool) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return 0, false
	}

	table := CountryIntensity
	if r != nil && r.countries != nil {
		table = r.countries
	}
	g, ok := table[country]

	return g, ok
}
