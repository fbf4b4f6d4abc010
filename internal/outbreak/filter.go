package outbreak

import (
	"sort"
	"strings"
)

// DefaultSpecies are the five most reported bird categories in the source data.
var DefaultSpecies = []string{"Duck", "Unspecified bird", "Goose", "Chicken", "Turkey"}

// FilterSpecies keeps events whose species is in allowed (case-insensitive).
// An empty allowed list keeps everything.
func FilterSpecies(events []Event, allowed []string) []Event {
	if len(allowed) == 0 {
		return events
	}
	keep := make(map[string]bool, len(allowed))
	for _, s := range allowed {
		keep[strings.ToLower(strings.TrimSpace(s))] = true
	}
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if keep[strings.ToLower(ev.Species)] {
			out = append(out, ev)
		}
	}
	return out
}

// Selector decides which countries form a comparison's treatment and control groups.
type Selector struct {
	Treatment string
	// Explicit control countries; when empty every other country is a control
	Controls []string
	// Restrict controls to this region (see Regions); ignored when empty
	Region  string
	Regions Regions
}

// Split relabels events into treatmentGroup and controlGroup and drops the rest.
// Country matching is case-insensitive.
func (s Selector) Split(events []Event, treatmentGroup, controlGroup string) (treatment, control []Event) {
	controls := make(map[string]bool, len(s.Controls))
	for _, c := range s.Controls {
		controls[strings.ToLower(c)] = true
	}
	for _, ev := range events {
		country := strings.ToLower(ev.Country)
		switch {
		case country == strings.ToLower(s.Treatment):
			treatment = append(treatment, ev.WithGroup(treatmentGroup))
		case len(controls) > 0 && !controls[country]:
		case s.Region != "" && !strings.EqualFold(s.Regions.Of(ev.Country), s.Region):
		default:
			control = append(control, ev.WithGroup(controlGroup))
		}
	}
	return treatment, control
}

// Regions maps a country to a European region.
type Regions map[string]string

// DefaultRegions covers the countries with the most reports.
var DefaultRegions = Regions{
	"France":         "Western Europe",
	"Germany":        "Western Europe",
	"Netherlands":    "Western Europe",
	"Belgium":        "Western Europe",
	"Italy":          "Southern Europe",
	"Spain":          "Southern Europe",
	"Greece":         "Southern Europe",
	"Poland":         "Eastern Europe",
	"Romania":        "Eastern Europe",
	"Czech Republic": "Eastern Europe",
}

// Of returns the region for country, or "" when unmapped.
func (r Regions) Of(country string) string {
	if region, ok := r[country]; ok {
		return region
	}
	for k, v := range r {
		if strings.EqualFold(k, country) {
			return v
		}
	}
	return ""
}

// CountryCount is one row of a per-country breakdown.
type CountryCount struct {
	Country string `yaml:"country"`
	Count   int    `yaml:"count"`
}

// CountByCountry returns event counts per country, largest first, ties by name.
func CountByCountry(events []Event) []CountryCount {
	counts := make(map[string]int)
	for _, ev := range events {
		counts[ev.Country]++
	}
	out := make([]CountryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CountryCount{Country: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Country < out[j].Country
	})
	return out
}
