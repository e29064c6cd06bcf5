package model

import "math"

// componentTolerance is the acceptable drift between a result's total and
// the sum of its named components (spec §8, invariants 1-2).
const componentTolerance = 1e-3

// InflowComponent is one named contributor to an InflowResult.
type InflowComponent struct {
	Name        string           `json:"name"`
	ValueM3     float64          `json:"value_m3"`
	Quality     DataQualityLevel `json:"quality"`
	SourceLabel string           `json:"source_label"`
	Notes       string           `json:"notes,omitempty"`
}

// InflowResult is the totaled output of the Inflows Calculator.
type InflowResult struct {
	TotalM3          float64            `json:"total_m3"`
	Components       map[string]float64 `json:"components"`
	ComponentDetails []InflowComponent  `json:"component_details"`
	Quality          DataQualityLevel   `json:"quality"`
}

// RainfallM3 returns the rainfall component, 0 if absent.
func (r InflowResult) RainfallM3() float64 { return r.Components["rainfall"] }

// AbstractionM3 is the legacy combined surface+groundwater accessor, kept
// for parity with the original service's "abstraction" field.
func (r InflowResult) AbstractionM3() float64 {
	return r.Components["surface_water"] + r.Components["groundwater"]
}

// OreMoistureM3 returns the ore-moisture component, 0 if absent.
func (r InflowResult) OreMoistureM3() float64 { return r.Components["ore_moisture"] }

// OtherM3 is whatever remains of total once every named component named in
// ComponentDetails is subtracted out.
func (r InflowResult) OtherM3() float64 {
	named := 0.0
	for _, c := range r.ComponentDetails {
		named += c.ValueM3
	}
	return r.TotalM3 - named
}

// ComponentsBalanced reports whether TotalM3 equals the sum of Components
// within componentTolerance (spec §8 invariant 1).
func (r InflowResult) ComponentsBalanced() bool {
	sum := 0.0
	for _, v := range r.Components {
		sum += v
	}
	return math.Abs(r.TotalM3-sum) < componentTolerance
}
