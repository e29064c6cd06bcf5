package model

import (
	"encoding/json"
	"strings"
)

// DataQualityLevel ranks where a value came from. Higher is more trustworthy.
type DataQualityLevel int

const (
	Missing DataQualityLevel = iota
	Estimated
	Calculated
	Measured
)

func (l DataQualityLevel) String() string {
	switch l {
	case Measured:
		return "MEASURED"
	case Calculated:
		return "CALCULATED"
	case Estimated:
		return "ESTIMATED"
	default:
		return "MISSING"
	}
}

// MarshalJSON renders the level as its string name rather than the
// underlying int, so clients see "MEASURED" instead of 3.
func (l DataQualityLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// Min returns the lower-ranked of two quality levels, used when a composite
// result's quality is the minimum of its components (spec §3).
func Min(a, b DataQualityLevel) DataQualityLevel {
	if a < b {
		return a
	}
	return b
}

// DataQualityFlags accumulates provenance for a single balance run. A field
// name may appear in at most one of the four sets; the AddX helpers enforce
// that by removing the name from the other three before adding it.
type DataQualityFlags struct {
	missingValues    map[string]struct{}
	estimatedValues  map[string]struct{}
	simulatedValues  map[string]struct{}
	calculatedValues map[string]struct{}
	warnings         []string
	notes            map[string]string
}

// NewDataQualityFlags returns an empty accumulator ready for one balance run.
func NewDataQualityFlags() *DataQualityFlags {
	return &DataQualityFlags{
		missingValues:    make(map[string]struct{}),
		estimatedValues:  make(map[string]struct{}),
		simulatedValues:  make(map[string]struct{}),
		calculatedValues: make(map[string]struct{}),
		notes:            make(map[string]string),
	}
}

func (f *DataQualityFlags) clear(field string) {
	delete(f.missingValues, field)
	delete(f.estimatedValues, field)
	delete(f.simulatedValues, field)
	delete(f.calculatedValues, field)
}

// AddMissing records that field had no data available; contributes 0.
func (f *DataQualityFlags) AddMissing(field string) {
	f.clear(field)
	f.missingValues[field] = struct{}{}
}

// AddEstimated records that field was filled by heuristic.
func (f *DataQualityFlags) AddEstimated(field string) {
	f.clear(field)
	f.estimatedValues[field] = struct{}{}
}

// AddSimulated records that field came from a modelled, not measured, source.
func (f *DataQualityFlags) AddSimulated(field string) {
	f.clear(field)
	f.simulatedValues[field] = struct{}{}
}

// AddCalculated records that field was derived from measured inputs.
func (f *DataQualityFlags) AddCalculated(field string) {
	f.clear(field)
	f.calculatedValues[field] = struct{}{}
}

// AddNote attaches a free-text note to a field, in addition to its flag.
func (f *DataQualityFlags) AddNote(field, note string) {
	f.notes[field] = note
}

// AddWarning appends a free-text warning, not tied to any single field.
func (f *DataQualityFlags) AddWarning(msg string) {
	f.warnings = append(f.warnings, msg)
}

func (f *DataQualityFlags) MissingValues() []string    { return keys(f.missingValues) }
func (f *DataQualityFlags) EstimatedValues() []string  { return keys(f.estimatedValues) }
func (f *DataQualityFlags) SimulatedValues() []string  { return keys(f.simulatedValues) }
func (f *DataQualityFlags) CalculatedValues() []string { return keys(f.calculatedValues) }
func (f *DataQualityFlags) Warnings() []string         { return append([]string(nil), f.warnings...) }
func (f *DataQualityFlags) Note(field string) (string, bool) {
	n, ok := f.notes[field]
	return n, ok
}

// HasWarning reports whether a warning containing substr was recorded,
// handy for tests asserting a specific degraded path fired.
func (f *DataQualityFlags) HasWarning(substr string) bool {
	needle := strings.ToLower(substr)
	for _, w := range f.warnings {
		if strings.Contains(strings.ToLower(w), needle) {
			return true
		}
	}
	return false
}

// dataQualityFlagsWire is the JSON projection of DataQualityFlags; its
// fields stay unexported on the struct itself so AddX/clear remain the only
// way to mutate it.
type dataQualityFlagsWire struct {
	MissingValues    []string          `json:"missing_values,omitempty"`
	EstimatedValues  []string          `json:"estimated_values,omitempty"`
	SimulatedValues  []string          `json:"simulated_values,omitempty"`
	CalculatedValues []string          `json:"calculated_values,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"`
	Notes            map[string]string `json:"notes,omitempty"`
}

// MarshalJSON exposes the accumulator's contents to API clients.
func (f *DataQualityFlags) MarshalJSON() ([]byte, error) {
	return json.Marshal(dataQualityFlagsWire{
		MissingValues:    f.MissingValues(),
		EstimatedValues:  f.EstimatedValues(),
		SimulatedValues:  f.SimulatedValues(),
		CalculatedValues: f.CalculatedValues(),
		Warnings:         f.Warnings(),
		Notes:            f.notes,
	})
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

