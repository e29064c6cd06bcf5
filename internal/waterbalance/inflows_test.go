package waterbalance

import (
	"context"
	"math"
	"testing"

	"github.com/caliphsdev/waterbalance/internal/model"
)

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestInflowsCalculator_Calculate(t *testing.T) {
	period, err := model.NewPeriod(2026, 3)
	if err != nil {
		t.Fatalf("NewPeriod: %v", err)
	}

	tests := []struct {
		name           string
		meters         map[string]float64
		constants      map[string]any
		environment    fakeEnvironment
		facilities     []model.Facility
		expectedTotal  float64
		expectMissing  string
		description    string
	}{
		{
			name: "nominal closure inputs from scenario A",
			meters: map[string]float64{
				"RiverA":        12000,
				"tonnes_milled": 100000,
			},
			constants: map[string]any{
				constSurfaceWaterColumns: []string{"RiverA"},
				constGroundwaterColumns:  []string{"GW1", "GW2"},
				constTonnesMilledColumn:  "tonnes_milled",
				constOreMoisturePct:      3.5,
			},
			environment: fakeEnvironment{rainfallMM: 50, evaporationMM: 25, ok: true},
			facilities: []model.Facility{
				{Code: "TSF1", Status: model.FacilityActive, SurfaceAreaM2: 100000},
			},
			expectedTotal: 5000 + 12000 + 3500, // rainfall + surface water + ore moisture; groundwater/dewatering columns unresolved
			description:   "rainfall 5000 + surface_water 12000 + ore_moisture 3500, groundwater/dewatering columns absent contribute 0",
		},
		{
			name:   "missing rainfall still computes and flags",
			meters: map[string]float64{},
			constants: map[string]any{
				constTonnesMilledColumn: "tonnes_milled",
			},
			environment:   fakeEnvironment{ok: false},
			facilities:    nil,
			expectedTotal: 0,
			expectMissing: "rainfall",
			description:   "scenario B: environmental repo returns no record, rainfall=0, flagged missing",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			meters := newFakeMeters(tc.meters)
			facilities := newFakeFacilities(tc.facilities...)
			constants := newFakeConstants(tc.constants)
			calc := NewInflowsCalculator(meters, facilities, tc.environment, constants, testLogger())

			flags := model.NewDataQualityFlags()
			result := calc.Calculate(context.Background(), period, flags)

			if !almostEqual(result.TotalM3, tc.expectedTotal, 0.01) {
				t.Errorf("%s: total = %.4f, want %.4f", tc.description, result.TotalM3, tc.expectedTotal)
			}

			if tc.expectMissing != "" {
				found := false
				for _, m := range flags.MissingValues() {
					if m == tc.expectMissing {
						found = true
					}
				}
				if !found {
					t.Errorf("%s: expected %q in missing_values, got %v", tc.description, tc.expectMissing, flags.MissingValues())
				}
			}
		})
	}
}

func TestInflowsCalculator_ComponentsBalanced(t *testing.T) {
	period, _ := model.NewPeriod(2026, 1)
	meters := newFakeMeters(map[string]float64{"RiverA": 1000})
	facilities := newFakeFacilities()
	constants := newFakeConstants(map[string]any{
		constSurfaceWaterColumns: []string{"RiverA"},
	})
	calc := NewInflowsCalculator(meters, facilities, fakeEnvironment{ok: false}, constants, testLogger())

	flags := model.NewDataQualityFlags()
	result := calc.Calculate(context.Background(), period, flags)

	if !result.ComponentsBalanced() {
		t.Errorf("expected components to sum to total: total=%.4f components=%v", result.TotalM3, result.Components)
	}
}
