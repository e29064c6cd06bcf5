package waterbalance

import (
	"context"
	"testing"

	"github.com/caliphsdev/waterbalance/internal/model"
)

func TestOutflowsCalculator_Calculate(t *testing.T) {
	period, err := model.NewPeriod(2026, 3)
	if err != nil {
		t.Fatalf("NewPeriod: %v", err)
	}

	tests := []struct {
		name          string
		meters        map[string]float64
		constants     map[string]any
		facilities    []model.Facility
		environment   fakeEnvironment
		expectedTotal float64
		description   string
	}{
		{
			name: "scenario A component breakdown",
			meters: map[string]float64{
				"tonnes_milled": 100000,
			},
			constants: map[string]any{
				constTonnesMilledColumn:        "tonnes_milled",
				constEvapPanCoefficient:        0.7,
				constSeepageRateLinedPct:       0.1,
				constSeepageRateUnlinedPct:     0.5,
				constDustSuppressionRateLPerT:  1.0,
				constTailingsMoisturePct:       45.0,
				constRecoveryRatePct:           8.0,
				constProductMoisturePct:        2.0,
				constWorkforce:                 2000.0,
				constDomesticConsumptionLPerPD: 150.0,
				constDomesticConsumptionEnabled: true,
			},
			facilities: []model.Facility{
				{Code: "TSF1", Status: model.FacilityActive, SurfaceAreaM2: 100000, CurrentVolumeM3: 500000, IsLined: true},
			},
			environment: fakeEnvironment{rainfallMM: 50, evaporationMM: 25, ok: true},
			// evap 1750 + seepage 500000*0.1/100=500 + dust 100 + tailings 45000 + product 160 + domestic 9300 ≈ 56 810 (scenario A)
			expectedTotal: 1750 + 500 + 100 + 45000 + 160 + 9300,
			description: "evap + seepage(lined) + dust + tailings + product_moisture + domestic_consumption ≈ scenario A's 56 810",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			meters := newFakeMeters(tc.meters)
			facilities := newFakeFacilities(tc.facilities...)
			constants := newFakeConstants(tc.constants)
			calc := NewOutflowsCalculator(meters, facilities, tc.environment, constants, testLogger())

			flags := model.NewDataQualityFlags()
			result, _, _ := calc.Calculate(context.Background(), period, flags)

			if !almostEqual(result.TotalM3, tc.expectedTotal, 1.0) {
				t.Errorf("%s: total = %.4f, want %.4f", tc.description, result.TotalM3, tc.expectedTotal)
			}
		})
	}
}

func TestOutflowsCalculator_TailingsMoistureFromDensity(t *testing.T) {
	period, _ := model.NewPeriod(2025, 6)
	meters := newFakeMeters(map[string]float64{
		"tonnes_milled":    100000,
		"tailings_density": 1.8,
	})
	constants := newFakeConstants(map[string]any{
		constTonnesMilledColumn:   "tonnes_milled",
		constTailingsDensityCol:   "tailings_density",
		constTailingsSolidsDensity: 2.7,
		constTailingsMoisturePct:  45.0,
	})
	facilities := newFakeFacilities()
	calc := NewOutflowsCalculator(meters, facilities, fakeEnvironment{ok: false}, constants, testLogger())

	flags := model.NewDataQualityFlags()
	_, moisturePct, _ := calc.Calculate(context.Background(), period, flags)

	// Scenario C: Cw = 2.7*0.8/(1.8*1.7) = 0.7059; moisture = 29.41%
	if !almostEqual(moisturePct, 29.41, 0.01) {
		t.Errorf("moisture_pct = %.4f, want ≈29.41", moisturePct)
	}
}

func TestOutflowsCalculator_DensityOutOfBoundsFallsBackToConstant(t *testing.T) {
	period, _ := model.NewPeriod(2025, 6)
	meters := newFakeMeters(map[string]float64{
		"tonnes_milled":    100000,
		"tailings_density": 1.0, // exactly 1.0, invalid per spec boundary behavior
	})
	constants := newFakeConstants(map[string]any{
		constTonnesMilledColumn:   "tonnes_milled",
		constTailingsDensityCol:   "tailings_density",
		constTailingsSolidsDensity: 2.7,
		constTailingsMoisturePct:  45.0,
	})
	facilities := newFakeFacilities()
	calc := NewOutflowsCalculator(meters, facilities, fakeEnvironment{ok: false}, constants, testLogger())

	flags := model.NewDataQualityFlags()
	_, moisturePct, _ := calc.Calculate(context.Background(), period, flags)

	if moisturePct != 45.0 {
		t.Errorf("moisture_pct = %.4f, want fallback constant 45.0", moisturePct)
	}
	if !flags.HasWarning("out of physical bounds") {
		t.Errorf("expected a bounds-violation warning, got %v", flags.Warnings())
	}
}

func TestOutflowsCalculator_EvaporationClampedToCurrentVolume(t *testing.T) {
	period, _ := model.NewPeriod(2026, 1)
	meters := newFakeMeters(nil)
	constants := newFakeConstants(map[string]any{
		constEvapPanCoefficient: 0.7,
	})
	// Huge surface area against a tiny current volume should clamp.
	facilities := newFakeFacilities(model.Facility{
		Code: "TSF1", Status: model.FacilityActive, SurfaceAreaM2: 10000000, CurrentVolumeM3: 10,
	})
	calc := NewOutflowsCalculator(meters, facilities, fakeEnvironment{rainfallMM: 0, evaporationMM: 500, ok: true}, constants, testLogger())

	flags := model.NewDataQualityFlags()
	result, _, _ := calc.Calculate(context.Background(), period, flags)

	if result.EvaporationM3() > 10 {
		t.Errorf("evaporation = %.4f, want clamped to facility volume 10", result.EvaporationM3())
	}
}
